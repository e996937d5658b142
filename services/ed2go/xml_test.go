package ed2gosvc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const getRegistrationResponse = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <GetRegistrationResponse xmlns="https://api.ed2go.com">
      <RegistrationsResponse>
        <Registrations>
          <Registration>
            <RegistrationKey>reg-1</RegistrationKey>
            <ReferenceID>ref-1</ReferenceID>
            <ReturnURL>https://partner.test/classroom</ReturnURL>
            <Student>
              <FirstName>Jane</FirstName>
              <LastName>Doe</LastName>
              <Email>jane.doe@test.cd</Email>
            </Student>
            <Course>
              <Code>course-v1:Acme+CS101+2026</Code>
              <Title>Intro</Title>
            </Course>
          </Registration>
        </Registrations>
      </RegistrationsResponse>
    </GetRegistrationResponse>
  </soap:Body>
</soap:Envelope>`

const completionUpdateResponse = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <UpdateCompletionReportResponse xmlns="https://api.ed2go.com">
      <Response>
        <Result>
          <Success>false</Success>
          <Code>301</Code>
          <Message>Registration not found</Message>
        </Result>
      </Response>
    </UpdateCompletionReportResponse>
  </soap:Body>
</soap:Envelope>`

func TestXMLFromMap(t *testing.T) {
	got := XMLFromMap(map[string]map[string]interface{}{
		"GetRegistration": {
			"RegistrationKey": "reg-1",
			"APIKey":          "key",
		},
	})
	// children in sorted key order
	want := `<GetRegistration xmlns="https://api.ed2go.com">` +
		`<APIKey>key</APIKey><RegistrationKey>reg-1</RegistrationKey>` +
		`</GetRegistration>`
	assert.Equal(t, want, got)
}

func TestEnvelope(t *testing.T) {
	got := Envelope("<Ping/>")
	assert.Contains(t, got, "<soap12:Body><Ping/></soap12:Body>")
	assert.Contains(t, got, `xmlns:soap12="http://www.w3.org/2003/05/soap-envelope"`)
}

func TestRegistrationDataFromXML(t *testing.T) {
	data, err := RegistrationDataFromXML(getRegistrationResponse)
	require.NoError(t, err)

	assert.Equal(t, "reg-1", data["RegistrationKey"])
	assert.Equal(t, "ref-1", data["ReferenceID"])

	student, ok := data["Student"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Jane", student["FirstName"])
	assert.Equal(t, "jane.doe@test.cd", student["Email"])

	course, ok := data["Course"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "course-v1:Acme+CS101+2026", course["Code"])
}

func TestCompletionUpdateResultFromXML(t *testing.T) {
	result, err := CompletionUpdateResultFromXML(completionUpdateResponse)
	require.NoError(t, err)
	assert.Equal(t, "false", result["Success"])
	assert.Equal(t, "301", result["Code"])
	assert.Equal(t, "Registration not found", result["Message"])
}

func TestDecode_missingElement(t *testing.T) {
	_, err := RegistrationDataFromXML(completionUpdateResponse)
	assert.Error(t, err)

	_, err = RegistrationDataFromXML("not xml at all <")
	assert.Error(t, err)
}
