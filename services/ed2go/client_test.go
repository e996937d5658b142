package ed2gosvc

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

const statusUpdateResponse = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <UpdateRegistrationStatusResponse xmlns="https://api.ed2go.com">
      <Response>
        <Result>
          <Success>true</Success>
        </Result>
      </Response>
    </UpdateRegistrationStatusResponse>
  </soap:Body>
</soap:Envelope>`

const completionSuccessResponse = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <UpdateCompletionReportResponse xmlns="https://api.ed2go.com">
      <Response>
        <Result>
          <Success>true</Success>
        </Result>
      </Response>
    </UpdateCompletionReportResponse>
  </soap:Body>
</soap:Envelope>`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conf := new(core.Config)
	conf.Ed2go.APIKey = "key"
	conf.Ed2go.RegistrationServiceURL = srv.URL + "/registration"
	conf.Ed2go.CompletionReportURL = srv.URL + "/completion"
	return NewClient(conf, nopLogger{}), srv
}

func TestClient_Registration(t *testing.T) {
	var gotBody string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(getRegistrationResponse))
	})

	reg, err := client.Registration("reg-1")
	require.NoError(t, err)
	assert.Equal(t, "reg-1", reg.RegistrationKey)
	assert.Equal(t, "Jane", reg.Student.FirstName)
	assert.Equal(t, "course-v1:Acme+CS101+2026", reg.Course.Code)

	assert.Contains(t, gotBody, "<GetRegistration xmlns=\"https://api.ed2go.com\">")
	assert.Contains(t, gotBody, "<APIKey>key</APIKey>")
	assert.Contains(t, gotBody, "<RegistrationKey>reg-1</RegistrationKey>")
}

func TestClient_Registration_httpError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Registration("reg-1")
	assert.Error(t, err)
}

func TestClient_UpdateRegistrationStatus(t *testing.T) {
	var gotBody string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(statusUpdateResponse))
	})

	err := client.UpdateRegistrationStatus("reg-1", "ref-1", core.StatusRegistrationProcessed, "")
	require.NoError(t, err)
	assert.Contains(t, gotBody, "<RegistrationStatus>"+core.StatusRegistrationProcessed+"</RegistrationStatus>")
	assert.NotContains(t, gotBody, "<Note>")

	err = client.UpdateRegistrationStatus("reg-1", "ref-1", core.StatusRegistrationRejected, "bad data")
	require.NoError(t, err)
	assert.Contains(t, gotBody, "<Note>bad data</Note>")
}

func TestClient_SubmitCompletionReport(t *testing.T) {
	var gotBody string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(completionSuccessResponse))
	})

	err := client.SubmitCompletionReport(core.CompletionReport{
		RegistrationKey:     "reg-1",
		PercentProgress:     66.67,
		LastAccessDatetime:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		CoursePassed:        true,
		PercentOverallScore: 0.91,
		CompletionDatetime:  null.TimeFrom(time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)),
		TimeSpent:           "0.03:15:00",
	})
	require.NoError(t, err)

	assert.Contains(t, gotBody, "<PercentProgress>66.67</PercentProgress>")
	assert.Contains(t, gotBody, "<LastAccessDatetimeGMT>2026-08-30T12:00:00Z</LastAccessDatetimeGMT>")
	assert.Contains(t, gotBody, "<CompletionDatetimeGMT>2026-08-31T09:00:00Z</CompletionDatetimeGMT>")
	assert.Contains(t, gotBody, "<TimeSpent>0.03:15:00</TimeSpent>")
}

func TestClient_SubmitCompletionReport_failureFlag(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionUpdateResponse))
	})

	err := client.SubmitCompletionReport(core.CompletionReport{RegistrationKey: "reg-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "301")
}
