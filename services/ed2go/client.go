package ed2gosvc

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core"
)

// Partner payload timestamp format.
const timestampLayout = "2006-01-02T15:04:05Z"

// Client talks to the partner registration and completion report services
// over SOAP/XML HTTP POST.
type Client struct {
	conf   *core.Config
	rest   *resty.Client
	logger core.Logger
}

var _ core.PartnerClient = (*Client)(nil)

func NewClient(conf *core.Config, logger core.Logger) *Client {
	rest := resty.New().
		SetHeader("Content-Type", "text/xml").
		SetHeader("charset", "utf-8").
		SetTimeout(30 * time.Second)
	return &Client{conf: conf, rest: rest, logger: logger}
}

// Registration fetches the registration data for the given key from the
// partner GetRegistration endpoint.
func (c *Client) Registration(regKey string) (core.RegistrationData, error) {
	body := RequestData(map[string]map[string]interface{}{
		ReqGetRegistration: {
			"APIKey":          c.conf.Ed2go.APIKey,
			"RegistrationKey": regKey,
		},
	})
	resp, err := c.rest.R().SetBody(body).Post(c.conf.Ed2go.RegistrationServiceURL)
	if err != nil {
		return core.RegistrationData{}, errors.Wrap(err, "ed2go: GetRegistration request")
	}
	if resp.StatusCode() != http.StatusOK {
		return core.RegistrationData{}, errors.Errorf(
			"ed2go: GetRegistration returned status %d", resp.StatusCode())
	}

	data, err := RegistrationDataFromXML(resp.String())
	if err != nil {
		return core.RegistrationData{}, err
	}
	return registrationFromMap(data), nil
}

// UpdateRegistrationStatus pushes a registration status update to the partner.
func (c *Client) UpdateRegistrationStatus(regKey, referenceID, status, note string) error {
	payload := map[string]interface{}{
		"APIKey":             c.conf.Ed2go.APIKey,
		"RegistrationKey":    regKey,
		"ReferenceID":        referenceID,
		"RegistrationStatus": status,
	}
	if note != "" {
		payload["Note"] = note
	}
	body := RequestData(map[string]map[string]interface{}{ReqUpdateRegistrationStatus: payload})

	resp, err := c.rest.R().SetBody(body).Post(c.conf.Ed2go.RegistrationServiceURL)
	if err != nil {
		return errors.Wrap(err, "ed2go: UpdateRegistrationStatus request")
	}
	if resp.StatusCode() != http.StatusOK {
		return errors.Errorf("ed2go: UpdateRegistrationStatus returned status %d", resp.StatusCode())
	}

	result, err := RegistrationStatusResultFromXML(resp.String())
	if err != nil {
		return err
	}
	return checkResult(result, "UpdateRegistrationStatus")
}

// SubmitCompletionReport submits a single completion report. A 200 response
// carrying an explicit failure flag is returned as an error.
func (c *Client) SubmitCompletionReport(rep core.CompletionReport) error {
	payload := map[string]interface{}{
		"APIKey":                c.conf.Ed2go.APIKey,
		"RegistrationKey":       rep.RegistrationKey,
		"PercentProgress":       fmt.Sprintf("%.2f", rep.PercentProgress),
		"LastAccessDatetimeGMT": rep.LastAccessDatetime.UTC().Format(timestampLayout),
		"CoursePassed":          rep.CoursePassed,
		"PercentOverallScore":   fmt.Sprintf("%.2f", rep.PercentOverallScore),
		"TimeSpent":             rep.TimeSpent,
	}
	if rep.CompletionDatetime.Valid {
		payload["CompletionDatetimeGMT"] = rep.CompletionDatetime.Time.UTC().Format(timestampLayout)
	}
	body := RequestData(map[string]map[string]interface{}{ReqUpdateCompletionReport: payload})

	resp, err := c.rest.R().SetBody(body).Post(c.conf.Ed2go.CompletionReportURL)
	if err != nil {
		return errors.Wrap(err, "ed2go: UpdateCompletionReport request")
	}
	if resp.StatusCode() != http.StatusOK {
		return errors.Errorf("ed2go: UpdateCompletionReport returned status %d", resp.StatusCode())
	}

	result, err := CompletionUpdateResultFromXML(resp.String())
	if err != nil {
		return err
	}
	return checkResult(result, "UpdateCompletionReport")
}

// checkResult inspects the decoded Result element's Success flag.
func checkResult(result map[string]interface{}, op string) error {
	success, _ := result["Success"].(string)
	if success == "true" || success == "True" {
		return nil
	}
	code, _ := result["Code"].(string)
	message, _ := result["Message"].(string)
	return errors.Errorf("ed2go: %s failed: code=%s message=%s", op, code, message)
}

func registrationFromMap(data map[string]interface{}) core.RegistrationData {
	reg := core.RegistrationData{
		RegistrationKey: str(data, "RegistrationKey"),
		ReferenceID:     str(data, "ReferenceID"),
		ReturnURL:       str(data, "ReturnURL"),
		Status:          str(data, "Status"),
	}
	if student, ok := data["Student"].(map[string]interface{}); ok {
		reg.Student = core.StudentData{
			FirstName:  str(student, "FirstName"),
			LastName:   str(student, "LastName"),
			Email:      str(student, "Email"),
			Country:    str(student, "Country"),
			Birthdate:  str(student, "Birthdate"),
			StudentKey: str(student, "StudentKey"),
		}
	}
	if course, ok := data["Course"].(map[string]interface{}); ok {
		reg.Course = core.CourseData{
			Code:        str(course, "Code"),
			Title:       str(course, "Title"),
			ProductCode: str(course, "ProductCode"),
		}
	}
	return reg
}

func str(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
