package core

import (
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"
)

// Inbound partner actions.
const (
	ActionNewRegistration    = "NewRegistration"
	ActionUpdateRegistration = "UpdateRegistration"
	ActionCancelRegistration = "CancelRegistration"
	ActionGetRegistration    = "GetRegistration"
)

// Registration statuses pushed back to the partner service.
const (
	StatusRegistrationProcessed = "RegistrationProcessed"
	StatusRegistrationRejected  = "RegistrationRejected"
	StatusCancellationProcessed = "CancellationProcessed"
	StatusCancellationRejected  = "CancellationRejected"
	StatusUpdateProcessed       = "UpdateProcessed"
	StatusUpdateRejected        = "UpdateRejected"
)

type (
	// StudentData is the Student portion of a partner registration.
	StudentData struct {
		FirstName  string
		LastName   string
		Email      string
		Country    string
		Birthdate  string // partner-format timestamp, e.g. "1970-01-01T08:00:00Z"
		StudentKey string
	}

	// CourseData is the Course portion of a partner registration.
	// Code carries the course key the LMS understands.
	CourseData struct {
		Code        string
		Title       string
		ProductCode string
	}

	// RegistrationData is the payload of a GetRegistration response.
	RegistrationData struct {
		RegistrationKey string
		ReferenceID     string
		ReturnURL       string
		Status          string
		Student         StudentData
		Course          CourseData
	}

	// CompletionReport is the per-registration progress payload submitted
	// to the partner completion report endpoint.
	CompletionReport struct {
		RegistrationKey     string
		PercentProgress     float64
		LastAccessDatetime  time.Time
		CoursePassed        bool
		PercentOverallScore float64
		CompletionDatetime  null.Time
		TimeSpent           string // D.HH:MM:SS
	}

	// PartnerClient talks to the partner registration and completion
	// report services.
	PartnerClient interface {
		// Registration fetches the registration data for the given key.
		Registration(regKey string) (RegistrationData, error)
		// UpdateRegistrationStatus pushes a registration status update.
		// Note may be empty.
		UpdateRegistrationStatus(regKey, referenceID, status, note string) error
		// SubmitCompletionReport submits a single completion report. A 200
		// response with an explicit failure flag is returned as an error.
		SubmitCompletionReport(rep CompletionReport) error
	}
)

// FormatTimeSpent renders a duration in the partner's D.HH:MM:SS format.
func FormatTimeSpent(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalSecs := int(d.Seconds())
	days := totalSecs / (24 * 3600)
	hours := totalSecs % (24 * 3600) / 3600
	minutes := totalSecs % 3600 / 60
	seconds := totalSecs % 60
	return fmt.Sprintf("%d.%02d:%02d:%02d", days, hours, minutes, seconds)
}
