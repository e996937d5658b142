package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/apps/api/echo/helpers"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/completion"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/edx"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/registration"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/session"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/user"
	ed2gosvc "github.com/ExtensionEngineArchive/ed2go-edx-platform/services/ed2go"
	dummyedx "github.com/ExtensionEngineArchive/ed2go-edx-platform/services/edx/dummy"
	dummydb "github.com/ExtensionEngineArchive/ed2go-edx-platform/storage/database/dummy"
)

const (
	apiKey    = "secret-api-key"
	courseKey = "course-v1:Acme+CS101+2026"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type statusPush struct {
	regKey, status string
}

type scriptedPartner struct {
	registrations map[string]core.RegistrationData
	pushes        []statusPush
}

func (p *scriptedPartner) Registration(regKey string) (core.RegistrationData, error) {
	reg, ok := p.registrations[regKey]
	if !ok {
		return core.RegistrationData{}, errors.New("registration not found")
	}
	return reg, nil
}

func (p *scriptedPartner) UpdateRegistrationStatus(regKey, _, status, _ string) error {
	p.pushes = append(p.pushes, statusPush{regKey, status})
	return nil
}

func (p *scriptedPartner) SubmitCompletionReport(core.CompletionReport) error { return nil }

type testApp struct {
	server   Server
	conf     *core.Config
	users    *user.Service
	sessions *session.Service
	partner  *scriptedPartner
	lms      *dummyedx.Provider
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := dummydb.Open()
	require.NoError(t, err)

	conf := new(core.Config)
	conf.TestMode = true
	conf.AppName = "ed2go-integration"
	conf.SecretKey = "test-secret"
	conf.JWTExpirationDelta = time.Hour
	conf.LMS.BaseURL = "http://lms.test"
	conf.Ed2go.APIKey = apiKey

	lms := dummyedx.NewProvider()
	lms.SetCourse(courseKey, edx.Block{
		ID:   courseKey,
		Type: "course",
		Children: []edx.Block{
			{
				ID:   "chapter-1",
				Type: edx.BlockTypeChapter,
				Children: []edx.Block{
					{
						ID:   "sub-1",
						Type: edx.BlockTypeSequential,
						Children: []edx.Block{
							{ID: "problem-1", Type: edx.BlockTypeProblem},
						},
					},
				},
			},
		},
	})
	partner := &scriptedPartner{registrations: make(map[string]core.RegistrationData)}

	users := user.NewService(dummydb.NewUserRepository(db))
	completions := completion.NewService(
		dummydb.NewCompletionRepository(db), users, lms, lms, lms, partner, conf, nopLogger{})
	sessions := session.NewService(dummydb.NewSessionRepository(db), completions, nopLogger{})
	completions.BindSessionTimer(sessions)
	registrations := registration.NewService(partner, completions, users, nopLogger{})

	server := NewServer(ServerDeps{
		Conf:            conf,
		Logger:          nopLogger{},
		UserSvc:         users,
		SessionSvc:      sessions,
		CompletionSvc:   completions,
		RegistrationSvc: registrations,
	})
	return &testApp{
		server: server, conf: conf, users: users, sessions: sessions, partner: partner, lms: lms,
	}
}

func (app *testApp) registrationData(regKey string) core.RegistrationData {
	return core.RegistrationData{
		RegistrationKey: regKey,
		ReferenceID:     "ref-1",
		ReturnURL:       "https://partner.test/classroom",
		Student: core.StudentData{
			FirstName: "Jane",
			LastName:  "Doe",
			Email:     "jane.doe@test.cd",
			Birthdate: "1990-06-15",
		},
		Course: core.CourseData{Code: courseKey},
	}
}

func (app *testApp) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) postJSON(t *testing.T, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	return rec
}

func signedForm(t *testing.T, requestType string, set func(url.Values)) url.Values {
	t.Helper()
	v := make(url.Values)
	v.Set(ed2gosvc.ParamRequestExpiration, time.Now().UTC().Add(time.Hour).Format("2006-01-02T15:04:05"))
	set(v)
	sum, err := ed2gosvc.Checksum(apiKey, v, requestType)
	require.NoError(t, err)
	v.Set(ed2gosvc.ParamChecksum, sum)
	return v
}

func TestSSOLogin(t *testing.T) {
	app := newTestApp(t)
	app.partner.registrations["reg-1"] = app.registrationData("reg-1")

	form := signedForm(t, ed2gosvc.SSORequest, func(v url.Values) {
		v.Set(ed2gosvc.ParamRegistrationKey, "reg-1")
		v.Set(ed2gosvc.ParamReturnURL, "https://partner.test/classroom")
	})

	rec := app.postForm("/ed2go/sso", form)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://lms.test/courses/"+courseKey+"/course/", rec.Header().Get("Location"))

	// a session cookie with a valid token is issued
	resp := rec.Result()
	var token string
	for _, c := range resp.Cookies() {
		if c.Name == helpers.TokenCookieName {
			token = c.Value
		}
	}
	require.NotEmpty(t, token)
	claims, err := helpers.ParseToken(token, app.conf)
	require.NoError(t, err)
	assert.Equal(t, "jane", claims.Username)

	// the user was provisioned and enrolled
	usr, err := app.users.GetByEmail("jane.doe@test.cd")
	require.NoError(t, err)
	assert.True(t, app.lms.Enrolled(usr.ID, courseKey))
	assert.False(t, usr.LastLogin.IsZero())
}

func TestSSOLogin_invalidRequest(t *testing.T) {
	app := newTestApp(t)

	// bad checksum with a return URL bounces back to the partner
	form := signedForm(t, ed2gosvc.SSORequest, func(v url.Values) {
		v.Set(ed2gosvc.ParamRegistrationKey, "reg-1")
		v.Set(ed2gosvc.ParamReturnURL, "https://partner.test/classroom")
	})
	form.Set(ed2gosvc.ParamChecksum, "tampered")

	rec := app.postForm("/ed2go/sso", form)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://partner.test/classroom", rec.Header().Get("Location"))

	// without one the request fails outright
	form.Del(ed2gosvc.ParamReturnURL)
	rec = app.postForm("/ed2go/sso", form)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActionEndpoint(t *testing.T) {
	app := newTestApp(t)
	app.partner.registrations["reg-1"] = app.registrationData("reg-1")

	form := signedForm(t, ed2gosvc.ActionRequest, func(v url.Values) {
		v.Set(ed2gosvc.ParamAction, core.ActionNewRegistration)
		v.Set(ed2gosvc.ParamRegistrationKey, "reg-1")
	})

	rec := app.postForm("/ed2go/action", form)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "enrolled")

	// duplicate key is rejected with a status push
	rec = app.postForm("/ed2go/action", form)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotEmpty(t, app.partner.pushes)
	assert.Equal(t, core.StatusRegistrationRejected, app.partner.pushes[len(app.partner.pushes)-1].status)
}

func TestActionEndpoint_invalidRequest(t *testing.T) {
	app := newTestApp(t)

	form := signedForm(t, ed2gosvc.ActionRequest, func(v url.Values) {
		v.Set(ed2gosvc.ParamAction, core.ActionNewRegistration)
		v.Set(ed2gosvc.ParamRegistrationKey, "reg-1")
	})
	form.Set(ed2gosvc.ParamChecksum, "tampered")

	rec := app.postForm("/ed2go/action", form)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Checksum invalid.", rec.Body.String())

	// expired request, checksum correct
	expired := make(url.Values)
	expired.Set(ed2gosvc.ParamAction, core.ActionNewRegistration)
	expired.Set(ed2gosvc.ParamRegistrationKey, "reg-1")
	expired.Set(ed2gosvc.ParamRequestExpiration, time.Now().UTC().Add(-time.Hour).Format("2006-01-02T15:04:05"))
	sum, err := ed2gosvc.Checksum(apiKey, expired, ed2gosvc.ActionRequest)
	require.NoError(t, err)
	expired.Set(ed2gosvc.ParamChecksum, sum)

	rec = app.postForm("/ed2go/action", expired)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request expired.", rec.Body.String())
}

func TestCourseSessionEndpoint(t *testing.T) {
	app := newTestApp(t)
	usr, err := app.users.Create(user.NewUser{Username: "jdoe", Email: "jdoe@test.cd", Name: "Jane"})
	require.NoError(t, err)

	rec := app.postJSON(t, "/api/course-session", map[string]string{
		"user": "jdoe", "course_id": courseKey,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	total, err := app.sessions.TotalTime(usr.ID, courseKey)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, time.Duration(0))

	// unknown user
	rec = app.postJSON(t, "/api/course-session", map[string]string{
		"user": "ghost", "course_id": courseKey,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// missing fields fail validation
	rec = app.postJSON(t, "/api/course-session", map[string]string{"user": "jdoe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContentViewedAndProgressEndpoints(t *testing.T) {
	app := newTestApp(t)
	app.partner.registrations["reg-1"] = app.registrationData("reg-1")
	require.Equal(t, http.StatusCreated, app.postForm("/ed2go/action", signedForm(t, ed2gosvc.ActionRequest, func(v url.Values) {
		v.Set(ed2gosvc.ParamAction, core.ActionNewRegistration)
		v.Set(ed2gosvc.ParamRegistrationKey, "reg-1")
	})).Code)

	rec := app.postJSON(t, "/api/content-viewed", map[string]string{
		"user": "jane", "course_id": courseKey, "usage_id": "sub-1",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = app.postJSON(t, "/api/content-viewed", map[string]string{
		"user": "jane", "course_id": courseKey, "usage_id": "nope",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.postJSON(t, "/api/course-progress", map[string]string{
		"user": "jane", "course_id": courseKey, "usage_id": "problem-1",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = app.postJSON(t, "/api/course-progress", map[string]string{
		"user": "jane", "course_id": courseKey, "usage_id": "nope",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	app := newTestApp(t)
	usr, err := app.users.Create(user.NewUser{Username: "jdoe", Email: "jdoe@test.cd", Name: "Jane"})
	require.NoError(t, err)
	_, err = app.sessions.Touch(usr.ID, courseKey)
	require.NoError(t, err)

	rec := app.postJSON(t, "/api/logout", map[string]string{"user": "jdoe"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err = app.sessions.Touch(usr.ID, courseKey) // starts a fresh session
	require.NoError(t, err)
}

func TestRedirectAnonymousMiddleware(t *testing.T) {
	app := newTestApp(t)
	app.conf.Ed2go.RedirectAnonymousEnabled = true
	app.conf.Ed2go.SSOLoginURL = "https://partner.test/login"

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://partner.test/login", rec.Header().Get("Location"))

	// a valid session cookie passes through
	usr, err := app.users.Create(user.NewUser{Username: "jdoe", Email: "jdoe@test.cd", Name: "Jane"})
	require.NoError(t, err)
	token, err := helpers.GenerateToken(helpers.GetUserClaims(usr, app.conf), app.conf)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: helpers.TokenCookieName, Value: token})
	rec = httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// partner and tracking endpoints stay exempt
	rec = app.postJSON(t, "/api/logout", map[string]string{"user": "jdoe"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
