package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/completion"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/session"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/user"
)

var errHTTPNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")

type trackAPI struct {
	users       *user.Service
	sessions    *session.Service
	completions *completion.Service
}

// RegisterTrackingAPI mounts the activity callbacks the LMS fires on learner
// events: session pings, viewed subsections, completed units and logouts.
func RegisterTrackingAPI(
	g *echo.Group,
	users *user.Service,
	sessions *session.Service,
	completions *completion.Service,
) {
	api := trackAPI{users: users, sessions: sessions, completions: completions}

	g.POST("/course-session", api.courseSession)
	g.POST("/content-viewed", api.contentViewed)
	g.POST("/course-progress", api.courseProgress)
	g.POST("/logout", api.logout)
}

func (api *trackAPI) courseSession(ctx echo.Context) error {
	data := new(CourseSessionRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := api.users.GetByUsername(data.User)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return errHTTPNotFound
		}
		return err
	}
	if _, err = api.sessions.Touch(usr.ID, data.CourseID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *trackAPI) contentViewed(ctx echo.Context) error {
	data := new(ContentViewedRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := api.users.GetByUsername(data.User)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return errHTTPNotFound
		}
		return err
	}

	err = api.completions.MarkSubsectionViewed(usr.ID, data.CourseID, data.UsageID)
	switch {
	case errors.Is(err, completion.ErrProfileNotFound),
		errors.Is(err, completion.ErrSubsectionNotFound):
		return errHTTPNotFound
	case err != nil:
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *trackAPI) courseProgress(ctx echo.Context) error {
	data := new(CourseProgressRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := api.users.GetByUsername(data.User)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return errHTTPNotFound
		}
		return err
	}

	err = api.completions.MarkProgress(usr.ID, data.CourseID, data.UsageID)
	switch {
	case errors.Is(err, completion.ErrProfileNotFound),
		errors.Is(err, completion.ErrUnitNotFound):
		return errHTTPNotFound
	case err != nil:
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// logout closes every active session of the user, across all courses.
func (api *trackAPI) logout(ctx echo.Context) error {
	data := new(LogoutRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := api.users.GetByUsername(data.User)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return errHTTPNotFound
		}
		return err
	}
	if err = api.sessions.CloseAll(usr.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
