// Package handlers wires the HTTP endpoints to the domain services.
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/apps/api/echo/helpers"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/registration"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/user"
	ed2gosvc "github.com/ExtensionEngineArchive/ed2go-edx-platform/services/ed2go"
)

type partnerAPI struct {
	conf          *core.Config
	registrations *registration.Service
	users         *user.Service
	logger        core.Logger
}

// RegisterPartnerAPI mounts the partner-facing endpoints: SSO landing and
// the action command channel. Both are signed-form requests, no JWT.
func RegisterPartnerAPI(
	g *echo.Group,
	conf *core.Config,
	registrations *registration.Service,
	users *user.Service,
	logger core.Logger,
) {
	api := partnerAPI{conf: conf, registrations: registrations, users: users, logger: logger}

	g.POST("/sso", api.ssoLogin)
	g.POST("/action", api.action)
}

// ssoLogin lands a learner coming from the partner's classroom. A valid
// request resolves (or provisions) the user and redirects into the course; an
// invalid one bounces back to the partner when a return URL is present.
func (api *partnerAPI) ssoLogin(ctx echo.Context) error {
	params, err := ctx.FormParams()
	if err != nil {
		return err
	}

	if ok, msg := ed2gosvc.RequestValid(api.conf.Ed2go.APIKey, params, ed2gosvc.SSORequest); !ok {
		if returnURL := params.Get(ed2gosvc.ParamReturnURL); returnURL != "" {
			return ctx.Redirect(http.StatusFound, returnURL)
		}
		return echo.NewHTTPError(http.StatusBadRequest, msg)
	}

	regKey := params.Get(ed2gosvc.ParamRegistrationKey)
	usr, profile, err := api.registrations.ResolveSSO(regKey)
	if err != nil {
		api.logger.Error("sso: resolving registration", err, map[string]interface{}{
			"registration_key": regKey,
		})
		return echo.NewHTTPError(http.StatusBadRequest, "Could not resolve registration.")
	}
	if usr, err = api.users.RecordLogin(usr.ID); err != nil {
		return err
	}

	token, err := helpers.GenerateToken(helpers.GetUserClaims(usr, api.conf), api.conf)
	if err != nil {
		return err
	}
	ctx.SetCookie(helpers.TokenCookie(token, api.conf))

	return ctx.Redirect(http.StatusFound, api.courseURL(profile.CourseKey))
}

// action handles an inbound partner command. Validation failures answer 400
// with the rejection message; everything else is delegated to the workflow,
// which always produces a partner-safe code and message.
func (api *partnerAPI) action(ctx echo.Context) error {
	params, err := ctx.FormParams()
	if err != nil {
		return err
	}

	if ok, msg := ed2gosvc.RequestValid(api.conf.Ed2go.APIKey, params, ed2gosvc.ActionRequest); !ok {
		return ctx.String(http.StatusBadRequest, msg)
	}

	result := api.registrations.HandleAction(
		params.Get(ed2gosvc.ParamAction),
		params.Get(ed2gosvc.ParamRegistrationKey),
	)
	return ctx.String(result.Code, result.Message)
}

func (api *partnerAPI) courseURL(courseKey string) string {
	return fmt.Sprintf("%s/courses/%s/course/", strings.TrimRight(api.conf.LMS.BaseURL, "/"), courseKey)
}
