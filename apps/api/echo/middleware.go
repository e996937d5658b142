package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/apps/api/echo/helpers"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core"
)

// exemptPathPrefixes are always reachable without a session: the partner
// endpoints themselves and the tracking callbacks from the LMS.
var exemptPathPrefixes = []string{"/ed2go", "/api"}

// redirectAnonymousMiddleware sends unauthenticated page requests to the
// partner's login portal when the switch is on. API and partner endpoints
// are exempt.
func redirectAnonymousMiddleware(conf *core.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !conf.Ed2go.RedirectAnonymousEnabled || conf.Ed2go.SSOLoginURL == "" {
				return next(ctx)
			}
			path := ctx.Request().URL.Path
			for _, prefix := range exemptPathPrefixes {
				if strings.HasPrefix(path, prefix) {
					return next(ctx)
				}
			}
			if cookie, err := ctx.Cookie(helpers.TokenCookieName); err == nil {
				if _, err = helpers.ParseToken(cookie.Value, conf); err == nil {
					return next(ctx)
				}
			}
			return ctx.Redirect(http.StatusFound, conf.Ed2go.SSOLoginURL)
		}
	}
}
