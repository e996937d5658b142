// Package helpers holds auth primitives shared by the echo handlers.
package helpers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/user"
)

// TokenCookieName is the session cookie carrying the signed JWT.
const TokenCookieName = "edx-jwt"

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

func GetUserClaims(usr user.User, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   strconv.Itoa(usr.ID),
			ExpiresAt: now.Add(conf.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: usr.Username,
		Email:    usr.Email,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims, conf *core.Config) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(conf.SecretKey))
}

// ParseToken verifies the signed token string and returns its claims.
func ParseToken(ss string, conf *core.Config) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(ss, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(conf.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// TokenCookie wraps the signed token in the session cookie.
func TokenCookie(ss string, conf *core.Config) *http.Cookie {
	return &http.Cookie{
		Name:     TokenCookieName,
		Value:    ss,
		Path:     "/",
		Expires:  time.Now().Add(conf.JWTExpirationDelta),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
