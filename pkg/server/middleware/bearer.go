package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	AuthorizationHeader   = "Authorization"
	WWWAuthenticateHeader = "WWW-Authenticate"

	// BearerPrefix is matched case-sensitively at the start of the header.
	BearerPrefix = "Bearer"

	// BearerTokenKey is the gin context key the extracted access token is stored under.
	BearerTokenKey = "bearerToken"

	invalidTokenChallenge = `Bearer error="invalid_token"`
)

var (
	ErrMissingBearer = errors.New("authorization header is not a bearer token")
	ErrEmptyBearer   = errors.New("bearer token is empty")
)

// ExtractBearerToken strips the Bearer prefix once from an Authorization header value and returns the trimmed token.
func ExtractBearerToken(header string) (string, error) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", ErrMissingBearer
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	if token == "" {
		return "", ErrEmptyBearer
	}
	return token, nil
}

// BearerToken rejects requests without a usable bearer access token with 401, before any handler runs. The token
// is made available to handlers under BearerTokenKey.
func BearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractBearerToken(c.GetHeader(AuthorizationHeader))
		if err != nil {
			logrus.WithError(err).Debug("rejecting request without bearer token")
			c.Header(WWWAuthenticateHeader, invalidTokenChallenge)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "invalid_token",
				"error_description": err.Error(),
			})
			return
		}
		c.Set(BearerTokenKey, token)
		c.Next()
	}
}

// GetBearerToken returns the token stored by BearerToken.
func GetBearerToken(c *gin.Context) string {
	return c.GetString(BearerTokenKey)
}
