package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/openg2p/vci-service/pkg/server/framework"
)

// AuthTokenEnv names the environment variable holding the hex encoded sha256 of the admin token.
const AuthTokenEnv = "AUTH_TOKEN"

// AdminAuth protects the admin API. Requests must carry a bearer token whose sha256 matches AUTH_TOKEN. When
// AUTH_TOKEN is not set, authentication is skipped.
func AdminAuth() gin.HandlerFunc {
	authToken := os.Getenv(AuthTokenEnv)

	return func(c *gin.Context) {
		if authToken == "" {
			c.Next()
			return
		}

		token, err := ExtractBearerToken(c.GetHeader(AuthorizationHeader))
		if err != nil {
			framework.LoggingRespondErrMsg(c, "Authorization is required", http.StatusUnauthorized)
			c.Abort()
			return
		}

		// Generate SHA256 hash of the token from the header
		hash := sha256.Sum256([]byte(token))
		hashedToken := hex.EncodeToString(hash[:])
		if subtle.ConstantTimeCompare([]byte(hashedToken), []byte(authToken)) != 1 {
			framework.LoggingRespondErrMsg(c, "Authorization is required", http.StatusUnauthorized)
			c.Abort()
			return
		}

		c.Next()
	}
}
