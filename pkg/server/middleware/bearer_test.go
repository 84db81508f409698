package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		err    error
	}{
		{header: "Bearer abc.def.ghi", token: "abc.def.ghi"},
		{header: "Bearer   abc  ", token: "abc"},
		{header: "Bearer Bearer abc", token: "Bearer abc"},
		{header: "", err: ErrMissingBearer},
		{header: "bearer abc", err: ErrMissingBearer},
		{header: "BEARER abc", err: ErrMissingBearer},
		{header: "Basic abc", err: ErrMissingBearer},
		{header: " Bearer abc", err: ErrMissingBearer},
		{header: "Bearer", err: ErrEmptyBearer},
		{header: "Bearer \t ", err: ErrEmptyBearer},
	}
	for _, test := range tests {
		t.Run(test.header, func(t *testing.T) {
			token, err := ExtractBearerToken(test.header)
			if test.err != nil {
				assert.ErrorIs(t, err, test.err)
				assert.Empty(t, token)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.token, token)
		})
	}
}

func TestBearerTokenMiddleware(t *testing.T) {
	var reached int
	var seen string
	r := gin.New()
	r.POST("/credential", BearerToken(), func(c *gin.Context) {
		reached++
		seen = GetBearerToken(c)
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest(http.MethodPost, "/credential", nil)
	req.Header.Set(AuthorizationHeader, "Bearer ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Bearer error="invalid_token"`, w.Header().Get(WWWAuthenticateHeader))
	assert.JSONEq(t, `{"error": "invalid_token", "error_description": "bearer token is empty"}`, w.Body.String())
	assert.Zero(t, reached)

	req, _ = http.NewRequest(http.MethodPost, "/credential", nil)
	req.Header.Set(AuthorizationHeader, "Bearer token-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, reached)
	assert.Equal(t, "token-1", seen)
}
