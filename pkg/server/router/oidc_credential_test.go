package router

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openg2p/vci-service/pkg/server/middleware"
	"github.com/openg2p/vci-service/pkg/service/oidc"
	"github.com/openg2p/vci-service/pkg/service/oidc/model"
)

type fakeCredentialIssuer struct {
	calls   int
	token   string
	request *model.CredentialRequest
	err     error
}

func (f *fakeCredentialIssuer) IssueCredential(_ context.Context, request *model.CredentialRequest, token string) (*model.CredentialResponse, error) {
	f.calls++
	f.token = token
	f.request = request
	if f.err != nil {
		return nil, f.err
	}
	return &model.CredentialResponse{
		Format:          request.Format,
		Credential:      map[string]any{"id": "urn:uuid:1234"},
		CNonce:          "0123456789012345",
		CNonceExpiresIn: 300,
	}, nil
}

func (f *fakeCredentialIssuer) CurrentNonce() (string, error) {
	return "9876543210987654", nil
}

func (f *fakeCredentialIssuer) NonceExpiresIn() int {
	return 300
}

func credentialEngine(t *testing.T, backend CredentialIssuer, surfaces ...Surface) *gin.Engine {
	engine := gin.New()
	for _, s := range surfaces {
		r, err := NewOIDCCredentialRouter(backend, s)
		require.NoError(t, err)
		engine.Group(s.BasePath).POST("/credential", middleware.BearerToken(), r.IssueCredential)
	}
	return engine
}

func credentialRequest(path, authorization, body string) *http.Request {
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set(middleware.AuthorizationHeader, authorization)
	}
	return req
}

const testCredentialBody = `{"format": "ldp_vc", "credential_definition": {"type": ["VerifiableCredential", "FarmerCredential"]}}`

func TestNewOIDCCredentialRouter(t *testing.T) {
	r, err := NewOIDCCredentialRouter(nil, PrimarySurface("/api/v1/vci"))
	assert.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "credential issuer cannot be nil")
}

func TestIssueCredentialRejectsMissingBearer(t *testing.T) {
	tests := []struct {
		name          string
		authorization string
	}{
		{name: "no header"},
		{name: "no prefix", authorization: "abc.def.ghi"},
		{name: "other scheme", authorization: "Basic dXNlcjpwYXNz"},
		{name: "lowercase prefix", authorization: "bearer abc.def.ghi"},
		{name: "prefix only", authorization: "Bearer"},
		{name: "blank token", authorization: "Bearer    "},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			backend := new(fakeCredentialIssuer)
			engine := credentialEngine(t, backend, PrimarySurface("/api/v1/vci"), LegacySurface("/api/v1/vci/legacy"))

			for _, path := range []string{"/api/v1/vci/credential", "/api/v1/vci/legacy/credential"} {
				w := serve(engine, credentialRequest(path, test.authorization, testCredentialBody))
				assert.Equal(t, http.StatusUnauthorized, w.Code)
				assert.Equal(t, `Bearer error="invalid_token"`, w.Header().Get(middleware.WWWAuthenticateHeader))
				assert.NotContains(t, decodeBody(t, w), "credential")
			}
			assert.Zero(t, backend.calls)
		})
	}
}

func TestIssueCredentialSuccess(t *testing.T) {
	backend := new(fakeCredentialIssuer)
	engine := credentialEngine(t, backend, PrimarySurface("/api/v1/vci"))

	w := serve(engine, credentialRequest("/api/v1/vci/credential", "Bearer abc.def.ghi", testCredentialBody))
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "ldp_vc", body["format"])
	assert.Equal(t, map[string]any{"id": "urn:uuid:1234"}, body["credential"])
	assert.Equal(t, "0123456789012345", body["c_nonce"])
	assert.NotContains(t, body, "error")
	assert.NotContains(t, body, "error_description")

	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, "abc.def.ghi", backend.token)
	assert.Equal(t, []string{"VerifiableCredential", "FarmerCredential"}, backend.request.RequestedTypes())
	assert.Equal(t, "ldp_vc", backend.request.Raw["format"])
}

func TestIssueCredentialStripsPrefixOnce(t *testing.T) {
	backend := new(fakeCredentialIssuer)
	engine := credentialEngine(t, backend, PrimarySurface("/api/v1/vci"))

	w := serve(engine, credentialRequest("/api/v1/vci/credential", "Bearer Bearer abc", testCredentialBody))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Bearer abc", backend.token)
}

func TestIssueCredentialErrors(t *testing.T) {
	tests := []struct {
		name        string
		surface     Surface
		err         error
		code        string
		description string
	}{
		{
			name:        "untyped error on primary surface",
			surface:     PrimarySurface("/api/v1/vci"),
			err:         errors.New("backend exploded"),
			code:        "invalid_scope",
			description: "Invalid Scope. backend exploded",
		},
		{
			name:        "untyped error on legacy surface",
			surface:     LegacySurface("/api/v1/vci/legacy"),
			err:         errors.New("backend exploded"),
			code:        "invalid_credential_request",
			description: "Error issuing credential. backend exploded",
		},
		{
			name:        "typed error keeps its code",
			surface:     PrimarySurface("/api/v1/vci"),
			err:         errors.Wrap(oidc.ErrInvalidProof, "nonce is stale"),
			code:        "invalid_proof",
			description: "Invalid Scope. nonce is stale: invalid proof",
		},
		{
			name:        "typed error on legacy surface",
			surface:     LegacySurface("/api/v1/vci/legacy"),
			err:         errors.Wrap(oidc.ErrUnsupportedFormat, "mso_mdoc"),
			code:        "unsupported_credential_format",
			description: "Error issuing credential. mso_mdoc: unsupported credential format",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			backend := &fakeCredentialIssuer{err: test.err}
			engine := credentialEngine(t, backend, test.surface)

			w := serve(engine, credentialRequest(test.surface.BasePath+"/credential", "Bearer abc", testCredentialBody))
			require.Equal(t, http.StatusBadRequest, w.Code)

			body := decodeBody(t, w)
			assert.Equal(t, test.code, body["error"])
			assert.Equal(t, test.description, body["error_description"])
			assert.Equal(t, "9876543210987654", body["c_nonce"])
			assert.EqualValues(t, 300, body["c_nonce_expires_in"])
			assert.NotContains(t, body, "credential")
			assert.NotContains(t, body, "format")
			assert.Equal(t, 1, backend.calls)
		})
	}
}

func TestIssueCredentialMalformedBody(t *testing.T) {
	backend := new(fakeCredentialIssuer)
	engine := credentialEngine(t, backend, PrimarySurface("/api/v1/vci"))

	for _, body := range []string{"", "{not json", `{"format": 12}`} {
		w := serve(engine, credentialRequest("/api/v1/vci/credential", "Bearer abc", body))
		require.Equal(t, http.StatusBadRequest, w.Code, body)
		got := decodeBody(t, w)
		assert.Equal(t, "invalid_credential_request", got["error"])
		assert.NotEmpty(t, got["c_nonce"])
		assert.NotContains(t, got, "credential")
	}
	assert.Zero(t, backend.calls)
}
