package router

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openg2p/vci-service/pkg/service/issuer"
)

func wellKnownEngine(t *testing.T) (*gin.Engine, *issuer.Service) {
	issuerService := testIssuerService(t)
	wr, err := NewWellKnownRouter(testMetadataService(t, issuerService), issuerService)
	require.NoError(t, err)

	engine := gin.New()
	wk := engine.Group("/api/v1/vci/.well-known")
	wk.GET("/openid-credential-issuer", wr.GetCredentialIssuerMetadata)
	wk.GET("/openid-credential-issuer/:"+IssuerNameParam, wr.GetCredentialIssuerMetadata)
	wk.GET("/contexts.json", wr.GetContexts)
	wk.GET("/jwks.json", wr.GetJWKS)
	return engine, issuerService
}

func get(path string) *http.Request {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	return req
}

func TestNewWellKnownRouter(t *testing.T) {
	_, err := NewWellKnownRouter(nil, nil)
	assert.ErrorContains(t, err, "service cannot be nil")

	_, err = NewWellKnownRouter(&testService{}, &testService{})
	assert.ErrorContains(t, err, "could not create well known router with service type: test")
}

func TestCredentialIssuerMetadata(t *testing.T) {
	engine, issuerService := wellKnownEngine(t)

	t.Run("no issuers", func(t *testing.T) {
		w := serve(engine, get("/api/v1/vci/.well-known/openid-credential-issuer"))
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, testBaseURL, body["credential_issuer"])
		assert.Equal(t, testBaseURL+"/api/v1/vci/credential", body["credential_endpoint"])
		assert.Equal(t, map[string]any{}, body["credential_configurations_supported"])
		assert.NotContains(t, body, "credentials_supported")
	})

	ctx := context.Background()
	for _, i := range []issuer.Issuer{
		testIssuer("farmer", "farmer_scope", issuer.FormatJWTVCJSON),
		testIssuer("registry", "registry_scope", issuer.FormatLDPVC),
	} {
		_, err := issuerService.CreateIssuer(ctx, issuer.CreateIssuerRequest{Issuer: i, SigningKey: testSigningKey(t)})
		require.NoError(t, err)
	}

	t.Run("all issuers", func(t *testing.T) {
		w := serve(engine, get("/api/v1/vci/.well-known/openid-credential-issuer"))
		require.Equal(t, http.StatusOK, w.Code)

		supported, ok := decodeBody(t, w)["credential_configurations_supported"].(map[string]any)
		require.True(t, ok)
		assert.Len(t, supported, 2)
		assert.Equal(t, map[string]any{
			"format":            "ldp_vc",
			"scope":             "registry_scope",
			"credential_issuer": testBaseURL,
		}, supported["registry"])
	})

	t.Run("named issuer", func(t *testing.T) {
		w := serve(engine, get("/api/v1/vci/.well-known/openid-credential-issuer/farmer"))
		require.Equal(t, http.StatusOK, w.Code)

		supported, ok := decodeBody(t, w)["credential_configurations_supported"].(map[string]any)
		require.True(t, ok)
		assert.Len(t, supported, 1)
		assert.Contains(t, supported, "farmer")
	})

	t.Run("unknown issuer", func(t *testing.T) {
		w := serve(engine, get("/api/v1/vci/.well-known/openid-credential-issuer/missing"))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "could not find issuer with name: missing")
	})
}

func TestContexts(t *testing.T) {
	engine, issuerService := wellKnownEngine(t)

	w := serve(engine, get("/api/v1/vci/.well-known/contexts.json"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{}, decodeBody(t, w)["@context"])

	ctx := context.Background()
	for _, name := range []string{"farmer", "registry"} {
		_, err := issuerService.CreateIssuer(ctx, issuer.CreateIssuerRequest{
			Issuer:     testIssuer(name, name+"_scope", issuer.FormatLDPVC),
			SigningKey: testSigningKey(t),
		})
		require.NoError(t, err)
	}

	w = serve(engine, get("/api/v1/vci/.well-known/contexts.json"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{
		"farmer":   testBaseURL + "/contexts/farmer",
		"registry": testBaseURL + "/contexts/registry",
		// both issuers define shared, the later one wins
		"shared": testBaseURL + "/registry",
	}, decodeBody(t, w)["@context"])
}

func TestJWKS(t *testing.T) {
	engine, issuerService := wellKnownEngine(t)

	_, err := issuerService.CreateIssuer(context.Background(), issuer.CreateIssuerRequest{
		Issuer:     testIssuer("farmer", "farmer_scope", issuer.FormatJWTVCJSON),
		SigningKey: testSigningKey(t),
	})
	require.NoError(t, err)

	w := serve(engine, get("/api/v1/vci/.well-known/jwks.json"))
	require.Equal(t, http.StatusOK, w.Code)

	keys, ok := decodeBody(t, w)["keys"].([]any)
	require.True(t, ok)
	require.Len(t, keys, 1)
	key := keys[0].(map[string]any)
	assert.Equal(t, "EC", key["kty"])
	assert.Equal(t, "farmer", key["kid"])
	assert.NotContains(t, key, "d")
}
