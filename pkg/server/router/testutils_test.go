package router

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"

	"github.com/openg2p/vci-service/config"
	svcframework "github.com/openg2p/vci-service/pkg/service/framework"
	"github.com/openg2p/vci-service/pkg/service/issuer"
	"github.com/openg2p/vci-service/pkg/service/keystore"
	"github.com/openg2p/vci-service/pkg/service/metadata"
	"github.com/openg2p/vci-service/pkg/storage"
)

const testBaseURL = "https://issuer.example.org"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testIssuerService(t *testing.T) *issuer.Service {
	db, err := storage.NewStorage(storage.Memory)
	require.NoError(t, err)
	keyStore, err := keystore.NewKeyStoreService(config.KeyStoreServiceConfig{ServiceKeyPassword: "test-password"}, db)
	require.NoError(t, err)
	issuerService, err := issuer.NewIssuerService(config.IssuerServiceConfig{}, testBaseURL, db, keyStore)
	require.NoError(t, err)
	return issuerService
}

func testMetadataService(t *testing.T, issuerService *issuer.Service) *metadata.Service {
	metadataService, err := metadata.NewMetadataService(issuerService, testBaseURL+config.DefaultVCIBasePath+config.CredentialPath)
	require.NoError(t, err)
	return metadataService
}

func testSigningKey(t *testing.T) json.RawMessage {
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	key, err := jwk.FromRaw(privKey)
	require.NoError(t, err)
	keyBytes, err := json.Marshal(key)
	require.NoError(t, err)
	return keyBytes
}

func testIssuer(name, scope, format string) issuer.Issuer {
	return issuer.Issuer{
		Name:               name,
		Scope:              scope,
		IssuerType:         "Registry",
		SupportedFormat:    format,
		CredentialType:     name + "Credential",
		IssuerMetadataText: `{(.name): {format: .supported_format, scope: .scope, credential_issuer: .web_base_url}}`,
		ContextsJSON:       `{"@context": {"` + name + `": "web_base_url/contexts/` + name + `", "shared": "web_base_url/` + name + `"}}`,
		CredentialFormat:   `{"@context": ["https://www.w3.org/2018/credentials/v1"], id: .vc_id, type: ["VerifiableCredential"]}`,
		AuthAllowedIssuers: []string{"https://auth.example.org"},
	}
}

// serve runs req through engine and returns the recorded response.
func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

type testService struct{}

func (s *testService) Type() svcframework.Type {
	return "test"
}

func (s *testService) Status() svcframework.Status {
	return svcframework.Status{Status: "ready"}
}
