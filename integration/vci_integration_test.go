//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openg2p/vci-service/internal/keyaccess"
)

func TestMain(m *testing.M) {
	if err := waitForService(); err != nil {
		panic(err)
	}
	m.Run()
}

func TestCredentialIssuanceIntegration(t *testing.T) {
	authKey, err := newKey()
	require.NoError(t, err)

	name := "Integration" + uuid.NewString()[:8]
	scope := "integration_" + uuid.NewString()[:8]
	require.NoError(t, CreateIssuer(name, scope, authKey))
	t.Cleanup(func() { assert.NoError(t, DeleteIssuer(name)) })

	t.Run("discovery", func(t *testing.T) {
		status, output, err := do(http.MethodGet, endpoint()+"api/v1/vci/.well-known/openid-credential-issuer/"+name, "", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status, output)
		assert.Contains(t, output, scope)

		status, output, err = do(http.MethodGet, endpoint()+".well-known/contexts.json", "", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status, output)
		assert.Contains(t, output, name)
	})

	request := map[string]any{"format": "jwt_vc_json"}

	t.Run("missing bearer", func(t *testing.T) {
		status, _, err := do(http.MethodPost, endpoint()+"api/v1/vci/credential", "", request)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	for _, path := range []string{"api/v1/vci/credential", "api/v1/vci/legacy/credential"} {
		t.Run("issue on "+path, func(t *testing.T) {
			token, err := AccessToken(authKey, "integration-user", scope)
			require.NoError(t, err)

			status, output, err := do(http.MethodPost, endpoint()+path, "Bearer "+token, request)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, status, output)

			var resp struct {
				Format     string `json:"format"`
				Credential string `json:"credential"`
				CNonce     string `json:"c_nonce"`
			}
			require.NoError(t, json.Unmarshal([]byte(output), &resp))
			assert.Equal(t, "jwt_vc_json", resp.Format)
			assert.NotEmpty(t, resp.CNonce)

			status, jwksOutput, err := do(http.MethodGet, endpoint()+".well-known/jwks.json", "", nil)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, status)
			set, err := jwk.Parse([]byte(jwksOutput))
			require.NoError(t, err)

			var verified map[string]any
			for i := 0; i < set.Len(); i++ {
				key, _ := set.Key(i)
				if vc, err := keyaccess.VerifyVCJWT(keyaccess.JWT(resp.Credential), key); err == nil {
					verified = vc
					break
				}
			}
			require.NotNil(t, verified, "credential is not signed by any published key")
			assert.Equal(t, "integration-user", verified["credentialSubject"].(map[string]any)["id"])
		})
	}

	t.Run("unknown scope", func(t *testing.T) {
		token, err := AccessToken(authKey, "integration-user", "nobody_"+uuid.NewString())
		require.NoError(t, err)
		status, output, err := do(http.MethodPost, endpoint()+"api/v1/vci/credential", "Bearer "+token, request)
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, output, `"error":"invalid_scope"`)
	})
}
