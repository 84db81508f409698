//go:build integration

package integration

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openg2p/vci-service/pkg/server/router"
	"github.com/openg2p/vci-service/pkg/service/issuer"
)

const (
	defaultEndpoint = "http://localhost:3000/"
	endpointEnv     = "VCI_SERVICE_ENDPOINT"
	adminTokenEnv   = "VCI_ADMIN_TOKEN"

	MaxElapsedTime = 120 * time.Second

	// testAuthIssuer is the token issuer the integration issuers trust. Tokens are minted by the tests.
	testAuthIssuer = "https://auth.integration.test/realms/openg2p"
)

var client = &http.Client{Timeout: 10 * time.Second}

func init() {
	// Treats "\n" as new lines, see https://github.com/sirupsen/logrus/issues/608
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableQuote: true,
		ForceColors:  true,
	})
}

func endpoint() string {
	if e := os.Getenv(endpointEnv); e != "" {
		return strings.TrimRight(e, "/") + "/"
	}
	return defaultEndpoint
}

// waitForService polls the readiness endpoint until the service reports ready.
func waitForService() error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = MaxElapsedTime
	return backoff.Retry(func() error {
		status, _, err := do(http.MethodGet, endpoint()+"readiness", "", nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return errors.Errorf("service not ready: %d", status)
		}
		return nil
	}, policy)
}

func newKey() (jwk.Key, error) {
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return jwk.FromRaw(privKey)
}

// CreateIssuer registers a jwt_vc_json issuer trusting tokens signed by authKey.
func CreateIssuer(name, scope string, authKey jwk.Key) error {
	logrus.Printf("\n\nCreate issuer %s:", name)
	pub, err := authKey.PublicKey()
	if err != nil {
		return err
	}
	set := jwk.NewSet()
	if err = set.AddKey(pub); err != nil {
		return err
	}
	setBytes, err := json.Marshal(set)
	if err != nil {
		return err
	}
	signingKey, err := newKey()
	if err != nil {
		return err
	}
	signingKeyBytes, err := json.Marshal(signingKey)
	if err != nil {
		return err
	}

	request := router.CreateIssuerRequest{
		Issuer: issuer.Issuer{
			Name:               name,
			Scope:              scope,
			IssuerType:         "Integration",
			SupportedFormat:    issuer.FormatJWTVCJSON,
			CredentialType:     name,
			IssuerMetadataText: `{(.name): {format: .supported_format, scope: .scope}}`,
			ContextsJSON:       fmt.Sprintf(`{"@context": {"%s": "web_base_url/api/v1/vci/.well-known/contexts.json#%s"}}`, name, name),
			CredentialFormat: `{
  "@context": ["https://www.w3.org/2018/credentials/v1"],
  id: .vc_id,
  type: ["VerifiableCredential", .issuer.credential_type],
  issuer: .web_base_url,
  issuanceDate: .issuance_date,
  credentialSubject: {id: (.holder_id // .subject_id), name: .token_claims.name}
}`,
			AuthAllowedIssuers: []string{testAuthIssuer},
			AuthIssuerJWKS:     map[string]json.RawMessage{testAuthIssuer: setBytes},
		},
		SigningKey: signingKeyBytes,
	}
	status, output, err := do(http.MethodPut, endpoint()+"v1/issuers", adminAuthorization(), request)
	if err != nil {
		return errors.Wrapf(err, "issuer endpoint with output: %s", output)
	}
	if status != http.StatusCreated {
		return errors.Errorf("creating issuer: %d %s", status, output)
	}
	return nil
}

func DeleteIssuer(name string) error {
	status, output, err := do(http.MethodDelete, endpoint()+"v1/issuers/"+name, adminAuthorization(), nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return errors.Errorf("deleting issuer: %d %s", status, output)
	}
	return nil
}

// AccessToken mints an access token as the trusted authorization server would.
func AccessToken(authKey jwk.Key, subject, scope string) (string, error) {
	now := time.Now()
	token, err := jwt.NewBuilder().
		Issuer(testAuthIssuer).
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(5 * time.Minute)).
		Claim("scope", "openid "+scope).
		Claim("name", "Integration Tester").
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256, authKey))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

func adminAuthorization() string {
	if token := os.Getenv(adminTokenEnv); token != "" {
		return "Bearer " + token
	}
	return ""
}

func do(method, url, authorization string, body any) (int, string, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, "", errors.Wrap(err, "marshalling body")
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return 0, "", errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", errors.Wrapf(err, "%s %s", method, url)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", errors.Wrap(err, "reading response")
	}
	logrus.Debugf("%s %s -> %d %s", method, url, resp.StatusCode, respBody)
	return resp.StatusCode, string(respBody), nil
}
