package oidc

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net/http"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"gopkg.in/h2non/gock.v1"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openg2p/vci-service/config"
	"github.com/openg2p/vci-service/internal/httpclient"
	"github.com/openg2p/vci-service/internal/keyaccess"
	"github.com/openg2p/vci-service/pkg/service/issuer"
	"github.com/openg2p/vci-service/pkg/service/keystore"
	"github.com/openg2p/vci-service/pkg/service/oidc/model"
	"github.com/openg2p/vci-service/pkg/storage"
)

const (
	testBaseURL    = "https://issuer.example.org"
	testAuthIssuer = "https://auth.example.org/realms/openg2p"
	testJWKSHost   = "https://auth.example.org"
	testJWKSPath   = "/realms/openg2p/certs"
	testContextURL = testBaseURL + "/api/v1/vci/.well-known/contexts.json"
	testAudience   = "vci-service"

	farmerScope   = "farmer_vc_jwt"
	registryScope = "registry_vc_ldp"
)

const testCredentialFormat = `{
  "@context": [(.web_base_url + "/api/v1/vci/.well-known/contexts.json")],
  id: .vc_id,
  type: ["VerifiableCredential", .issuer.credential_type],
  issuer: .web_base_url,
  issuanceDate: .issuance_date,
  credentialSubject: {
    id: (.holder_id // .subject_id),
    subjectId: .subject_id,
    name: .token_claims.name
  }
}`

const registryContexts = `{"@context": {
  "@vocab": "web_base_url/api/v1/vci/.well-known/contexts.json#",
  "id": "@id",
  "type": "@type"
}}`

type testEnv struct {
	service *Service
	issuers *issuer.Service
	clock   *clock.Mock
	authKey jwk.Key
	client  *http.Client
}

func newECKey(t *testing.T, kid string) jwk.Key {
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	key, err := jwk.FromRaw(privKey)
	require.NoError(t, err)
	if kid != "" {
		require.NoError(t, key.Set(jwk.KeyIDKey, kid))
	}
	return key
}

func publicSetJSON(t *testing.T, key jwk.Key) []byte {
	pub, err := key.PublicKey()
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	setBytes, err := json.Marshal(set)
	require.NoError(t, err)
	return setBytes
}

func localContexts(url string) (any, bool, error) {
	if url != testContextURL {
		return nil, false, nil
	}
	contexts, err := issuer.ParseContexts(registryContexts, testBaseURL)
	if err != nil {
		return nil, false, err
	}
	return map[string]any{"@context": contexts}, true, nil
}

func newTestEnv(t *testing.T, cfg config.OIDCServiceConfig) *testEnv {
	ctx := context.Background()
	db := new(storage.MemoryDB)
	keyStore, err := keystore.NewKeyStoreService(config.KeyStoreServiceConfig{ServiceKeyPassword: "test-password"}, db)
	require.NoError(t, err)
	issuers, err := issuer.NewIssuerService(config.IssuerServiceConfig{}, testBaseURL, db, keyStore)
	require.NoError(t, err)

	mock := clock.NewMock()
	mock.Set(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	issuers.WithClock(mock)

	authKey := newECKey(t, "auth-key")

	signingKey, err := json.Marshal(newECKey(t, ""))
	require.NoError(t, err)
	_, err = issuers.CreateIssuer(ctx, issuer.CreateIssuerRequest{
		Issuer: issuer.Issuer{
			Name:                 "farmer",
			Scope:                farmerScope,
			SupportedFormat:      issuer.FormatJWTVCJSON,
			CredentialType:       "FarmerCredential",
			CredentialFormat:     testCredentialFormat,
			AuthAllowedIssuers:   []string{testAuthIssuer},
			AuthAllowedAudiences: []string{testAudience},
			AuthIssuerJWKS:       map[string]json.RawMessage{testAuthIssuer: publicSetJSON(t, authKey)},
		},
		SigningKey: signingKey,
	})
	require.NoError(t, err)

	mock.Add(time.Second)
	signingKey, err = json.Marshal(newECKey(t, "registry-key"))
	require.NoError(t, err)
	_, err = issuers.CreateIssuer(ctx, issuer.CreateIssuerRequest{
		Issuer: issuer.Issuer{
			Name:                  "registry",
			Scope:                 registryScope,
			SupportedFormat:       issuer.FormatLDPVC,
			CredentialType:        "RegistryCredential",
			ContextsJSON:          registryContexts,
			CredentialFormat:      testCredentialFormat,
			AuthAllowedIssuers:    []string{testAuthIssuer},
			AuthIssuerJWKSMapping: map[string]string{testAuthIssuer: testJWKSHost + testJWKSPath},
		},
		SigningKey: signingKey,
	})
	require.NoError(t, err)

	client := httpclient.New(0)
	gock.InterceptClient(client.HTTPClient)
	t.Cleanup(func() {
		gock.RestoreClient(client.HTTPClient)
		gock.Off()
	})

	service, err := NewOIDCService(cfg, issuers, keyStore,
		WithClock(mock), WithHTTPClient(client), WithLocalDocuments(localContexts))
	require.NoError(t, err)
	return &testEnv{service: service, issuers: issuers, clock: mock, authKey: authKey, client: client.HTTPClient}
}

func (e *testEnv) accessToken(t *testing.T, scope string, mutate ...func(jwt.Token)) string {
	return e.signToken(t, e.authKey, scope, mutate...)
}

func (e *testEnv) signToken(t *testing.T, key jwk.Key, scope string, mutate ...func(jwt.Token)) string {
	now := e.clock.Now()
	token, err := jwt.NewBuilder().
		Issuer(testAuthIssuer).
		Subject("user-1").
		Audience([]string{testAudience}).
		IssuedAt(now).
		Expiration(now.Add(time.Hour)).
		Claim("scope", "openid "+scope).
		Claim("name", "Alice").
		Build()
	require.NoError(t, err)
	for _, m := range mutate {
		m(token)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256, key))
	require.NoError(t, err)
	return string(signed)
}

type proofOpts struct {
	typ   string
	aud   string
	nonce string
}

func (e *testEnv) proof(t *testing.T, holderKey jwk.Key, opts proofOpts) *model.ProofParameter {
	if opts.typ == "" {
		opts.typ = ProofJWTType
	}
	if opts.aud == "" {
		opts.aud = testBaseURL
	}
	if opts.nonce == "" {
		nonce, err := e.service.CurrentNonce()
		require.NoError(t, err)
		opts.nonce = nonce
	}
	token, err := jwt.NewBuilder().
		Audience([]string{opts.aud}).
		IssuedAt(e.clock.Now()).
		Claim("nonce", opts.nonce).
		Build()
	require.NoError(t, err)

	pub, err := holderKey.PublicKey()
	require.NoError(t, err)
	headers := jws.NewHeaders()
	require.NoError(t, headers.Set(jws.TypeKey, opts.typ))
	require.NoError(t, headers.Set(jws.JWKKey, pub))
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256, holderKey, jws.WithProtectedHeaders(headers)))
	require.NoError(t, err)
	return &model.ProofParameter{ProofType: model.ProofTypeJWT, JWT: string(signed)}
}

func TestIssueJWTCredential(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, config.OIDCServiceConfig{RequireProof: true, CredentialExpiresIn: 24 * time.Hour})
	holderKey := newECKey(t, "")
	holderID, err := keyaccess.DIDJWK(holderKey)
	require.NoError(t, err)

	resp, err := env.service.IssueCredential(ctx, &model.CredentialRequest{
		Format:               issuer.FormatJWTVCJSON,
		CredentialDefinition: &model.CredentialDefinition{Type: []string{"VerifiableCredential", "FarmerCredential"}},
		Proof:                env.proof(t, holderKey, proofOpts{}),
	}, env.accessToken(t, farmerScope))
	require.NoError(t, err)

	assert.Equal(t, issuer.FormatJWTVCJSON, resp.Format)
	nonce, err := env.service.CurrentNonce()
	require.NoError(t, err)
	assert.Equal(t, nonce, resp.CNonce)
	assert.Equal(t, int(config.DefaultCNonceExpiresIn/time.Second), resp.CNonceExpiresIn)

	token, ok := resp.Credential.(string)
	require.True(t, ok)
	set, err := env.issuers.PublicKeys(ctx)
	require.NoError(t, err)
	pub, ok := set.LookupKeyID("farmer")
	require.True(t, ok)
	vc, err := keyaccess.VerifyVCJWT(keyaccess.JWT(token), pub)
	require.NoError(t, err)

	assert.Equal(t, testBaseURL, vc["issuer"])
	assert.Equal(t, "2024-01-01T00:00:01Z", vc["issuanceDate"])
	assert.Equal(t, []any{"VerifiableCredential", "FarmerCredential"}, vc["type"])
	subject, ok := vc["credentialSubject"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, holderID, subject["id"])
	assert.Equal(t, "user-1", subject["subjectId"])
	assert.Equal(t, "Alice", subject["name"])

	parsed, err := jwt.ParseString(token, jwt.WithVerify(false), jwt.WithValidate(false))
	require.NoError(t, err)
	assert.Equal(t, testBaseURL, parsed.Issuer())
	assert.Equal(t, holderID, parsed.Subject())
	assert.Equal(t, vc["id"], parsed.JwtID())
	assert.Equal(t, env.clock.Now().Add(24*time.Hour).Unix(), parsed.Expiration().Unix())
}

func TestIssueCredentialWithoutProof(t *testing.T) {
	env := newTestEnv(t, config.OIDCServiceConfig{})

	resp, err := env.service.IssueCredential(context.Background(), &model.CredentialRequest{
		Format: issuer.FormatJWTVCJSON,
	}, env.accessToken(t, farmerScope))
	require.NoError(t, err)

	parsed, err := jwt.ParseString(resp.Credential.(string), jwt.WithVerify(false), jwt.WithValidate(false))
	require.NoError(t, err)
	// without a proof the credential is bound to the token subject
	assert.Equal(t, "user-1", parsed.Subject())
	_, hasExp := parsed.Get(jwt.ExpirationKey)
	assert.False(t, hasExp)
}

func TestIssueLDPCredential(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, config.OIDCServiceConfig{RequireProof: true})

	// the key set is fetched once and then served from the cache
	gock.New(testJWKSHost).
		Get(testJWKSPath).
		Times(1).
		Reply(http.StatusOK).
		JSON(publicSetJSON(t, env.authKey))

	holderKey := newECKey(t, "")
	issue := func() *model.CredentialResponse {
		resp, err := env.service.IssueCredential(ctx, &model.CredentialRequest{
			Format: issuer.FormatLDPVC,
			Types:  []string{"VerifiableCredential", "RegistryCredential"},
			Proof:  env.proof(t, holderKey, proofOpts{}),
		}, env.accessToken(t, registryScope))
		require.NoError(t, err)
		return resp
	}

	resp := issue()
	assert.Equal(t, issuer.FormatLDPVC, resp.Format)
	credential, ok := resp.Credential.(map[string]any)
	require.True(t, ok)

	proof, ok := credential["proof"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, keyaccess.JSONWebSignature2020, proof["type"])
	assert.Equal(t, testBaseURL+"#registry-key", proof["verificationMethod"])

	set, err := env.issuers.PublicKeys(ctx)
	require.NoError(t, err)
	pub, ok := set.LookupKeyID("registry-key")
	require.True(t, ok)
	ka := keyaccess.NewDataIntegrityKeyAccess(keyaccess.NewDocumentLoader(env.client, time.Minute, localContexts))
	assert.NoError(t, ka.Verify(credential, pub))

	issue()
	assert.True(t, gock.IsDone())
}

func TestIssueCredentialErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, config.OIDCServiceConfig{RequireProof: true})
	holderKey := newECKey(t, "")
	otherKey := newECKey(t, "auth-key")

	tests := []struct {
		name    string
		request func() *model.CredentialRequest
		token   func() string
		code    string
	}{
		{
			name:    "missing format",
			request: func() *model.CredentialRequest { return &model.CredentialRequest{} },
			code:    CodeInvalidCredentialRequest,
		},
		{
			name:    "unknown format",
			request: func() *model.CredentialRequest { return &model.CredentialRequest{Format: "mso_mdoc"} },
			code:    CodeUnsupportedFormat,
		},
		{
			name:  "malformed token",
			token: func() string { return "not-a-jwt" },
			code:  CodeInvalidToken,
		},
		{
			name:  "no issuer for scope",
			token: func() string { return env.accessToken(t, "unknown_scope") },
			code:  CodeInvalidScope,
		},
		{
			name: "format the issuer does not issue",
			request: func() *model.CredentialRequest {
				return &model.CredentialRequest{Format: issuer.FormatLDPVC, Proof: env.proof(t, holderKey, proofOpts{})}
			},
			code: CodeUnsupportedFormat,
		},
		{
			name: "type the issuer does not issue",
			request: func() *model.CredentialRequest {
				return &model.CredentialRequest{
					Format: issuer.FormatJWTVCJSON,
					Types:  []string{"VerifiableCredential", "RegistryCredential"},
					Proof:  env.proof(t, holderKey, proofOpts{}),
				}
			},
			code: CodeInvalidCredentialRequest,
		},
		{
			name: "token issuer not allowed",
			token: func() string {
				return env.accessToken(t, farmerScope, func(tok jwt.Token) {
					require.NoError(t, tok.Set(jwt.IssuerKey, "https://evil.example.org"))
				})
			},
			code: CodeInvalidToken,
		},
		{
			name: "expired token",
			token: func() string {
				return env.accessToken(t, farmerScope, func(tok jwt.Token) {
					require.NoError(t, tok.Set(jwt.ExpirationKey, env.clock.Now().Add(-time.Hour)))
				})
			},
			code: CodeInvalidToken,
		},
		{
			name: "audience not allowed",
			token: func() string {
				return env.accessToken(t, farmerScope, func(tok jwt.Token) {
					require.NoError(t, tok.Set(jwt.AudienceKey, []string{"someone-else"}))
				})
			},
			code: CodeInvalidToken,
		},
		{
			name:  "token signed by another key",
			token: func() string { return env.signToken(t, otherKey, farmerScope) },
			code:  CodeInvalidToken,
		},
		{
			name: "proof required",
			request: func() *model.CredentialRequest {
				return &model.CredentialRequest{Format: issuer.FormatJWTVCJSON}
			},
			code: CodeInvalidProof,
		},
		{
			name: "unsupported proof type",
			request: func() *model.CredentialRequest {
				return &model.CredentialRequest{Format: issuer.FormatJWTVCJSON, Proof: &model.ProofParameter{ProofType: "cwt"}}
			},
			code: CodeInvalidProof,
		},
		{
			name: "proof with wrong typ",
			request: func() *model.CredentialRequest {
				return &model.CredentialRequest{Format: issuer.FormatJWTVCJSON, Proof: env.proof(t, holderKey, proofOpts{typ: "JWT"})}
			},
			code: CodeInvalidProof,
		},
		{
			name: "proof for another issuer",
			request: func() *model.CredentialRequest {
				return &model.CredentialRequest{
					Format: issuer.FormatJWTVCJSON,
					Proof:  env.proof(t, holderKey, proofOpts{aud: "https://evil.example.org"}),
				}
			},
			code: CodeInvalidProof,
		},
		{
			name: "proof with unknown nonce",
			request: func() *model.CredentialRequest {
				return &model.CredentialRequest{
					Format: issuer.FormatJWTVCJSON,
					Proof:  env.proof(t, holderKey, proofOpts{nonce: "0000000000000000"}),
				}
			},
			code: CodeInvalidProof,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(tt *testing.T) {
			request := &model.CredentialRequest{Format: issuer.FormatJWTVCJSON, Proof: env.proof(t, holderKey, proofOpts{})}
			if test.request != nil {
				request = test.request()
			}
			token := env.accessToken(t, farmerScope)
			if test.token != nil {
				token = test.token()
			}
			resp, err := env.service.IssueCredential(ctx, request, token)
			assert.Nil(tt, resp)
			require.Error(tt, err)
			assert.Equal(tt, test.code, CodeOf(err), err.Error())
		})
	}
}

func TestProofWithStaleNonce(t *testing.T) {
	env := newTestEnv(t, config.OIDCServiceConfig{RequireProof: true})
	nonce, err := env.service.CurrentNonce()
	require.NoError(t, err)

	// nonces stay valid for one period either side of the current one
	env.clock.Add(config.DefaultCNonceExpiresIn)
	_, err = env.service.IssueCredential(context.Background(), &model.CredentialRequest{
		Format: issuer.FormatJWTVCJSON,
		Proof:  env.proof(t, newECKey(t, ""), proofOpts{nonce: nonce}),
	}, env.accessToken(t, farmerScope))
	require.NoError(t, err)

	env.clock.Add(2 * config.DefaultCNonceExpiresIn)
	_, err = env.service.IssueCredential(context.Background(), &model.CredentialRequest{
		Format: issuer.FormatJWTVCJSON,
		Proof:  env.proof(t, newECKey(t, ""), proofOpts{nonce: nonce}),
	}, env.accessToken(t, farmerScope))
	assert.ErrorIs(t, err, ErrInvalidProof)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeInvalidScope, CodeOf(ErrInvalidScope))
	assert.Equal(t, CodeInvalidProof, CodeOf(ErrInvalidProof))
	assert.Empty(t, CodeOf(assert.AnError))
	assert.Empty(t, CodeOf(nil))
}
