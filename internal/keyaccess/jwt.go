package keyaccess

import (
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
)

type JWT string

func (j JWT) String() string {
	return string(j)
}

// VCClaims are the registered claims of a JWT encoded credential.
type VCClaims struct {
	Issuer    string
	Subject   string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SignVCJWT wraps credential in the vc claim of a JWT and signs it with key.
func SignVCJWT(key jwk.Key, claims VCClaims, credential map[string]any) (JWT, error) {
	alg, err := AlgorithmForKey(key)
	if err != nil {
		return "", err
	}

	t := jwt.New()
	fields := map[string]any{
		jwt.IssuerKey:    claims.Issuer,
		jwt.JwtIDKey:     claims.ID,
		jwt.IssuedAtKey:  claims.IssuedAt,
		jwt.NotBeforeKey: claims.IssuedAt,
		"vc":             credential,
	}
	if claims.Subject != "" {
		fields[jwt.SubjectKey] = claims.Subject
	}
	if !claims.ExpiresAt.IsZero() {
		fields[jwt.ExpirationKey] = claims.ExpiresAt
	}
	for k, v := range fields {
		if err = t.Set(k, v); err != nil {
			return "", errors.Wrapf(err, "setting claim %s", k)
		}
	}

	headers := jws.NewHeaders()
	if err = headers.Set(jws.TypeKey, "JWT"); err != nil {
		return "", errors.Wrap(err, "setting typ header")
	}
	if kid := key.KeyID(); kid != "" {
		if err = headers.Set(jws.KeyIDKey, kid); err != nil {
			return "", errors.Wrap(err, "setting kid header")
		}
	}
	signed, err := jwt.Sign(t, jwt.WithKey(alg, key, jws.WithProtectedHeaders(headers)))
	if err != nil {
		return "", errors.Wrap(err, "signing credential jwt")
	}
	return JWT(signed), nil
}

// VerifyVCJWT verifies a JWT encoded credential against the public key and returns its vc claim.
func VerifyVCJWT(token JWT, publicKey jwk.Key) (map[string]any, error) {
	alg, err := AlgorithmForKey(publicKey)
	if err != nil {
		return nil, err
	}
	parsed, err := jwt.Parse([]byte(token), jwt.WithKey(alg, publicKey), jwt.WithValidate(false))
	if err != nil {
		return nil, errors.Wrap(err, "verifying credential jwt")
	}
	vc, ok := parsed.Get("vc")
	if !ok {
		return nil, errors.New("jwt has no vc claim")
	}
	credential, ok := vc.(map[string]any)
	if !ok {
		return nil, errors.New("vc claim is not an object")
	}
	return credential, nil
}
