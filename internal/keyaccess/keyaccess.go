// Package keyaccess signs and verifies credentials with JWK keys.
package keyaccess

import (
	"encoding/base64"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"
)

// AlgorithmForKey returns the signature algorithm to use with key. An alg set on the key wins.
func AlgorithmForKey(key jwk.Key) (jwa.SignatureAlgorithm, error) {
	if key == nil {
		return "", errors.New("key cannot be nil")
	}
	if alg := key.Algorithm(); alg != nil && alg.String() != "" {
		var sigAlg jwa.SignatureAlgorithm
		if err := sigAlg.Accept(alg.String()); err != nil {
			return "", errors.Wrapf(err, "key alg %s is not a signature algorithm", alg)
		}
		return sigAlg, nil
	}

	switch key.KeyType() {
	case jwa.RSA:
		return jwa.RS256, nil
	case jwa.EC:
		crv, ok := key.Get(jwk.ECDSACrvKey)
		if !ok {
			return "", errors.New("ec key has no curve")
		}
		switch crv {
		case jwa.P256:
			return jwa.ES256, nil
		case jwa.P384:
			return jwa.ES384, nil
		case jwa.P521:
			return jwa.ES512, nil
		}
		return "", errors.Errorf("unsupported curve: %v", crv)
	case jwa.OKP:
		return jwa.EdDSA, nil
	}
	return "", errors.Errorf("unsupported key type: %s", key.KeyType())
}

// IsAsymmetric reports whether alg is a digital signature algorithm, as opposed to none or a MAC.
func IsAsymmetric(alg jwa.SignatureAlgorithm) bool {
	switch alg {
	case jwa.ES256, jwa.ES256K, jwa.ES384, jwa.ES512, jwa.EdDSA,
		jwa.PS256, jwa.PS384, jwa.PS512, jwa.RS256, jwa.RS384, jwa.RS512:
		return true
	}
	return false
}

// PublicKey returns the public part of key, failing for symmetric keys.
func PublicKey(key jwk.Key) (jwk.Key, error) {
	if key.KeyType() == jwa.OctetSeq {
		return nil, errors.New("symmetric keys have no public key")
	}
	pub, err := key.PublicKey()
	if err != nil {
		return nil, errors.Wrap(err, "getting public key")
	}
	return pub, nil
}

// DIDJWK encodes the public part of key as a did:jwk identifier.
func DIDJWK(key jwk.Key) (string, error) {
	pub, err := PublicKey(key)
	if err != nil {
		return "", err
	}
	pubBytes, err := json.Marshal(pub)
	if err != nil {
		return "", errors.Wrap(err, "marshalling public key")
	}
	return "did:jwk:" + base64.RawURLEncoding.EncodeToString(pubBytes), nil
}
