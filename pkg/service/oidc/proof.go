package oidc

import (
	"time"

	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/openg2p/vci-service/internal/keyaccess"
	"github.com/openg2p/vci-service/pkg/service/oidc/model"
)

const (
	ProofJWTType = "openid4vci-proof+jwt"

	nonceClaim     = "nonce"
	proofClockSkew = time.Minute
)

// processProof validates a jwt proof of possession and returns the did:jwk of the key it was signed with.
func (s Service) processProof(proof *model.ProofParameter) (string, error) {
	if proof.ProofType != model.ProofTypeJWT {
		return "", errors.Wrapf(ErrInvalidProof, "proof_type<%s> is not supported", proof.ProofType)
	}
	if proof.JWT == "" {
		return "", errors.Wrap(ErrInvalidProof, "proof jwt is empty")
	}

	message, err := jws.ParseString(proof.JWT)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidProof, "parsing proof jwt: %s", err)
	}
	if len(message.Signatures()) != 1 {
		return "", errors.Wrap(ErrInvalidProof, "proof jwt must have exactly one signature")
	}
	headers := message.Signatures()[0].ProtectedHeaders()

	if headers.Type() != ProofJWTType {
		return "", errors.Wrapf(ErrInvalidProof, "typ must be set to %q", ProofJWTType)
	}
	alg := headers.Algorithm()
	if !keyaccess.IsAsymmetric(alg) {
		return "", errors.Wrapf(ErrInvalidProof, "alg %q is not allowed", alg)
	}

	kid := headers.KeyID()
	headerJWK := headers.JWK()
	certChain := headers.X509CertChain()
	if lo.Count([]bool{kid != "", headerJWK != nil, certChain != nil && certChain.Len() > 0}, true) != 1 {
		return "", errors.Wrap(ErrInvalidProof, "exactly one of kid, jwk, or x5c must be present")
	}
	// Key binding through a DID URL or a certificate chain would need resolution we do not offer.
	if headerJWK == nil {
		return "", errors.Wrap(ErrInvalidProof, "only jwk bound proofs are supported")
	}

	token, err := jwt.ParseString(proof.JWT,
		jwt.WithKey(alg, headerJWK),
		jwt.WithValidate(true),
		jwt.WithClock(s.clock),
		jwt.WithAcceptableSkew(proofClockSkew),
		jwt.WithAudience(s.webBaseURL),
	)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidProof, "verifying proof jwt: %s", err)
	}

	nonceRaw, ok := token.Get(nonceClaim)
	if !ok {
		return "", errors.Wrap(ErrInvalidProof, "nonce not present in proof")
	}
	nonce, ok := nonceRaw.(string)
	if !ok {
		return "", errors.Wrap(ErrInvalidProof, "nonce should be a string")
	}
	if !s.nonces.Valid(nonce) {
		return "", errors.Wrap(ErrInvalidProof, "nonce is not valid")
	}

	holderID, err := keyaccess.DIDJWK(headerJWK)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidProof, "encoding holder key: %s", err)
	}
	return holderID, nil
}
