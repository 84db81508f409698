package model

import (
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const ProofTypeJWT = "jwt"

// CredentialRequest is the body of a request to the credential endpoint. Fields of earlier drafts (types) and
// later ones (credential_identifier, vct) are accepted side by side.
type CredentialRequest struct {
	// Format is the required format of the credential to be issued.
	Format string `json:"format"`

	CredentialDefinition *CredentialDefinition `json:"credential_definition,omitempty"`

	// Types is the credential_definition.type of drafts before 11.
	Types []string `json:"types,omitempty"`

	VCT                  string `json:"vct,omitempty"`
	CredentialIdentifier string `json:"credential_identifier,omitempty"`

	// Proof is an optional proof of possession of the key material.
	Proof *ProofParameter `json:"proof,omitempty"`

	// Raw is the request as received, unknown fields included.
	Raw map[string]any `json:"-"`
}

type CredentialDefinition struct {
	Context           []string       `json:"@context,omitempty"`
	Type              []string       `json:"type,omitempty"`
	Types             []string       `json:"types,omitempty"`
	CredentialSubject map[string]any `json:"credentialSubject,omitempty"`
}

// ProofParameter is a proof of possession. The only proof_type supported is "jwt".
//
// The JWT MUST contain, in the JOSE header, typ openid4vci-proof+jwt, an asymmetric alg and exactly one of kid,
// jwk or x5c. In the body it MUST contain aud set to the Credential Issuer URL, iat, and nonce set to a c_nonce
// provided by the Credential Issuer.
type ProofParameter struct {
	ProofType string `json:"proof_type"`
	JWT       string `json:"jwt,omitempty"`
}

func (r *CredentialRequest) UnmarshalJSON(data []byte) error {
	type alias CredentialRequest
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return errors.Wrap(err, "decoding credential request")
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decoding credential request")
	}
	*r = CredentialRequest(decoded)
	r.Raw = raw
	return nil
}

// RequestedTypes returns every credential type named by the request, in order and without duplicates.
func (r CredentialRequest) RequestedTypes() []string {
	var types []string
	if r.CredentialDefinition != nil {
		types = append(types, r.CredentialDefinition.Type...)
		types = append(types, r.CredentialDefinition.Types...)
	}
	types = append(types, r.Types...)
	if len(types) == 0 {
		return nil
	}
	return lo.Uniq(types)
}
