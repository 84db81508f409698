package metadata

import (
	"github.com/goccy/go-json"
)

const (
	CredentialsSupportedKey              = "credentials_supported"
	CredentialConfigurationsSupportedKey = "credential_configurations_supported"
)

// CredentialIssuerResponse is the OpenID credential issuer discovery document. Exactly one of CredentialsSupported
// and CredentialConfigurationsSupported is serialized.
type CredentialIssuerResponse struct {
	CredentialIssuer                  string         `json:"credential_issuer"`
	CredentialEndpoint                string         `json:"credential_endpoint"`
	CredentialsSupported              []any          `json:"credentials_supported,omitempty"`
	CredentialConfigurationsSupported map[string]any `json:"credential_configurations_supported,omitempty"`
}

func (r CredentialIssuerResponse) MarshalJSON() ([]byte, error) {
	doc := map[string]any{
		"credential_issuer":   r.CredentialIssuer,
		"credential_endpoint": r.CredentialEndpoint,
	}
	if r.CredentialsSupported != nil {
		doc[CredentialsSupportedKey] = r.CredentialsSupported
	} else {
		configurations := r.CredentialConfigurationsSupported
		if configurations == nil {
			configurations = map[string]any{}
		}
		doc[CredentialConfigurationsSupportedKey] = configurations
	}
	return json.Marshal(doc)
}

// ContextsDocument is the aggregated JSON-LD context of all issuers.
type ContextsDocument struct {
	Context map[string]any `json:"@context"`
}

// Supported is the merged credentials section of the discovery document. At most one field is set.
type Supported struct {
	List    []any
	Mapping map[string]any
}
