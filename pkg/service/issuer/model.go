package issuer

import (
	"strings"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/goccy/go-json"
	"go.einride.tech/aip/filtering"

	"github.com/openg2p/vci-service/internal/jq"
)

const (
	FormatJWTVCJSON = "jwt_vc_json"
	FormatLDPVC     = "ldp_vc"

	// WebBaseURLPlaceholder is replaced with the service base URL in context templates.
	WebBaseURLPlaceholder = "web_base_url"

	DefaultSubIDClaim = "sub"
)

// Issuer is the configuration of a single credential issuer.
type Issuer struct {
	Name            string `json:"name" validate:"required"`
	Scope           string `json:"scope" validate:"required"`
	IssuerType      string `json:"issuer_type,omitempty"`
	SupportedFormat string `json:"supported_format" validate:"required,oneof=jwt_vc_json ldp_vc"`
	// CredentialType is the type requests must ask for, e.g. "OpenG2PRegistryVerifiableCredential".
	CredentialType string `json:"credential_type,omitempty"`

	// IssuerMetadataText is a jq program producing this issuer's part of the discovery document.
	IssuerMetadataText string `json:"issuer_metadata_text,omitempty"`
	// ContextsJSON is a JSON-LD context document where the literal web_base_url is substituted.
	ContextsJSON string `json:"contexts_json,omitempty"`
	// CredentialFormat is a jq program producing the unsigned credential.
	CredentialFormat string `json:"credential_format" validate:"required"`

	AuthAllowedIssuers    []string                   `json:"auth_allowed_issuers,omitempty"`
	AuthAllowedAudiences  []string                   `json:"auth_allowed_audiences,omitempty"`
	AuthIssuerJWKSMapping map[string]string          `json:"auth_issuer_jwks_mapping,omitempty"`
	AuthIssuerJWKS        map[string]json.RawMessage `json:"auth_issuer_jwks,omitempty"`
	AuthSubIDType         string                     `json:"auth_sub_id_type,omitempty"`

	SigningKeyID string `json:"signing_key_id,omitempty"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func (i Issuer) FilterVariablesMap() map[string]any {
	return map[string]any{
		"name":             i.Name,
		"scope":            i.Scope,
		"issuer_type":      i.IssuerType,
		"supported_format": i.SupportedFormat,
	}
}

// SubIDClaim is the access token claim that identifies the credential subject.
func (i Issuer) SubIDClaim() string {
	if i.AuthSubIDType == "" {
		return DefaultSubIDClaim
	}
	return i.AuthSubIDType
}

// HasScope reports whether the issuer's scope is among the given scopes.
func (i Issuer) HasScope(scopes []string) bool {
	for _, s := range scopes {
		if s == i.Scope {
			return true
		}
	}
	return false
}

// TemplateInput is the issuer record, as seen by jq programs, with the base URL attached.
func (i Issuer) TemplateInput(webBaseURL string) (map[string]any, error) {
	input, err := jq.ToInput(i)
	if err != nil {
		return nil, err
	}
	record := input.(map[string]any)
	record[WebBaseURLPlaceholder] = webBaseURL
	return record, nil
}

// SubstituteBaseURL replaces every literal web_base_url in the template with the base URL.
func SubstituteBaseURL(template, webBaseURL string) string {
	return strings.ReplaceAll(template, WebBaseURLPlaceholder, webBaseURL)
}

type CreateIssuerRequest struct {
	Issuer Issuer `validate:"required"`
	// SigningKey is the private JWK the issuer signs with. It may be omitted when updating an issuer.
	SigningKey json.RawMessage
}

func (r CreateIssuerRequest) IsValid() bool {
	return sdkutil.IsValidStruct(r) == nil
}

type GetIssuerRequest struct {
	Name string `validate:"required"`
}

type ListIssuersRequest struct {
	Filter filtering.Filter
}

type ListIssuersResponse struct {
	Issuers []Issuer
}

type DeleteIssuerRequest struct {
	Name string `validate:"required"`
}

// SeedIssuer is the format of entries in the issuers file.
type SeedIssuer struct {
	Issuer
	SigningKey json.RawMessage `json:"signing_key,omitempty"`
}
