package oidc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"

	"github.com/openg2p/vci-service/internal/jq"
	"github.com/openg2p/vci-service/internal/keyaccess"
	"github.com/openg2p/vci-service/pkg/service/issuer"
	"github.com/openg2p/vci-service/pkg/service/oidc/model"
)

// credentialInput is what credential_format programs see.
type credentialInput struct {
	VCID          string         `json:"vc_id"`
	WebBaseURL    string         `json:"web_base_url"`
	Issuer        map[string]any `json:"issuer"`
	SubjectID     any            `json:"subject_id"`
	TokenClaims   any            `json:"token_claims"`
	HolderID      *string        `json:"holder_id"`
	IssuanceDate  string         `json:"issuance_date"`
	Request       any            `json:"request"`
	ExpiresInSecs int64          `json:"expires_in_seconds,omitempty"`
}

// buildCredential runs the credential_format program of the issuer and returns the unsigned credential.
func (s Service) buildCredential(ctx context.Context, i issuer.Issuer, token jwt.Token, holderID string,
	request *model.CredentialRequest) (map[string]any, error) {
	issuerInput, err := i.TemplateInput(s.webBaseURL)
	if err != nil {
		return nil, err
	}
	claims, err := jq.ToInput(token)
	if err != nil {
		return nil, errors.Wrap(err, "converting token claims")
	}
	var subjectID any
	if claimsMap, ok := claims.(map[string]any); ok {
		subjectID = claimsMap[i.SubIDClaim()]
	}
	req := any(request.Raw)
	if request.Raw == nil {
		if req, err = jq.ToInput(request); err != nil {
			return nil, errors.Wrap(err, "converting credential request")
		}
	}

	input := credentialInput{
		VCID:          "urn:uuid:" + uuid.NewString(),
		WebBaseURL:    s.webBaseURL,
		Issuer:        issuerInput,
		SubjectID:     subjectID,
		TokenClaims:   claims,
		IssuanceDate:  s.clock.Now().UTC().Format(time.RFC3339),
		Request:       req,
		ExpiresInSecs: int64(s.config.CredentialExpiresIn / time.Second),
	}
	if holderID != "" {
		input.HolderID = &holderID
	}
	jqInput, err := jq.ToInput(input)
	if err != nil {
		return nil, err
	}

	out, err := jq.First(ctx, i.CredentialFormat, jqInput)
	if err != nil {
		return nil, errors.Wrapf(err, "building credential of issuer<%s>", i.Name)
	}
	// normalise numbers and nested values to their JSON form
	normalised, err := jq.ToInput(out)
	if err != nil {
		return nil, err
	}
	credential, ok := normalised.(map[string]any)
	if !ok {
		return nil, errors.Errorf("credential template of issuer<%s> must produce an object, got %T", i.Name, out)
	}
	return credential, nil
}

// signCredential signs credential in the format of the issuer. JWT credentials are returned as a string, data
// integrity ones as an object.
func (s Service) signCredential(ctx context.Context, i issuer.Issuer, credential map[string]any) (any, error) {
	key, err := s.issuers.SigningKey(ctx, i.Name)
	if err != nil {
		return nil, err
	}
	if i.SigningKeyID != "" && key.KeyID() != i.SigningKeyID {
		if err = key.Set(jwk.KeyIDKey, i.SigningKeyID); err != nil {
			return nil, errors.Wrap(err, "setting signing key id")
		}
	}
	now := s.clock.Now()

	switch i.SupportedFormat {
	case issuer.FormatJWTVCJSON:
		claims := keyaccess.VCClaims{
			Issuer:   stringField(credential, "issuer", s.webBaseURL),
			Subject:  credentialSubjectID(credential),
			ID:       stringField(credential, "id", ""),
			IssuedAt: now,
		}
		if s.config.CredentialExpiresIn > 0 {
			claims.ExpiresAt = now.Add(s.config.CredentialExpiresIn)
		}
		signed, err := keyaccess.SignVCJWT(key, claims, credential)
		if err != nil {
			return nil, errors.Wrapf(err, "signing credential of issuer<%s>", i.Name)
		}
		return signed.String(), nil
	case issuer.FormatLDPVC:
		verificationMethod := s.webBaseURL + "#" + key.KeyID()
		signed, err := s.ldKeyAccess.Sign(credential, key, verificationMethod, now)
		if err != nil {
			return nil, errors.Wrapf(err, "signing credential of issuer<%s>", i.Name)
		}
		return signed, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedFormat, "issuer<%s> has format %s", i.Name, i.SupportedFormat)
}

func stringField(m map[string]any, field, fallback string) string {
	switch v := m[field].(type) {
	case string:
		return v
	case map[string]any:
		// issuer may be an object with an id
		if id, ok := v["id"].(string); ok {
			return id
		}
	}
	return fallback
}

func credentialSubjectID(credential map[string]any) string {
	subject, ok := credential["credentialSubject"].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := subject["id"].(string)
	return id
}
