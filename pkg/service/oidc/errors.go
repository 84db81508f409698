package oidc

import (
	"github.com/pkg/errors"
)

// Error codes of the credential endpoint.
const (
	CodeInvalidToken             = "invalid_token"
	CodeInvalidScope             = "invalid_scope"
	CodeInvalidProof             = "invalid_proof"
	CodeUnsupportedFormat        = "unsupported_credential_format"
	CodeInvalidCredentialRequest = "invalid_credential_request"
)

var (
	ErrInvalidToken             = errors.New("invalid access token")
	ErrInvalidScope             = errors.New("no issuer for the requested scope")
	ErrInvalidProof             = errors.New("invalid proof")
	ErrUnsupportedFormat        = errors.New("unsupported credential format")
	ErrInvalidCredentialRequest = errors.New("invalid credential request")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidToken, CodeInvalidToken},
	{ErrInvalidScope, CodeInvalidScope},
	{ErrInvalidProof, CodeInvalidProof},
	{ErrUnsupportedFormat, CodeUnsupportedFormat},
	{ErrInvalidCredentialRequest, CodeInvalidCredentialRequest},
}

// CodeOf returns the error code for err, or the empty string if err is not one of the typed errors.
func CodeOf(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return ""
}

