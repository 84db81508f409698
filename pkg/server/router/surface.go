package router

import (
	"github.com/openg2p/vci-service/pkg/service/oidc"
)

// Surface is one mount of the credential issuance API. Surfaces share handlers and differ in where they are
// mounted and in how untyped issuance failures are reported.
type Surface struct {
	Name     string
	BasePath string
	// DefaultErrorCode is reported for failures that carry no error code of their own.
	DefaultErrorCode string
	// DescriptionPrefix is prepended to every error_description.
	DescriptionPrefix string
}

func PrimarySurface(basePath string) Surface {
	return Surface{
		Name:              "primary",
		BasePath:          basePath,
		DefaultErrorCode:  oidc.CodeInvalidScope,
		DescriptionPrefix: "Invalid Scope. ",
	}
}

func LegacySurface(basePath string) Surface {
	return Surface{
		Name:              "legacy",
		BasePath:          basePath,
		DefaultErrorCode:  oidc.CodeInvalidCredentialRequest,
		DescriptionPrefix: "Error issuing credential. ",
	}
}

// errorCode returns the code of a typed failure, or the surface default.
func (s Surface) errorCode(err error) string {
	if code := oidc.CodeOf(err); code != "" {
		return code
	}
	return s.DefaultErrorCode
}
