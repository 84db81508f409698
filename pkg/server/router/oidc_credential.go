package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openg2p/vci-service/pkg/server/framework"
	"github.com/openg2p/vci-service/pkg/server/middleware"
	"github.com/openg2p/vci-service/pkg/service/oidc"
	"github.com/openg2p/vci-service/pkg/service/oidc/model"
)

// CredentialIssuer issues credentials for the credential endpoint. It is implemented by *oidc.Service.
type CredentialIssuer interface {
	IssueCredential(ctx context.Context, request *model.CredentialRequest, token string) (*model.CredentialResponse, error)
	CurrentNonce() (string, error)
	NonceExpiresIn() int
}

type OIDCCredentialRouter struct {
	issuer  CredentialIssuer
	surface Surface
}

func NewOIDCCredentialRouter(issuer CredentialIssuer, surface Surface) (*OIDCCredentialRouter, error) {
	if issuer == nil {
		return nil, errors.New("credential issuer cannot be nil")
	}
	return &OIDCCredentialRouter{issuer: issuer, surface: surface}, nil
}

// IssueCredential godoc
//
//	@Summary		Issue Credential
//	@Description	Issues a credential for the holder of the bearer access token. Implements the credential endpoint of OpenID for Verifiable Credential Issuance.
//	@Tags			CredentialIssuanceAPI
//	@Accept			json
//	@Produce		json
//	@Param			Authorization	header		string						true	"Bearer access token"
//	@Param			request			body		model.CredentialRequest		true	"request body"
//	@Success		200				{object}	model.CredentialResponse
//	@Failure		400				{object}	model.CredentialErrorResponse
//	@Failure		401				{string}	string	"Unauthorized"
//	@Router			/api/v1/vci/credential [post]
func (r OIDCCredentialRouter) IssueCredential(c *gin.Context) {
	token := middleware.GetBearerToken(c)
	if token == "" {
		// the route is registered behind the bearer middleware, so this is a wiring error
		framework.LoggingRespondErrMsg(c, "missing bearer token", http.StatusUnauthorized)
		return
	}

	var request model.CredentialRequest
	if err := framework.DecodeAllowUnknown(c.Request, &request); err != nil {
		r.respondCredentialError(c, errors.Wrap(err, "decoding credential request"), oidc.CodeInvalidCredentialRequest)
		return
	}

	resp, err := r.issuer.IssueCredential(c, &request, token)
	if err != nil {
		r.respondCredentialError(c, err, r.surface.errorCode(err))
		return
	}
	framework.Respond(c, resp, http.StatusOK)
}

func (r OIDCCredentialRouter) respondCredentialError(c *gin.Context, err error, code string) {
	logrus.WithError(err).WithFields(logrus.Fields{
		"surface": r.surface.Name,
		"code":    code,
	}).Error("could not issue credential")

	nonce, nonceErr := r.issuer.CurrentNonce()
	if nonceErr != nil {
		framework.LoggingRespondErrWithMsg(c, nonceErr, "could not generate c_nonce", http.StatusInternalServerError)
		return
	}
	framework.Respond(c, model.CredentialErrorResponse{
		Error:            code,
		ErrorDescription: r.surface.DescriptionPrefix + err.Error(),
		CNonce:           nonce,
		CNonceExpiresIn:  r.issuer.NonceExpiresIn(),
	}, http.StatusBadRequest)
}
