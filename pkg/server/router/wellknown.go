package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/openg2p/vci-service/pkg/server/framework"
	svcframework "github.com/openg2p/vci-service/pkg/service/framework"
	"github.com/openg2p/vci-service/pkg/service/issuer"
	"github.com/openg2p/vci-service/pkg/service/metadata"
)

const IssuerNameParam = "issuer_name"

type WellKnownRouter struct {
	metadata *metadata.Service
	issuers  *issuer.Service
}

func NewWellKnownRouter(metadataSvc svcframework.Service, issuerSvc svcframework.Service) (*WellKnownRouter, error) {
	if metadataSvc == nil || issuerSvc == nil {
		return nil, errors.New("service cannot be nil")
	}
	metadataService, ok := metadataSvc.(*metadata.Service)
	if !ok {
		return nil, fmt.Errorf("could not create well known router with service type: %s", metadataSvc.Type())
	}
	issuerService, ok := issuerSvc.(*issuer.Service)
	if !ok {
		return nil, fmt.Errorf("could not create well known router with service type: %s", issuerSvc.Type())
	}
	return &WellKnownRouter{metadata: metadataService, issuers: issuerService}, nil
}

// GetCredentialIssuerMetadata godoc
//
//	@Summary		Get Credential Issuer Metadata
//	@Description	Discovery document of all issuers, or of the issuer named in the path.
//	@Tags			WellKnownAPI
//	@Produce		json
//	@Param			issuer_name	path		string	false	"issuer name"
//	@Success		200			{object}	metadata.CredentialIssuerResponse
//	@Failure		404			{string}	string	"Issuer not found"
//	@Failure		500			{string}	string	"Internal server error"
//	@Router			/api/v1/vci/.well-known/openid-credential-issuer/{issuer_name} [get]
func (wr WellKnownRouter) GetCredentialIssuerMetadata(c *gin.Context) {
	var name string
	if p := framework.GetParam(c, IssuerNameParam); p != nil {
		name = *p
	}

	resp, err := wr.metadata.GetCredentialIssuerMetadata(c, name)
	if err != nil {
		if errors.Is(err, issuer.ErrIssuerNotFound) {
			framework.LoggingRespondErrWithMsg(c, err, fmt.Sprintf("could not find issuer with name: %s", name), http.StatusNotFound)
			return
		}
		framework.LoggingRespondErrWithMsg(c, err, "could not build credential issuer metadata", http.StatusInternalServerError)
		return
	}
	framework.Respond(c, resp, http.StatusOK)
}

// GetContexts godoc
//
//	@Summary		Get JSON-LD Contexts
//	@Description	Aggregated JSON-LD context document of all issuers.
//	@Tags			WellKnownAPI
//	@Produce		json
//	@Success		200	{object}	metadata.ContextsDocument
//	@Failure		500	{string}	string	"Internal server error"
//	@Router			/api/v1/vci/.well-known/contexts.json [get]
func (wr WellKnownRouter) GetContexts(c *gin.Context) {
	resp, err := wr.metadata.GetContexts(c)
	if err != nil {
		framework.LoggingRespondErrWithMsg(c, err, "could not build contexts document", http.StatusInternalServerError)
		return
	}
	framework.Respond(c, resp, http.StatusOK)
}

// GetJWKS godoc
//
//	@Summary		Get JWKS
//	@Description	Public keys the issuers sign credentials with.
//	@Tags			WellKnownAPI
//	@Produce		json
//	@Success		200	{object}	any
//	@Failure		500	{string}	string	"Internal server error"
//	@Router			/api/v1/vci/.well-known/jwks.json [get]
func (wr WellKnownRouter) GetJWKS(c *gin.Context) {
	set, err := wr.issuers.PublicKeys(c)
	if err != nil {
		framework.LoggingRespondErrWithMsg(c, err, "could not get issuer public keys", http.StatusInternalServerError)
		return
	}
	framework.Respond(c, set, http.StatusOK)
}
