package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"go.einride.tech/aip/filtering"

	"github.com/openg2p/vci-service/pkg/server/framework"
	svcframework "github.com/openg2p/vci-service/pkg/service/framework"
	"github.com/openg2p/vci-service/pkg/service/issuer"
)

const (
	NameParam   = "name"
	FilterParam = "filter"

	// FilterCharacterLimit bounds the length of list filters, since parsing them can be expensive.
	FilterCharacterLimit = 1024
)

type IssuerRouter struct {
	service *issuer.Service
}

func NewIssuerRouter(s svcframework.Service) (*IssuerRouter, error) {
	if s == nil {
		return nil, errors.New("service cannot be nil")
	}
	issuerService, ok := s.(*issuer.Service)
	if !ok {
		return nil, fmt.Errorf("could not create issuer router with service type: %s", s.Type())
	}
	return &IssuerRouter{service: issuerService}, nil
}

type CreateIssuerRequest struct {
	issuer.Issuer
	// SigningKey is the private JWK credentials are signed with. Optional when updating an existing issuer.
	SigningKey json.RawMessage `json:"signing_key,omitempty"`
}

func (r CreateIssuerRequest) toServiceRequest() issuer.CreateIssuerRequest {
	return issuer.CreateIssuerRequest{
		Issuer:     r.Issuer,
		SigningKey: r.SigningKey,
	}
}

type IssuerResponse struct {
	Issuer issuer.Issuer `json:"issuer"`
}

// CreateIssuer godoc
//
//	@Summary		Create or update Issuer
//	@Description	Creates the issuer, or replaces the issuer with the same name.
//	@Tags			IssuerAPI
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateIssuerRequest	true	"request body"
//	@Success		201		{object}	IssuerResponse
//	@Failure		400		{string}	string	"Bad request"
//	@Failure		500		{string}	string	"Internal server error"
//	@Router			/v1/issuers [put]
func (ir IssuerRouter) CreateIssuer(c *gin.Context) {
	var request CreateIssuerRequest
	invalidCreateIssuerRequest := "invalid create issuer request"
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.LoggingRespondErrWithMsg(c, err, invalidCreateIssuerRequest, http.StatusBadRequest)
		return
	}

	created, err := ir.service.CreateIssuer(c, request.toServiceRequest())
	if err != nil {
		framework.LoggingRespondErrWithMsg(c, err, "could not create issuer", http.StatusBadRequest)
		return
	}
	framework.Respond(c, IssuerResponse{Issuer: *created}, http.StatusCreated)
}

// GetIssuer godoc
//
//	@Summary		Get Issuer
//	@Tags			IssuerAPI
//	@Produce		json
//	@Param			name	path		string	true	"issuer name"
//	@Success		200		{object}	IssuerResponse
//	@Failure		400		{string}	string	"Bad request"
//	@Failure		404		{string}	string	"Not found"
//	@Router			/v1/issuers/{name} [get]
func (ir IssuerRouter) GetIssuer(c *gin.Context) {
	name := framework.GetParam(c, NameParam)
	if name == nil {
		framework.LoggingRespondErrMsg(c, "cannot get issuer without name parameter", http.StatusBadRequest)
		return
	}

	gotIssuer, err := ir.service.GetIssuer(c, issuer.GetIssuerRequest{Name: *name})
	if err != nil {
		if errors.Is(err, issuer.ErrIssuerNotFound) {
			framework.LoggingRespondErrWithMsg(c, err, fmt.Sprintf("could not find issuer with name: %s", *name), http.StatusNotFound)
			return
		}
		framework.LoggingRespondErrWithMsg(c, err, "could not get issuer", http.StatusInternalServerError)
		return
	}
	framework.Respond(c, IssuerResponse{Issuer: *gotIssuer}, http.StatusOK)
}

type ListIssuersRequest struct {
	// A standard filter expression conforming to https://google.aip.dev/160.
	// For example: `supported_format = "ldp_vc"`.
	Filter string
}

func (r ListIssuersRequest) GetFilter() string {
	return r.Filter
}

type ListIssuersResponse struct {
	Issuers []issuer.Issuer `json:"issuers"`
}

// ListIssuers godoc
//
//	@Summary		List Issuers
//	@Description	Lists issuers in registry order. The `filter` query parameter follows https://google.aip.dev/160 over `name`, `scope`, `issuer_type` and `supported_format`.
//	@Tags			IssuerAPI
//	@Produce		json
//	@Param			filter	query		string	false	"filter expression"
//	@Success		200		{object}	ListIssuersResponse
//	@Failure		400		{string}	string	"Bad request"
//	@Failure		500		{string}	string	"Internal server error"
//	@Router			/v1/issuers [get]
func (ir IssuerRouter) ListIssuers(c *gin.Context) {
	var request ListIssuersRequest
	if f := framework.GetQueryValue(c, FilterParam); f != nil {
		request.Filter = *f
	}

	invalidFilterErr := "invalid filter"
	if len(request.GetFilter()) > FilterCharacterLimit {
		err := errors.Errorf("filter longer than %d character size limit", FilterCharacterLimit)
		framework.LoggingRespondErrWithMsg(c, err, invalidFilterErr, http.StatusBadRequest)
		return
	}
	declarations, err := issuerFilterDeclarations()
	if err != nil {
		framework.LoggingRespondErrWithMsg(c, err, "creating filter declarations", http.StatusInternalServerError)
		return
	}
	filter, err := filtering.ParseFilter(request, declarations)
	if err != nil {
		framework.LoggingRespondErrWithMsg(c, err, invalidFilterErr, http.StatusBadRequest)
		return
	}

	resp, err := ir.service.ListIssuers(c, issuer.ListIssuersRequest{Filter: filter})
	if err != nil {
		framework.LoggingRespondErrWithMsg(c, err, "could not list issuers", http.StatusInternalServerError)
		return
	}
	issuers := resp.Issuers
	if issuers == nil {
		issuers = []issuer.Issuer{}
	}
	framework.Respond(c, ListIssuersResponse{Issuers: issuers}, http.StatusOK)
}

func issuerFilterDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareFunction(filtering.FunctionEquals,
			filtering.NewFunctionOverload(
				filtering.FunctionOverloadEqualsString, filtering.TypeBool, filtering.TypeString, filtering.TypeString)),
		filtering.DeclareIdent("name", filtering.TypeString),
		filtering.DeclareIdent("scope", filtering.TypeString),
		filtering.DeclareIdent("issuer_type", filtering.TypeString),
		filtering.DeclareIdent("supported_format", filtering.TypeString),
	)
}

// DeleteIssuer godoc
//
//	@Summary		Delete Issuer
//	@Description	Deletes the issuer and its signing key.
//	@Tags			IssuerAPI
//	@Param			name	path		string	true	"issuer name"
//	@Success		204		{string}	string	"No Content"
//	@Failure		400		{string}	string	"Bad request"
//	@Failure		404		{string}	string	"Not found"
//	@Failure		500		{string}	string	"Internal server error"
//	@Router			/v1/issuers/{name} [delete]
func (ir IssuerRouter) DeleteIssuer(c *gin.Context) {
	name := framework.GetParam(c, NameParam)
	if name == nil {
		framework.LoggingRespondErrMsg(c, "cannot delete an issuer without a name parameter", http.StatusBadRequest)
		return
	}

	if err := ir.service.DeleteIssuer(c, issuer.DeleteIssuerRequest{Name: *name}); err != nil {
		if errors.Is(err, issuer.ErrIssuerNotFound) {
			framework.LoggingRespondErrWithMsg(c, err, fmt.Sprintf("could not find issuer with name: %s", *name), http.StatusNotFound)
			return
		}
		framework.LoggingRespondErrWithMsg(c, err, "could not delete issuer", http.StatusInternalServerError)
		return
	}
	framework.Respond(c, nil, http.StatusNoContent)
}
