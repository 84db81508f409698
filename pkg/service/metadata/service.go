package metadata

import (
	"context"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openg2p/vci-service/pkg/service/framework"
	"github.com/openg2p/vci-service/pkg/service/issuer"
)

// Service publishes the discovery documents of the registered issuers.
type Service struct {
	issuers            *issuer.Service
	credentialEndpoint string
}

func (s Service) Type() framework.Type {
	return framework.Metadata
}

func (s Service) Status() framework.Status {
	ae := sdkutil.NewAppendError()
	if s.issuers == nil {
		ae.AppendString("no issuer service configured")
	}
	if s.credentialEndpoint == "" {
		ae.AppendString("no credential endpoint configured")
	}
	if !ae.IsEmpty() {
		return framework.NotReady(framework.Metadata, ae.Error().Error())
	}
	return framework.Ready()
}

// NewMetadataService creates the service. credentialEndpoint is the absolute URL of the credential endpoint.
func NewMetadataService(issuers *issuer.Service, credentialEndpoint string) (*Service, error) {
	service := Service{issuers: issuers, credentialEndpoint: credentialEndpoint}
	if !service.Status().IsReady() {
		return nil, errors.New(service.Status().Message)
	}
	return &service, nil
}

// GetCredentialIssuerMetadata builds the discovery document of the named issuer, or of all issuers when name is
// empty.
func (s Service) GetCredentialIssuerMetadata(ctx context.Context, name string) (*CredentialIssuerResponse, error) {
	logrus.Debugf("getting credential issuer metadata: %q", name)

	var issuers []issuer.Issuer
	if name != "" {
		got, err := s.issuers.GetIssuer(ctx, issuer.GetIssuerRequest{Name: name})
		if err != nil {
			return nil, err
		}
		issuers = []issuer.Issuer{*got}
	} else {
		all, err := s.issuers.ListAllIssuers(ctx)
		if err != nil {
			return nil, err
		}
		issuers = all
	}

	webBaseURL := s.issuers.WebBaseURL()
	supported, err := MergeMetadata(ctx, issuers, webBaseURL)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "merging issuer metadata")
	}
	return &CredentialIssuerResponse{
		CredentialIssuer:                  webBaseURL,
		CredentialEndpoint:                s.credentialEndpoint,
		CredentialsSupported:              supported.List,
		CredentialConfigurationsSupported: supported.Mapping,
	}, nil
}

// GetContexts builds the aggregated JSON-LD context document.
func (s Service) GetContexts(ctx context.Context) (*ContextsDocument, error) {
	issuers, err := s.issuers.ListAllIssuers(ctx)
	if err != nil {
		return nil, err
	}
	contexts, err := MergeContexts(issuers, s.issuers.WebBaseURL())
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "merging issuer contexts")
	}
	return &ContextsDocument{Context: contexts}, nil
}
