package oidc

import (
	"context"
	"time"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/openg2p/vci-service/config"
	"github.com/openg2p/vci-service/internal/httpclient"
	"github.com/openg2p/vci-service/internal/keyaccess"
	"github.com/openg2p/vci-service/pkg/service/framework"
	"github.com/openg2p/vci-service/pkg/service/issuer"
	"github.com/openg2p/vci-service/pkg/service/keystore"
	"github.com/openg2p/vci-service/pkg/service/oidc/model"
)

const documentCacheTTL = time.Hour

// Service issues credentials on behalf of the registered issuers.
type Service struct {
	config     config.OIDCServiceConfig
	webBaseURL string
	clock      clock.Clock

	nonces      *NonceSource
	tokens      *TokenVerifier
	ldKeyAccess *keyaccess.DataIntegrityKeyAccess

	// external dependencies
	issuers *issuer.Service
}

var _ framework.Service = (*Service)(nil)

func (s Service) Type() framework.Type {
	return framework.OIDC
}

func (s Service) Status() framework.Status {
	ae := sdkutil.NewAppendError()
	if s.issuers == nil {
		ae.AppendString("no issuer service configured")
	}
	if s.nonces == nil {
		ae.AppendString("no nonce source configured")
	}
	if s.tokens == nil {
		ae.AppendString("no token verifier configured")
	}
	if !ae.IsEmpty() {
		return framework.NotReady(framework.OIDC, ae.Error().Error())
	}
	return framework.Ready()
}

func (s Service) Config() config.OIDCServiceConfig {
	return s.config
}

type options struct {
	clock      clock.Clock
	httpClient *retryablehttp.Client
	local      keyaccess.LocalDocumentFunc
}

type Option func(*options)

// WithClock sets the clock used for nonces, token validation and issuance dates.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithHTTPClient sets the client used to fetch JWKS and JSON-LD contexts.
func WithHTTPClient(client *retryablehttp.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLocalDocuments resolves the JSON-LD documents the service publishes itself without a network round trip.
func WithLocalDocuments(local keyaccess.LocalDocumentFunc) Option {
	return func(o *options) {
		o.local = local
	}
}

func NewOIDCService(cfg config.OIDCServiceConfig, issuers *issuer.Service, keyStore *keystore.Service, opts ...Option) (*Service, error) {
	if issuers == nil || keyStore == nil {
		return nil, errors.New("oidc service requires the issuer and key store services")
	}
	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.CNonceExpiresIn == 0 {
		cfg.CNonceExpiresIn = config.DefaultCNonceExpiresIn
	}
	if cfg.JWKSCacheTTL == 0 {
		cfg.JWKSCacheTTL = config.DefaultJWKSCacheTTL
	}
	if o.httpClient == nil {
		o.httpClient = httpclient.New(cfg.HTTPRetryMax)
	}

	secret, err := keyStore.NonceSecret()
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "deriving nonce secret")
	}
	nonces, err := NewNonceSource(secret, cfg.CNonceExpiresIn, o.clock)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "creating nonce source")
	}
	loader := keyaccess.NewDocumentLoader(o.httpClient.StandardClient(), documentCacheTTL, o.local)

	service := Service{
		config:      cfg,
		webBaseURL:  issuers.WebBaseURL(),
		clock:       o.clock,
		nonces:      nonces,
		tokens:      NewTokenVerifier(o.httpClient, cfg.JWKSCacheTTL, o.clock),
		ldKeyAccess: keyaccess.NewDataIntegrityKeyAccess(loader),
		issuers:     issuers,
	}
	if !service.Status().IsReady() {
		return nil, errors.New(service.Status().Message)
	}
	return &service, nil
}

// CurrentNonce returns the c_nonce wallets must put in their next proof.
func (s Service) CurrentNonce() (string, error) {
	return s.nonces.Current()
}

// NonceExpiresIn returns the lifetime of a c_nonce in seconds.
func (s Service) NonceExpiresIn() int {
	return s.nonces.ExpiresIn()
}

// IssueCredential validates the access token and the proof of the request, then builds and signs a credential
// with the issuer whose scope the token carries. Failures are one of the typed errors of this package, or an
// internal error.
func (s Service) IssueCredential(ctx context.Context, request *model.CredentialRequest, token string) (*model.CredentialResponse, error) {
	resp, err := s.issueCredential(ctx, request, token)
	if err != nil {
		recordFailure(err)
		return nil, err
	}
	return resp, nil
}

func (s Service) issueCredential(ctx context.Context, request *model.CredentialRequest, token string) (*model.CredentialResponse, error) {
	start := time.Now()
	if request == nil || request.Format == "" {
		return nil, errors.Wrap(ErrInvalidCredentialRequest, "format is required")
	}
	if request.Format != issuer.FormatJWTVCJSON && request.Format != issuer.FormatLDPVC {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "format<%s>", request.Format)
	}

	unverified, err := ParseUnverified(token)
	if err != nil {
		return nil, err
	}
	found, err := s.issuers.FindIssuerByScope(ctx, Scopes(unverified))
	if err != nil {
		if errors.Is(err, issuer.ErrIssuerNotFound) {
			return nil, errors.Wrapf(ErrInvalidScope, "%s", err)
		}
		return nil, errors.Wrap(err, "finding issuer")
	}
	if found.SupportedFormat != request.Format {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "issuer<%s> issues %s, not %s", found.Name, found.SupportedFormat,
			request.Format)
	}
	if types := request.RequestedTypes(); len(types) > 0 && found.CredentialType != "" && !lo.Contains(types, found.CredentialType) {
		return nil, errors.Wrapf(ErrInvalidCredentialRequest, "issuer<%s> does not issue types %v", found.Name, types)
	}

	verified, err := s.tokens.Verify(ctx, token, *found)
	if err != nil {
		return nil, err
	}

	var holderID string
	if request.Proof != nil {
		if holderID, err = s.processProof(request.Proof); err != nil {
			return nil, err
		}
	} else if s.config.RequireProof {
		return nil, errors.Wrap(ErrInvalidProof, "proof is required")
	}

	credential, err := s.buildCredential(ctx, *found, verified, holderID, request)
	if err != nil {
		return nil, err
	}
	signed, err := s.signCredential(ctx, *found, credential)
	if err != nil {
		return nil, err
	}

	nonce, err := s.nonces.Current()
	if err != nil {
		return nil, err
	}
	recordIssued(found.Name, request.Format, start)
	logrus.WithFields(logrus.Fields{"issuer": found.Name, "format": request.Format}).Info("issued credential")
	return &model.CredentialResponse{
		Format:          request.Format,
		Credential:      signed,
		CNonce:          nonce,
		CNonceExpiresIn: s.nonces.ExpiresIn(),
	}, nil
}
