package issuer

import (
	"context"
	"os"
	"time"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openg2p/vci-service/config"
	"github.com/openg2p/vci-service/internal/jq"
	"github.com/openg2p/vci-service/pkg/service/framework"
	"github.com/openg2p/vci-service/pkg/service/keystore"
	"github.com/openg2p/vci-service/pkg/storage"
)

// ErrIssuerNotFound is returned when a named issuer does not exist.
var ErrIssuerNotFound = errors.New("issuer not found")

type Service struct {
	storage    *Storage
	config     config.IssuerServiceConfig
	webBaseURL string
	clock      clock.Clock

	// external dependencies
	keyStore *keystore.Service
}

func (s Service) Type() framework.Type {
	return framework.Issuer
}

func (s Service) Status() framework.Status {
	ae := sdkutil.NewAppendError()
	if s.storage == nil {
		ae.AppendString("no storage configured")
	}
	if s.keyStore == nil {
		ae.AppendString("no key store service configured")
	}
	if s.webBaseURL == "" {
		ae.AppendString("no web base url configured")
	}
	if !ae.IsEmpty() {
		return framework.NotReady(framework.Issuer, ae.Error().Error())
	}
	return framework.Ready()
}

func (s Service) Config() config.IssuerServiceConfig {
	return s.config
}

func (s Service) WebBaseURL() string {
	return s.webBaseURL
}

func NewIssuerService(config config.IssuerServiceConfig, webBaseURL string, s storage.ServiceStorage,
	keyStore *keystore.Service) (*Service, error) {
	issuerStorage, err := NewIssuerStorage(s)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not instantiate storage for the issuer service")
	}
	service := Service{
		storage:    issuerStorage,
		config:     config,
		webBaseURL: webBaseURL,
		clock:      clock.New(),
		keyStore:   keyStore,
	}
	if !service.Status().IsReady() {
		return nil, errors.New(service.Status().Message)
	}
	return &service, nil
}

// WithClock replaces the clock used to stamp issuers.
func (s *Service) WithClock(c clock.Clock) {
	s.clock = c
}

// CreateIssuer validates and upserts an issuer. On update the creation time and, when the request carries none,
// the signing key of the existing issuer are kept.
func (s Service) CreateIssuer(ctx context.Context, request CreateIssuerRequest) (*Issuer, error) {
	logrus.Debugf("creating issuer: %s", request.Issuer.Name)

	if err := sdkutil.IsValidStruct(request); err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "invalid create issuer request")
	}
	issuer := request.Issuer
	if err := s.validateTemplates(issuer); err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "invalid issuer<%s>", issuer.Name)
	}

	existing, err := s.storage.GetIssuer(ctx, issuer.Name)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC().Format(time.RFC3339)
	issuer.CreatedAt = now
	issuer.UpdatedAt = now
	if existing != nil {
		issuer.CreatedAt = existing.CreatedAt
	}

	if len(request.SigningKey) == 0 {
		if existing == nil {
			return nil, sdkutil.LoggingNewErrorf("issuer<%s> requires a signing key", issuer.Name)
		}
		if issuer.SigningKeyID == "" {
			issuer.SigningKeyID = existing.SigningKeyID
		}
	} else {
		key, err := keystore.ParsePrivateKey(request.SigningKey)
		if err != nil {
			return nil, sdkutil.LoggingErrorMsgf(err, "invalid signing key for issuer<%s>", issuer.Name)
		}
		if issuer.SigningKeyID == "" {
			issuer.SigningKeyID = key.KeyID()
		}
		if issuer.SigningKeyID == "" {
			issuer.SigningKeyID = issuer.Name
		}
		if err = key.Set(jwk.KeyIDKey, issuer.SigningKeyID); err != nil {
			return nil, sdkutil.LoggingErrorMsg(err, "setting signing key id")
		}
		keyBytes, err := json.Marshal(key)
		if err != nil {
			return nil, sdkutil.LoggingErrorMsg(err, "serializing signing key")
		}
		if err = s.keyStore.StoreKey(ctx, keystore.StoreKeyRequest{
			ID:            signingKeyStoreID(issuer.Name),
			Controller:    issuer.Name,
			PrivateKeyJWK: keyBytes,
		}); err != nil {
			return nil, sdkutil.LoggingErrorMsgf(err, "storing signing key for issuer<%s>", issuer.Name)
		}
	}

	if err = s.storage.StoreIssuer(ctx, issuer); err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not store issuer<%s>", issuer.Name)
	}
	return &issuer, nil
}

func (s Service) validateTemplates(issuer Issuer) error {
	if issuer.IssuerMetadataText != "" {
		if _, err := jq.Compile(issuer.IssuerMetadataText); err != nil {
			return errors.Wrap(err, "issuer_metadata_text")
		}
	}
	if _, err := jq.Compile(issuer.CredentialFormat); err != nil {
		return errors.Wrap(err, "credential_format")
	}
	if _, err := ParseContexts(issuer.ContextsJSON, s.webBaseURL); err != nil {
		return errors.Wrap(err, "contexts_json")
	}
	for iss, jwks := range issuer.AuthIssuerJWKS {
		if _, err := jwk.Parse(jwks); err != nil {
			return errors.Wrapf(err, "auth_issuer_jwks for %s", iss)
		}
	}
	return nil
}

func (s Service) GetIssuer(ctx context.Context, request GetIssuerRequest) (*Issuer, error) {
	logrus.Debugf("getting issuer: %s", request.Name)

	gotIssuer, err := s.storage.GetIssuer(ctx, request.Name)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "getting issuer: %s", request.Name)
	}
	if gotIssuer == nil {
		return nil, errors.Wrapf(ErrIssuerNotFound, "name<%s>", request.Name)
	}
	return gotIssuer, nil
}

func (s Service) ListIssuers(ctx context.Context, request ListIssuersRequest) (*ListIssuersResponse, error) {
	logrus.Debug("listing issuers")

	issuers, err := s.storage.ListIssuers(ctx, request.Filter)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "listing issuers")
	}
	return &ListIssuersResponse{Issuers: issuers}, nil
}

// ListAllIssuers returns every issuer in registry order.
func (s Service) ListAllIssuers(ctx context.Context) ([]Issuer, error) {
	resp, err := s.ListIssuers(ctx, ListIssuersRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Issuers, nil
}

func (s Service) DeleteIssuer(ctx context.Context, request DeleteIssuerRequest) error {
	logrus.Debugf("deleting issuer: %s", request.Name)

	if _, err := s.GetIssuer(ctx, GetIssuerRequest(request)); err != nil {
		return err
	}
	if err := s.storage.DeleteIssuer(ctx, request.Name); err != nil {
		return err
	}
	if err := s.keyStore.DeleteKey(ctx, keystore.DeleteKeyRequest{ID: signingKeyStoreID(request.Name)}); err != nil {
		return sdkutil.LoggingErrorMsgf(err, "deleting signing key for issuer<%s>", request.Name)
	}
	return nil
}

// FindIssuerByScope returns the first issuer, in registry order, whose scope is among scopes.
func (s Service) FindIssuerByScope(ctx context.Context, scopes []string) (*Issuer, error) {
	issuers, err := s.ListAllIssuers(ctx)
	if err != nil {
		return nil, err
	}
	for _, i := range issuers {
		if i.HasScope(scopes) {
			found := i
			return &found, nil
		}
	}
	return nil, errors.Wrapf(ErrIssuerNotFound, "no issuer for scopes %v", scopes)
}

// SigningKey returns the private key the named issuer signs credentials with.
func (s Service) SigningKey(ctx context.Context, name string) (jwk.Key, error) {
	gotKey, err := s.keyStore.GetKey(ctx, keystore.GetKeyRequest{ID: signingKeyStoreID(name)})
	if err != nil {
		return nil, errors.Wrapf(err, "getting signing key for issuer<%s>", name)
	}
	return gotKey.Key, nil
}

// PublicKeys returns the public signing keys of all issuers.
func (s Service) PublicKeys(ctx context.Context) (jwk.Set, error) {
	issuers, err := s.ListAllIssuers(ctx)
	if err != nil {
		return nil, err
	}
	set := jwk.NewSet()
	for _, i := range issuers {
		details, err := s.keyStore.GetKeyDetails(ctx, keystore.GetKeyDetailsRequest{ID: signingKeyStoreID(i.Name)})
		if err != nil {
			logrus.WithError(err).Warnf("skipping public key of issuer<%s>", i.Name)
			continue
		}
		if err = set.AddKey(details.PublicKeyJWK); err != nil {
			return nil, errors.Wrapf(err, "adding public key of issuer<%s>", i.Name)
		}
	}
	return set, nil
}

// SeedIssuers upserts every issuer in the JSON file at path. The file holds a list of issuers, each optionally
// carrying its signing_key.
func (s Service) SeedIssuers(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "reading issuers file: %s", path)
	}
	var seeds []SeedIssuer
	if err = json.Unmarshal(data, &seeds); err != nil {
		return 0, errors.Wrapf(err, "parsing issuers file: %s", path)
	}
	for _, seed := range seeds {
		if _, err = s.CreateIssuer(ctx, CreateIssuerRequest{Issuer: seed.Issuer, SigningKey: seed.SigningKey}); err != nil {
			return 0, errors.Wrapf(err, "seeding issuer<%s>", seed.Name)
		}
	}
	logrus.Infof("seeded %d issuers from %s", len(seeds), path)
	return len(seeds), nil
}

func signingKeyStoreID(name string) string {
	return "issuer-signing-key-" + name
}
