package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/openg2p/vci-service/config"
	"github.com/openg2p/vci-service/internal/keyaccess"
	"github.com/openg2p/vci-service/pkg/service/framework"
	"github.com/openg2p/vci-service/pkg/service/issuer"
	"github.com/openg2p/vci-service/pkg/service/keystore"
	"github.com/openg2p/vci-service/pkg/service/metadata"
	"github.com/openg2p/vci-service/pkg/service/oidc"
	"github.com/openg2p/vci-service/pkg/storage"
)

const (
	contextsPath = "/.well-known/contexts.json"

	storageConnectMaxRetries = 5
	seedTimeout              = 30 * time.Second
)

// VCIService represents all services and their dependencies independent of transport
type VCIService struct {
	KeyStore *keystore.Service
	Issuer   *issuer.Service
	Metadata *metadata.Service
	OIDC     *oidc.Service

	storage storage.ServiceStorage
}

// InstantiateVCIService creates a new instance of the VCI service which instantiates all services and their
// dependencies independent of transport.
func InstantiateVCIService(cfg config.VCIServiceConfig, opts ...oidc.Option) (*VCIService, error) {
	if err := validateServiceConfig(cfg.Services); err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not instantiate VCI Service, invalid config")
	}
	service, err := instantiateServices(cfg, opts...)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not instantiate the vci service")
	}
	return service, nil
}

func validateServiceConfig(config config.ServicesConfig) error {
	if !storage.IsStorageAvailable(storage.Type(config.StorageProvider)) {
		return fmt.Errorf("%s storage provider configured, but not available", config.StorageProvider)
	}
	if config.WebBaseURL == "" {
		return fmt.Errorf("no web base url configured")
	}
	if config.KeyStoreConfig.IsEmpty() {
		return fmt.Errorf("%s no config provided", framework.KeyStore)
	}
	return nil
}

// instantiateServices begins all instantiates and their dependencies
func instantiateServices(cfg config.VCIServiceConfig, opts ...oidc.Option) (*VCIService, error) {
	services := cfg.Services
	storageProvider, err := connectStorage(services)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not instantiate storage provider: %s", services.StorageProvider)
	}

	keyStoreService, err := keystore.NewKeyStoreService(services.KeyStoreConfig, storageProvider)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not instantiate KeyStore service")
	}

	issuerService, err := issuer.NewIssuerService(services.IssuerConfig, services.WebBaseURL, storageProvider, keyStoreService)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not instantiate the issuer service")
	}
	if issuersFile := services.IssuerConfig.IssuersFile; issuersFile != "" {
		ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
		_, err = issuerService.SeedIssuers(ctx, issuersFile)
		cancel()
		if err != nil {
			return nil, sdkutil.LoggingErrorMsg(err, "could not seed issuers")
		}
	}

	config.SetAPIBase(services.WebBaseURL)
	metadataService, err := metadata.NewMetadataService(issuerService, cfg.CredentialEndpoint())
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not instantiate the metadata service")
	}

	local := LocalContexts(services.WebBaseURL, metadataService)
	oidcService, err := oidc.NewOIDCService(services.OIDCConfig, issuerService, keyStoreService,
		append([]oidc.Option{oidc.WithLocalDocuments(local)}, opts...)...)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not instantiate the oidc service")
	}

	return &VCIService{
		KeyStore: keyStoreService,
		Issuer:   issuerService,
		Metadata: metadataService,
		OIDC:     oidcService,
		storage:  storageProvider,
	}, nil
}

// connectStorage opens the configured storage, retrying while the backend comes up.
func connectStorage(services config.ServicesConfig) (storage.ServiceStorage, error) {
	var storageProvider storage.ServiceStorage
	connect := func() error {
		s, err := storage.NewStorage(storage.Type(services.StorageProvider), services.StorageOptions...)
		if err != nil {
			logrus.WithError(err).Warnf("connecting to %s storage", services.StorageProvider)
			return err
		}
		storageProvider = s
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), storageConnectMaxRetries)
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, err
	}
	return storageProvider, nil
}

// LocalContexts resolves the context documents this service publishes under webBaseURL, on any surface, from the
// issuer registry.
func LocalContexts(webBaseURL string, metadataService *metadata.Service) keyaccess.LocalDocumentFunc {
	base := strings.TrimRight(webBaseURL, "/")
	return func(url string) (any, bool, error) {
		if !strings.HasPrefix(url, base+"/") || !strings.HasSuffix(url, contextsPath) {
			return nil, false, nil
		}
		doc, err := metadataService.GetContexts(context.Background())
		if err != nil {
			return nil, false, err
		}
		return map[string]any{"@context": doc.Context}, true, nil
	}
}

// GetServices returns all services
func (s *VCIService) GetServices() []framework.Service {
	return []framework.Service{
		s.KeyStore,
		s.Issuer,
		s.Metadata,
		s.OIDC,
	}
}

// Close releases the storage shared by the services.
func (s *VCIService) Close() error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Close()
}
