package keystore

import (
	"context"
	"time"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openg2p/vci-service/config"
	"github.com/openg2p/vci-service/pkg/service/framework"
	"github.com/openg2p/vci-service/pkg/storage"
)

type Service struct {
	storage    *Storage
	config     config.KeyStoreServiceConfig
	serviceKey []byte
}

func (s Service) Type() framework.Type {
	return framework.KeyStore
}

func (s Service) Status() framework.Status {
	ae := sdkutil.NewAppendError()
	if s.storage == nil {
		ae.AppendString("no storage configured")
	}
	if len(s.serviceKey) == 0 {
		ae.AppendString("no service key configured")
	}
	if !ae.IsEmpty() {
		return framework.NotReady(framework.KeyStore, ae.Error().Error())
	}
	return framework.Ready()
}

func (s Service) Config() config.KeyStoreServiceConfig {
	return s.config
}

func NewKeyStoreService(config config.KeyStoreServiceConfig, s storage.ServiceStorage) (*Service, error) {
	serviceKey, err := ResolveServiceKey(context.Background(), s, config)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not resolve service key")
	}

	keyStoreStorage, err := NewKeyStoreStorage(s, serviceKey)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "instantiating storage for the keystore service")
	}

	service := Service{
		storage:    keyStoreStorage,
		config:     config,
		serviceKey: serviceKey,
	}
	if !service.Status().IsReady() {
		return nil, errors.New(service.Status().Message)
	}
	return &service, nil
}

// StoreKey validates that the request carries a private JWK and stores it encrypted.
func (s Service) StoreKey(ctx context.Context, request StoreKeyRequest) error {
	logrus.Debugf("storing key: %s", request.ID)

	if request.ID == "" {
		return sdkutil.LoggingNewError("could not store key without an ID")
	}
	key, err := ParsePrivateKey(request.PrivateKeyJWK)
	if err != nil {
		return sdkutil.LoggingErrorMsgf(err, "invalid key: %s", request.ID)
	}
	if key.KeyID() == "" {
		if err = key.Set(jwk.KeyIDKey, request.ID); err != nil {
			return sdkutil.LoggingErrorMsg(err, "setting key id")
		}
	}
	keyBytes, err := json.Marshal(key)
	if err != nil {
		return sdkutil.LoggingErrorMsgf(err, "serializing key: %s", request.ID)
	}

	stored := StoredKey{
		ID:         request.ID,
		Controller: request.Controller,
		KeyJWK:     keyBytes,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err = s.storage.StoreKey(ctx, stored); err != nil {
		return sdkutil.LoggingErrorMsgf(err, "storing key: %s", request.ID)
	}
	return nil
}

func (s Service) GetKey(ctx context.Context, request GetKeyRequest) (*GetKeyResponse, error) {
	logrus.Debugf("getting key: %s", request.ID)

	id := request.ID
	gotKey, err := s.storage.GetKey(ctx, id)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "getting key with id: %s", id)
	}
	if gotKey == nil {
		return nil, sdkutil.LoggingNewErrorf("key with id<%s> could not be found", id)
	}

	key, err := jwk.ParseKey(gotKey.KeyJWK)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not reconstruct private key from storage")
	}
	return &GetKeyResponse{
		ID:         gotKey.ID,
		Controller: gotKey.Controller,
		Key:        key,
		CreatedAt:  gotKey.CreatedAt,
	}, nil
}

func (s Service) GetKeyDetails(ctx context.Context, request GetKeyDetailsRequest) (*GetKeyDetailsResponse, error) {
	gotKey, err := s.GetKey(ctx, GetKeyRequest(request))
	if err != nil {
		return nil, err
	}
	publicKey, err := gotKey.Key.PublicKey()
	if err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "getting public key for key: %s", request.ID)
	}
	return &GetKeyDetailsResponse{
		ID:           gotKey.ID,
		Controller:   gotKey.Controller,
		CreatedAt:    gotKey.CreatedAt,
		PublicKeyJWK: publicKey,
	}, nil
}

func (s Service) DeleteKey(ctx context.Context, request DeleteKeyRequest) error {
	logrus.Debugf("deleting key: %s", request.ID)

	if err := s.storage.DeleteKey(ctx, request.ID); err != nil {
		return sdkutil.LoggingErrorMsgf(err, "could not delete key: %s", request.ID)
	}
	return nil
}

// NonceSecret is the secret c_nonce values are generated from. It is stable for a given service key.
func (s Service) NonceSecret() ([]byte, error) {
	return deriveSecret(s.serviceKey, "c_nonce", 32)
}

// ParsePrivateKey parses a JWK and requires it to hold private key material.
func ParsePrivateKey(keyJSON []byte) (jwk.Key, error) {
	if len(keyJSON) == 0 {
		return nil, errors.New("key is empty")
	}
	key, err := jwk.ParseKey(keyJSON)
	if err != nil {
		return nil, errors.Wrap(err, "parsing jwk")
	}
	switch key.(type) {
	case jwk.RSAPrivateKey, jwk.ECDSAPrivateKey, jwk.OKPPrivateKey:
		return key, nil
	default:
		return nil, errors.Errorf("key of type %s is not an asymmetric private key", key.KeyType())
	}
}
