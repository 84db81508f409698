package issuer

import (
	"context"
	"sort"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.einride.tech/aip/filtering"

	"github.com/openg2p/vci-service/pkg/storage"
)

const (
	namespace = "issuer"
)

type Storage struct {
	db storage.ServiceStorage
}

func NewIssuerStorage(db storage.ServiceStorage) (*Storage, error) {
	if db == nil {
		return nil, errors.New("db reference is nil")
	}
	return &Storage{db: db}, nil
}

func (is *Storage) StoreIssuer(ctx context.Context, issuer Issuer) error {
	name := issuer.Name
	if name == "" {
		return sdkutil.LoggingNewError("could not store issuer without a name")
	}
	issuerBytes, err := json.Marshal(issuer)
	if err != nil {
		return sdkutil.LoggingErrorMsgf(err, "could not store issuer: %s", name)
	}
	return is.db.Write(ctx, namespace, name, issuerBytes)
}

// GetIssuer returns nil when no issuer with the given name exists.
func (is *Storage) GetIssuer(ctx context.Context, name string) (*Issuer, error) {
	issuerBytes, err := is.db.Read(ctx, namespace, name)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not get issuer: %s", name)
	}
	if len(issuerBytes) == 0 {
		return nil, nil
	}
	var stored Issuer
	if err = json.Unmarshal(issuerBytes, &stored); err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not unmarshal stored issuer: %s", name)
	}
	return &stored, nil
}

// ListIssuers returns the issuers matching filter in registry order: by creation time, then by name. Records that
// cannot be decoded are logged and skipped.
func (is *Storage) ListIssuers(ctx context.Context, filter filtering.Filter) ([]Issuer, error) {
	allData, err := is.db.ReadAll(ctx, namespace)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not list issuers")
	}

	shouldInclude, err := storage.NewIncludeFunc(filter)
	if err != nil {
		return nil, err
	}
	issuers := make([]Issuer, 0, len(allData))
	for key, data := range allData {
		var stored Issuer
		if err = json.Unmarshal(data, &stored); err != nil {
			logrus.WithError(err).WithField("key", key).Error("unmarshalling issuer")
			continue
		}
		include, err := shouldInclude(stored)
		if err != nil {
			return nil, errors.Wrapf(err, "filtering issuer<%s>", key)
		}
		if include {
			issuers = append(issuers, stored)
		}
	}
	SortIssuers(issuers)
	return issuers, nil
}

func (is *Storage) DeleteIssuer(ctx context.Context, name string) error {
	if err := is.db.Delete(ctx, namespace, name); err != nil {
		return sdkutil.LoggingErrorMsgf(err, "could not delete issuer: %s", name)
	}
	return nil
}

// SortIssuers orders issuers by creation time, then by name.
func SortIssuers(issuers []Issuer) {
	sort.SliceStable(issuers, func(i, j int) bool {
		if issuers[i].CreatedAt != issuers[j].CreatedAt {
			return issuers[i].CreatedAt < issuers[j].CreatedAt
		}
		return issuers[i].Name < issuers[j].Name
	})
}
