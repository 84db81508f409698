package keyaccess

import (
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/piprate/json-gold/ld"
	"github.com/pkg/errors"
)

// LocalDocumentFunc resolves documents the service serves itself. It returns false for URLs it does not know.
type LocalDocumentFunc func(url string) (any, bool, error)

// DocumentLoader resolves JSON-LD contexts. Documents the service serves itself are resolved locally, every other
// document is fetched over HTTP and kept for ttl.
type DocumentLoader struct {
	local  LocalDocumentFunc
	remote ld.DocumentLoader
	cache  *cache.Cache
}

func NewDocumentLoader(client *http.Client, ttl time.Duration, local LocalDocumentFunc) *DocumentLoader {
	return &DocumentLoader{
		local:  local,
		remote: ld.NewDefaultDocumentLoader(client),
		cache:  cache.New(ttl, 2*ttl),
	}
}

// AddDocument pins a document for the given URL.
func (l *DocumentLoader) AddDocument(url string, document any) {
	l.cache.Set(url, &ld.RemoteDocument{DocumentURL: url, Document: document}, cache.NoExpiration)
}

func (l *DocumentLoader) LoadDocument(url string) (*ld.RemoteDocument, error) {
	if l.local != nil {
		document, ok, err := l.local(url)
		if err != nil {
			return nil, errors.Wrapf(err, "loading local document: %s", url)
		}
		if ok {
			return &ld.RemoteDocument{DocumentURL: url, Document: document}, nil
		}
	}
	if cached, ok := l.cache.Get(url); ok {
		return cached.(*ld.RemoteDocument), nil
	}
	remote, err := l.remote.LoadDocument(url)
	if err != nil {
		return nil, err
	}
	l.cache.SetDefault(url, remote)
	return remote, nil
}

var _ ld.DocumentLoader = (*DocumentLoader)(nil)
