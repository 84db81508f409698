package metadata

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openg2p/vci-service/internal/jq"
	"github.com/openg2p/vci-service/pkg/service/issuer"
)

// MergeMetadata evaluates every issuer's metadata program and merges the fragments. List fragments are
// concatenated in issuer order and mapping fragments are merged with later keys overriding earlier ones. The first
// non-empty fragment decides between list and mapping. Fragments of the other kind are skipped.
func MergeMetadata(ctx context.Context, issuers []issuer.Issuer, webBaseURL string) (*Supported, error) {
	merged := new(Supported)
	for _, i := range issuers {
		if strings.TrimSpace(i.IssuerMetadataText) == "" {
			continue
		}
		input, err := i.TemplateInput(webBaseURL)
		if err != nil {
			return nil, errors.Wrapf(err, "building metadata input for issuer<%s>", i.Name)
		}
		fragment, err := jq.First(ctx, i.IssuerMetadataText, input)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating metadata of issuer<%s>", i.Name)
		}

		switch f := fragment.(type) {
		case nil:
		case []any:
			if len(f) == 0 {
				continue
			}
			if merged.Mapping != nil {
				logrus.Warnf("issuer<%s> metadata is a list but earlier issuers produced a mapping, skipping", i.Name)
				continue
			}
			merged.List = append(merged.List, f...)
		case map[string]any:
			if len(f) == 0 {
				continue
			}
			if merged.List != nil {
				logrus.Warnf("issuer<%s> metadata is a mapping but earlier issuers produced a list, skipping", i.Name)
				continue
			}
			if merged.Mapping == nil {
				merged.Mapping = make(map[string]any, len(f))
			}
			for k, v := range f {
				merged.Mapping[k] = v
			}
		default:
			logrus.Warnf("issuer<%s> metadata is neither a list nor a mapping (%T), skipping", i.Name, fragment)
		}
	}
	return merged, nil
}

// MergeContexts merges the @context mappings of all issuers. Later issuers overwrite keys of earlier ones.
func MergeContexts(issuers []issuer.Issuer, webBaseURL string) (map[string]any, error) {
	merged := make(map[string]any)
	for _, i := range issuers {
		contexts, err := issuer.ParseContexts(i.ContextsJSON, webBaseURL)
		if err != nil {
			return nil, errors.Wrapf(err, "contexts of issuer<%s>", i.Name)
		}
		for k, v := range contexts {
			merged[k] = v
		}
	}
	return merged, nil
}
