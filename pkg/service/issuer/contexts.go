package issuer

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const contextKey = "@context"

// ParseContexts substitutes the base URL into a context template and returns its @context mapping. A blank template
// yields a nil mapping and no error.
func ParseContexts(template, webBaseURL string) (map[string]any, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		return nil, nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(SubstituteBaseURL(template, webBaseURL)), &doc); err != nil {
		return nil, errors.Wrap(err, "parsing contexts json")
	}
	raw, ok := doc[contextKey]
	if !ok {
		return nil, errors.New("contexts json has no @context")
	}
	contexts, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.Errorf("@context must be an object, got %T", raw)
	}
	return contexts, nil
}
