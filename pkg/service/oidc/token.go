package oidc

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/openg2p/vci-service/pkg/service/issuer"
)

const (
	scopeClaim     = "scope"
	maxJWKSBodyLen = 1 << 20
	tokenClockSkew = 30 * time.Second
)

// TokenVerifier validates access tokens against the key sets of the token issuers an issuer trusts.
type TokenVerifier struct {
	client *retryablehttp.Client
	cache  *cache.Cache
	clock  clock.Clock
}

func NewTokenVerifier(client *retryablehttp.Client, cacheTTL time.Duration, c clock.Clock) *TokenVerifier {
	return &TokenVerifier{
		client: client,
		cache:  cache.New(cacheTTL, 2*cacheTTL),
		clock:  c,
	}
}

// ParseUnverified decodes an access token without checking its signature.
func ParseUnverified(token string) (jwt.Token, error) {
	parsed, err := jwt.ParseString(token, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidToken, "parsing access token: %s", err)
	}
	return parsed, nil
}

// Scopes returns the space separated scope claim of the token.
func Scopes(token jwt.Token) []string {
	scope, ok := token.Get(scopeClaim)
	if !ok {
		return nil
	}
	s, ok := scope.(string)
	if !ok {
		return nil
	}
	return strings.Fields(s)
}

// Verify checks the signature, the registered time claims and the audience of token against the settings of the
// issuer. The token issuer must be allowed by the issuer.
func (v *TokenVerifier) Verify(ctx context.Context, token string, i issuer.Issuer) (jwt.Token, error) {
	unverified, err := ParseUnverified(token)
	if err != nil {
		return nil, err
	}
	tokenIssuer := unverified.Issuer()
	if !lo.Contains(i.AuthAllowedIssuers, tokenIssuer) {
		return nil, errors.Wrapf(ErrInvalidToken, "token issuer<%s> is not allowed", tokenIssuer)
	}

	set, err := v.keySet(ctx, i, tokenIssuer)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidToken, "getting key set of token issuer<%s>: %s", tokenIssuer, err)
	}

	verified, err := jwt.ParseString(token,
		jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true), jws.WithRequireKid(false)),
		jwt.WithValidate(true),
		jwt.WithClock(v.clock),
		jwt.WithAcceptableSkew(tokenClockSkew),
	)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidToken, "verifying access token: %s", err)
	}

	if len(i.AuthAllowedAudiences) > 0 && !lo.Some(verified.Audience(), i.AuthAllowedAudiences) {
		return nil, errors.Wrapf(ErrInvalidToken, "token audience %v is not allowed", verified.Audience())
	}
	return verified, nil
}

// keySet returns the inline key set configured for the token issuer, or fetches the mapped JWKS URL.
func (v *TokenVerifier) keySet(ctx context.Context, i issuer.Issuer, tokenIssuer string) (jwk.Set, error) {
	if inline, ok := i.AuthIssuerJWKS[tokenIssuer]; ok {
		set, err := jwk.Parse(inline)
		if err != nil {
			return nil, errors.Wrap(err, "parsing inline jwks")
		}
		return set, nil
	}
	url, ok := i.AuthIssuerJWKSMapping[tokenIssuer]
	if !ok || url == "" {
		return nil, errors.New("no jwks configured")
	}
	return v.fetchJWKS(ctx, url)
}

func (v *TokenVerifier) fetchJWKS(ctx context.Context, url string) (jwk.Set, error) {
	if cached, ok := v.cache.Get(url); ok {
		return cached.(jwk.Set), nil
	}

	logrus.Debugf("fetching jwks: %s", url)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building jwks request")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching jwks: %s", url)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logrus.WithError(closeErr).Warn("closing jwks response body")
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching jwks: %s: unexpected status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBodyLen))
	if err != nil {
		return nil, errors.Wrap(err, "reading jwks response")
	}
	set, err := jwk.Parse(body)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing jwks: %s", url)
	}
	v.cache.SetDefault(url, set)
	return set, nil
}
