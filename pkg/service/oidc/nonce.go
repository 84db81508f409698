package oidc

import (
	"encoding/base32"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
)

const nonceDigits = 16

// NonceSource issues c_nonce values as time based one time passwords (RFC 6238), so validating a nonce
// needs no state beyond the secret.
type NonceSource struct {
	secret    string
	expiresIn time.Duration
	clock     clock.Clock
}

func NewNonceSource(secret []byte, expiresIn time.Duration, c clock.Clock) (*NonceSource, error) {
	if len(secret) == 0 {
		return nil, errors.New("nonce secret cannot be empty")
	}
	if expiresIn < time.Second {
		return nil, errors.Errorf("nonce lifetime must be at least one second, got %s", expiresIn)
	}
	return &NonceSource{
		secret:    base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret),
		expiresIn: expiresIn,
		clock:     c,
	}, nil
}

// Current returns the nonce of the current period.
func (n NonceSource) Current() (string, error) {
	code, err := totp.GenerateCodeCustom(n.secret, n.clock.Now(), n.opts())
	if err != nil {
		return "", errors.Wrap(err, "generating nonce")
	}
	return code, nil
}

// Valid reports whether nonce belongs to the current period or one adjacent to it.
func (n NonceSource) Valid(nonce string) bool {
	valid, err := totp.ValidateCustom(nonce, n.secret, n.clock.Now(), n.opts())
	if err != nil {
		logrus.WithError(err).Debug("validating nonce")
		return false
	}
	return valid
}

// ExpiresIn is the nonce lifetime in seconds.
func (n NonceSource) ExpiresIn() int {
	return int(n.expiresIn / time.Second)
}

func (n NonceSource) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(n.expiresIn / time.Second),
		Skew:      1,
		Digits:    nonceDigits,
		Algorithm: otp.AlgorithmSHA512,
	}
}
