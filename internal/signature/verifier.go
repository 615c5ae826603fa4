package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	versionPrefix = "v0"

	// DefaultSkewTolerance rejects requests whose timestamp is further than
	// this from the current time, limiting the replay window.
	DefaultSkewTolerance = 5 * time.Minute
)

// ErrBadSignature is returned for any request that fails verification:
// missing headers, stale timestamp, or signature mismatch.
var ErrBadSignature = errors.New("signature: verification failed")

// SecretGetter resolves the shared signing secret.
// *paramstore.Client satisfies this via a small adapter in the caller;
// tests provide a literal.
type SecretGetter func() (string, error)

// Verifier checks that inbound requests genuinely originate from Slack.
// It must run against the exact raw body, before any parsing.
type Verifier struct {
	getSecret SecretGetter
	tolerance time.Duration
	now       func() time.Time

	secretOnce sync.Once
	secret     string
	secretErr  error
}

type Option func(*Verifier)

// WithTolerance overrides the replay skew tolerance.
func WithTolerance(d time.Duration) Option {
	return func(v *Verifier) {
		v.tolerance = d
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// New creates a Verifier. The signing secret is resolved on the first
// Verify call and cached for the process lifetime.
func New(getSecret SecretGetter, opts ...Option) (*Verifier, error) {
	if getSecret == nil {
		return nil, errors.New("signature: secret getter must not be nil")
	}
	v := &Verifier{
		getSecret: getSecret,
		tolerance: DefaultSkewTolerance,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// StaticSecret wraps a literal secret as a SecretGetter.
func StaticSecret(secret string) SecretGetter {
	return func() (string, error) { return secret, nil }
}

// Verify checks the timestamp and signature headers against the raw body.
// Returns ErrBadSignature on any rejection; nil means the request is
// authentic. Secret-resolution failures are returned as-is so callers can
// distinguish config trouble from a forged request.
func (v *Verifier) Verify(rawBody, timestampHeader, signatureHeader string) error {
	timestampHeader = strings.TrimSpace(timestampHeader)
	signatureHeader = strings.TrimSpace(signatureHeader)
	if timestampHeader == "" || signatureHeader == "" {
		return ErrBadSignature
	}

	ts, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	skew := v.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return ErrBadSignature
	}

	secret, err := v.resolveSecret()
	if err != nil {
		return fmt.Errorf("signature: resolve secret: %w", err)
	}

	expected := Compute(secret, timestampHeader, rawBody)
	if !hmac.Equal([]byte(expected), []byte(signatureHeader)) {
		return ErrBadSignature
	}
	return nil
}

// Compute returns the v0 signature for the given timestamp and raw body:
// "v0=" + hex(HMAC-SHA256(secret, "v0:{timestamp}:{raw_body}")).
func Compute(secret, timestamp, rawBody string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%s:%s", versionPrefix, timestamp, rawBody)
	return versionPrefix + "=" + hex.EncodeToString(mac.Sum(nil))
}

func (v *Verifier) resolveSecret() (string, error) {
	v.secretOnce.Do(func() {
		v.secret, v.secretErr = v.getSecret()
	})
	return v.secret, v.secretErr
}
