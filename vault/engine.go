package vault

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const (
	DefaultPeriod     = 30 * time.Second
	DefaultDigits     = otp.DigitsSix
	DefaultAlgorithm  = otp.AlgorithmSHA1
	DefaultSkew       = 1
	DefaultSecretSize = 20
)

var b32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Secret is a Base32 encoded TOTP shared secret
type Secret string

func (s Secret) String() string {
	return string(s)
}

// normalize strips whitespace and padding and upper-cases the secret, the
// way authenticator apps accept hand-typed keys
func (s Secret) normalize() string {
	clean := strings.ToUpper(strings.Join(strings.Fields(string(s)), ""))
	return strings.TrimRight(clean, "=")
}

// Validate returns ErrInvalidSecret if the secret is empty or not Base32
func (s Secret) Validate() error {
	clean := s.normalize()
	if clean == "" {
		return fmt.Errorf("%w: secret is empty", ErrInvalidSecret)
	}
	// decoded the way hotp does it, padded out to whole 8 character blocks
	if n := len(clean) % 8; n != 0 {
		clean += strings.Repeat("=", 8-n)
	}
	key, err := base32.StdEncoding.DecodeString(clean)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	if len(key) == 0 {
		return fmt.Errorf("%w: secret decodes to no key bytes", ErrInvalidSecret)
	}
	return nil
}

type EngineOptions struct {
	Period     time.Duration
	Digits     otp.Digits
	Algorithm  otp.Algorithm
	Skew       uint
	SecretSize uint
	Rand       io.Reader
}

// Engine generates TOTP secrets and computes and verifies codes as described
// in RFC 6238. It holds no state besides its options.
type Engine struct {
	opts EngineOptions
}

// NewEngine returns an Engine, filling unset options with the common
// authenticator defaults: SHA1, 6 digits, 30 second steps, one step of drift.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Period < time.Second {
		opts.Period = DefaultPeriod
	}
	if opts.Digits != otp.DigitsSix && opts.Digits != otp.DigitsEight {
		opts.Digits = DefaultDigits
	}
	if opts.SecretSize == 0 {
		opts.SecretSize = DefaultSecretSize
	}
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}
	return &Engine{opts: opts}
}

func (e *Engine) Options() EngineOptions {
	return e.opts
}

// GenerateSecret returns a new random secret. Nothing is persisted.
func (e *Engine) GenerateSecret() (Secret, error) {
	b := make([]byte, e.opts.SecretSize)
	if _, err := io.ReadFull(e.opts.Rand, b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropySource, err)
	}
	return Secret(b32NoPadding.EncodeToString(b)), nil
}

// EnrollmentURI formats the otpauth:// key URI understood by authenticator apps
func (e *Engine) EnrollmentURI(secret Secret, account, issuer string) (string, error) {
	if err := secret.Validate(); err != nil {
		return "", err
	}

	u := url.URL{
		Scheme: "otpauth",
		Host:   "totp",
		Path:   "/" + issuer + ":" + account,
	}

	q := []string{
		"secret=" + queryEscape(secret.normalize()),
		"issuer=" + queryEscape(issuer),
		"algorithm=" + e.opts.Algorithm.String(),
		fmt.Sprintf("digits=%d", e.opts.Digits.Length()),
		fmt.Sprintf("period=%d", uint(e.opts.Period/time.Second)),
	}
	u.RawQuery = strings.Join(q, "&")

	return u.String(), nil
}

// authenticators decode '+' literally, so spaces are sent as %20
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Step returns the time step containing t. Times before the Unix epoch are
// treated as the epoch.
func (e *Engine) Step(t time.Time) uint64 {
	return uint64(unix(t)) / uint64(e.opts.Period/time.Second)
}

// Remaining returns how long the code for t stays current
func (e *Engine) Remaining(t time.Time) time.Duration {
	period := int64(e.opts.Period / time.Second)
	return time.Duration(period-unix(t)%period) * time.Second
}

func unix(t time.Time) int64 {
	if sec := t.Unix(); sec > 0 {
		return sec
	}
	return 0
}

// Code computes the code for the given time step
func (e *Engine) Code(secret Secret, step uint64) (string, error) {
	if err := secret.Validate(); err != nil {
		return "", err
	}
	code, err := hotp.GenerateCodeCustom(secret.normalize(), step, hotp.ValidateOpts{
		Digits:    e.opts.Digits,
		Algorithm: e.opts.Algorithm,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return code, nil
}

// Verify checks token against the codes for the step containing at and the
// Skew steps either side of it. Syntactically invalid tokens are rejected with
// ErrMalformedToken before any code is computed.
func (e *Engine) Verify(secret Secret, token string, at time.Time) (bool, error) {
	if err := e.checkToken(token); err != nil {
		return false, err
	}

	step := e.Step(at)
	for w := uint64(0); w <= uint64(e.opts.Skew); w++ {
		candidates := []uint64{step - w, step + w}
		if w == 0 {
			candidates = candidates[:1]
		} else if w > step {
			candidates = candidates[1:]
		}

		for _, s := range candidates {
			code, err := e.Code(secret, s)
			if err != nil {
				return false, err
			}
			if subtle.ConstantTimeCompare([]byte(code), []byte(token)) == 1 {
				return true, nil
			}
		}
	}

	return false, nil
}

func (e *Engine) checkToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: token is empty", ErrMalformedToken)
	}
	if len(token) != e.opts.Digits.Length() {
		return fmt.Errorf("%w: token must be exactly %d digits", ErrMalformedToken, e.opts.Digits.Length())
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: token must be numeric", ErrMalformedToken)
		}
	}
	return nil
}
