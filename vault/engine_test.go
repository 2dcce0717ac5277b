package vault_test

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/99designs/totp-vault/vault"
	"github.com/pquerna/otp"
)

// base32 of the ASCII secret "12345678901234567890" used by RFC 4226 and RFC 6238
const rfcSecret = vault.Secret("GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ")

func newEngine() *vault.Engine {
	return vault.NewEngine(vault.EngineOptions{Skew: 1})
}

func TestCodeMatchesRFC4226Vectors(t *testing.T) {
	e := newEngine()
	want := []string{
		"755224", "287082", "359152", "969429", "338314",
		"254676", "287922", "162583", "399871", "520489",
	}

	for step, expected := range want {
		code, err := e.Code(rfcSecret, uint64(step))
		if err != nil {
			t.Fatal(err)
		}
		if code != expected {
			t.Errorf("step %d: expected %s, got %s", step, expected, code)
		}
	}
}

func TestCodeMatchesRFC6238Vectors(t *testing.T) {
	e := vault.NewEngine(vault.EngineOptions{Digits: otp.DigitsEight})

	var testCases = []struct {
		unix     int64
		expected string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
		{20000000000, "65353130"},
	}

	for _, tc := range testCases {
		code, err := e.Code(rfcSecret, e.Step(time.Unix(tc.unix, 0)))
		if err != nil {
			t.Fatal(err)
		}
		if code != tc.expected {
			t.Errorf("T=%d: expected %s, got %s", tc.unix, tc.expected, code)
		}
	}
}

func TestStepAndRemaining(t *testing.T) {
	e := newEngine()

	if s := e.Step(time.Unix(0, 0)); s != 0 {
		t.Fatalf("Expected step 0, got %d", s)
	}
	if s := e.Step(time.Unix(29, 0)); s != 0 {
		t.Fatalf("Expected step 0, got %d", s)
	}
	if s := e.Step(time.Unix(30, 0)); s != 1 {
		t.Fatalf("Expected step 1, got %d", s)
	}
	if r := e.Remaining(time.Unix(40, 0)); r != 20*time.Second {
		t.Fatalf("Expected 20s remaining, got %v", r)
	}
}

func TestVerifyCurrentStep(t *testing.T) {
	e := newEngine()
	secret, err := e.GenerateSecret()
	if err != nil {
		t.Fatal(err)
	}

	for _, at := range []time.Time{time.Unix(0, 0), time.Unix(59, 0), time.Now()} {
		code, err := e.Code(secret, e.Step(at))
		if err != nil {
			t.Fatal(err)
		}
		ok, err := e.Verify(secret, code, at)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Errorf("Code %s for %v didn't verify", code, at)
		}
	}
}

func TestVerifyDriftWindow(t *testing.T) {
	e := newEngine()
	at := time.Unix(1700000000, 0)
	step := e.Step(at)

	var testCases = []struct {
		step     uint64
		expected bool
	}{
		{step - 2, false},
		{step - 1, true},
		{step, true},
		{step + 1, true},
		{step + 2, false},
	}

	for _, tc := range testCases {
		code, err := e.Code(rfcSecret, tc.step)
		if err != nil {
			t.Fatal(err)
		}
		ok, err := e.Verify(rfcSecret, code, at)
		if err != nil {
			t.Fatal(err)
		}
		if ok != tc.expected {
			t.Errorf("step offset %d: expected %v, got %v", int64(tc.step)-int64(step), tc.expected, ok)
		}
	}
}

func TestVerifyWithoutSkew(t *testing.T) {
	e := vault.NewEngine(vault.EngineOptions{})
	at := time.Unix(1700000000, 0)

	code, err := e.Code(rfcSecret, e.Step(at)+1)
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := e.Verify(rfcSecret, code, at); ok {
		t.Fatal("Expected a code for the next step to be rejected without skew")
	}
}

func TestVerifyAtEpoch(t *testing.T) {
	e := vault.NewEngine(vault.EngineOptions{Skew: 2})

	code, err := e.Code(rfcSecret, 2)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := e.Verify(rfcSecret, code, time.Unix(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("Expected the code two steps ahead to verify at step 0")
	}
}

func TestVerifyRejectsMalformedTokens(t *testing.T) {
	e := newEngine()

	for _, token := range []string{"", "12345", "1234567", "12a456", "12 456", "١٢٣٤٥٦", "-12345"} {
		ok, err := e.Verify(rfcSecret, token, time.Now())
		if !errors.Is(err, vault.ErrMalformedToken) {
			t.Errorf("Verify(%q): expected ErrMalformedToken, got %v", token, err)
		}
		if ok {
			t.Errorf("Verify(%q) returned true", token)
		}
	}
}

func TestVerifyMalformedTokenBeforeSecret(t *testing.T) {
	e := newEngine()

	_, err := e.Verify("", "abc", time.Now())
	if !errors.Is(err, vault.ErrMalformedToken) {
		t.Fatalf("Expected ErrMalformedToken, got %v", err)
	}

	_, err = e.Verify("", "123456", time.Now())
	if !errors.Is(err, vault.ErrInvalidSecret) {
		t.Fatalf("Expected ErrInvalidSecret, got %v", err)
	}
}

func TestGenerateSecret(t *testing.T) {
	e := newEngine()

	a, err := e.GenerateSecret()
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.GenerateSecret()
	if err != nil {
		t.Fatal(err)
	}

	if a == b {
		t.Fatal("Expected two generated secrets to differ")
	}
	if len(a) != 32 {
		t.Fatalf("Expected a 32 character secret for 20 bytes, got %d", len(a))
	}
	if strings.Contains(a.String(), "=") {
		t.Fatalf("Expected no padding, got %s", a)
	}
	if err = a.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestGenerateSecretEntropyFailure(t *testing.T) {
	e := vault.NewEngine(vault.EngineOptions{Rand: iotest.ErrReader(errors.New("no entropy"))})

	if _, err := e.GenerateSecret(); !errors.Is(err, vault.ErrEntropySource) {
		t.Fatalf("Expected ErrEntropySource, got %v", err)
	}
}

func TestEnrollmentURI(t *testing.T) {
	e := newEngine()

	uri, err := e.EnrollmentURI("JBSWY3DPEHPK3PXP", "user", "TOTP CLI App")
	if err != nil {
		t.Fatal(err)
	}

	want := "otpauth://totp/TOTP%20CLI%20App:user?secret=JBSWY3DPEHPK3PXP&issuer=TOTP%20CLI%20App&algorithm=SHA1&digits=6&period=30"
	if uri != want {
		t.Fatalf("Expected %s, got %s", want, uri)
	}

	again, err := e.EnrollmentURI("JBSWY3DPEHPK3PXP", "user", "TOTP CLI App")
	if err != nil {
		t.Fatal(err)
	}
	if again != uri {
		t.Fatalf("Expected identical URIs, got %s and %s", uri, again)
	}

	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		t.Fatal(err)
	}
	if key.Issuer() != "TOTP CLI App" || key.AccountName() != "user" || key.Secret() != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("Unexpected key parsed from URI: issuer=%q account=%q secret=%q", key.Issuer(), key.AccountName(), key.Secret())
	}
}

func TestEnrollmentURIInvalidSecret(t *testing.T) {
	e := newEngine()

	for _, s := range []vault.Secret{"", "   ", "========", "not base32!", "A", "AAA", "AAAAAA", "ABCDEFGHI"} {
		if _, err := e.EnrollmentURI(s, "user", "issuer"); !errors.Is(err, vault.ErrInvalidSecret) {
			t.Errorf("EnrollmentURI(%q): expected ErrInvalidSecret, got %v", s, err)
		}
		if _, err := e.Code(s, 0); !errors.Is(err, vault.ErrInvalidSecret) {
			t.Errorf("Code(%q): expected ErrInvalidSecret, got %v", s, err)
		}
	}
}

func TestValidateAcceptsWhatCodeAccepts(t *testing.T) {
	e := newEngine()

	// every length that is a whole number of bytes, with and without padding
	for _, s := range []vault.Secret{"ME", "MFRA", "MFRGG", "MFRGGZA", "MFRGGZDF", "MFRGGZDFMY", "MFRA====", "mfrggzdfmy======"} {
		if err := s.Validate(); err != nil {
			t.Errorf("Validate(%q): %v", s, err)
			continue
		}
		if _, err := e.Code(s, 0); err != nil {
			t.Errorf("Code(%q): %v", s, err)
		}
	}
}

func TestCodeForWellKnownSecret(t *testing.T) {
	e := newEngine()

	code, err := e.Code("JBSWY3DPEHPK3PXP", e.Step(time.Unix(0, 0)))
	if err != nil {
		t.Fatal(err)
	}
	if code != "282760" {
		t.Fatalf("Expected 282760, got %s", code)
	}
}

func TestStepBeforeEpoch(t *testing.T) {
	e := newEngine()

	for _, unix := range []int64{-1, -29, -31, -1 << 40} {
		at := time.Unix(unix, 0)
		if s := e.Step(at); s != 0 {
			t.Errorf("T=%d: expected step 0, got %d", unix, s)
		}
		if r := e.Remaining(at); r != 30*time.Second {
			t.Errorf("T=%d: expected 30s remaining, got %v", unix, r)
		}
	}
}

func TestSecretNormalization(t *testing.T) {
	e := newEngine()

	a, err := e.Code("jbsw y3dp ehpk 3pxp", 1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Code("JBSWY3DPEHPK3PXP", 1)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("Expected hand-typed secret to give the same code, got %s and %s", a, b)
	}
}
