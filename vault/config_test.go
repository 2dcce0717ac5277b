package vault_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/99designs/totp-vault/vault"
	"github.com/google/go-cmp/cmp"
	"github.com/pquerna/otp"
)

var exampleConfig = []byte(`# an example config file
[totp]
issuer=Example Corp
account=alice@example.com
period=60
digits=8
algorithm=sha256
skew=2

[store]
backend=keyring
key=work

[qr]
level=H
quiet_zone=2
`)

func newConfigFile(t *testing.T, b []byte) string {
	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, b, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigParsing(t *testing.T) {
	f := newConfigFile(t, exampleConfig)

	cfg, err := vault.LoadConfig(f)
	if err != nil {
		t.Fatal(err)
	}

	want := &vault.Config{
		Path: f,
		TOTP: vault.TOTPSection{
			Issuer:     "Example Corp",
			Account:    "alice@example.com",
			Period:     60,
			Digits:     8,
			Algorithm:  "sha256",
			Skew:       2,
			SecretSize: 20,
		},
		Store: vault.StoreSection{
			Backend: "keyring",
			Path:    "secret.txt",
			Key:     "work",
		},
		QR: vault.QRSection{
			Level:     "H",
			SizeHint:  0,
			QuietZone: 2,
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}

	opts, err := cfg.EngineOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Period != time.Minute || opts.Digits != otp.DigitsEight || opts.Algorithm != otp.AlgorithmSHA256 || opts.Skew != 2 {
		t.Fatalf("Unexpected engine options %+v", opts)
	}
}

func TestConfigMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope")

	cfg, err := vault.LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	want := vault.DefaultConfig()
	want.Path = path
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.TOTP.Issuer != "TOTP CLI App" || cfg.TOTP.Account != "user" || cfg.Store.Path != "secret.txt" {
		t.Fatalf("Unexpected defaults %+v", cfg)
	}
}

func TestConfigUnreadablePathIsAnError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("a path below a file is reported as not found on windows")
	}

	// stat fails with ENOTDIR rather than not-exist
	path := filepath.Join(newConfigFile(t, exampleConfig), "config")

	if _, err := vault.LoadConfig(path); err == nil {
		t.Fatal("Expected an error instead of the defaults")
	}
}

func TestConfigValidation(t *testing.T) {
	var testCases = []struct {
		config string
		errKey string
	}{
		{"[totp]\ndigits=7\n", "totp.digits"},
		{"[totp]\nalgorithm=md5\n", "totp.algorithm"},
		{"[totp]\nperiod=0\n", "totp.period"},
		{"[totp]\nskew=-1\n", "totp.skew"},
		{"[totp]\nsecret_size=8\n", "totp.secret_size"},
		{"[store]\nbackend=s3\n", "store.backend"},
		{"[qr]\nlevel=Z\n", "qr.level"},
		{"[qr]\nquiet_zone=-2\n", "qr.quiet_zone"},
	}

	for _, tc := range testCases {
		f := newConfigFile(t, []byte(tc.config))
		_, err := vault.LoadConfig(f)
		if err == nil {
			t.Errorf("Expected an error for %q", tc.config)
			continue
		}
		if !strings.Contains(err.Error(), tc.errKey) {
			t.Errorf("Expected error for %q to mention %s, got %v", tc.config, tc.errKey, err)
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	for in, want := range map[string]otp.Algorithm{
		"SHA1":   otp.AlgorithmSHA1,
		"sha256": otp.AlgorithmSHA256,
		"Sha512": otp.AlgorithmSHA512,
	} {
		got, err := vault.ParseAlgorithm(in)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("ParseAlgorithm(%q) = %v, want %v", in, got, want)
		}
	}
}
