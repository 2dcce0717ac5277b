package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pquerna/otp"
	ini "gopkg.in/ini.v1"
)

const (
	BackendFile    = "file"
	BackendKeyring = "keyring"
)

var Backends = []string{BackendFile, BackendKeyring}

// Config is an abstraction over what is in the totp-vault config file
type Config struct {
	Path  string       `ini:"-"`
	TOTP  TOTPSection  `ini:"totp"`
	Store StoreSection `ini:"store"`
	QR    QRSection    `ini:"qr"`
}

type TOTPSection struct {
	Issuer     string `ini:"issuer"`
	Account    string `ini:"account"`
	Period     int    `ini:"period"`
	Digits     int    `ini:"digits"`
	Algorithm  string `ini:"algorithm"`
	Skew       int    `ini:"skew"`
	SecretSize int    `ini:"secret_size"`
}

type StoreSection struct {
	Backend string `ini:"backend"`
	Path    string `ini:"path"`
	Key     string `ini:"key"`
}

type QRSection struct {
	Level     string `ini:"level"`
	SizeHint  int    `ini:"size_hint"`
	QuietZone int    `ini:"quiet_zone"`
}

// DefaultConfig returns the settings used when no config file exists
func DefaultConfig() *Config {
	return &Config{
		TOTP: TOTPSection{
			Issuer:     "TOTP CLI App",
			Account:    "user",
			Period:     int(DefaultPeriod / time.Second),
			Digits:     DefaultDigits.Length(),
			Algorithm:  DefaultAlgorithm.String(),
			Skew:       DefaultSkew,
			SecretSize: DefaultSecretSize,
		},
		Store: StoreSection{
			Backend: BackendFile,
			Path:    "secret.txt",
			Key:     "totp-secret",
		},
		QR: QRSection{
			Level:     "L",
			SizeHint:  0,
			QuietZone: 1,
		},
	}
}

// ConfigPath returns the default location of the config file
func ConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "totp-vault", "config"), nil
}

// LoadConfig loads and parses a config. No error is returned if the file doesn't exist
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	config.Path = path

	if _, err := os.Stat(path); err == nil {
		if parseErr := config.parseFile(); parseErr != nil {
			return nil, parseErr
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		log.Printf("Config file %s doesn't exist", path)
	} else {
		return nil, fmt.Errorf("Error reading config file %q: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid config file %q: %w", path, err)
	}

	return config, nil
}

func (c *Config) parseFile() error {
	log.Printf("Parsing config file %s", c.Path)
	f, err := ini.LoadSources(ini.LoadOptions{
		AllowNestedValues: true,
		InsensitiveKeys:   true,
	}, c.Path)
	if err != nil {
		return fmt.Errorf("Error parsing config file %q: %w", c.Path, err)
	}
	if err = f.MapTo(c); err != nil {
		return fmt.Errorf("Error parsing config file %q: %w", c.Path, err)
	}
	return nil
}

// Validate checks every setting, naming the first bad key it finds
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("totp.issuer must not be empty")
	}
	if strings.TrimSpace(c.TOTP.Account) == "" {
		return errors.New("totp.account must not be empty")
	}
	if c.TOTP.Period <= 0 {
		return fmt.Errorf("totp.period must be positive, got %d", c.TOTP.Period)
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return fmt.Errorf("totp.digits must be 6 or 8, got %d", c.TOTP.Digits)
	}
	if _, err := ParseAlgorithm(c.TOTP.Algorithm); err != nil {
		return fmt.Errorf("totp.algorithm: %w", err)
	}
	if c.TOTP.Skew < 0 {
		return fmt.Errorf("totp.skew must not be negative, got %d", c.TOTP.Skew)
	}
	if c.TOTP.SecretSize < 16 {
		return fmt.Errorf("totp.secret_size must be at least 16 bytes, got %d", c.TOTP.SecretSize)
	}

	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Path == "" {
			return errors.New("store.path must not be empty")
		}
	case BackendKeyring:
		if c.Store.Key == "" {
			return errors.New("store.key must not be empty")
		}
	default:
		return fmt.Errorf("store.backend must be one of %v, got %q", Backends, c.Store.Backend)
	}

	switch strings.ToUpper(c.QR.Level) {
	case "L", "M", "Q", "H":
	default:
		return fmt.Errorf("qr.level must be one of L, M, Q or H, got %q", c.QR.Level)
	}
	if c.QR.SizeHint < 0 {
		return fmt.Errorf("qr.size_hint must not be negative, got %d", c.QR.SizeHint)
	}
	if c.QR.QuietZone < 0 {
		return fmt.Errorf("qr.quiet_zone must not be negative, got %d", c.QR.QuietZone)
	}

	return nil
}

// EngineOptions converts the [totp] section into options for NewEngine
func (c *Config) EngineOptions() (EngineOptions, error) {
	alg, err := ParseAlgorithm(c.TOTP.Algorithm)
	if err != nil {
		return EngineOptions{}, err
	}
	return EngineOptions{
		Period:     time.Duration(c.TOTP.Period) * time.Second,
		Digits:     otp.Digits(c.TOTP.Digits),
		Algorithm:  alg,
		Skew:       uint(c.TOTP.Skew),
		SecretSize: uint(c.TOTP.SecretSize),
	}, nil
}

func ParseAlgorithm(alg string) (otp.Algorithm, error) {
	switch strings.ToUpper(alg) {
	case "SHA1":
		return otp.AlgorithmSHA1, nil
	case "SHA256":
		return otp.AlgorithmSHA256, nil
	case "SHA512":
		return otp.AlgorithmSHA512, nil
	default:
		return 0, fmt.Errorf("unsupported algorithm %q, expected SHA1, SHA256 or SHA512", alg)
	}
}
