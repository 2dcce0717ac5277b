package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/99designs/keyring"
	"github.com/99designs/totp-vault/prompt"
	"github.com/99designs/totp-vault/render"
	"github.com/99designs/totp-vault/vault"
	"github.com/alecthomas/kingpin/v2"
	"golang.org/x/term"
)

const KeyringName = "totp-vault"

type TotpVault struct {
	Debug          bool
	ConfigFile     string
	Backend        string
	SecretFile     string
	KeyringBackend string
	PromptDriver   string

	config      *vault.Config
	keyringImpl keyring.Keyring
	now         func() time.Time
}

func (a *TotpVault) Now() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

func (a *TotpVault) Config() (*vault.Config, error) {
	if a.config == nil {
		path := a.ConfigFile
		if path == "" {
			var err error
			if path, err = vault.ConfigPath(); err != nil {
				return nil, err
			}
		}

		config, err := vault.LoadConfig(path)
		if err != nil {
			return nil, err
		}

		if a.Backend != "" {
			config.Store.Backend = a.Backend
		}
		if a.SecretFile != "" {
			config.Store.Path = a.SecretFile
		}
		a.config = config
	}

	return a.config, nil
}

func (a *TotpVault) Engine() (*vault.Engine, error) {
	config, err := a.Config()
	if err != nil {
		return nil, err
	}
	opts, err := config.EngineOptions()
	if err != nil {
		return nil, err
	}
	return vault.NewEngine(opts), nil
}

func (a *TotpVault) Keyring() (keyring.Keyring, error) {
	if a.keyringImpl == nil {
		var allowedBackends []keyring.BackendType
		if a.KeyringBackend != "" {
			allowedBackends = append(allowedBackends, keyring.BackendType(a.KeyringBackend))
		}

		log.Printf("Opening keyring %s", KeyringName)
		var err error
		a.keyringImpl, err = keyring.Open(keyring.Config{
			ServiceName:             KeyringName,
			AllowedBackends:         allowedBackends,
			KeychainName:            KeyringName,
			FileDir:                 "~/.totp-vault/keys/",
			FilePasswordFunc:        fileKeyringPassphrasePrompt,
			LibSecretCollectionName: "totpvault",
			KWalletAppID:            KeyringName,
			KWalletFolder:           KeyringName,
			WinCredPrefix:           KeyringName,
		})
		if err != nil {
			return nil, err
		}
	}

	return a.keyringImpl, nil
}

// SecretStore opens the store selected by the config file and flags
func (a *TotpVault) SecretStore() (vault.SecretStore, error) {
	config, err := a.Config()
	if err != nil {
		return nil, err
	}

	switch config.Store.Backend {
	case vault.BackendKeyring:
		kr, err := a.Keyring()
		if err != nil {
			return nil, err
		}
		return &vault.KeyringStore{Keyring: kr, Key: config.Store.Key}, nil
	default:
		return &vault.FileStore{Path: config.Store.Path}, nil
	}
}

// RenderOptions fits the [qr] settings to w, using the terminal width as the
// size hint when the config doesn't set one
func (a *TotpVault) RenderOptions(w io.Writer) (render.Options, error) {
	config, err := a.Config()
	if err != nil {
		return render.Options{}, err
	}
	level, err := render.ParseLevel(config.QR.Level)
	if err != nil {
		return render.Options{}, err
	}

	opts := render.Options{
		Level:     level,
		SizeHint:  config.QR.SizeHint,
		QuietZone: config.QR.QuietZone,
		Color:     prompt.IsTerminal(w),
	}
	if opts.SizeHint == 0 {
		opts.SizeHint = prompt.Width(w)
	}

	return opts, nil
}

func (a *TotpVault) TokenPrompt() prompt.Func {
	if a.PromptDriver == "" || a.PromptDriver == "terminal" {
		return nil
	}
	return prompt.Method(a.PromptDriver)
}

func ConfigureGlobals(app *kingpin.Application) *TotpVault {
	a := &TotpVault{}

	backendsAvailable := []string{}
	for _, backendType := range keyring.AvailableBackends() {
		backendsAvailable = append(backendsAvailable, string(backendType))
	}

	app.Flag("debug", "Show debugging output").
		BoolVar(&a.Debug)

	app.Flag("config", "Path to the config file").
		Envar("TOTP_VAULT_CONFIG_FILE").
		StringVar(&a.ConfigFile)

	app.Flag("backend", fmt.Sprintf("Secret store to use %v", vault.Backends)).
		Envar("TOTP_VAULT_BACKEND").
		EnumVar(&a.Backend, vault.Backends...)

	app.Flag("secret-file", "File holding the secret when using the file store").
		Envar("TOTP_VAULT_SECRET_FILE").
		StringVar(&a.SecretFile)

	app.Flag("keyring-backend", fmt.Sprintf("Keyring backend to use with the keyring store %v", backendsAvailable)).
		Envar("TOTP_VAULT_KEYRING_BACKEND").
		EnumVar(&a.KeyringBackend, backendsAvailable...)

	app.Flag("prompt", fmt.Sprintf("Prompt driver to use for tokens %v", prompt.Available())).
		Default("terminal").
		Envar("TOTP_VAULT_PROMPT").
		EnumVar(&a.PromptDriver, prompt.Available()...)

	app.PreAction(func(c *kingpin.ParseContext) error {
		if !a.Debug {
			log.SetOutput(io.Discard)
		} else {
			log.SetOutput(os.Stderr)
			log.SetFlags(log.LstdFlags)
			keyring.Debug = true
		}
		return nil
	})

	return a
}

func fileKeyringPassphrasePrompt(prompt string) (string, error) {
	if password, ok := os.LookupEnv("TOTP_VAULT_FILE_PASSPHRASE"); ok {
		return password, nil
	}

	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return string(b), nil
}
