package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/totp-vault/render"
	"github.com/99designs/totp-vault/vault"
	"github.com/alecthomas/kingpin/v2"
	"github.com/skratchdot/open-golang/open"
)

type ExportCommandInput struct {
	Path string
	Size int
	Open bool
}

func ConfigureExportCommand(app *kingpin.Application, a *TotpVault) {
	input := ExportCommandInput{}

	cmd := app.Command("export", "Write the enrollment QR code to a PNG file")

	cmd.Arg("file", "PNG file to write").
		Required().
		StringVar(&input.Path)

	cmd.Flag("size", "Width and height of the image in pixels").
		Default("256").
		IntVar(&input.Size)

	cmd.Flag("open", "Open the image with the default viewer once written").
		Short('o').
		BoolVar(&input.Open)

	cmd.Action(func(c *kingpin.ParseContext) error {
		config, err := a.Config()
		if err != nil {
			return err
		}
		engine, err := a.Engine()
		if err != nil {
			return err
		}
		store, err := a.SecretStore()
		if err != nil {
			return err
		}
		err = ExportCommand(input, config, engine, store)
		app.FatalIfError(err, "export")
		return nil
	})
}

func ExportCommand(input ExportCommandInput, config *vault.Config, engine *vault.Engine, store vault.SecretStore) error {
	secret, err := store.Load()
	if errors.Is(err, vault.ErrNoSecret) {
		return fmt.Errorf("%w, generate one with 'totp-vault shell' first", err)
	} else if err != nil {
		return err
	}

	uri, err := engine.EnrollmentURI(secret, config.TOTP.Account, config.TOTP.Issuer)
	if err != nil {
		return err
	}

	level, err := render.ParseLevel(config.QR.Level)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(input.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err = render.WritePNG(f, uri, level, input.Size); err != nil {
		f.Close()
		os.Remove(input.Path)
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}

	fmt.Printf("Wrote QR code to %s\n", input.Path)

	if input.Open {
		return open.Run(input.Path)
	}

	return nil
}
