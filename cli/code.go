package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/99designs/totp-vault/vault"
	"github.com/alecthomas/kingpin/v2"
)

type CodeCommandInput struct {
	Watch bool
}

func ConfigureCodeCommand(app *kingpin.Application, a *TotpVault) {
	input := CodeCommandInput{}

	cmd := app.Command("code", "Print the current code for the stored secret")

	cmd.Flag("watch", "Keep printing a new code at the start of every time step").
		Short('w').
		BoolVar(&input.Watch)

	cmd.Action(func(c *kingpin.ParseContext) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		engine, err := a.Engine()
		if err != nil {
			return err
		}
		store, err := a.SecretStore()
		if err != nil {
			return err
		}
		err = CodeCommand(ctx, input, os.Stdout, engine, store, a.Now)
		app.FatalIfError(err, "code")
		return nil
	})
}

func CodeCommand(ctx context.Context, input CodeCommandInput, w io.Writer, engine *vault.Engine, store vault.SecretStore, now func() time.Time) error {
	secret, err := store.Load()
	if errors.Is(err, vault.ErrNoSecret) {
		return fmt.Errorf("%w, generate one with 'totp-vault shell' first", err)
	} else if err != nil {
		return err
	}

	for {
		t := now()
		code, err := engine.Code(secret, engine.Step(t))
		if err != nil {
			return err
		}
		remaining := engine.Remaining(t)
		fmt.Fprintf(w, "%s (%s remaining)\n", code, remaining)

		if !input.Watch {
			return nil
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
