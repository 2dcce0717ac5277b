package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/99designs/totp-vault/prompt"
	"github.com/99designs/totp-vault/render"
	"github.com/99designs/totp-vault/vault"
	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
)

const (
	menuGenerate = "Generate New TOTP Secret"
	menuShowQR   = "Show QR Code"
	menuVerify   = "Verify Token"
	menuExit     = "Exit"
)

var menuOptions = []string{menuGenerate, menuShowQR, menuVerify, menuExit}

// Shell is the interactive menu. It runs one action at a time until Exit is
// chosen, input ends or its context is cancelled.
type Shell struct {
	Engine  *vault.Engine
	Store   vault.SecretStore
	Account string
	Issuer  string
	QR      render.Options

	In  *prompt.LineReader
	Out io.Writer

	// TokenPrompt asks for the token to verify. When nil the token is read from In.
	TokenPrompt prompt.Func

	// Interactive uses arrow-key menus and line editing instead of reading
	// numbered choices from In. It needs In and Out to be a terminal.
	Interactive bool

	// Color enables ANSI colours and clearing the screen between actions
	Color bool

	Now func() time.Time

	w       *bufio.Writer
	palette palette
}

type palette struct {
	title, prompt, success, info, failure *color.Color
}

func newPalette(enabled bool) palette {
	c := func(attr color.Attribute) *color.Color {
		col := color.New(attr)
		if enabled {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
		return col
	}
	return palette{
		title:   c(color.FgHiBlue),
		prompt:  c(color.FgHiYellow),
		success: c(color.FgHiGreen),
		info:    c(color.FgHiWhite),
		failure: c(color.FgRed),
	}
}

func ConfigureShellCommand(app *kingpin.Application, a *TotpVault) {
	cmd := app.Command("shell", "Start the interactive menu (default)").
		Default()

	cmd.Action(func(c *kingpin.ParseContext) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shell, err := a.NewShell(prompt.Stdin(), os.Stdout)
		if err != nil {
			return err
		}
		err = shell.Run(ctx)
		app.FatalIfError(err, "shell")
		return nil
	})
}

func (a *TotpVault) NewShell(in *prompt.LineReader, out io.Writer) (*Shell, error) {
	config, err := a.Config()
	if err != nil {
		return nil, err
	}
	engine, err := a.Engine()
	if err != nil {
		return nil, err
	}
	store, err := a.SecretStore()
	if err != nil {
		return nil, err
	}
	qr, err := a.RenderOptions(out)
	if err != nil {
		return nil, err
	}

	return &Shell{
		Engine:      engine,
		Store:       store,
		Account:     config.TOTP.Account,
		Issuer:      config.TOTP.Issuer,
		QR:          qr,
		In:          in,
		Out:         out,
		TokenPrompt: a.TokenPrompt(),
		Interactive: prompt.IsTerminal(os.Stdin) && prompt.IsTerminal(out),
		Color:       prompt.IsTerminal(out),
		Now:         a.Now,
	}, nil
}

// Run loops over the menu. Exit, end of input and cancellation of ctx all
// end the loop without error.
func (s *Shell) Run(ctx context.Context) error {
	s.w = bufio.NewWriter(s.Out)
	s.palette = newPalette(s.Color)
	defer s.w.Flush()

	for {
		s.header()

		choice, err := s.choose(ctx)
		if err != nil {
			return s.finish(err)
		}

		switch menuOptions[choice] {
		case menuGenerate:
			s.generate()
		case menuShowQR:
			s.showQR()
		case menuVerify:
			err = s.verify(ctx)
		case menuExit:
			return s.finish(nil)
		}
		if err != nil {
			return s.finish(err)
		}

		s.print(s.palette.prompt, "\nPress ENTER to continue...")
		if err = s.flush(); err != nil {
			return err
		}
		if _, err = s.In.ReadLine(ctx); err != nil {
			return s.finish(err)
		}
	}
}

func (s *Shell) finish(err error) error {
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return err
	}
	s.print(s.palette.prompt, "\nGoodbye!\n")
	return s.flush()
}

func (s *Shell) choose(ctx context.Context) (int, error) {
	const label = "Select an option:"
	if s.Interactive {
		if err := s.flush(); err != nil {
			return -1, err
		}
		return prompt.Select(ctx, s.Out, s.In, label, menuOptions)
	}
	return prompt.Menu(ctx, s.w, s.In, s.palette.prompt.Sprint(label), menuOptions)
}

func (s *Shell) header() {
	if s.Color {
		fmt.Fprint(s.w, "\033[H\033[2J")
	}
	s.print(s.palette.title, "\n╔════════════════════════════════╗\n")
	s.print(s.palette.title, "║         TOTP CLI App           ║\n")
	s.print(s.palette.title, "╚════════════════════════════════╝\n\n")
}

func (s *Shell) generate() {
	secret, err := s.Engine.GenerateSecret()
	if err != nil {
		s.print(s.palette.failure, fmt.Sprintf("\nCould not generate a secret: %v\n", err))
		return
	}

	if err = s.Store.Save(secret); err != nil {
		s.print(s.palette.failure, fmt.Sprintf("\nCould not save the secret: %v\n", err))
		s.print(s.palette.failure, "The stored secret may or may not have changed. Use \"Show QR Code\" to check.\n")
		return
	}

	s.print(s.palette.success, "\nNew TOTP secret generated and saved!\n")
	s.print(s.palette.info, fmt.Sprintf("\nSecret: %s\n", secret))
}

// loadSecret reports a missing or unreadable secret itself, returning false
func (s *Shell) loadSecret() (vault.Secret, bool) {
	secret, err := s.Store.Load()
	if errors.Is(err, vault.ErrNoSecret) {
		s.print(s.palette.failure, "\nNo secret found! Please generate one first.\n")
		return "", false
	} else if err != nil {
		s.print(s.palette.failure, fmt.Sprintf("\nCould not read the secret: %v\n", err))
		return "", false
	}
	return secret, true
}

func (s *Shell) showQR() {
	secret, ok := s.loadSecret()
	if !ok {
		return
	}

	uri, err := s.Engine.EnrollmentURI(secret, s.Account, s.Issuer)
	if err != nil {
		s.print(s.palette.failure, fmt.Sprintf("\nThe stored secret can't be used: %v\n", err))
		return
	}

	code, err := render.Render(uri, s.QR)
	if err != nil {
		s.print(s.palette.failure, fmt.Sprintf("\nError generating QR code: %v\n", err))
		return
	}

	s.print(s.palette.info, "\nScan this QR code with your authenticator app:\n\n")
	fmt.Fprint(s.w, code)
	s.print(s.palette.info, "\nOr add it manually with this URI:\n")
	fmt.Fprintln(s.w, uri)
}

// verify only returns errors from reading the token
func (s *Shell) verify(ctx context.Context) error {
	secret, ok := s.loadSecret()
	if !ok {
		return nil
	}

	token, err := s.readToken(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		s.print(s.palette.failure, "\nToken is required!\n")
		return nil
	}

	valid, err := s.Engine.Verify(secret, token, s.now())
	switch {
	case errors.Is(err, vault.ErrMalformedToken):
		s.print(s.palette.failure, fmt.Sprintf("\nToken must be exactly %d digits!\n", s.Engine.Options().Digits.Length()))
	case err != nil:
		s.print(s.palette.failure, fmt.Sprintf("\nThe stored secret can't be used: %v\n", err))
	case valid:
		s.print(s.palette.success, "\nToken is valid!\n")
	default:
		s.print(s.palette.failure, "\nInvalid token!\n")
	}

	return nil
}

func (s *Shell) readToken(ctx context.Context) (string, error) {
	message := prompt.TokenMessage(s.Engine.Options().Digits.Length())

	if s.TokenPrompt != nil {
		if err := s.flush(); err != nil {
			return "", err
		}
		token, err := s.TokenPrompt(ctx, message)
		if err != nil && ctx.Err() == nil {
			// a dialog that was dismissed counts as no token
			return "", nil
		}
		return token, err
	}

	if s.Interactive {
		fmt.Fprintln(s.w)
		if err := s.flush(); err != nil {
			return "", err
		}
		return prompt.Ask(ctx, s.Out, s.In, message)
	}

	s.print(s.palette.prompt, "\n"+message)
	if err := s.flush(); err != nil {
		return "", err
	}
	return s.In.ReadLine(ctx)
}

func (s *Shell) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Shell) print(c *color.Color, text string) {
	c.Fprint(s.w, text)
}

func (s *Shell) flush() error {
	return s.w.Flush()
}
