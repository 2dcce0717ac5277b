// Package render draws otpauth:// enrollment URIs as QR codes, either as a
// grid of glyphs for the terminal or as a PNG image.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/url"
	"strings"

	"github.com/boombuler/barcode"
	bqr "github.com/boombuler/barcode/qr"
	"github.com/mdp/qrterminal/v3"
	"rsc.io/qr"
)

var ErrRender = errors.New("unable to render enrollment code")

// Level is a QR error correction level
type Level int

const (
	L Level = iota
	M
	Q
	H
)

func (l Level) String() string {
	return [...]string{"L", "M", "Q", "H"}[l]
}

func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "L":
		return L, nil
	case "M":
		return M, nil
	case "Q":
		return Q, nil
	case "H":
		return H, nil
	}
	return L, fmt.Errorf("unknown error correction level %q, expected L, M, Q or H", s)
}

func (l Level) terminal() qr.Level {
	return [...]qr.Level{qr.L, qr.M, qr.Q, qr.H}[l]
}

func (l Level) image() bqr.ErrorCorrectionLevel {
	return [...]bqr.ErrorCorrectionLevel{bqr.L, bqr.M, bqr.Q, bqr.H}[l]
}

type Options struct {
	Level Level

	// SizeHint is the widest grid, in terminal columns, that should be drawn.
	// Codes that would be wider are drawn with half-height blocks. Zero means
	// no limit.
	SizeHint int

	QuietZone int

	// Color draws modules with ANSI background colours. Without it modules are
	// drawn with block glyphs, light on dark.
	Color bool
}

// Render draws uri as a QR code of terminal glyphs
func Render(uri string, opts Options) (string, error) {
	if err := checkURI(uri); err != nil {
		return "", err
	}

	code, err := qr.Encode(uri, opts.Level.terminal())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRender, err)
	}

	quiet := opts.QuietZone
	if quiet < 0 {
		quiet = 0
	}

	cfg := qrterminal.Config{
		Level:     opts.Level.terminal(),
		QuietZone: quiet,
	}

	modules := code.Size + 2*quiet
	cfg.HalfBlocks = opts.SizeHint > 0 && modules*2 > opts.SizeHint

	switch {
	case cfg.HalfBlocks:
		cfg.BlackChar = qrterminal.BLACK_BLACK
		cfg.WhiteBlackChar = qrterminal.WHITE_BLACK
		cfg.WhiteChar = qrterminal.WHITE_WHITE
		cfg.BlackWhiteChar = qrterminal.BLACK_WHITE
	case opts.Color:
		cfg.BlackChar = qrterminal.BLACK
		cfg.WhiteChar = qrterminal.WHITE
	default:
		cfg.BlackChar = "  "
		cfg.WhiteChar = "██"
	}

	var buf bytes.Buffer
	cfg.Writer = &buf
	qrterminal.GenerateWithConfig(uri, cfg)

	return buf.String(), nil
}

// WritePNG encodes uri as a size x size pixel QR code PNG
func WritePNG(w io.Writer, uri string, level Level, size int) error {
	if err := checkURI(uri); err != nil {
		return err
	}

	code, err := bqr.Encode(uri, level.image(), bqr.Auto)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}

	scaled, err := barcode.Scale(code, size, size)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}

	return png.Encode(w, scaled)
}

func checkURI(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}
	if u.Scheme != "otpauth" {
		return fmt.Errorf("%w: expected an otpauth:// URI, got scheme %q", ErrRender, u.Scheme)
	}
	if u.Host != "totp" {
		return fmt.Errorf("%w: expected a totp key URI, got type %q", ErrRender, u.Host)
	}
	if u.Query().Get("secret") == "" {
		return fmt.Errorf("%w: URI has no secret", ErrRender)
	}
	return nil
}
