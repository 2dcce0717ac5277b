package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// Menu writes options as a numbered list and reads choices from r until one
// is valid, returning its index. It is used when input isn't a terminal.
func Menu(ctx context.Context, w io.Writer, r *LineReader, message string, options []string) (int, error) {
	fmt.Fprintf(w, "%s\n\n", message)
	for i, o := range options {
		fmt.Fprintf(w, "  %d. %s\n", i+1, o)
	}

	for {
		fmt.Fprint(w, "\n> ")
		if f, ok := w.(interface{ Flush() error }); ok {
			if err := f.Flush(); err != nil {
				return -1, err
			}
		}

		text, err := r.ReadLine(ctx)
		if err != nil {
			return -1, err
		}

		n, err := strconv.Atoi(text)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		fmt.Fprintf(w, "Please enter a number between 1 and %d", len(options))
	}
}

// Select shows options as an arrow-key menu on a terminal and returns the
// index of the chosen one. Ctrl-C is reported as context.Canceled and
// Ctrl-D as io.EOF.
func Select(ctx context.Context, w io.Writer, r *LineReader, label string, options []string) (int, error) {
	var i int
	err := runWidget(ctx, r, func(stdin io.ReadCloser) (err error) {
		s := promptui.Select{
			Label:    widgetLabel(label),
			Items:    options,
			Size:     len(options),
			HideHelp: true,
			Stdin:    stdin,
			Stdout:   nopWriteCloser{w},
		}
		i, _, err = s.Run()
		return err
	})
	if err != nil {
		return -1, err
	}
	return i, nil
}

// Ask reads one line of input on a terminal with line editing
func Ask(ctx context.Context, w io.Writer, r *LineReader, label string) (string, error) {
	var text string
	err := runWidget(ctx, r, func(stdin io.ReadCloser) (err error) {
		p := promptui.Prompt{
			Label:  widgetLabel(label),
			Stdin:  stdin,
			Stdout: nopWriteCloser{w},
		}
		text, err = p.Run()
		return err
	})
	return strings.TrimSpace(text), err
}

// runWidget runs a promptui widget over its own Conn of r. When ctx is done
// the Conn is closed, which ends the widget and restores the terminal.
func runWidget(ctx context.Context, r *LineReader, run func(stdin io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stdin := r.Conn()
	defer stdin.Close()

	errc := make(chan error, 1)
	go func() {
		errc <- run(stdin)
	}()

	select {
	case err := <-errc:
		return widgetError(err)
	case <-ctx.Done():
		stdin.Close()
		<-errc
		return ctx.Err()
	}
}

func widgetError(err error) error {
	switch {
	case errors.Is(err, promptui.ErrInterrupt):
		return context.Canceled
	case errors.Is(err, promptui.ErrEOF):
		return io.EOF
	}
	return err
}

// promptui adds its own punctuation after labels
func widgetLabel(label string) string {
	return strings.TrimSuffix(strings.TrimSpace(label), ":")
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
