package prompt

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// PinentryPrompt asks for a token with GnuPG's pinentry program, speaking
// the Assuan protocol over its stdin and stdout. The program is looked up in
// PATH as "pinentry" unless TOTP_VAULT_PINENTRY_PROGRAM is set.
func PinentryPrompt(ctx context.Context, message string) (string, error) {
	cmdName := os.Getenv("TOTP_VAULT_PINENTRY_PROGRAM")
	if cmdName == "" {
		cmdName = "pinentry"
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmd := exec.CommandContext(ctx, cmdName)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	if err = cmd.Start(); err != nil {
		return "", err
	}
	defer func() {
		stdin.Close()
		_ = cmd.Wait()
	}()

	br := bufio.NewReader(stdout)
	sendReceive := func(s ...string) ([]byte, error) {
		if len(s) > 0 {
			fmt.Fprint(stdin, strings.Join(s, " ")+"\n")
		}
		line, _, err := br.ReadLine()
		if err != nil {
			return nil, fmt.Errorf("pinentry: %w", err)
		}
		if !(bytes.HasPrefix(line, []byte("OK")) || bytes.HasPrefix(line, []byte("D "))) {
			return nil, fmt.Errorf("pinentry response: %q", line)
		}
		return line, nil
	}

	// greeting
	if _, err := sendReceive(); err != nil {
		return "", err
	}

	_, _ = sendReceive("OPTION", "ttytype="+os.Getenv("TERM"))
	if tty, err := os.Readlink("/proc/self/fd/0"); err == nil {
		_, _ = sendReceive("OPTION", "ttyname="+tty)
	}
	if _, err := sendReceive("SETTITLE", "totp-vault"); err != nil {
		return "", err
	}
	if _, err := sendReceive("SETPROMPT", strings.TrimSuffix(message, ": ")); err != nil {
		return "", err
	}

	line, err := sendReceive("GETPIN")
	if err != nil {
		return "", err
	}
	if bytes.HasPrefix(line, []byte("OK")) {
		// empty entry
		return "", nil
	}
	return string(bytes.TrimSpace(line[2:])), nil
}

func init() {
	Methods["pinentry"] = PinentryPrompt
}
