package prompt

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const dialogTitle = "totp-vault"

// runDialog runs a desktop dialog program and returns what it printed. A
// dialog that is cancelled exits non-zero and is reported as an error.
func runDialog(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func ZenityPrompt(ctx context.Context, message string) (string, error) {
	return runDialog(ctx, "zenity", "--entry", "--title="+dialogTitle, "--text="+message)
}

func KDialogPrompt(ctx context.Context, message string) (string, error) {
	return runDialog(ctx, "kdialog", "--inputbox", message, "--title", dialogTitle)
}

func OSAScriptPrompt(ctx context.Context, message string) (string, error) {
	return runDialog(ctx, "osascript", "-e", fmt.Sprintf(
		`text returned of (display dialog %s default answer "" with title %s buttons {"OK", "Cancel"} default button 1)`,
		appleScriptString(message), appleScriptString(dialogTitle)))
}

func appleScriptString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

func init() {
	Methods["zenity"] = ZenityPrompt
	Methods["kdialog"] = KDialogPrompt
	Methods["osascript"] = OSAScriptPrompt
}
