package main

import (
	"os"

	"github.com/99designs/totp-vault/cli"
	"github.com/alecthomas/kingpin/v2"
)

// Version is provided at compile time
var Version = "dev"

func main() {
	app := kingpin.New("totp-vault", "Generate, enroll and verify a single TOTP credential from the terminal.")
	app.Version(Version)

	a := cli.ConfigureGlobals(app)
	cli.ConfigureShellCommand(app, a)
	cli.ConfigureExportCommand(app, a)
	cli.ConfigureCodeCommand(app, a)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}
