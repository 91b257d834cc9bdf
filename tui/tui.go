// Package tui renders command line output and prompts for the apiclient
// command. Styling and interactive prompts are used only on a terminal.
package tui

import (
	"os"

	"github.com/mattn/go-isatty"
)

var (
	HasTTY = isatty.IsTerminal(os.Stdout.Fd())
)
