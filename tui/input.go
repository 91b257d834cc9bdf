package tui

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/cockroachdb/errors"
	"golang.org/x/term"
)

var inputTheme = huh.ThemeBase16()

// ErrNoInput is returned when the prompt input ends before a value is read.
var ErrNoInput = errors.New("no input")

func interactive(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && HasTTY && term.IsTerminal(int(f.Fd()))
}

// Input prompts for a value. When in is not a terminal one line is read from it.
func Input(in io.Reader, title string, description string) (string, error) {
	return prompt(in, title, description, huh.EchoModeNormal)
}

// Password prompts for a value without echoing it.
func Password(in io.Reader, title string, description string) (string, error) {
	return prompt(in, title, description, huh.EchoModePassword)
}

func prompt(in io.Reader, title string, description string, mode huh.EchoMode) (string, error) {
	if !interactive(in) {
		return readLine(in)
	}
	var value string
	if err := huh.NewInput().
		Title(title).
		Prompt("> ").
		Description(description).
		EchoMode(mode).
		Value(&value).
		WithTheme(inputTheme).
		Run(); err != nil {
		return "", errors.Wrap(err, "error reading input")
	}
	return value, nil
}

func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", ErrNoInput
		}
		return "", errors.Wrap(err, "error reading input")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
