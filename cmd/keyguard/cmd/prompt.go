package cmd

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"
)

// terminalPrompt reads a PIN from the terminal without echoing it.
func terminalPrompt(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot read PIN: stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, prompt+": ")
	pin, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading PIN: %w", err)
	}
	return string(pin), nil
}

// readSecret reads a secret value without echoing. Falls back to a plain
// line read when stdin is piped.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt+": ")
		value, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return string(value), nil
	}

	var value string
	if _, err := fmt.Scanln(&value); err != nil {
		return "", fmt.Errorf("reading secret from stdin: %w", err)
	}
	return value, nil
}
