package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "token":
		return runAdminToken(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: mentoria admin <command> [options]

Commands:
  token   Generate an API bearer token and its configuration hash
  help    Show this help message

Examples:
  mentoria admin token            Generate a random token
  mentoria admin token --prompt   Hash a token entered interactively
`)
}

// runAdminToken prints a bearer token together with the SHA-256 digest to
// place in auth.token_hashes. The token itself is never stored server-side.
func runAdminToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	prompt := fs.Bool("prompt", false, "enter the token interactively instead of generating one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var token string
	if *prompt {
		var err error
		token, err = promptSecret("Token: ")
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		if token == "" {
			return fmt.Errorf("token must not be empty")
		}
	} else {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		token = hex.EncodeToString(b)
		fmt.Fprintf(os.Stdout, "token: %s\n", token)
	}

	sum := sha256.Sum256([]byte(token))
	fmt.Fprintf(os.Stdout, "hash:  %s\n", hex.EncodeToString(sum[:]))
	fmt.Fprintln(os.Stderr, "Add the hash to auth.token_hashes (or MENTORIA_TOKEN_HASHES) and hand the token to the client.")
	return nil
}

// promptSecret reads a secret from the terminal without echoing.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
