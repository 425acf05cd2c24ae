package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/authcore/internal/adapters/driven/auth"
	"github.com/custodia-labs/authcore/internal/config"
)

// Test seams for terminal input.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// NewHashPasswordCmd creates the hash-password subcommand.
func NewHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password with the configured algorithm",
		Long: `Read a password from the terminal (or one line from stdin when piped) and
print its digest. Useful for seeding accounts directly in the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, nil)
			if err != nil {
				return err
			}

			password, err := promptPassword(cmd, os.Stdin)
			if err != nil {
				return err
			}

			hasher, err := auth.NewHasher(cfg.Auth.HashAlgorithm, cfg.Auth.BcryptCost, auth.DefaultArgon2Params)
			if err != nil {
				return err
			}
			digest, err := hasher.Hash(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), digest)
			return err
		},
	}
}

func promptPassword(cmd *cobra.Command, stdin *os.File) (string, error) {
	fd := int(stdin.Fd())
	if !isTerminal(fd) {
		return readLine(cmd.InOrStdin())
	}

	cmd.PrintErr("Password: ")
	first, err := readPassword(fd)
	cmd.PrintErrln()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	cmd.PrintErr("Confirm: ")
	second, err := readPassword(fd)
	cmd.PrintErrln()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	if len(first) == 0 {
		return "", errors.New("password must not be empty")
	}
	return string(first), nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password must not be empty")
	}
	return line, nil
}
