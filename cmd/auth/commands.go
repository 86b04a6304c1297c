package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tinmegali/authserver/internal/auth/accounts"
	"github.com/tinmegali/authserver/internal/auth/app"
	"github.com/tinmegali/authserver/pkg/cryptox"
)

// newRootCommand runs the server when no subcommand is given.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "auth",
		Short:         "OAuth2 authorization server issuing JWT access and refresh tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		newServeCommand(),
		newHashSecretCommand(),
		newTOTPSecretCommand(),
		newVersionCommand(),
	)
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the token server (configured from AUTH_* environment variables)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := app.New(app.LoadConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Run()
}

func newHashSecretCommand() *cobra.Command {
	var pepperFile string

	cmd := &cobra.Command{
		Use:   "hash-secret",
		Short: "Read a secret from stdin and print its argon2id hash",
		Long: "Reads one line from stdin and prints an argon2id hash for the secret_hash\n" +
			"and password_hash fields. Use the same pepper file as the server.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cryptox.LoadPepper(pepperFile); err != nil {
				return err
			}

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("no secret on stdin")
			}
			secret := strings.TrimRight(line, "\r\n")
			if secret == "" {
				return errors.New("secret must not be empty")
			}

			hash, err := cryptox.HashPassword(secret)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
	cmd.Flags().StringVar(&pepperFile, "pepper-file", "", "pepper file shared with the server (AUTH_PEPPER_FILE)")
	return cmd
}

func newTOTPSecretCommand() *cobra.Command {
	var issuer string

	cmd := &cobra.Command{
		Use:   "totp-secret <username>",
		Short: "Generate a TOTP secret and provisioning URL for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enrollment, err := accounts.EnrollTOTP(issuer, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "totp_secret: %s\n", enrollment.Secret); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "url: %s\n", enrollment.URL)
			return err
		},
	}
	cmd.Flags().StringVar(&issuer, "issuer", "authserver", "issuer shown by authenticator apps")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), app.BuildVersion)
			return err
		},
	}
}
