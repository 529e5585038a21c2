package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxquery/internal/config"
	"github.com/teemow/inboxquery/internal/google"
	"github.com/teemow/inboxquery/internal/logging"
)

func newAuthCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access and store the token",
		Long: `Run the Google consent flow for the Gmail tools.

The consent URL is printed; after you approve access in the browser, Google
redirects to a temporary listener on 127.0.0.1 and the token is written to
TOKEN_DIR. An existing valid token is reused unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Discard the stored token and ask for consent again")
	return cmd
}

func runAuth(cmd *cobra.Command, force bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())

	creds := google.NewGmailCredentials(cfg.ClientSecretFile, cfg.TokenDir, cfg.TokenPrefix)
	creds.Logger = logger
	creds.Consent = google.LoopbackConsent(cmd.OutOrStdout())

	if force {
		if err := (google.FileTokenStore{Path: creds.TokenFile()}).Remove(); err != nil {
			return fmt.Errorf("failed to remove token: %w", err)
		}
	}

	if _, err := creds.TokenSource(ctx); err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", creds.TokenFile())
	return nil
}
