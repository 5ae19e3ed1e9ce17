package cmd

import (
	"AskArchive/backend/go/pkg/auth"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newTokenCmd(opts *options) *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token [user-id]",
		Short: "Sign a development token with the server's JWT secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			tok, err := auth.IssueToken(secret, args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(opts.out, tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC secret configured as auth.jwtSecret")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	return cmd
}
