package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// options 是所有子命令共享的连接参数。
type options struct {
	server  string
	token   string
	user    string
	timeout time.Duration
	out     io.Writer
}

// NewRootCmd 创建 archive-cli 的根命令。
func NewRootCmd(out io.Writer) *cobra.Command {
	opts := &options{out: out}

	root := &cobra.Command{
		Use:           "archive-cli",
		Short:         "A CLI client for the AskArchive service",
		Long:          `A command-line interface for archiving YouTube transcripts and PDFs and asking questions about them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.server, "server", envOr("ARCHIVE_SERVER", "http://localhost:8080"), "base URL of the archive service")
	pf.StringVar(&opts.token, "token", os.Getenv("ARCHIVE_TOKEN"), "bearer token (jwt auth)")
	pf.StringVar(&opts.user, "user", os.Getenv("ARCHIVE_USER"), "user id sent as X-User-ID (header auth, development only)")
	pf.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "request timeout")

	root.AddCommand(
		newIngestCmd(opts),
		newSourcesCmd(opts),
		newDeleteCmd(opts),
		newQueryCmd(opts),
		newSearchCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

// Execute runs the root command against stdout and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
