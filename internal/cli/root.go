// Package cli implements ctxctl, the operator command line for the relay.
package cli

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const (
	serverEnv     = "CTXRELAY_SERVER"
	defaultServer = "http://localhost:8080"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server  string
	Timeout time.Duration
	Verbose bool
}

// NewRootCommand creates the root command for ctxctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ctxctl",
		Short: "ctxctl - operate a context relay",
		Long:  "Publish, retrieve and subscribe to context held by a ctxrelay server.",
	}

	server := os.Getenv(serverEnv)
	if server == "" {
		server = defaultServer
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.Server, "server", server, "relay base URL (env "+serverEnv+")")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "request timeout")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewPublishCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSubscribeCommand(opts))
	cmd.AddCommand(NewFetchCommand(opts))

	return cmd
}

func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	if !o.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}
