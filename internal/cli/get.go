package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	appErr "github.com/samims/ctxrelay/internal/errors"
	"github.com/samims/ctxrelay/internal/model"
	"github.com/samims/ctxrelay/internal/retriever"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <id>",
		Short:         "Print the payload stored under id",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := retriever.New(rootOpts.logger(cmd), retriever.WithTimeout(rootOpts.Timeout))
			payload, err := client.FetchByID(commandContext(cmd), rootOpts.Server, args[0])
			if err != nil {
				return fetchExitError(err)
			}
			fmt.Fprint(cmd.OutOrStdout(), payload)
			return nil
		},
	}
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <context-url>",
		Short: "Dereference a context URL from a notification",
		Long: `Dereference a context URL from a notification.

Example:
  ctxctl fetch http://localhost:8080/context/3f1c...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := retriever.New(rootOpts.logger(cmd), retriever.WithTimeout(rootOpts.Timeout))
			payload, err := client.Fetch(commandContext(cmd), model.Notification{ContextURL: args[0]})
			if err != nil {
				return fetchExitError(err)
			}
			fmt.Fprint(cmd.OutOrStdout(), payload)
			return nil
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func fetchExitError(err error) error {
	var fe *retriever.FetchError
	switch {
	case errors.As(err, &fe) && fe.StatusCode != 0:
		return WrapExitError(ExitFailure, "fetch failed", err)
	case appErr.IsValidation(err):
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	default:
		return WrapExitError(ExitCommandError, "relay unreachable", err)
	}
}
