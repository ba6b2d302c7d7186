package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewSubscribeCommand creates the subscribe command.
func NewSubscribeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <webhook-url>",
		Short: "Register a webhook endpoint for context notifications",
		Long: `Register a webhook endpoint for context notifications.

Example:
  ctxctl subscribe http://agent:8090/webhook`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := json.Marshal(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to encode endpoint", err)
			}
			if _, err := postJSON(commandContext(cmd), rootOpts, "/subscribe", body); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "subscribed %s\n", args[0])
			return nil
		},
	}
}
