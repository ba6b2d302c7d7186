package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samims/ctxrelay/internal/model"
)

// NewPublishCommand creates the publish command.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <payload|->",
		Short: "Publish a payload and print its context URL",
		Long: `Publish a payload and print its context URL.

Pass - to read the payload from stdin.

Example:
  echo "hello" | ctxctl publish -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := args[0]
			if payload == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read stdin", err)
				}
				payload = string(b)
			}

			contextURL, err := publish(commandContext(cmd), rootOpts, payload)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), contextURL)
			return nil
		},
	}
}

func publish(ctx context.Context, opts *RootOptions, payload string) (string, error) {
	body, err := json.Marshal(model.PublishRequest{Payload: &payload})
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to encode payload", err)
	}
	resp, err := postJSON(ctx, opts, "/context", body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// postJSON posts body to path on the relay and returns the response text.
func postJSON(ctx context.Context, opts *RootOptions, path string, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	target := strings.TrimRight(opts.Server, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", WrapExitError(ExitCommandError, "invalid server URL", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "relay unreachable", err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", WrapExitError(ExitFailure, "failed to read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ExitError{
			Code:    ExitFailure,
			Message: fmt.Sprintf("relay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(text))),
		}
	}
	return string(text), nil
}
