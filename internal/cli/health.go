package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/contextsync/internal/relay"
)

// HealthOptions holds flags for the health command.
type HealthOptions struct {
	*RootOptions
	Timeout time.Duration
}

// HealthResult is the output of the health command.
type HealthResult struct {
	Relay     string `json:"relay"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

func (r HealthResult) renderText(w io.Writer, _ bool) {
	fmt.Fprintf(w, "Relay %s: %s\n", r.Relay, r.Status)
}

// NewHealthCommand creates the health command.
func NewHealthCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HealthOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the relay server",
		Long: `Query the relay's /health endpoint.

Exits 0 when the relay reports "ok" and 1 otherwise.

Examples:
  contextsync health --relay relay.example.com
  contextsync health --timeout 2s --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "health check timeout")

	return cmd
}

func runHealth(opts *HealthOptions, cmd *cobra.Command) error {
	h, err := checkRelay(cmd.Context(), opts.RootOptions, opts.Timeout)
	result := HealthResult{Relay: opts.Config.RelayHost, Status: h.Status, Timestamp: h.Timestamp}
	if err != nil {
		return opts.formatter(cmd).Fail(CodeUnhealthy, "relay unhealthy", result, err)
	}
	return opts.formatter(cmd).Success(result)
}

func checkRelay(ctx context.Context, opts *RootOptions, timeout time.Duration) (relay.Health, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return relay.CheckHealth(ctx, nil, relay.HealthURL(opts.Config.RelayHost, opts.Config.RelaySecure))
}
