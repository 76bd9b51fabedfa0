package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/contextsync/internal/session"
	"github.com/roach88/contextsync/internal/workspace"
)

// ConnectOptions holds flags for the connect command.
type ConnectOptions struct {
	*RootOptions
	Once bool
}

// ConnectResult describes the session after the connect attempt.
type ConnectResult struct {
	ProjectID         string `json:"project_id"`
	State             string `json:"state"`
	ReconnectAttempts int    `json:"reconnect_attempts"`
	LastError         string `json:"last_error,omitempty"`
	Name              string `json:"name,omitempty"`
	Contexts          int    `json:"contexts"`
	Relationships     int    `json:"relationships"`
}

func (r ConnectResult) renderText(w io.Writer, _ bool) {
	fmt.Fprintf(w, "Project %s: %s\n", r.ProjectID, r.State)
	if r.LastError != "" {
		fmt.Fprintf(w, "  last error: %s\n", r.LastError)
	}
	if r.Name != "" {
		fmt.Fprintf(w, "  %q: %d contexts, %d relationships\n", r.Name, r.Contexts, r.Relationships)
	}
}

// NewConnectCommand creates the connect command.
func NewConnectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConnectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "connect <project-id>",
		Short: "Join a project's shared session",
		Long: `Connect to a project's room on the relay and keep the local copy in
sync until interrupted.

An empty shared document is populated from the local copy. Every change
received from peers is saved to the local database.

Examples:
  contextsync connect proj-1 --relay relay.example.com
  contextsync connect proj-1 --once --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "exit after the initial sync")

	return cmd
}

func runConnect(opts *ConnectOptions, projectID string, cmd *cobra.Command) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st, opts.Logger)

	cfg := opts.Config
	mgr := session.NewManager(
		session.RelayFactory(cfg.RelayOptions(opts.Logger)...),
		cfg.SessionOptions(opts.Logger)...,
	)
	ws := workspace.New(mgr, workspace.WithLocalStore(st.Synced()), workspace.WithLogger(opts.Logger))
	defer ws.Close()

	out := opts.formatter(cmd)
	if !opts.Once {
		cancel := mgr.Subscribe(func(sig session.Signal) {
			if sig.Kind == session.SignalStateChanged && sig.Previous.State != sig.Status.State {
				out.VerboseLog("%s: %s -> %s", sig.DocumentID, sig.Previous.State, sig.Status.State)
			}
		})
		defer cancel()
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	if err := ws.Open(ctx, projectID, nil); err != nil {
		if session.IsConstructionError(err) {
			return WrapExitError(ExitCommandError, "failed to create connection", err)
		}
		return WrapExitError(ExitFailure, "failed to open project", err)
	}

	result := connectResult(projectID, mgr, ws)
	if err := out.Success(result); err != nil {
		return err
	}
	if opts.Once {
		if result.State != string(session.StateConnected) {
			return NewExitError(ExitFailure, fmt.Sprintf("project %s not connected: %s", projectID, result.State))
		}
		return nil
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		opts.Logger.Info("received signal, disconnecting", "signal", sig)
	case <-ctx.Done():
	}
	return nil
}

func connectResult(projectID string, mgr *session.Manager, ws *workspace.Workspace) ConnectResult {
	status := mgr.Status()
	result := ConnectResult{
		ProjectID:         projectID,
		State:             string(status.State),
		ReconnectAttempts: status.ReconnectAttempts,
		LastError:         status.LastError,
	}
	if p, err := ws.Project(); err == nil {
		result.Name = p.Name
		result.Contexts = len(p.Contexts)
		result.Relationships = len(p.Relationships)
	}
	return result
}
