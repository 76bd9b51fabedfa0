package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/contextsync/internal/config"
	"github.com/roach88/contextsync/internal/localstore"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string
	Relay    string
	Store    string

	// Config is resolved from the environment and the flags above before
	// any subcommand runs.
	Config config.Config
	Logger *slog.Logger

	// LogWriter receives log output. Defaults to os.Stderr.
	LogWriter io.Writer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the contextsync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contextsync",
		Short: "contextsync - shared context maps",
		Long: `Client tooling for collaboratively edited context maps.

Projects are kept in a local SQLite database and shared through a relay
server. Settings come from CONTEXTSYNC_* environment variables; the
--db, --relay and --store flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return resolveConfig(opts, cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the local SQLite database")
	cmd.PersistentFlags().StringVar(&opts.Relay, "relay", "", "relay host[:port]")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "shared store base URL")

	cmd.AddCommand(NewProjectsCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewCleanupCommand(opts))
	cmd.AddCommand(NewHealthCommand(opts))
	cmd.AddCommand(NewConnectCommand(opts))

	return cmd
}

func resolveConfig(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = opts.Database
	}
	if flags.Changed("relay") {
		cfg.RelayHost = opts.Relay
	}
	if flags.Changed("store") {
		cfg.SharedStoreURL = opts.Store
	}
	if opts.Verbose {
		cfg.LogLevel = slog.LevelDebug
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	opts.Config = cfg

	w := opts.LogWriter
	if w == nil {
		w = os.Stderr
	}
	opts.Logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel}))
	return nil
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openStore opens the local database named by the resolved config.
func (o *RootOptions) openStore() (*localstore.Store, error) {
	st, err := localstore.Open(o.Config.DBPath, localstore.WithLogger(o.Logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func closeStore(st *localstore.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error("error closing database", "error", err)
	}
}
