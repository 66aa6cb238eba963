package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/qwsync/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	CacheDB    string
	Remote     string
	UID        string
	Token      string

	// Config is the loaded file with flags applied. Set before any RunE.
	Config config.Config

	// Logger writes to the command's stderr. Set before any RunE.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the qwsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "qwsync",
		Short: "qwsync - offline-first document sync for QuizWhiz",
		Long: `Offline-first document sync for QuizWhiz.

Documents live in a local cache keyed by scope (user id or "anon") and path,
and in a per-user remote hierarchy users/{uid}/pages/{path}. Writes are
debounced into both; signing in migrates anonymous documents to the account.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.resolve(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (YAML)")
	flags.StringVar(&opts.CacheDB, "cache-db", "", "local cache database (overrides config)")
	flags.StringVar(&opts.Remote, "remote", "", "document server URL; empty runs cache-only (overrides config)")
	flags.StringVar(&opts.UID, "uid", "", "signed-in user id (overrides config)")
	flags.StringVar(&opts.Token, "token", "", "bearer token for --uid (overrides config)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// resolve loads the config file, applies flag overrides and installs the
// logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if o.CacheDB != "" {
		cfg.CacheDB = o.CacheDB
	}
	if o.Remote != "" {
		cfg.Remote.URL = o.Remote
	}
	if o.UID != "" {
		cfg.Session.UID = o.UID
		cfg.Session.Token = o.Token
	} else if o.Token != "" {
		cfg.Session.Token = o.Token
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid settings", err)
	}
	o.Config = cfg
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
