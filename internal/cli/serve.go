package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/qwsync/internal/auth"
	"github.com/roach88/qwsync/internal/metrics"
	"github.com/roach88/qwsync/internal/server"
	"github.com/roach88/qwsync/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	DB     string
	Listen string
	Secret string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the document server",
		Long: `Serve the per-user document hierarchy over HTTP until interrupted.

  GET   /healthz
  GET   /metrics
  GET   /v1/users/{uid}/pages/{path}
  PATCH /v1/users/{uid}/pages/{path}

Requests under /v1 need a bearer token minted with the same --secret.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.DB, "db", "", "server database (default server.db from config)")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default server.listen from config)")
	cmd.Flags().StringVar(&opts.Secret, "secret", "", "token signing secret (default server.secret from config)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	f := opts.formatter(cmd)
	cfg := opts.Config.Server
	if opts.DB != "" {
		cfg.DB = opts.DB
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.Secret != "" {
		cfg.Secret = opts.Secret
	}

	issuer, err := auth.NewIssuer(cfg.Secret)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "server secret", err)
	}

	db, err := store.Open(cfg.DB)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStorage, "open server database", err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "register metrics", err)
	}

	srv, err := server.New(server.Options{
		Addr:     cfg.Listen,
		Store:    db,
		Issuer:   issuer,
		Metrics:  m,
		Gatherer: reg,
		Logger:   opts.Logger,
	})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "configure server", err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-ctx.Done()
		return srv.Shutdown()
	})

	f.VerboseLog("serving %s from %s", cfg.Listen, cfg.DB)
	if err := g.Wait(); err != nil && err != context.Canceled {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "serve", err)
	}
	return nil
}
