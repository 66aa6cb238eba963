package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/qwsync/internal/docsync"
)

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Migrate every anonymous cached document to --uid",
		Long: `Merge every document cached under the anonymous scope into the remote
documents of --uid, removing each anonymous entry once its merge succeeds.

Entries that cannot be read or merged are kept and reported; running login
again retries them.

Exit codes:
  0 - Every entry migrated or nothing to migrate
  1 - One or more entries failed
  2 - Command error (no --uid, no --remote, storage error)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, rootOpts)
		},
	}
}

func runLogin(cmd *cobra.Command, opts *RootOptions) error {
	f := opts.formatter(cmd)
	ctx := commandContext(cmd)

	uid := opts.Config.Session.UID
	if uid == "" {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "login requires --uid", nil)
	}
	if opts.Config.Remote.URL == "" {
		return f.Fail(ExitCommandError, ErrCodeRemote, "login requires --remote", docsync.ErrNoRemote)
	}

	env, err := openEnv(ctx, opts)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.gate.Wait(ctx, opts.Config.Remote.ReadyTimeout); err != nil {
		f.VerboseLog("remote not ready (%v); migrating anyway", err)
	}

	report, err := env.binder.Migrator().MigrateAll(ctx, uid)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStorage, "list anonymous cache", err)
	}

	if err := f.Success(report, migrationText(report)); err != nil {
		return err
	}
	if failed := report.Count(docsync.OutcomeFailed); failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d document(s) not migrated", failed))
	}
	return nil
}

func migrationText(r docsync.MigrationReport) string {
	if len(r.Results) == 0 {
		return "Nothing to migrate."
	}
	var b strings.Builder
	for _, res := range r.Results {
		mark := "✓"
		if res.Outcome == docsync.OutcomeFailed {
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s %s %s", mark, res.Path, res.Outcome)
		if res.Error != "" {
			fmt.Fprintf(&b, ": %s", res.Error)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\n%d migrated, %d skipped, %d failed for %s",
		r.Count(docsync.OutcomeMigrated), r.Count(docsync.OutcomeSkipped), r.Count(docsync.OutcomeFailed), r.UserID)
	return b.String()
}
