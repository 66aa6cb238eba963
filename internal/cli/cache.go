package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/qwsync/internal/cache"
	"github.com/roach88/qwsync/internal/doc"
	"github.com/roach88/qwsync/internal/store"
)

// CacheOptions holds flags for the cache commands.
type CacheOptions struct {
	*RootOptions
	Scope string
}

// CacheListResult is the output of cache ls.
type CacheListResult struct {
	Scope   string        `json:"scope"`
	Entries []cache.Entry `json:"entries"`
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and edit the local cache",
	}
	cmd.PersistentFlags().StringVar(&opts.Scope, "scope", "", `cache scope; default is --uid, or "anon" when signed out`)

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List cached documents in a scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheList(cmd, opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <path>",
		Short: "Remove a cached document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheRemove(cmd, opts, args[0])
		},
	})
	return cmd
}

func (o *CacheOptions) scope() string {
	if o.Scope != "" {
		return o.Scope
	}
	return doc.ScopeFor(o.Config.Session.UID)
}

func openCache(o *CacheOptions) (*store.Store, *cache.Store, error) {
	db, err := store.Open(o.Config.CacheDB)
	if err != nil {
		return nil, nil, err
	}
	return db, cache.New(db, cache.WithLogger(o.Logger)), nil
}

func runCacheList(cmd *cobra.Command, opts *CacheOptions) error {
	f := opts.formatter(cmd)

	db, c, err := openCache(opts)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStorage, "open cache", err)
	}
	defer db.Close()

	scope := opts.scope()
	entries, err := c.List(commandContext(cmd), scope)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStorage, "list cache", err)
	}

	var b strings.Builder
	if len(entries) == 0 {
		fmt.Fprintf(&b, "No documents cached in scope %q.", scope)
	}
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s\t%s", e.Path, e.Raw)
	}
	return f.Success(CacheListResult{Scope: scope, Entries: entries}, b.String())
}

func runCacheRemove(cmd *cobra.Command, opts *CacheOptions, path string) error {
	f := opts.formatter(cmd)

	path = doc.SanitizePath(path)
	if path == "" {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "empty path", nil)
	}

	db, c, err := openCache(opts)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStorage, "open cache", err)
	}
	defer db.Close()

	scope := opts.scope()
	if err := c.Remove(commandContext(cmd), scope, path); err != nil {
		return f.Fail(ExitCommandError, ErrCodeStorage, "remove", err)
	}
	key := doc.CacheKey(scope, path)
	return f.Success(map[string]string{"removed": key}, "removed "+key)
}
