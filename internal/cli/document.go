package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qwsync/internal/doc"
	"github.com/roach88/qwsync/internal/docsync"
)

// DocumentResult is the output of get and put.
type DocumentResult struct {
	Path   string       `json:"path"`
	Scope  string       `json:"scope"`
	Remote bool         `json:"remote"` // whether the server was reachable
	Doc    doc.Document `json:"doc"`
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Load a document the way the app does",
		Long: `Bind a document, wait for remote hydration and print the result.

The cached value for the current scope is merged over an empty document; when
signed in and the server is reachable, the remote document is merged on top.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, rootOpts, args[0])
		},
	}
}

func runGet(cmd *cobra.Command, opts *RootOptions, path string) error {
	f := opts.formatter(cmd)
	ctx := commandContext(cmd)

	env, err := openEnv(ctx, opts)
	if err != nil {
		return err
	}
	defer env.Close()

	b, err := bindAndSettle(ctx, env, path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, fmt.Sprintf("bind %q", path), err)
	}
	defer b.Close()

	res := DocumentResult{
		Path:   b.Path(),
		Scope:  doc.ScopeFor(env.notifier.UserID()),
		Remote: env.remoteReady(),
		Doc:    b.Value(),
	}
	return f.Success(res, documentText(res.Doc))
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <path> <json>",
		Short: "Write a document through the debounced writer",
		Long: `Bind a document, write a JSON object to it and flush.

The object is written to the cache under the current scope and, when signed
in, shallow-merged into the remote document. Fields not present in the object
are kept remotely.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(cmd, rootOpts, args[0], args[1])
		},
	}
}

func runPut(cmd *cobra.Command, opts *RootOptions, path, body string) error {
	f := opts.formatter(cmd)
	ctx := commandContext(cmd)

	d, err := doc.Decode([]byte(body))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidDoc, "document must be a JSON object", err)
	}

	env, err := openEnv(ctx, opts)
	if err != nil {
		return err
	}
	defer env.Close()

	b, err := bindAndSettle(ctx, env, path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, fmt.Sprintf("bind %q", path), err)
	}
	defer b.Close()

	if err := b.Write(d); err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "write", err)
	}
	env.binder.Writer().Flush()
	f.VerboseLog("flushed %s", b.Path())

	res := DocumentResult{
		Path:   b.Path(),
		Scope:  doc.ScopeFor(env.notifier.UserID()),
		Remote: env.remoteReady(),
		Doc:    d,
	}
	return f.Success(res, documentText(d))
}

// bindAndSettle binds path and waits for the bootstrap remote read.
func bindAndSettle(ctx context.Context, env *syncEnv, path string) (*docsync.Binding, error) {
	b, err := env.binder.Bind(ctx, path, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := b.Sync(ctx); err != nil && !errors.Is(err, docsync.ErrBindingClosed) {
		b.Close()
		return nil, err
	}
	return b, nil
}

func documentText(d doc.Document) string {
	data, err := doc.Encode(d)
	if err != nil {
		return fmt.Sprint(map[string]any(d))
	}
	return string(data)
}
