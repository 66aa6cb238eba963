package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/qwsync/internal/doc"
	"github.com/roach88/qwsync/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Schema string
	Scope  string
}

// ValidateResult is the output of the validate command.
type ValidateResult struct {
	Scope      string             `json:"scope"`
	Checked    []string           `json:"checked"`
	Violations []schema.Violation `json:"violations"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate --schema <file.cue|dir> [path...]",
		Short: "Check cached documents against CUE constraints",
		Long: `Check cached documents against the constraints declared under
"pages" in a CUE schema. With no paths, every document in the scope is checked.

Exit codes:
  0 - Every document satisfies the schema
  1 - One or more violations
  2 - Command error (schema does not compile, storage error)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE schema file or directory (required)")
	cmd.Flags().StringVar(&opts.Scope, "scope", "", `cache scope; default is --uid, or "anon" when signed out`)
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions, paths []string) error {
	f := opts.formatter(cmd)
	ctx := commandContext(cmd)

	s, err := schema.Load(opts.Schema)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "load schema", err)
	}

	db, c, err := openCache(&CacheOptions{RootOptions: opts.RootOptions, Scope: opts.Scope})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStorage, "open cache", err)
	}
	defer db.Close()

	scope := opts.Scope
	if scope == "" {
		scope = doc.ScopeFor(opts.Config.Session.UID)
	}

	if len(paths) == 0 {
		entries, err := c.List(ctx, scope)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStorage, "list cache", err)
		}
		for _, e := range entries {
			paths = append(paths, e.Path)
		}
	}

	res := ValidateResult{Scope: scope, Checked: []string{}, Violations: []schema.Violation{}}
	for _, p := range paths {
		p = doc.SanitizePath(p)
		if p == "" {
			continue
		}
		raw, ok, err := c.ReadRaw(ctx, scope, p)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStorage, fmt.Sprintf("read %q", p), err)
		}
		if !ok {
			res.Violations = append(res.Violations, schema.Violation{Path: p, Message: "not cached"})
			continue
		}
		d, err := doc.Decode([]byte(raw))
		if err != nil {
			res.Violations = append(res.Violations, schema.Violation{Path: p, Message: err.Error()})
			continue
		}
		res.Checked = append(res.Checked, p)
		res.Violations = append(res.Violations, s.Validate(p, d)...)
	}

	if err := f.Success(res, validateText(res)); err != nil {
		return err
	}
	if len(res.Violations) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d violation(s)", len(res.Violations)))
	}
	return nil
}

func validateText(r ValidateResult) string {
	var b strings.Builder
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "✗ %s: %s", v.Path, v.Message)
		if v.Line > 0 {
			fmt.Fprintf(&b, " (line %d)", v.Line)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%d checked, %d violation(s) in scope %s", len(r.Checked), len(r.Violations), r.Scope)
	return b.String()
}
