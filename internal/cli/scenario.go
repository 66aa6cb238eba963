package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/qwsync/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	GoldenDir string
	Update    bool
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	File   string          `json:"file"`
	Name   string          `json:"name"`
	Result *harness.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file.yaml>...",
		Short: "Run sync scenarios against an in-memory stack",
		Long: `Run YAML sync scenarios on a fake clock with an in-memory cache and
remote, and check their assertions.

With --golden, each trace is compared against {dir}/{name}.golden;
--update rewrites the golden files instead.

Exit codes:
  0 - Every scenario passed
  1 - One or more scenarios failed
  2 - Command error (unreadable or invalid scenario)`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "directory of golden trace files")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files from the traces")

	return cmd
}

func runScenarios(cmd *cobra.Command, opts *ScenarioOptions, files []string) error {
	f := opts.formatter(cmd)
	if opts.Update && opts.GoldenDir == "" {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "--update requires --golden", nil)
	}

	results := make([]ScenarioResult, 0, len(files))
	failed := 0
	for _, file := range files {
		s, err := harness.LoadScenario(file)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeInvalidArgs, fmt.Sprintf("load %s", file), err)
		}
		f.VerboseLog("running %s", s.Name)

		res := ScenarioResult{File: file, Name: s.Name}
		result, err := harness.Run(s)
		if err != nil {
			res.Error = err.Error()
			failed++
			results = append(results, res)
			continue
		}
		if opts.GoldenDir != "" {
			if err := opts.golden(s.Name, result); err != nil {
				result.AddError(err.Error())
			}
		}
		if !result.Pass {
			failed++
		}
		res.Result = result
		results = append(results, res)
	}

	if err := f.Success(results, scenarioText(results)); err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", failed, len(files)))
	}
	return nil
}

// golden compares or rewrites the trace file for name.
func (o *ScenarioOptions) golden(name string, result *harness.Result) error {
	data, err := harness.MarshalTrace(name, result.Trace)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	path := filepath.Join(o.GoldenDir, name+".golden")
	if o.Update {
		if err := os.MkdirAll(o.GoldenDir, 0o755); err != nil {
			return fmt.Errorf("write golden: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write golden: %w", err)
		}
		return nil
	}
	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read golden: %w", err)
	}
	if string(want) != string(data) {
		return fmt.Errorf("trace differs from %s", path)
	}
	return nil
}

func scenarioText(results []ScenarioResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch {
		case r.Error != "":
			fmt.Fprintf(&b, "✗ %s: %s", r.Name, r.Error)
		case r.Result.Pass:
			fmt.Fprintf(&b, "✓ %s (%d events)", r.Name, len(r.Result.Trace))
		default:
			fmt.Fprintf(&b, "✗ %s", r.Name)
			for _, e := range r.Result.Errors {
				fmt.Fprintf(&b, "\n    %s", e)
			}
		}
	}
	return b.String()
}
