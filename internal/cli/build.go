package cli

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/eir/internal/builder"
	"github.com/roach88/eir/internal/harness"
	"github.com/roach88/eir/internal/lower"
	"github.com/roach88/eir/internal/store"
	"github.com/roach88/eir/internal/verify"
)

// BuildOptions holds flags for the build and lower commands.
type BuildOptions struct {
	*RootOptions
	Jobs  int
	Store string // lower only
	Quiet bool   // suppress IR in text output

	lower bool
}

// ScriptReport is the outcome of one script.
type ScriptReport struct {
	Script      string       `json:"script"`
	Pass        bool         `json:"pass"`
	Target      string       `json:"target,omitempty"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	ErrorCode   string       `json:"error_code,omitempty"` // expected build error
	Code        string       `json:"code,omitempty"`       // CLI error code when failed
	IR          string       `json:"ir,omitempty"`
	Stats       *lower.Stats `json:"stats,omitempty"`
	Errors      []string     `json:"errors,omitempty"`
}

// BuildReport is the output of the build and lower commands.
type BuildReport struct {
	Scripts []ScriptReport `json:"scripts"`
	Passed  int            `json:"passed"`
	Failed  int            `json:"failed"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <script.yaml>...",
		Short: "Build and verify modules from build scripts",
		Long: `Build each script's module through the IR builder, verify it, check
the script's assertions and print the module.

Scripts are built concurrently, each with its own builder and module.

Example:
  eir build testdata/scripts/*.yaml
  eir build --target wasm32-unknown-unknown classify.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args, cmd)
		},
	}

	addBuildFlags(cmd, opts)
	return cmd
}

// NewLowerCommand creates the lower command.
func NewLowerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts, lower: true}

	cmd := &cobra.Command{
		Use:   "lower <script.yaml>...",
		Short: "Build, lower and verify modules from build scripts",
		Long: `Build each script's module, verify it, rewrite runtime-backed ops into
calls to the runtime ABI, verify again and print the lowered module.

With --store, both the built and the lowered module are persisted in a
SQLite artifact store keyed by fingerprint.

Example:
  eir lower --store ./eir.db testdata/scripts/proto.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args, cmd)
		},
	}

	addBuildFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.Store, "store", "", "path to SQLite artifact store")
	return cmd
}

func addBuildFlags(cmd *cobra.Command, opts *BuildOptions) {
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", runtime.GOMAXPROCS(0), "scripts built concurrently")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "do not print IR")
}

func runBuild(opts *BuildOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	targets, err := opts.targets()
	if err != nil {
		_ = formatter.Error(ErrCodeTarget, err.Error(), nil)
		return WrapExitError(ExitCommandError, "target catalog", err)
	}

	scripts := make([]*harness.Script, len(paths))
	for i, path := range paths {
		s, err := harness.LoadScript(path)
		if err != nil {
			_ = formatter.Error(ErrCodeScript, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load script", err)
		}
		if opts.Target != "" {
			s.Target = opts.Target
		}
		if opts.lower {
			s.Lower = true
		}
		scripts[i] = s
	}

	hopts := []harness.Option{harness.WithLogger(logger), harness.WithTargets(targets)}
	if opts.Store != "" {
		st, err := store.Open(opts.Store, store.WithLogger(logger))
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open store", err)
		}
		defer st.Close()
		hopts = append(hopts, harness.WithStore(st))
		formatter.VerboseLog("Persisting artifacts to %s", opts.Store)
	}
	h, err := harness.New(hopts...)
	if err != nil {
		_ = formatter.Error(ErrCodeCatalog, err.Error(), nil)
		return WrapExitError(ExitCommandError, "runtime catalog", err)
	}

	reports := make([]ScriptReport, len(scripts))
	g, ctx := errgroup.WithContext(cmd.Context())
	if opts.Jobs > 0 {
		g.SetLimit(opts.Jobs)
	}
	for i, s := range scripts {
		formatter.VerboseLog("Building %s", s.Name())
		g.Go(func() error {
			result, err := h.Run(ctx, s)
			reports[i] = reportFor(s, result, err)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "interrupted", err)
	}

	report := BuildReport{Scripts: reports}
	for _, r := range reports {
		if r.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	if opts.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		writeTextReport(formatter, report, opts.Quiet)
	}

	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scripts failed", report.Failed, len(reports)))
	}
	return nil
}

func reportFor(s *harness.Script, result *harness.Result, err error) ScriptReport {
	r := ScriptReport{Script: s.Name()}
	if err != nil {
		r.Errors = []string{err.Error()}
		r.Code = failureCode(err)
		return r
	}
	r.Pass = result.Pass
	r.Target = result.Target.Triple
	r.Fingerprint = result.Fingerprint
	r.ErrorCode = result.ErrorCode
	r.IR = result.Text()
	r.Stats = result.Stats
	r.Errors = result.Errors
	if !r.Pass {
		r.Code = ErrCodeScriptFailed
	}
	return r
}

// failureCode classifies a script that did not run to completion.
func failureCode(err error) string {
	var diags verify.Diagnostics
	switch {
	case builder.IsBuildError(err), errors.As(err, &diags):
		return ErrCodeBuildFailed
	case lower.IsRewriteError(err), lower.IsQuotaError(err):
		return ErrCodeLowerFailed
	}
	return ErrCodeScript
}

func writeTextReport(f *OutputFormatter, report BuildReport, quiet bool) {
	for _, r := range report.Scripts {
		fmt.Fprintf(f.Writer, "%s %s", f.Mark(r.Pass), r.Script)
		switch {
		case r.ErrorCode != "":
			fmt.Fprintf(f.Writer, " (failed with %s as expected)", r.ErrorCode)
		case r.Stats != nil:
			fmt.Fprintf(f.Writer, " (%d rewrites in %d sweeps)", r.Stats.Total(), r.Stats.Sweeps)
		}
		fmt.Fprintln(f.Writer)
		for _, e := range r.Errors {
			fmt.Fprintf(f.Writer, "    %s\n", strings.ReplaceAll(strings.TrimRight(e, "\n"), "\n", "\n    "))
		}
		if !quiet && r.IR != "" {
			fmt.Fprintln(f.Writer)
			fmt.Fprintln(f.Writer, r.IR)
		}
	}
	fmt.Fprintf(f.Writer, "%d passed, %d failed\n", report.Passed, report.Failed)
}
