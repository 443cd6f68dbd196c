package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/eir/internal/target"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Target     string // target triple; empty selects the catalog default
	TargetFile string // YAML presets layered over the embedded catalog
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the eir CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "eir",
		Short: "eir - IR builder and lowering for an Erlang-like language",
		Long: `Build, verify and lower the SSA intermediate representation of an
Erlang-like language, and inspect the type system, attributes, runtime ABI
and target presets it is built against.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Target, "target", "", "target triple (default from the target catalog)")
	cmd.PersistentFlags().StringVar(&opts.TargetFile, "target-file", "", "YAML file with extra target presets")

	// Add subcommands
	cmd.AddCommand(NewTypeCommand(opts))
	cmd.AddCommand(NewAttrCommand(opts))
	cmd.AddCommand(NewABICommand(opts))
	cmd.AddCommand(NewTargetsCommand(opts))
	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewLowerCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// logger returns a text logger on w, at Debug level when verbose.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// targets returns the embedded target catalog, with --target-file layered
// over it.
func (o *RootOptions) targets() (*target.Catalog, error) {
	c := target.Builtin()
	if o.TargetFile == "" {
		return c, nil
	}
	extra, err := target.LoadFile(o.TargetFile)
	if err != nil {
		return nil, err
	}
	return c.Merge(extra), nil
}

// target resolves --target against the catalog.
func (o *RootOptions) target() (*target.Catalog, target.Info, error) {
	c, err := o.targets()
	if err != nil {
		return nil, target.Info{}, err
	}
	info, err := c.Lookup(o.Target)
	if err != nil {
		return nil, target.Info{}, err
	}
	return c, info, nil
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
		Color:     isTerminal(cmd.OutOrStdout()),
	}
}
