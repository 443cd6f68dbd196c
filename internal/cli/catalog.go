package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/eir/internal/abi"
	"github.com/roach88/eir/internal/ir"
	"github.com/roach88/eir/internal/target"
)

// SymbolInfo is a runtime symbol resolved for a target.
type SymbolInfo struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
}

// IntrinsicInfo is one intrinsic.
type IntrinsicInfo struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Op    string `json:"op"`
	Arity int    `json:"arity"`
}

// ABIListing is the output of the abi command.
type ABIListing struct {
	Target     string          `json:"target"`
	Symbols    []SymbolInfo    `json:"symbols"`
	Intrinsics []IntrinsicInfo `json:"intrinsics"`
}

func (l ABIListing) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "runtime symbols for %s:\n", l.Target)
	for _, s := range l.Symbols {
		fmt.Fprintf(&sb, "  %s%s\n", ir.FormatSymbol(s.Name), s.Signature)
	}
	sb.WriteString("intrinsics:\n")
	for _, in := range l.Intrinsics {
		fmt.Fprintf(&sb, "  %-24s %s %s\n", in.Name, in.Kind, in.Op)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// NewABICommand creates the abi command.
func NewABICommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "abi",
		Short: "List runtime symbols and intrinsics",
		Long: `List the runtime entry points lowering may call, with signatures
resolved for the selected target's word size, and the intrinsics the
builder recognizes.

Example:
  eir abi --target wasm32-unknown-unknown`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runABI(rootOpts, cmd)
		},
	}
}

func runABI(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	_, tgt, err := opts.target()
	if err != nil {
		_ = formatter.Error(ErrCodeTarget, err.Error(), nil)
		return WrapExitError(ExitCommandError, "target", err)
	}
	cat, err := abi.Builtin()
	if err != nil {
		_ = formatter.Error(ErrCodeCatalog, err.Error(), nil)
		return WrapExitError(ExitCommandError, "runtime catalog", err)
	}

	listing := ABIListing{Target: tgt.Triple}
	types := ir.NewRegistry()
	for _, name := range cat.Symbols() {
		sig, err := cat.Signature(name, types, tgt.PointerWidth)
		if err != nil {
			_ = formatter.Error(ErrCodeCatalog, err.Error(), nil)
			return WrapExitError(ExitCommandError, "runtime catalog", err)
		}
		listing.Symbols = append(listing.Symbols, SymbolInfo{Name: name, Signature: sig.String()})
	}
	for _, in := range cat.Intrinsics() {
		listing.Intrinsics = append(listing.Intrinsics, IntrinsicInfo{
			Name:  in.Name,
			Kind:  string(in.Kind),
			Op:    in.Op,
			Arity: in.Arity,
		})
	}
	return formatter.Success(listing)
}

// TargetListing is the output of the targets command.
type TargetListing struct {
	Default string        `json:"default"`
	Targets []target.Info `json:"targets"`
}

func (l TargetListing) String() string {
	var sb strings.Builder
	for _, t := range l.Targets {
		mark := " "
		if t.Triple == l.Default {
			mark = "*"
		}
		fmt.Fprintf(&sb, "%s %-28s pointer=%d immediate=%d dialect=%s\n",
			mark, t.Triple, t.PointerWidth, t.ImmediateWidth, t.ExceptionDialect())
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// NewTargetsCommand creates the targets command.
func NewTargetsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List target presets",
		Long: `List the target presets, including any loaded with --target-file.
The default target is marked with *.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			c, err := rootOpts.targets()
			if err != nil {
				_ = formatter.Error(ErrCodeTarget, err.Error(), nil)
				return WrapExitError(ExitCommandError, "target catalog", err)
			}
			listing := TargetListing{Default: c.Default}
			for _, triple := range c.Triples() {
				info, _ := c.Lookup(triple)
				listing.Targets = append(listing.Targets, info)
			}
			return formatter.Success(listing)
		},
	}
}
