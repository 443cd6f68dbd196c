package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/eir/internal/ir"
)

// TypeInfo describes a parsed type.
type TypeInfo struct {
	Text      string `json:"text"`
	Kind      string `json:"kind"`
	Term      bool   `json:"term"`
	Immediate bool   `json:"immediate"`
	Boxed     bool   `json:"boxed"`
	Size      int    `json:"size"` // bytes, -1 when not static
}

func (i TypeInfo) String() string {
	var flags []string
	if i.Term {
		flags = append(flags, "term")
	}
	if i.Immediate {
		flags = append(flags, "immediate")
	}
	if i.Boxed {
		flags = append(flags, "boxed")
	}
	size := "dynamic"
	if i.Size >= 0 {
		size = fmt.Sprintf("%d bytes", i.Size)
	}
	return fmt.Sprintf("%s\n  kind: %s\n  size: %s\n  flags: %s", i.Text, i.Kind, size, strings.Join(flags, ", "))
}

// AttrInfo describes a parsed attribute.
type AttrInfo struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

func (i AttrInfo) String() string {
	return i.Text + " : " + i.Type
}

// NewTypeCommand creates the type command.
func NewTypeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "type <text>",
		Short: "Parse and re-print a type",
		Long: `Parse a type in IR syntax and print its canonical form.

Example:
  eir type 'tuple<atom, atom>'     # prints tuple<2x atom>
  eir type 'box<integer>'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			_, tgt, err := rootOpts.target()
			if err != nil {
				_ = formatter.Error(ErrCodeTarget, err.Error(), nil)
				return WrapExitError(ExitCommandError, "target", err)
			}
			t, err := ir.ParseType(ir.NewRegistry(), args[0])
			if err != nil {
				_ = formatter.Error(ErrCodeParse, err.Error(), nil)
				return WrapExitError(ExitFailure, "invalid type", err)
			}
			return formatter.Success(TypeInfo{
				Text:      t.String(),
				Kind:      t.Kind().String(),
				Term:      t.IsTerm(),
				Immediate: t.IsImmediate(),
				Boxed:     t.IsBoxed(),
				Size:      t.SizeInBytes(tgt.WordBytes()),
			})
		},
	}
}

// NewAttrCommand creates the attr command.
func NewAttrCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "attr <text>",
		Short: "Parse and re-print an attribute",
		Long: `Parse a constant attribute and print its canonical form and type.

Example:
  eir attr "atom<{ id = 0, value = 'ok' }>"
  eir attr 'int<{ value = 7, width = 64 }>'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			a, err := ir.ParseAttr(ir.NewAttrStore(ir.NewRegistry()), args[0])
			if err != nil {
				_ = formatter.Error(ErrCodeParse, err.Error(), nil)
				return WrapExitError(ExitFailure, "invalid attribute", err)
			}
			return formatter.Success(AttrInfo{Text: a.String(), Type: a.Type().String()})
		},
	}
}
