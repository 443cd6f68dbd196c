package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/eir/internal/ir"
)

// Assertion types.
const (
	AssertOpCount    = "op_count"
	AssertDeclares   = "declares"
	AssertBlockCount = "block_count"
	AssertContains   = "contains"
	AssertRewrites   = "rewrites"
)

// Assertion checks a property of the finished module. Function, when set,
// limits op_count and contains to one function.
type Assertion struct {
	Type     string `yaml:"type"`
	Op       string `yaml:"op,omitempty"`       // op_count: printed mnemonic
	Function string `yaml:"function,omitempty"` // block_count, op_count, contains
	Symbol   string `yaml:"symbol,omitempty"`   // declares
	Text     string `yaml:"text,omitempty"`     // contains
	Rule     string `yaml:"rule,omitempty"`     // rewrites
	Count    int    `yaml:"count"`
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string
	Actual   string
	Context  string // Printed IR the assertion looked at
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Context != "" {
		fmt.Fprintf(&buf, "\n%s", e.Context)
	}
	return buf.String()
}

func validateAssertion(i int, a *Assertion) error {
	switch a.Type {
	case AssertOpCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op_count requires op", i)
		}
	case AssertDeclares:
		if a.Symbol == "" {
			return fmt.Errorf("assertions[%d]: declares requires symbol", i)
		}
	case AssertBlockCount:
		if a.Function == "" {
			return fmt.Errorf("assertions[%d]: block_count requires function", i)
		}
	case AssertContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: contains requires text", i)
		}
	case AssertRewrites:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rewrites requires rule", i)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must not be negative", i)
	}
	return nil
}

// functions returns the functions an assertion applies to.
func functions(m *ir.Module, name string) ([]*ir.Function, error) {
	if name == "" {
		return m.Functions(), nil
	}
	f := m.Lookup(name)
	if f == nil {
		return nil, fmt.Errorf("no function %q", name)
	}
	return []*ir.Function{f}, nil
}

func assertOpCount(m *ir.Module, a Assertion) error {
	fns, err := functions(m, a.Function)
	if err != nil {
		return err
	}
	n := 0
	for _, f := range fns {
		for _, blk := range f.Blocks() {
			for _, op := range blk.Ops() {
				if op.Kind.String() == a.Op {
					n++
				}
			}
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertOpCount,
			Expected: fmt.Sprintf("%d %s ops", a.Count, a.Op),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

func assertDeclares(m *ir.Module, a Assertion) error {
	f := m.Lookup(a.Symbol)
	if f == nil || !f.IsDeclaration() {
		return &AssertionError{
			Type:     AssertDeclares,
			Expected: fmt.Sprintf("declaration of %s", ir.FormatSymbol(a.Symbol)),
			Actual:   "not declared",
			Context:  declarations(m),
		}
	}
	return nil
}

func declarations(m *ir.Module) string {
	var buf strings.Builder
	for _, f := range m.Functions() {
		if f.IsDeclaration() {
			fmt.Fprintf(&buf, "  declare %s\n", ir.FormatSymbol(f.Name))
		}
	}
	return buf.String()
}

func assertBlockCount(m *ir.Module, a Assertion) error {
	fns, err := functions(m, a.Function)
	if err != nil {
		return err
	}
	if n := len(fns[0].Blocks()); n != a.Count {
		return &AssertionError{
			Type:     AssertBlockCount,
			Expected: fmt.Sprintf("%d blocks in %s", a.Count, a.Function),
			Actual:   fmt.Sprintf("%d", n),
			Context:  ir.FormatFunction(fns[0]),
		}
	}
	return nil
}

func assertContains(m *ir.Module, a Assertion) error {
	fns, err := functions(m, a.Function)
	if err != nil {
		return err
	}
	var text strings.Builder
	for _, f := range fns {
		text.WriteString(ir.FormatFunction(f))
	}
	if !strings.Contains(text.String(), a.Text) {
		return &AssertionError{
			Type:     AssertContains,
			Expected: fmt.Sprintf("IR containing %q", a.Text),
			Actual:   "not found",
			Context:  text.String(),
		}
	}
	return nil
}

func assertRewrites(r *Result, a Assertion) error {
	if r.Stats == nil {
		return fmt.Errorf("rewrites requires a lowered script")
	}
	if n := r.Stats.Rewrites[a.Rule]; n != a.Count {
		rules := make([]string, 0, len(r.Stats.Rewrites))
		for rule, c := range r.Stats.Rewrites {
			rules = append(rules, fmt.Sprintf("%s=%d", rule, c))
		}
		slices.Sort(rules)
		return &AssertionError{
			Type:     AssertRewrites,
			Expected: fmt.Sprintf("%d rewrites by %s", a.Count, a.Rule),
			Actual:   strings.Join(rules, " "),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result's module.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string
	if result.Module == nil {
		if len(assertions) > 0 {
			errors = append(errors, "assertions need a built module")
		}
		return errors
	}

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOpCount:
			err = assertOpCount(result.Module, assertion)
		case AssertDeclares:
			err = assertDeclares(result.Module, assertion)
		case AssertBlockCount:
			err = assertBlockCount(result.Module, assertion)
		case AssertContains:
			err = assertContains(result.Module, assertion)
		case AssertRewrites:
			err = assertRewrites(result, assertion)
		default:
			err = fmt.Errorf("unknown assertion type %q", assertion.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %v", i, err))
		}
	}

	return errors
}
