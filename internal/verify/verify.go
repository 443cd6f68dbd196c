// Package verify checks the structural invariants of built and lowered IR.
//
// Verification collects every problem rather than stopping at the first,
// so a front end bug surfaces with its full blast radius.
package verify

import (
	"fmt"
	"strings"

	"github.com/roach88/eir/internal/ir"
)

// Diagnostic codes (E100-E199)
const (
	ErrEmptyBody         = "E100" // definition without blocks
	ErrEntrySignature    = "E101" // entry block arguments disagree with the signature
	ErrMissingTerminator = "E102" // block does not end in a terminator
	ErrOpAfterTerminator = "E103" // terminator is not the last op
	ErrSuccessorArity    = "E104" // successor receives the wrong number of values
	ErrSuccessorType     = "E105" // successor argument type not assignable
	ErrUnreachableBlock  = "E106" // block cannot be reached from the entry
	ErrForeignValue      = "E107" // operand is nil or defined in another function
	ErrDeclarationBody   = "E108" // declaration carries blocks
	ErrReturn            = "E109" // return disagrees with the result type
	ErrForeignBlock      = "E110" // successor block belongs to another function
	ErrOperandCount      = "E111" // wrong operand count for the op kind
	ErrUnknownCallee     = "E112" // callee symbol not present in the module
	ErrInvalidType       = "E113" // value type fails structural verification
)

// Diagnostic is one verification failure.
type Diagnostic struct {
	Code     string      `json:"code"`
	Function string      `json:"function"`
	Block    string      `json:"block,omitempty"`
	Message  string      `json:"message"`
	Loc      ir.Location `json:"-"`
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	where := ir.FormatSymbol(d.Function)
	if d.Block != "" {
		where += " " + d.Block
	}
	if d.Loc.IsKnown() {
		return fmt.Sprintf("[%s] %s: %s (at %s)", d.Code, where, d.Message, d.Loc)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Code, where, d.Message)
}

// Diagnostics is a non-empty list of failures usable as an error.
type Diagnostics []Diagnostic

func (ds Diagnostics) Error() string {
	msgs := make([]string, len(ds))
	for i, d := range ds {
		msgs[i] = d.Error()
	}
	return strings.Join(msgs, "; ")
}

// AsError returns nil for no diagnostics, else a Diagnostics error.
func AsError(ds []Diagnostic) error {
	if len(ds) == 0 {
		return nil
	}
	return Diagnostics(ds)
}

// Module verifies every function of m.
func Module(m *ir.Module) []Diagnostic {
	var out []Diagnostic
	for _, f := range m.Functions() {
		out = append(out, Function(f)...)
	}
	return out
}

// Function verifies f. A declaration only needs to be bodiless.
func Function(f *ir.Function) []Diagnostic {
	v := &verifier{fn: f}
	if f.IsDeclaration() {
		if len(f.Blocks()) > 0 {
			v.report(ErrDeclarationBody, nil, f.Loc, "declaration has %d blocks", len(f.Blocks()))
		}
		return v.diags
	}
	entry := f.Entry()
	if entry == nil {
		v.report(ErrEmptyBody, nil, f.Loc, "definition has no blocks")
		return v.diags
	}
	v.checkEntry(entry)
	for _, b := range f.Blocks() {
		v.checkBlock(b)
	}
	v.checkReachable(entry)
	return v.diags
}

type verifier struct {
	fn    *ir.Function
	diags []Diagnostic
}

func (v *verifier) report(code string, b *ir.Block, loc ir.Location, format string, args ...any) {
	d := Diagnostic{Code: code, Function: v.fn.Name, Message: fmt.Sprintf(format, args...), Loc: loc}
	if b != nil {
		d.Block = b.String()
	}
	v.diags = append(v.diags, d)
}

func (v *verifier) checkEntry(entry *ir.Block) {
	params := v.fn.Sig.Params
	if entry.NumArgs() != len(params) {
		v.report(ErrEntrySignature, entry, v.fn.Loc,
			"entry takes %d arguments, signature has %d", entry.NumArgs(), len(params))
		return
	}
	for i, p := range params {
		if got := entry.Arg(i).Type(); got != p {
			v.report(ErrEntrySignature, entry, v.fn.Loc,
				"entry argument %d has type %s, signature says %s", i, got, p)
		}
	}
}

func (v *verifier) checkBlock(b *ir.Block) {
	ops := b.Ops()
	if len(ops) == 0 || !ops[len(ops)-1].Kind.IsTerminator() {
		v.report(ErrMissingTerminator, b, v.fn.Loc, "block does not end in a terminator")
	}
	for i, op := range ops {
		if op.Kind.IsTerminator() && i != len(ops)-1 {
			v.report(ErrOpAfterTerminator, b, op.Loc, "%s is followed by %d ops", op.Kind, len(ops)-1-i)
		}
		v.checkOperands(b, op)
		v.checkResults(b, op)
		v.checkSuccessors(b, op)
		if op.Kind == ir.OpReturn {
			v.checkReturn(b, op)
		}
	}
}

func (v *verifier) checkOperands(b *ir.Block, op *ir.Op) {
	for i, o := range op.Operands() {
		if o == nil || o.Function() != v.fn {
			v.report(ErrForeignValue, b, op.Loc, "%s operand %d is not defined in this function", op.Kind, i)
		}
	}
	lo, hi := operandRange(op)
	if n := len(op.Operands()); n < lo || (hi >= 0 && n > hi) {
		v.report(ErrOperandCount, b, op.Loc, "%s has %d operands, wants %s", op.Kind, n, describeRange(lo, hi))
	}
	switch op.Kind {
	case ir.OpStaticCall, ir.OpCall, ir.OpClosure:
		if m := v.fn.Module(); m != nil && m.Lookup(op.Callee) == nil {
			v.report(ErrUnknownCallee, b, op.Loc, "%s refers to unknown %s", op.Kind, ir.FormatSymbol(op.Callee))
		}
	}
}

func (v *verifier) checkResults(b *ir.Block, op *ir.Op) {
	for _, r := range op.Results() {
		t := r.Type()
		if t == nil {
			v.report(ErrInvalidType, b, op.Loc, "%s result %s has no type", op.Kind, r)
			continue
		}
		if t.HasStaticShape() {
			if err := ir.VerifyTupleElements(t.Elems()); err != nil {
				v.report(ErrInvalidType, b, op.Loc, "%s result %s: %v", op.Kind, r, err)
			}
		}
	}
}

func (v *verifier) checkSuccessors(b *ir.Block, op *ir.Op) {
	for _, s := range op.Successors() {
		if s.Block == nil || s.Block.Function() != v.fn {
			v.report(ErrForeignBlock, b, op.Loc, "%s successor %s is not in this function", op.Kind, s.Role)
			continue
		}
		implicit := op.ImplicitArgs(s.Role)
		if want, got := s.Block.NumArgs(), implicit+len(s.Args); want != got {
			v.report(ErrSuccessorArity, b, op.Loc, "%s successor %s %s takes %d arguments, receives %d",
				op.Kind, s.Role, s.Block, want, got)
			continue
		}
		for i, a := range s.Args {
			if a == nil || a.Function() != v.fn {
				v.report(ErrForeignValue, b, op.Loc, "%s successor %s argument %d is not defined in this function",
					op.Kind, s.Role, i)
				continue
			}
			param := s.Block.Arg(implicit + i).Type()
			if !ir.Assignable(a.Type(), param) {
				v.report(ErrSuccessorType, b, op.Loc, "%s successor %s argument %d: %s is not assignable to %s",
					op.Kind, s.Role, i, a.Type(), param)
			}
		}
	}
}

func (v *verifier) checkReturn(b *ir.Block, op *ir.Op) {
	results := v.fn.Sig.Results
	operands := op.Operands()
	if len(operands) != len(results) {
		v.report(ErrReturn, b, op.Loc, "returns %d values, signature has %d", len(operands), len(results))
		return
	}
	for i, o := range operands {
		if o != nil && !ir.Assignable(o.Type(), results[i]) {
			v.report(ErrReturn, b, op.Loc, "return value %d has type %s, want %s", i, o.Type(), results[i])
		}
	}
}

func (v *verifier) checkReachable(entry *ir.Block) {
	seen := map[*ir.Block]bool{entry: true}
	work := []*ir.Block{entry}
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		for _, s := range b.Successors() {
			if s != nil && !seen[s] {
				seen[s] = true
				work = append(work, s)
			}
		}
	}
	for _, b := range v.fn.Blocks() {
		if !seen[b] {
			v.report(ErrUnreachableBlock, b, v.fn.Loc, "block is not reachable from the entry")
		}
	}
}

// operandRange returns the inclusive operand bounds for op. hi < 0 means
// unbounded.
func operandRange(op *ir.Op) (lo, hi int) {
	switch op.Kind {
	case ir.OpConstant, ir.OpBr, ir.OpUnreachable, ir.OpBinaryStart, ir.OpTraceCapture:
		return 0, 0
	case ir.OpIsType, ir.OpTupleGet, ir.OpListHead, ir.OpListTail, ir.OpCast, ir.OpUnpackEnv,
		ir.OpTraceConstruct, ir.OpIf, ir.OpCondBr, ir.OpBinaryFinish, ir.OpReceiveStart,
		ir.OpReceiveWait, ir.OpReceiveDone, ir.OpLandingPad:
		return 1, 1
	case ir.OpCmpEq, ir.OpCmpEqStrict, ir.OpCmpNeq, ir.OpCmpNeqStrict, ir.OpCmpLt, ir.OpCmpLte,
		ir.OpCmpGt, ir.OpCmpGte, ir.OpAnd, ir.OpOr, ir.OpCons, ir.OpMapContains, ir.OpMapGet:
		return 2, 2
	case ir.OpReturn:
		return 0, 1
	case ir.OpThrow, ir.OpBinaryPush:
		return 2, 3
	case ir.OpBinaryMatch:
		return 1, 2
	case ir.OpClosureCall:
		return 1, -1
	case ir.OpMapUpdate:
		n := 1
		for _, a := range op.Actions {
			n += a.Operands()
		}
		return n, n
	case ir.OpMap:
		if len(op.Operands())%2 != 0 {
			return 0, len(op.Operands()) - 1
		}
	}
	return 0, -1
}

func describeRange(lo, hi int) string {
	switch {
	case hi < 0:
		return fmt.Sprintf("at least %d", lo)
	case lo == hi:
		return fmt.Sprint(lo)
	default:
		return fmt.Sprintf("%d to %d", lo, hi)
	}
}
