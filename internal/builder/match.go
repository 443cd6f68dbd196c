package builder

import (
	"github.com/roach88/eir/internal/ir"
)

// Pattern is one clause pattern. The set is closed.
type Pattern interface {
	pattern()
}

// AnyPattern matches every value. Bindings: [selector].
type AnyPattern struct{}

// LiteralPattern matches a value exactly equal (=:=) to a constant.
// Bindings: [selector].
type LiteralPattern struct {
	Value ir.Attr
}

// TypePattern matches values of a term type. Bindings: [selector narrowed
// to Type].
type TypePattern struct {
	Type *ir.Type
}

// TuplePattern matches tuples of the given arity. Bindings: [selector,
// element 0, ..., element Arity-1]. Arity must be positive; the empty tuple
// is matched with a LiteralPattern.
type TuplePattern struct {
	Arity int
}

// ConsPattern matches a non-empty list. Bindings: [selector, head, tail].
type ConsPattern struct{}

// MapKeyPattern matches maps holding Key. Bindings: [selector, value].
type MapKeyPattern struct {
	Key ir.Attr
}

// BinaryPattern matches a binary whose leading segment fits Spec. Size is
// an integer attribute, or nil for the type's default. Bindings: [selector,
// segment value, rest].
type BinaryPattern struct {
	Spec ir.BinarySpec
	Size ir.Attr
}

func (AnyPattern) pattern()     {}
func (LiteralPattern) pattern() {}
func (TypePattern) pattern()    {}
func (TuplePattern) pattern()   {}
func (ConsPattern) pattern()    {}
func (MapKeyPattern) pattern()  {}
func (BinaryPattern) pattern()  {}

// Guard emits a guard over a clause's bindings at the current insertion
// point and returns its boolean result. A guard may add blocks; the branch
// on its result is emitted wherever it leaves the insertion point.
type Guard func(b *Builder, bindings []*ir.Value) (*ir.Value, error)

// Clause pairs a pattern with an optional guard and its body. Body receives
// the pattern's bindings followed by Args.
type Clause struct {
	Pattern Pattern
	Guard   Guard
	Body    *ir.Block
	Args    []*ir.Value
}

// Match is a match construct over Selector. When NoMatch is nil a block
// raising error:{badmatch, Selector} is synthesized.
type Match struct {
	Selector *ir.Value
	Clauses  []Clause
	NoMatch  *Dest
}

// BuildMatch compiles m into a chain of tests starting at the insertion
// point. Clauses are tried in order and the first whose pattern and guard
// succeed wins. Emission stops after an unguarded AnyPattern, since later
// clauses cannot be reached. The insertion point is left on a terminated
// block.
func (b *Builder) BuildMatch(loc ir.Location, m Match) error {
	const op = "build_match"
	cur, err := b.insertionPoint(op, loc)
	if err != nil {
		return err
	}
	if err := b.termOperands(op, loc, m.Selector); err != nil {
		return err
	}
	mc := &matchCompiler{b: b, loc: loc, sel: m.Selector, noMatch: m.NoMatch}
	if len(m.Clauses) == 0 {
		next, err := mc.failTarget(true)
		if err != nil {
			return err
		}
		return b.BuildBr(loc, next)
	}
	for i, c := range m.Clauses {
		if c.Body == nil {
			return b.fail(ErrCodeMissingContinuation, op, loc, "clause %d has no body", i)
		}
		_, catchAll := c.Pattern.(AnyPattern)
		catchAll = catchAll && c.Guard == nil
		var next Dest
		if !catchAll {
			if next, err = mc.failTarget(i == len(m.Clauses)-1); err != nil {
				return err
			}
		}
		if err := b.PositionAtEnd(cur); err != nil {
			return err
		}
		if err := mc.clause(c, next); err != nil {
			return err
		}
		if catchAll {
			b.logger.Debug("match stops at catch-all clause", "clause", i, "unreached", len(m.Clauses)-i-1)
			return nil
		}
		cur = next.Block
	}
	return nil
}

type matchCompiler struct {
	b       *Builder
	loc     ir.Location
	sel     *ir.Value
	noMatch *Dest
}

// failTarget returns where control goes when a clause fails: a fresh test
// block, or the no-match block after the last clause.
func (mc *matchCompiler) failTarget(last bool) (Dest, error) {
	b := mc.b
	if !last {
		blk, err := b.AddBlock()
		return To(blk), err
	}
	if mc.noMatch != nil {
		return *mc.noMatch, nil
	}
	blk, err := b.AddBlock()
	if err != nil {
		return Dest{}, err
	}
	here := b.block
	if err := b.PositionAtEnd(blk); err != nil {
		return Dest{}, err
	}
	if err := mc.raiseBadmatch(); err != nil {
		return Dest{}, err
	}
	mc.noMatch = &Dest{Block: blk}
	return To(blk), b.PositionAtEnd(here)
}

func (mc *matchCompiler) raiseBadmatch() error {
	b, loc := mc.b, mc.loc
	class, err := b.BuildConstantAtom(loc, "error")
	if err != nil {
		return err
	}
	tag, err := b.BuildConstantAtom(loc, "badmatch")
	if err != nil {
		return err
	}
	reason, err := b.BuildTuple(loc, tag, mc.sel)
	if err != nil {
		return err
	}
	return b.BuildThrow(loc, class, reason, nil)
}

// test branches on a boolean: true continues in a fresh block which
// becomes the insertion point, anything else goes to next.
func (mc *matchCompiler) test(cond *ir.Value, next Dest) error {
	b := mc.b
	pass, err := b.AddBlock()
	if err != nil {
		return err
	}
	if err := mc.branch(cond, To(pass), next); err != nil {
		return err
	}
	return b.PositionAtEnd(pass)
}

// branch sends non-true outcomes of cond to no.
func (mc *matchCompiler) branch(cond *ir.Value, yes, no Dest) error {
	if cond != nil && cond.Type().IsI1() {
		return mc.b.BuildIf(mc.loc, cond, yes, no, nil)
	}
	return mc.b.BuildIf(mc.loc, cond, yes, no, &no)
}

func (mc *matchCompiler) typeTest(t *ir.Type, next Dest) error {
	cond, err := mc.b.BuildIsType(mc.loc, mc.sel, t)
	if err != nil {
		return err
	}
	return mc.test(cond, next)
}

func (mc *matchCompiler) clause(c Clause, next Dest) error {
	b, loc, sel := mc.b, mc.loc, mc.sel
	var bindings []*ir.Value
	switch p := c.Pattern.(type) {
	case AnyPattern:
		bindings = []*ir.Value{sel}

	case LiteralPattern:
		lit, err := b.BuildConstant(loc, p.Value)
		if err != nil {
			return err
		}
		eq, err := b.BuildEq(loc, sel, lit, true)
		if err != nil {
			return err
		}
		if err := mc.test(eq, next); err != nil {
			return err
		}
		bindings = []*ir.Value{sel}

	case TypePattern:
		if err := mc.typeTest(p.Type, next); err != nil {
			return err
		}
		v, err := b.BuildCast(loc, sel, p.Type)
		if err != nil {
			return err
		}
		bindings = []*ir.Value{v}

	case TuplePattern:
		if p.Arity <= 0 {
			return b.fail(ErrCodeBadArity, "build_match", loc, "tuple pattern arity %d", p.Arity)
		}
		t, err := b.types.UniformTuple(p.Arity, b.types.Term())
		if err != nil {
			return b.failWith(ErrCodeInvalidType, "build_match", loc, err, "tuple pattern")
		}
		if err := mc.typeTest(t, next); err != nil {
			return err
		}
		tuple, err := b.BuildCast(loc, sel, t)
		if err != nil {
			return err
		}
		bindings = []*ir.Value{sel}
		for i := 0; i < p.Arity; i++ {
			e, err := b.BuildTupleGet(loc, tuple, i)
			if err != nil {
				return err
			}
			bindings = append(bindings, e)
		}

	case ConsPattern:
		if err := mc.typeTest(b.types.Cons(), next); err != nil {
			return err
		}
		head, tail, err := b.BuildListSplit(loc, sel)
		if err != nil {
			return err
		}
		bindings = []*ir.Value{sel, head, tail}

	case MapKeyPattern:
		if err := mc.typeTest(b.types.Map(), next); err != nil {
			return err
		}
		key, err := b.BuildConstant(loc, p.Key)
		if err != nil {
			return err
		}
		has, err := b.BuildMapContains(loc, sel, key)
		if err != nil {
			return err
		}
		if err := mc.test(has, next); err != nil {
			return err
		}
		v, err := b.BuildMapGet(loc, sel, key)
		if err != nil {
			return err
		}
		bindings = []*ir.Value{sel, v}

	case BinaryPattern:
		if err := mc.typeTest(b.types.Binary(), next); err != nil {
			return err
		}
		var size *ir.Value
		if p.Size != nil {
			s, err := b.BuildConstant(loc, p.Size)
			if err != nil {
				return err
			}
			size = s
		}
		matched, err := b.AddBlock(b.types.Term(), b.types.Term())
		if err != nil {
			return err
		}
		if err := b.BuildBinaryMatch(loc, sel, size, p.Spec, To(matched), next); err != nil {
			return err
		}
		if err := b.PositionAtEnd(matched); err != nil {
			return err
		}
		bindings = []*ir.Value{sel, matched.Arg(0), matched.Arg(1)}

	default:
		return b.fail(ErrCodeInvalidType, "build_match", loc, "unknown pattern %T", c.Pattern)
	}

	body := Dest{Block: c.Body, Args: append(append([]*ir.Value(nil), bindings...), c.Args...)}
	if c.Guard == nil {
		return b.BuildBr(loc, body)
	}
	ok, err := c.Guard(b, bindings)
	if err != nil {
		return err
	}
	return mc.branch(ok, body, next)
}
