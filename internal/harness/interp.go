package harness

import (
	"fmt"
	"math/big"

	"github.com/roach88/eir/internal/builder"
	"github.com/roach88/eir/internal/ir"
)

// fnBuilder replays one FunctionSpec. Values and blocks are looked up by
// the names the script gives them.
type fnBuilder struct {
	b      *builder.Builder
	script *Script
	spec   FunctionSpec
	fn     *ir.Function
	values map[string]*ir.Value
	blocks map[string]*ir.Block
}

type stepHandler func(fb *fnBuilder, s *Step) error

// stepHandlers maps each script op to the builder call it drives.
var stepHandlers map[string]stepHandler

func init() {
	stepHandlers = map[string]stepHandler{
		"const":           stepConst,
		"compare":         stepCompare,
		"and":             stepLogical,
		"or":              stepLogical,
		"is_type":         stepIsType,
		"cast":            stepCast,
		"cons":            stepCons,
		"tuple":           stepTuple,
		"map":             stepMap,
		"tuple_get":       stepTupleGet,
		"list_split":      stepListSplit,
		"map_get":         stepMapGet,
		"map_contains":    stepMapContains,
		"closure":         stepClosure,
		"unpack_env":      stepUnpackEnv,
		"trace_construct": stepTraceConstruct,
		"intrinsic":       stepIntrinsic,
		"br":              stepBr,
		"if":              stepIf,
		"return":          stepReturn,
		"unreachable":     stepUnreachable,
		"call":            stepCall,
		"call_closure":    stepCallClosure,
		"throw":           stepThrow,
		"landing_pad":     stepLandingPad,
		"map_update":      stepMapUpdate,
		"binary_start":    stepBinaryStart,
		"binary_push":     stepBinaryPush,
		"binary_finish":   stepBinaryFinish,
		"binary_match":    stepBinaryMatch,
		"receive_start":   stepReceiveStart,
		"receive_wait":    stepReceiveWait,
		"receive_done":    stepReceiveDone,
		"trace_capture":   stepTraceCapture,
		"match":           stepMatch,
	}
}

var compareKinds = map[string]ir.OpKind{
	"eq":         ir.OpCmpEq,
	"eq.strict":  ir.OpCmpEqStrict,
	"neq":        ir.OpCmpNeq,
	"neq.strict": ir.OpCmpNeqStrict,
	"lt":         ir.OpCmpLt,
	"lte":        ir.OpCmpLte,
	"gt":         ir.OpCmpGt,
	"gte":        ir.OpCmpGte,
}

func (fb *fnBuilder) build() error {
	args := make([]builder.Arg, len(fb.spec.Params))
	for i, p := range fb.spec.Params {
		t, err := fb.typeOf(p.Type)
		if err != nil {
			return fmt.Errorf("function %s: param %s: %w", fb.spec.Name, p.Name, err)
		}
		args[i] = builder.Arg{Name: p.Name, Type: t, EnvArity: p.Env}
	}
	var result *ir.Type
	if fb.spec.Result != "" {
		var err error
		if result, err = fb.typeOf(fb.spec.Result); err != nil {
			return fmt.Errorf("function %s: result: %w", fb.spec.Name, err)
		}
	}
	loc := ir.Location{File: fb.script.file()}
	fn, err := fb.b.CreateFunction(loc, fb.spec.Name, args, result)
	if err != nil {
		return err
	}
	fb.fn = fn
	fb.values = make(map[string]*ir.Value)
	fb.blocks = make(map[string]*ir.Block, len(fb.spec.Blocks))

	entry := fn.Entry()
	fb.blocks[fb.spec.Blocks[0].Label] = entry
	for i, p := range fb.spec.Params {
		fb.bind(p.Name, entry.Arg(i))
	}
	// Blocks are created up front so that forward branches resolve.
	for _, bs := range fb.spec.Blocks[1:] {
		types := make([]*ir.Type, len(bs.Args))
		for i, a := range bs.Args {
			if types[i], err = fb.typeOf(a.Type); err != nil {
				return fmt.Errorf("block %s: arg %s: %w", bs.Label, a.Name, err)
			}
		}
		blk, err := fb.b.AddBlock(types...)
		if err != nil {
			return err
		}
		fb.blocks[bs.Label] = blk
		for i, a := range bs.Args {
			fb.bind(a.Name, blk.Arg(i))
		}
	}

	for _, bs := range fb.spec.Blocks {
		if err := fb.b.PositionAtEnd(fb.blocks[bs.Label]); err != nil {
			return err
		}
		for i := range bs.Ops {
			s := &bs.Ops[i]
			if err := stepHandlers[s.Op](fb, s); err != nil {
				return fmt.Errorf("%s: %s: %w", fb.loc(s), s.Op, err)
			}
		}
	}
	return fb.b.FinishFunction()
}

func (fb *fnBuilder) loc(s *Step) ir.Location {
	return ir.Location{File: fb.script.file(), Line: s.line, Column: s.column}
}

func (fb *fnBuilder) typeOf(src string) (*ir.Type, error) {
	if src == "" {
		return fb.b.Types().Term(), nil
	}
	return ir.ParseType(fb.b.Types(), src)
}

func (fb *fnBuilder) bind(name string, v *ir.Value) {
	if name != "" && name != "_" {
		fb.values[name] = v
	}
}

// define names the results of a step. Extra names are an error; missing
// names leave results anonymous.
func (fb *fnBuilder) define(s *Step, vs ...*ir.Value) error {
	if len(s.As) > len(vs) {
		return fmt.Errorf("%d names for %d results", len(s.As), len(vs))
	}
	for i, name := range s.As {
		if _, dup := fb.values[name]; dup {
			return fmt.Errorf("value %q is already defined", name)
		}
		fb.bind(name, vs[i])
	}
	return nil
}

func (fb *fnBuilder) value(name string) (*ir.Value, error) {
	v, ok := fb.values[name]
	if !ok {
		return nil, fmt.Errorf("unknown value %q", name)
	}
	return v, nil
}

func (fb *fnBuilder) args(s *Step, n int) ([]*ir.Value, error) {
	if n >= 0 && len(s.Args) != n {
		return nil, fmt.Errorf("want %d args, got %d", n, len(s.Args))
	}
	return fb.valueList(s.Args)
}

func (fb *fnBuilder) valueList(names []string) ([]*ir.Value, error) {
	vs := make([]*ir.Value, len(names))
	for i, name := range names {
		v, err := fb.value(name)
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	return vs, nil
}

func (fb *fnBuilder) dest(role string, d *DestSpec) (builder.Dest, error) {
	if d == nil {
		return builder.Dest{}, fmt.Errorf("%s continuation is required", role)
	}
	blk, ok := fb.blocks[d.Block]
	if !ok {
		return builder.Dest{}, fmt.Errorf("%s: unknown block %q", role, d.Block)
	}
	args, err := fb.valueList(d.Args)
	if err != nil {
		return builder.Dest{}, fmt.Errorf("%s: %w", role, err)
	}
	return builder.Dest{Block: blk, Args: args}, nil
}

func (fb *fnBuilder) optionalDest(role string, d *DestSpec) (*builder.Dest, error) {
	if d == nil {
		return nil, nil
	}
	dest, err := fb.dest(role, d)
	if err != nil {
		return nil, err
	}
	return &dest, nil
}

func (fb *fnBuilder) segment(s *SegmentSpec) (ir.BinarySpec, error) {
	if s == nil {
		return ir.BinarySpec{}, fmt.Errorf("segment spec is required")
	}
	bt, ok := ir.ParseBinaryType(s.Type)
	if !ok {
		return ir.BinarySpec{}, fmt.Errorf("unknown segment type %q", s.Type)
	}
	endian, ok := ir.ParseEndianness(s.Endian)
	if !ok {
		return ir.BinarySpec{}, fmt.Errorf("unknown endianness %q", s.Endian)
	}
	spec := ir.BinarySpec{Type: bt, Unit: s.Unit, Endian: endian, Signed: s.Signed}
	if spec.Unit == 0 {
		spec.Unit = spec.DefaultUnit()
	}
	return spec, nil
}

// attr interns a literal. Integers follow the builder's fixnum/bigint
// split so that literal patterns compare against the same constants the
// front end would emit.
func (fb *fnBuilder) attr(l *Literal) (ir.Attr, error) {
	attrs := fb.b.Attrs()
	switch {
	case l.Atom != nil:
		return attrs.AtomNamed(*l.Atom), nil
	case l.Int != nil:
		return fb.b.IntegerAttr(big.NewInt(*l.Int))
	case l.BigInt != "":
		v, ok := new(big.Int).SetString(l.BigInt, 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer literal %q", l.BigInt)
		}
		return fb.b.IntegerAttr(v)
	case l.Float != nil:
		return attrs.Float(*l.Float), nil
	case l.String != nil:
		return attrs.String(*l.String), nil
	case l.Bool != nil:
		if *l.Bool {
			return attrs.AtomNamed("true"), nil
		}
		return attrs.AtomNamed("false"), nil
	case l.Nil:
		return attrs.Nil(), nil
	case l.Attr != "":
		return ir.ParseAttr(attrs, l.Attr)
	}
	return nil, fmt.Errorf("empty literal")
}

func stepConst(fb *fnBuilder, s *Step) error {
	if s.Value == nil {
		return fmt.Errorf("value is required")
	}
	var (
		v   *ir.Value
		err error
	)
	if s.Value.Bool != nil {
		v, err = fb.b.BuildConstantBool(fb.loc(s), *s.Value.Bool)
	} else {
		var a ir.Attr
		if a, err = fb.attr(s.Value); err != nil {
			return err
		}
		v, err = fb.b.BuildConstant(fb.loc(s), a)
	}
	if err != nil {
		return err
	}
	return fb.define(s, v)
}

func stepCompare(fb *fnBuilder, s *Step) error {
	kind, ok := compareKinds[s.Kind]
	if !ok {
		return fmt.Errorf("unknown comparison %q", s.Kind)
	}
	vs, err := fb.args(s, 2)
	if err != nil {
		return err
	}
	v, err := fb.b.BuildCompare(fb.loc(s), kind, vs[0], vs[1])
	if err != nil {
		return err
	}
	return fb.define(s, v)
}

func stepLogical(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 2)
	if err != nil {
		return err
	}
	build := fb.b.BuildAnd
	if s.Op == "or" {
		build = fb.b.BuildOr
	}
	v, err := build(fb.loc(s), vs[0], vs[1])
	if err != nil {
		return err
	}
	return fb.define(s, v)
}

func stepIsType(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 1)
	if err != nil {
		return err
	}
	t, err := ir.ParseType(fb.b.Types(), s.Type)
	if err != nil {
		return err
	}
	v, err := fb.b.BuildIsType(fb.loc(s), vs[0], t)
	if err != nil {
		return err
	}
	return fb.define(s, v)
}

func stepCast(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 1)
	if err != nil {
		return err
	}
	t, err := ir.ParseType(fb.b.Types(), s.Type)
	if err != nil {
		return err
	}
	v, err := fb.b.BuildCast(fb.loc(s), vs[0], t)
	if err != nil {
		return err
	}
	return fb.define(s, v)
}

func stepCons(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 2)
	if err != nil {
		return err
	}
	v, err := fb.b.BuildCons(fb.loc(s), vs[0], vs[1])
	if err != nil {
		return err
	}
	return fb.define(s, v)
}

func stepTuple(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, -1)
	if err != nil {
		return err
	}
	v, err := fb.b.BuildTuple(fb.loc(s), vs...)
	if err != nil {
		return err
	}
	return fb.define(s, v)
}

// stepMap takes alternating keys and values.
func stepMap(fb *fnBuilder, s *Step) error {
	if len(s.Args)%2 != 0 {
		return fmt.Errorf("map takes key/value pairs, got %d args", len(s.Args))
	}
	vs, err := fb.args(s, -1)
	if err != nil {
		return err
	}
	entries := make([]builder.MapEntry, 0, len(vs)/2)
	for i := 0; i < len(vs); i += 2 {
		entries = append(entries, builder.MapEntry{Key: vs[i], Value: vs[i+1]})
	}
	v, err := fb.b.BuildMap(fb.loc(s), entries)
	if err != nil {
		return err
	}
	return fb.define(s, v)
}

func stepTupleGet(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 1)
	if err != nil {
		return err
	}
	v, err := fb.b.BuildTupleGet(fb.loc(s), vs[0], s.Index)
	if err != nil {
		return err
	}
	return fb.define(s, v)
}

func stepListSplit(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 1)
	if err != nil {
		return err
	}
	head, tail, err := fb.b.BuildListSplit(fb.loc(s), vs[0])
	if err != nil {
		return err
	}
	return fb.define(s, head, tail)
}

func stepMapGet(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 2)
	if err != nil {
		return err
	}
	v, err := fb.b.BuildMapGet(fb.loc(s), vs[0], vs[1])
	if err != nil {
		return err
	}
	return fb.define(s, v)
}

func stepMapContains(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 2)
	if err != nil {
		return err
	}
	v, err := fb.b.BuildMapContains(fb.loc(s), vs[0], vs[1])
	if err != nil {
		return err
	}
	return fb.define(s, v)
}

func stepClosure(fb *fnBuilder, s *Step) error {
	callee := fb.b.Module().Lookup(s.Callee)
	if callee == nil {
		return fmt.Errorf("unknown function %q", s.Callee)
	}
	env, err := fb.args(s, -1)
	if err != nil {
		return err
	}
	v, err := fb.b.BuildClosure(fb.loc(s), callee, env)
	if err != nil {
		return err
	}
	return fb.define(s, v)
}

func stepUnpackEnv(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 1)
	if err != nil {
		return err
	}
	v, err := fb.b.BuildUnpackEnv(fb.loc(s), vs[0], s.Index)
	if err != nil {
		return err
	}
	return fb.define(s, v)
}

func stepTraceConstruct(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 1)
	if err != nil {
		return err
	}
	v, err := fb.b.BuildTraceConstruct(fb.loc(s), vs[0])
	if err != nil {
		return err
	}
	return fb.define(s, v)
}

func stepIntrinsic(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, -1)
	if err != nil {
		return err
	}
	v, ok, err := fb.b.MaybeBuildIntrinsic(fb.loc(s), s.Callee, vs)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not an intrinsic", s.Callee)
	}
	return fb.define(s, v)
}

func stepBr(fb *fnBuilder, s *Step) error {
	d, err := fb.dest("to", s.To)
	if err != nil {
		return err
	}
	return fb.b.BuildBr(fb.loc(s), d)
}

func stepIf(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 1)
	if err != nil {
		return err
	}
	yes, err := fb.dest("then", s.Then)
	if err != nil {
		return err
	}
	no, err := fb.dest("else", s.Else)
	if err != nil {
		return err
	}
	other, err := fb.optionalDest("other", s.Other)
	if err != nil {
		return err
	}
	return fb.b.BuildIf(fb.loc(s), vs[0], yes, no, other)
}

func stepReturn(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 1)
	if err != nil {
		return err
	}
	return fb.b.BuildReturn(fb.loc(s), vs[0])
}

func stepUnreachable(fb *fnBuilder, s *Step) error {
	return fb.b.BuildUnreachable(fb.loc(s))
}

// stepCall builds a call by symbol. A tail call may omit ok.
func stepCall(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, -1)
	if err != nil {
		return err
	}
	ok, err := fb.optionalDest("ok", s.OK)
	if err != nil {
		return err
	}
	fail, err := fb.optionalDest("err", s.Err)
	if err != nil {
		return err
	}
	return fb.b.BuildCall(fb.loc(s), s.Callee, vs, s.Tail, ok, fail)
}

// stepCallClosure takes the closure as its first arg.
func stepCallClosure(fb *fnBuilder, s *Step) error {
	if len(s.Args) == 0 {
		return fmt.Errorf("closure operand is required")
	}
	vs, err := fb.args(s, -1)
	if err != nil {
		return err
	}
	ok, err := fb.optionalDest("ok", s.OK)
	if err != nil {
		return err
	}
	fail, err := fb.dest("err", s.Err)
	if err != nil {
		return err
	}
	return fb.b.BuildClosureCall(fb.loc(s), vs[0], vs[1:], s.Tail, ok, fail)
}

// stepThrow takes class, reason and an optional trace.
func stepThrow(fb *fnBuilder, s *Step) error {
	if len(s.Args) != 2 && len(s.Args) != 3 {
		return fmt.Errorf("throw takes class, reason and an optional trace")
	}
	vs, err := fb.args(s, -1)
	if err != nil {
		return err
	}
	var trace *ir.Value
	if len(vs) == 3 {
		trace = vs[2]
	}
	return fb.b.BuildThrow(fb.loc(s), vs[0], vs[1], trace)
}

// stepLandingPad creates a pad block named by Label. Later steps use the
// label as an err continuation.
func stepLandingPad(fb *fnBuilder, s *Step) error {
	if s.Label == "" {
		return fmt.Errorf("label is required")
	}
	if _, dup := fb.blocks[s.Label]; dup {
		return fmt.Errorf("block %q is already defined", s.Label)
	}
	d, err := fb.dest("err", s.Err)
	if err != nil {
		return err
	}
	pad, err := fb.b.BuildLandingPad(fb.loc(s), d)
	if err != nil {
		return err
	}
	fb.blocks[s.Label] = pad
	return nil
}

func stepMapUpdate(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 1)
	if err != nil {
		return err
	}
	changes := make([]builder.MapChange, len(s.Changes))
	for i, c := range s.Changes {
		switch c.Action {
		case "insert", "":
			changes[i].Action = ir.MapInsert
		case "update":
			changes[i].Action = ir.MapUpdate
		case "remove":
			changes[i].Action = ir.MapRemove
		default:
			return fmt.Errorf("changes[%d]: unknown action %q", i, c.Action)
		}
		if changes[i].Key, err = fb.value(c.Key); err != nil {
			return fmt.Errorf("changes[%d]: %w", i, err)
		}
		if changes[i].Action != ir.MapRemove {
			if changes[i].Value, err = fb.value(c.Value); err != nil {
				return fmt.Errorf("changes[%d]: %w", i, err)
			}
		}
	}
	ok, err := fb.dest("ok", s.OK)
	if err != nil {
		return err
	}
	fail, err := fb.dest("err", s.Err)
	if err != nil {
		return err
	}
	return fb.b.BuildMapUpdate(fb.loc(s), vs[0], changes, ok, fail)
}

func stepBinaryStart(fb *fnBuilder, s *Step) error {
	d, err := fb.dest("to", s.To)
	if err != nil {
		return err
	}
	return fb.b.BuildBinaryStart(fb.loc(s), d)
}

// stepBinaryPush takes the handle, the value and an optional size.
func stepBinaryPush(fb *fnBuilder, s *Step) error {
	if len(s.Args) != 2 && len(s.Args) != 3 {
		return fmt.Errorf("binary_push takes handle, value and an optional size")
	}
	vs, err := fb.args(s, -1)
	if err != nil {
		return err
	}
	var size *ir.Value
	if len(vs) == 3 {
		size = vs[2]
	}
	spec, err := fb.segment(s.Spec)
	if err != nil {
		return err
	}
	ok, err := fb.dest("ok", s.OK)
	if err != nil {
		return err
	}
	fail, err := fb.dest("err", s.Err)
	if err != nil {
		return err
	}
	return fb.b.BuildBinaryPush(fb.loc(s), vs[0], vs[1], size, spec, ok, fail)
}

func stepBinaryFinish(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 1)
	if err != nil {
		return err
	}
	d, err := fb.dest("to", s.To)
	if err != nil {
		return err
	}
	return fb.b.BuildBinaryFinish(fb.loc(s), vs[0], d)
}

// stepBinaryMatch takes the binary and an optional size.
func stepBinaryMatch(fb *fnBuilder, s *Step) error {
	if len(s.Args) != 1 && len(s.Args) != 2 {
		return fmt.Errorf("binary_match takes a binary and an optional size")
	}
	vs, err := fb.args(s, -1)
	if err != nil {
		return err
	}
	var size *ir.Value
	if len(vs) == 2 {
		size = vs[1]
	}
	spec, err := fb.segment(s.Spec)
	if err != nil {
		return err
	}
	ok, err := fb.dest("ok", s.OK)
	if err != nil {
		return err
	}
	fail, err := fb.dest("err", s.Err)
	if err != nil {
		return err
	}
	return fb.b.BuildBinaryMatch(fb.loc(s), vs[0], size, spec, ok, fail)
}

func stepReceiveStart(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 1)
	if err != nil {
		return err
	}
	d, err := fb.dest("to", s.To)
	if err != nil {
		return err
	}
	return fb.b.BuildReceiveStart(fb.loc(s), vs[0], d)
}

func stepReceiveWait(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 1)
	if err != nil {
		return err
	}
	timeout, err := fb.dest("timeout", s.Timeout)
	if err != nil {
		return err
	}
	check, err := fb.dest("check", s.Check)
	if err != nil {
		return err
	}
	return fb.b.BuildReceiveWait(fb.loc(s), vs[0], timeout, check)
}

func stepReceiveDone(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 1)
	if err != nil {
		return err
	}
	d, err := fb.dest("to", s.To)
	if err != nil {
		return err
	}
	return fb.b.BuildReceiveDone(fb.loc(s), vs[0], d)
}

func stepTraceCapture(fb *fnBuilder, s *Step) error {
	d, err := fb.dest("to", s.To)
	if err != nil {
		return err
	}
	return fb.b.BuildTraceCapture(fb.loc(s), d)
}

func stepMatch(fb *fnBuilder, s *Step) error {
	vs, err := fb.args(s, 1)
	if err != nil {
		return err
	}
	m := builder.Match{Selector: vs[0]}
	for i := range s.Clauses {
		c, err := fb.clause(s, &s.Clauses[i])
		if err != nil {
			return fmt.Errorf("clauses[%d]: %w", i, err)
		}
		m.Clauses = append(m.Clauses, c)
	}
	if m.NoMatch, err = fb.optionalDest("no_match", s.NoMatch); err != nil {
		return err
	}
	return fb.b.BuildMatch(fb.loc(s), m)
}

func (fb *fnBuilder) clause(s *Step, cs *ClauseSpec) (builder.Clause, error) {
	var c builder.Clause
	p, err := fb.pattern(&cs.Pattern)
	if err != nil {
		return c, err
	}
	body, err := fb.dest("body", &cs.Body)
	if err != nil {
		return c, err
	}
	c.Pattern, c.Body, c.Args = p, body.Block, body.Args
	if g := cs.Guard; g != nil {
		loc := fb.loc(s)
		c.Guard = func(b *builder.Builder, bindings []*ir.Value) (*ir.Value, error) {
			args := make([]*ir.Value, len(g.Bind))
			for i, idx := range g.Bind {
				if idx < 0 || idx >= len(bindings) {
					return nil, fmt.Errorf("guard binding %d out of range [0, %d)", idx, len(bindings))
				}
				args[i] = bindings[idx]
			}
			v, ok, err := b.MaybeBuildIntrinsic(loc, g.Intrinsic, args)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("guard %s is not an intrinsic", g.Intrinsic)
			}
			return v, nil
		}
	}
	return c, nil
}

func (fb *fnBuilder) pattern(ps *PatternSpec) (builder.Pattern, error) {
	switch {
	case ps.Literal != nil:
		a, err := fb.attr(ps.Literal)
		if err != nil {
			return nil, err
		}
		return builder.LiteralPattern{Value: a}, nil
	case ps.Type != "":
		t, err := ir.ParseType(fb.b.Types(), ps.Type)
		if err != nil {
			return nil, err
		}
		return builder.TypePattern{Type: t}, nil
	case ps.Tuple > 0:
		return builder.TuplePattern{Arity: ps.Tuple}, nil
	case ps.Cons:
		return builder.ConsPattern{}, nil
	case ps.MapKey != nil:
		a, err := fb.attr(ps.MapKey)
		if err != nil {
			return nil, err
		}
		return builder.MapKeyPattern{Key: a}, nil
	case ps.Binary != nil:
		spec, err := fb.segment(ps.Binary)
		if err != nil {
			return nil, err
		}
		p := builder.BinaryPattern{Spec: spec}
		if ps.Size != nil {
			if p.Size, err = fb.b.IntegerAttr(big.NewInt(*ps.Size)); err != nil {
				return nil, err
			}
		}
		return p, nil
	}
	return builder.AnyPattern{}, nil
}
