// Package builder provides the stateful API a front end drives to assemble
// IR: functions, blocks, control flow, calls, pattern matches, binary and
// map construction, and the receive protocol.
//
// A Builder owns one module and one insertion point. Functions are built
// one at a time: CreateFunction opens a function and positions the builder
// at its entry block, FinishFunction verifies and closes it.
//
// Thread-safety model:
//   - A Builder must be used from one goroutine
//   - Independent Builders may run in parallel, sharing a Registry and
//     AttrStore through WithTables; those tables are safe for concurrent use
package builder

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/eir/internal/abi"
	"github.com/roach88/eir/internal/ir"
	"github.com/roach88/eir/internal/target"
	"github.com/roach88/eir/internal/verify"
)

// Builder assembles one module.
type Builder struct {
	mod     *ir.Module
	types   *ir.Registry
	attrs   *ir.AttrStore
	target  target.Info
	catalog *abi.Catalog
	logger  *slog.Logger
	session string

	// insertion point, scoped to the open function
	fn    *ir.Function
	block *ir.Block

	// first fault; sticky
	err error

	envs map[*ir.Value]int         // closure value -> described env arity
	bins map[*ir.Value]*binaryFold // binary handle -> folded segments
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithCatalog sets the runtime catalog consulted for intrinsics. The
// default is the embedded catalog.
func WithCatalog(c *abi.Catalog) Option {
	return func(b *Builder) {
		b.catalog = c
	}
}

// WithSession sets the session id attached to log records. The default is
// a fresh UUIDv7.
func WithSession(id string) Option {
	return func(b *Builder) {
		b.session = id
	}
}

// WithTables shares interning tables with other builders.
func WithTables(types *ir.Registry, attrs *ir.AttrStore) Option {
	return func(b *Builder) {
		b.types = types
		b.attrs = attrs
	}
}

// New creates a builder for an empty module named name.
func New(name string, tgt target.Info, opts ...Option) (*Builder, error) {
	if err := tgt.Validate(); err != nil {
		return nil, err
	}
	b := &Builder{
		target: tgt,
		logger: slog.Default(),
		envs:   make(map[*ir.Value]int),
		bins:   make(map[*ir.Value]*binaryFold),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.types == nil {
		b.types = ir.NewRegistry()
	}
	if b.attrs == nil {
		b.attrs = ir.NewAttrStore(b.types)
	}
	if b.catalog == nil {
		c, err := abi.Builtin()
		if err != nil {
			return nil, fmt.Errorf("builder: load runtime catalog: %w", err)
		}
		b.catalog = c
	}
	if b.session == "" {
		b.session = uuid.Must(uuid.NewV7()).String()
	}
	b.logger = b.logger.With("session", b.session, "module", name)
	b.mod = ir.NewModule(name, b.types, b.attrs)
	return b, nil
}

// Module returns the module under construction.
func (b *Builder) Module() *ir.Module { return b.mod }

// Types returns the type registry.
func (b *Builder) Types() *ir.Registry { return b.types }

// Attrs returns the attribute store.
func (b *Builder) Attrs() *ir.AttrStore { return b.attrs }

// Target returns the target description.
func (b *Builder) Target() target.Info { return b.target }

// Catalog returns the runtime catalog.
func (b *Builder) Catalog() *abi.Catalog { return b.catalog }

// Session returns the session id.
func (b *Builder) Session() string { return b.session }

// IsLikeMSVC reports whether the target uses the MSVC exception dialect.
func (b *Builder) IsLikeMSVC() bool { return b.target.LikeMSVC }

// ImmediateBitWidth returns the widest integer that fits an immediate.
func (b *Builder) ImmediateBitWidth() int { return b.target.ImmediateWidth }

// Err returns the first fault recorded by the builder.
func (b *Builder) Err() error { return b.err }

// Function returns the open function, or nil.
func (b *Builder) Function() *ir.Function { return b.fn }

// CurrentBlock returns the insertion block, or nil.
func (b *Builder) CurrentBlock() *ir.Block { return b.block }

// fail records the first fault and returns it.
func (b *Builder) fail(code BuildErrorCode, op string, loc ir.Location, format string, args ...any) error {
	return b.failWith(code, op, loc, nil, format, args...)
}

func (b *Builder) failWith(code BuildErrorCode, op string, loc ir.Location, cause error, format string, args ...any) error {
	if b.err != nil {
		return b.err
	}
	err := &BuildError{Code: code, Op: op, Loc: loc, Message: fmt.Sprintf(format, args...), Err: cause}
	b.err = err
	fnName := ""
	if b.fn != nil {
		fnName = b.fn.Name
	}
	b.logger.Error("build failed",
		"op", op,
		"code", string(code),
		"function", fnName,
		"loc", loc.String(),
		"error", err.Error(),
	)
	return err
}

// Finish verifies that no function is open and freezes the module.
func (b *Builder) Finish() (*ir.Module, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.fn != nil {
		return nil, b.fail(ErrCodeFunctionOpen, "finish", ir.Unknown,
			"function %s was not finished", b.fn.Name)
	}
	b.mod.Freeze()
	b.logger.Info("module finished", "functions", len(b.mod.Functions()))
	return b.mod, nil
}

// Arg describes one function parameter. A nil Type means term. EnvArity
// marks a closure parameter whose environment holds that many values, so
// BuildUnpackEnv may index it.
type Arg struct {
	Name     string
	Type     *ir.Type
	EnvArity int
}

// CreateFunction defines a function and positions the builder at its entry
// block. A nil result type means term.
func (b *Builder) CreateFunction(loc ir.Location, name string, args []Arg, result *ir.Type) (*ir.Function, error) {
	const op = "create_function"
	if b.err != nil {
		return nil, b.err
	}
	if b.fn != nil {
		return nil, b.fail(ErrCodeFunctionOpen, op, loc,
			"cannot start %s while %s is open", name, b.fn.Name)
	}
	if result == nil {
		result = b.types.Term()
	}
	sig := ir.Signature{Results: []*ir.Type{result}}
	for _, a := range args {
		t := a.Type
		if t == nil {
			t = b.types.Term()
		}
		if a.EnvArity > 0 && t.Kind() != ir.KindClosure {
			return nil, b.fail(ErrCodeTypeMismatch, op, loc,
				"argument %s describes an environment but has type %s", a.Name, t)
		}
		sig.Params = append(sig.Params, t)
	}
	fn, err := b.mod.Define(name, sig, loc)
	if err != nil {
		return nil, b.failWith(codeForSymbolError(err), op, loc, err, "cannot define %s", name)
	}
	entry := fn.Entry()
	for i, a := range args {
		if a.EnvArity > 0 {
			b.envs[entry.Arg(i)] = a.EnvArity
		}
	}
	b.fn = fn
	b.block = entry
	b.logger.Debug("function created", "function", name, "params", len(sig.Params))
	return fn, nil
}

// FinishFunction verifies the open function and closes it. The
// insertion point is cleared.
func (b *Builder) FinishFunction() error {
	const op = "finish_function"
	if b.err != nil {
		return b.err
	}
	if b.fn == nil {
		return b.fail(ErrCodeNoInsertionPoint, op, ir.Unknown, "no function is open")
	}
	if diags := verify.Function(b.fn); len(diags) > 0 {
		return b.failWith(ErrCodeInvalidFunction, op, b.fn.Loc, verify.AsError(diags),
			"function %s is invalid", b.fn.Name)
	}
	b.logger.Debug("function finished", "function", b.fn.Name, "blocks", len(b.fn.Blocks()))
	b.fn = nil
	b.block = nil
	return nil
}

// GetOrDeclareFunction returns the function named symbol, declaring an
// external function with sig when absent.
func (b *Builder) GetOrDeclareFunction(loc ir.Location, symbol string, sig ir.Signature) (*ir.Function, error) {
	if b.err != nil {
		return nil, b.err
	}
	f, err := b.mod.GetOrDeclare(symbol, sig)
	if err != nil {
		return nil, b.failWith(codeForSymbolError(err), "declare_function", loc, err, "cannot declare %s", symbol)
	}
	return f, nil
}

// AddBlock appends a block with arguments of the given types to the open
// function. It does not move the insertion point.
func (b *Builder) AddBlock(argTypes ...*ir.Type) (*ir.Block, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.fn == nil {
		return nil, b.fail(ErrCodeNoInsertionPoint, "add_block", ir.Unknown, "no function is open")
	}
	for i, t := range argTypes {
		if t == nil {
			return nil, b.fail(ErrCodeInvalidType, "add_block", ir.Unknown, "argument %d has no type", i)
		}
	}
	return b.fn.AddBlock(argTypes...), nil
}

// PositionAtEnd makes blk the insertion block.
func (b *Builder) PositionAtEnd(blk *ir.Block) error {
	if b.err != nil {
		return b.err
	}
	if blk == nil || blk.Function() != b.fn || b.fn == nil {
		return b.fail(ErrCodeForeignValue, "position_at_end", ir.Unknown,
			"block %s does not belong to the open function", blk)
	}
	b.block = blk
	return nil
}

// insertionPoint returns the block new ops go to.
func (b *Builder) insertionPoint(op string, loc ir.Location) (*ir.Block, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.fn == nil || b.block == nil {
		return nil, b.fail(ErrCodeNoInsertionPoint, op, loc, "no insertion block")
	}
	if b.block.Terminated() {
		return nil, b.fail(ErrCodeBlockTerminated, op, loc,
			"block %s already ends in %s", b.block, b.block.Terminator().Kind)
	}
	return b.block, nil
}

// checkValues ensures each operand exists and belongs to the open function.
func (b *Builder) checkValues(op string, loc ir.Location, vals ...*ir.Value) error {
	for i, v := range vals {
		if v == nil {
			return b.fail(ErrCodeForeignValue, op, loc, "operand %d is nil", i)
		}
		if v.Function() != b.fn {
			return b.fail(ErrCodeForeignValue, op, loc, "operand %d (%s) belongs to another function", i, v)
		}
	}
	return nil
}

// checkTerm ensures v is a term value.
func (b *Builder) checkTerm(op string, loc ir.Location, v *ir.Value) error {
	if !v.Type().IsTerm() && !v.Type().IsI1() {
		return b.fail(ErrCodeTypeMismatch, op, loc, "%s has non-term type %s", v, v.Type())
	}
	return nil
}

// emit appends a non-terminator op with the given result types.
func (b *Builder) emit(blk *ir.Block, kind ir.OpKind, loc ir.Location, operands []*ir.Value, results ...*ir.Type) *ir.Op {
	o := b.fn.NewOp(kind, loc, operands, results...)
	blk.Append(o)
	return o
}
