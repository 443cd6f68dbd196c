package lower

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/eir/internal/abi"
	"github.com/roach88/eir/internal/ir"
	"github.com/roach88/eir/internal/target"
)

// DefaultMaxSweeps is the default limit on fixed-point sweeps per module.
const DefaultMaxSweeps = 64

// Rule rewrites one family of operations.
type Rule interface {
	// Name identifies the rule in stats and errors.
	Name() string

	// Match reports whether the rule applies to op.
	Match(op *ir.Op) bool

	// Rewrite replaces op. It must leave op's block well formed.
	Rewrite(rw *Rewriter, op *ir.Op) error
}

// Stats summarizes one Run.
type Stats struct {
	Sweeps   int            `json:"sweeps"`
	Rewrites map[string]int `json:"rewrites"` // by rule name
	Declared []string       `json:"declared"` // runtime symbols added to the module
	Pruned   int            `json:"pruned"`   // blocks left unreachable by rewrites
}

// Total returns the number of rewrites across all rules.
func (s Stats) Total() int {
	n := 0
	for _, c := range s.Rewrites {
		n += c
	}
	return n
}

// Engine drives lowering rules to a fixed point.
type Engine struct {
	target    target.Info
	catalog   *abi.Catalog
	rules     []Rule
	maxSweeps int
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxSweeps sets the fixed-point sweep limit.
//
// Default: 64 sweeps (DefaultMaxSweeps).
func WithMaxSweeps(n int) Option {
	return func(e *Engine) {
		e.maxSweeps = n
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRules replaces the rule set. The default is DefaultRules().
func WithRules(rules ...Rule) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

// New creates an Engine for the target, resolving runtime symbols against
// cat.
func New(tgt target.Info, cat *abi.Catalog, opts ...Option) *Engine {
	e := &Engine{
		target:    tgt,
		catalog:   cat,
		rules:     DefaultRules(),
		maxSweeps: DefaultMaxSweeps,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run lowers every definition of m in place. The module is thawed for the
// duration and frozen again on return, also on error.
func (e *Engine) Run(ctx context.Context, m *ir.Module) (Stats, error) {
	stats := Stats{Rewrites: make(map[string]int)}
	wasFrozen := m.Frozen()
	m.Thaw()
	defer func() {
		if wasFrozen {
			m.Freeze()
		}
	}()

	before := make(map[string]bool, len(m.Functions()))
	for _, f := range m.Functions() {
		before[f.Name] = true
	}

	quota := NewQuotaEnforcer(e.maxSweeps)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := quota.Check(m.Name); err != nil {
			e.logger.Error("lowering did not converge", "module", m.Name, "sweeps", quota.Current())
			return stats, err
		}
		changed, err := e.sweep(ctx, m, stats.Rewrites)
		stats.Sweeps = quota.Current()
		if err != nil {
			return stats, err
		}
		if changed == 0 {
			break
		}
		e.logger.Debug("lowering sweep", "module", m.Name, "sweep", stats.Sweeps, "rewrites", changed)
	}

	for _, f := range m.Functions() {
		if f.IsDeclaration() {
			continue
		}
		n, err := prune(f)
		if err != nil {
			return stats, err
		}
		stats.Pruned += n
	}

	for _, f := range m.Functions() {
		if !before[f.Name] {
			stats.Declared = append(stats.Declared, f.Name)
		}
	}
	sort.Strings(stats.Declared)
	e.logger.Info("module lowered",
		"module", m.Name,
		"sweeps", stats.Sweeps,
		"rewrites", stats.Total(),
		"declared", len(stats.Declared),
		"pruned", stats.Pruned,
	)
	return stats, nil
}

// sweep offers every op of every definition to the rules once.
func (e *Engine) sweep(ctx context.Context, m *ir.Module, counts map[string]int) (int, error) {
	changed := 0
	for _, f := range m.Functions() {
		if f.IsDeclaration() {
			continue
		}
		rw := newRewriter(m, f, e.target, e.catalog)
		// rules may append blocks; those are visited on the next sweep
		blocks := append([]*ir.Block(nil), f.Blocks()...)
		for _, blk := range blocks {
			if err := ctx.Err(); err != nil {
				return changed, err
			}
			ops := append([]*ir.Op(nil), blk.Ops()...)
			for _, op := range ops {
				if op.Block() == nil {
					continue // removed by an earlier rewrite
				}
				rule := e.match(op)
				if rule == nil {
					continue
				}
				rw.rule = rule.Name()
				if err := rule.Rewrite(rw, op); err != nil {
					return changed, rw.wrap(op, err)
				}
				counts[rule.Name()]++
				changed++
			}
		}
	}
	return changed, nil
}

func (e *Engine) match(op *ir.Op) Rule {
	for _, r := range e.rules {
		if r.Match(op) {
			return r
		}
	}
	return nil
}

// prune drops the blocks of f that are no longer reachable from the entry,
// such as the other edge of an if rewritten to cond_br. It fails without
// touching f if a reachable op still refers to a value they define.
func prune(f *ir.Function) (int, error) {
	entry := f.Entry()
	if entry == nil {
		return 0, nil
	}
	live := map[*ir.Block]bool{entry: true}
	work := []*ir.Block{entry}
	for len(work) > 0 {
		blk := work[len(work)-1]
		work = work[:len(work)-1]
		for _, s := range blk.Successors() {
			if !live[s] {
				live[s] = true
				work = append(work, s)
			}
		}
	}

	var drop []*ir.Block
	dead := make(map[*ir.Value]*ir.Block)
	for _, blk := range f.Blocks() {
		if live[blk] {
			continue
		}
		drop = append(drop, blk)
		for _, a := range blk.Args() {
			dead[a] = blk
		}
		for _, op := range blk.Ops() {
			for _, r := range op.Results() {
				dead[r] = blk
			}
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}

	for _, blk := range f.Blocks() {
		if !live[blk] {
			continue
		}
		for _, op := range blk.Ops() {
			used := append([]*ir.Value(nil), op.Operands()...)
			for _, s := range op.Successors() {
				used = append(used, s.Args...)
			}
			for _, v := range used {
				if from, ok := dead[v]; ok {
					return 0, &RewriteError{
						Code:     ErrCodeDanglingValue,
						Rule:     "prune",
						Function: f.Name,
						Op:       op.Kind.String(),
						Message:  fmt.Sprintf("%s is defined in unreachable block %s", v, from),
					}
				}
			}
		}
	}
	for _, blk := range drop {
		f.RemoveBlock(blk)
	}
	return len(drop), nil
}
