package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/eir/internal/abi"
	"github.com/roach88/eir/internal/builder"
	"github.com/roach88/eir/internal/ir"
	"github.com/roach88/eir/internal/lower"
	"github.com/roach88/eir/internal/store"
	"github.com/roach88/eir/internal/target"
	"github.com/roach88/eir/internal/verify"
)

// Harness replays build scripts through the builder.
type Harness struct {
	targets *target.Catalog
	catalog *abi.Catalog
	store   *store.Store
	logger  *slog.Logger
	session string
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithTargets sets the target catalog scripts select from. The default is
// the embedded catalog.
func WithTargets(c *target.Catalog) Option {
	return func(h *Harness) {
		h.targets = c
	}
}

// WithCatalog sets the runtime catalog. The default is the embedded one.
func WithCatalog(c *abi.Catalog) Option {
	return func(h *Harness) {
		h.catalog = c
	}
}

// WithStore persists every successfully built (and lowered) module.
func WithStore(s *store.Store) Option {
	return func(h *Harness) {
		h.store = s
	}
}

// WithSession fixes the builder session id, for reproducible logs and
// stored artifacts. The default is a fresh id per script.
func WithSession(id string) Option {
	return func(h *Harness) {
		h.session = id
	}
}

// New creates a Harness.
func New(opts ...Option) (*Harness, error) {
	h := &Harness{logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	if h.targets == nil {
		h.targets = target.Builtin()
	}
	if h.catalog == nil {
		c, err := abi.Builtin()
		if err != nil {
			return nil, fmt.Errorf("harness: load runtime catalog: %w", err)
		}
		h.catalog = c
	}
	return h, nil
}

// Run builds a script with default options.
func Run(ctx context.Context, s *Script) (*Result, error) {
	h, err := New()
	if err != nil {
		return nil, err
	}
	return h.Run(ctx, s)
}

// Run builds the script, verifies the module, lowers it when the script
// asks for it, and evaluates the script's assertions.
//
// A build failure is returned as an error unless the script expects it,
// in which case the result records the code and passes. Failed assertions
// do not make Run fail; they are reported in Result.Errors.
func (h *Harness) Run(ctx context.Context, s *Script) (*Result, error) {
	tgt, err := h.targets.Lookup(s.Target)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", s.Name(), err)
	}
	res := NewResult(s.Name(), tgt)

	opts := []builder.Option{builder.WithLogger(h.logger), builder.WithCatalog(h.catalog)}
	if h.session != "" {
		opts = append(opts, builder.WithSession(h.session))
	}
	b, err := builder.New(s.Module, tgt, opts...)
	if err != nil {
		return nil, err
	}
	res.Session = b.Session()

	m, err := h.build(b, s)
	if s.ExpectError != "" {
		return res, expectBuildError(s, res, err)
	}
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", s.Name(), err)
	}
	if err := verify.AsError(verify.Module(m)); err != nil {
		return nil, fmt.Errorf("script %s: %w", s.Name(), err)
	}
	res.Module = m
	res.Built = ir.FormatModule(m)
	res.Fingerprint = ir.Fingerprint(m)

	if s.Lower {
		stats, err := lower.New(tgt, h.catalog, lower.WithLogger(h.logger)).Run(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("script %s: lower: %w", s.Name(), err)
		}
		if err := verify.AsError(verify.Module(m)); err != nil {
			return nil, fmt.Errorf("script %s: lowered module: %w", s.Name(), err)
		}
		res.Stats = &stats
		res.Lowered = ir.FormatModule(m)
	}

	if h.store != nil {
		if err := h.persist(ctx, s, res); err != nil {
			return nil, fmt.Errorf("script %s: %w", s.Name(), err)
		}
	}

	for _, msg := range EvaluateAssertions(res, s.Assertions) {
		res.AddError(msg)
	}
	h.logger.Info("script built",
		"script", s.Name(),
		"module", s.Module,
		"pass", res.Pass,
		"lowered", s.Lower,
	)
	return res, nil
}

func (h *Harness) build(b *builder.Builder, s *Script) (*ir.Module, error) {
	for _, d := range s.Declarations {
		sig, err := parseSignature(b.Types(), d.Params, d.Result)
		if err != nil {
			return nil, fmt.Errorf("declaration %s: %w", d.Name, err)
		}
		if _, err := b.GetOrDeclareFunction(ir.Location{File: s.file()}, d.Name, sig); err != nil {
			return nil, err
		}
	}
	for _, spec := range s.Functions {
		fb := &fnBuilder{b: b, script: s, spec: spec}
		if err := fb.build(); err != nil {
			return nil, err
		}
	}
	return b.Finish()
}

func expectBuildError(s *Script, res *Result, err error) error {
	if err == nil {
		return fmt.Errorf("script %s: expected build error %s, but the module built", s.Name(), s.ExpectError)
	}
	var be *builder.BuildError
	if !errors.As(err, &be) {
		return fmt.Errorf("script %s: expected build error %s: %w", s.Name(), s.ExpectError, err)
	}
	res.ErrorCode = string(be.Code)
	if res.ErrorCode != s.ExpectError {
		res.AddError(fmt.Sprintf("build failed with %s, expected %s: %v", be.Code, s.ExpectError, err))
	}
	return nil
}

// persist writes the built artifact and, for lowered scripts, the lowered
// artifact and its lowering run.
func (h *Harness) persist(ctx context.Context, s *Script, res *Result) error {
	built := ir.Artifact{
		Fingerprint: ir.TextFingerprint(res.Built),
		Module:      s.Module,
		Stage:       ir.StageBuilt,
		Target:      res.Target.Triple,
		IRVersion:   ir.IRVersion,
		Session:     res.Session,
		Text:        res.Built,
	}
	builtID, err := h.store.WriteArtifact(ctx, built)
	if err != nil {
		return err
	}
	res.ArtifactIDs = append(res.ArtifactIDs, builtID)
	if res.Stats == nil {
		return nil
	}

	lowered := built
	lowered.Stage = ir.StageLowered
	lowered.Text = res.Lowered
	lowered.Fingerprint = ir.TextFingerprint(res.Lowered)
	loweredID, err := h.store.WriteArtifact(ctx, lowered)
	if err != nil {
		return err
	}
	res.ArtifactIDs = append(res.ArtifactIDs, loweredID)

	run := ir.LoweringRun{
		SourceID:  builtID,
		LoweredID: loweredID,
		Sweeps:    res.Stats.Sweeps,
		Declared:  res.Stats.Declared,
	}
	rules := make([]string, 0, len(res.Stats.Rewrites))
	for rule := range res.Stats.Rewrites {
		rules = append(rules, rule)
	}
	sort.Strings(rules)
	for _, rule := range rules {
		run.Rules = append(run.Rules, ir.LoweringRecord{ArtifactID: loweredID, Rule: rule, Count: res.Stats.Rewrites[rule]})
	}
	return h.store.WriteLoweringRun(ctx, run)
}

func (s *Script) file() string {
	if s.path != "" {
		return s.path
	}
	return s.Module + ".yaml"
}

func parseSignature(types *ir.Registry, params []string, result string) (ir.Signature, error) {
	var sig ir.Signature
	for _, p := range params {
		t, err := ir.ParseType(types, p)
		if err != nil {
			return sig, err
		}
		sig.Params = append(sig.Params, t)
	}
	rt := types.Term()
	if result != "" {
		var err error
		if rt, err = ir.ParseType(types, result); err != nil {
			return sig, err
		}
	}
	sig.Results = []*ir.Type{rt}
	return sig, nil
}
