// Package lower implements the lowering pass: rules that replace
// high-level operations with calls into the runtime support library.
//
// ARCHITECTURE:
//
// Each Rule matches one family of operations and rewrites a matched op in
// place through a Rewriter, which declares runtime symbols (once per
// module), inserts calls ahead of the op, and reinterprets term values as
// machine words and back.
//
// The Engine drives the rules to a fixed point. Every sweep walks each
// definition's blocks in order and offers every op to the rules in
// registration order; the first matching rule rewrites it. Sweeps repeat
// until one makes no change. A sweep quota bounds rule sets that never
// settle.
//
// After lowering a module contains only branches, runtime calls, casts,
// constants, aggregates and the call terminators, which are left for the
// code generator.
//
// Thread-safety: an Engine may lower several modules concurrently; a
// single module must not be lowered and built at the same time.
package lower
