// Package ir provides the intermediate representation shared by the
// builder, verifier, and lowering passes.
//
// This package contains the term type catalog, the constant attribute
// store, and the SSA data model (modules, functions, blocks, ops). All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Types and attributes are interned: identity is pointer equality
//   - Every type has exactly one canonical text form, and parsing that
//     form returns the identical interned type
//   - Invalid types are rejected at construction, never stored
//   - Blocks carry arguments instead of phi nodes
package ir
