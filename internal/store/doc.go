// Package store provides SQLite-backed storage for compiled IR artifacts.
//
// The store keeps:
//   - Artifacts: printed modules, built or lowered
//   - Lowering runs: which built artifact a lowered one came from, the
//     sweep count, and the runtime symbols lowering declared
//   - Lowering rules: rewrite counts per rule for each run
//
// # Identity
//
// Artifacts are keyed by (fingerprint, stage). The fingerprint is
// ir.Fingerprint of the module, so writing the same module twice is a
// no-op and returns the existing row id.
//
// # Compatibility
//
// Every artifact records the IR text version it was printed with. Reads
// refuse artifacts whose version does not satisfy ir.IRCompat.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
