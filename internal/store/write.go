package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/eir/internal/ir"
)

// WriteArtifact stores a printed module and returns its row id.
// Uses ON CONFLICT(fingerprint, stage) DO NOTHING for idempotency: writing
// an artifact that already exists returns the existing id.
//
// An empty IRVersion is recorded as ir.IRVersion.
func (s *Store) WriteArtifact(ctx context.Context, a ir.Artifact) (int64, error) {
	if a.Fingerprint == "" {
		return 0, fmt.Errorf("write artifact %s: missing fingerprint", a.Module)
	}
	if a.Stage != ir.StageBuilt && a.Stage != ir.StageLowered {
		return 0, fmt.Errorf("write artifact %s: unknown stage %q", a.Module, a.Stage)
	}
	if a.IRVersion == "" {
		a.IRVersion = ir.IRVersion
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts
		(fingerprint, module, stage, target, ir_version, session, text)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint, stage) DO NOTHING
	`,
		a.Fingerprint,
		a.Module,
		a.Stage,
		a.Target,
		a.IRVersion,
		a.Session,
		a.Text,
	)
	if err != nil {
		return 0, fmt.Errorf("write artifact: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM artifacts WHERE fingerprint = ? AND stage = ?`,
		a.Fingerprint, a.Stage,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("write artifact: %w", err)
	}
	s.logger.Debug("artifact written", "module", a.Module, "stage", a.Stage, "id", id)
	return id, nil
}

// WriteLoweringRun records how a lowered artifact was produced. The run and
// its per-rule counts are written in one transaction; rewriting an existing
// run is a no-op.
func (s *Store) WriteLoweringRun(ctx context.Context, run ir.LoweringRun) error {
	declared, err := marshalSymbols(run.Declared)
	if err != nil {
		return fmt.Errorf("write lowering run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write lowering run: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
		INSERT INTO lowering_runs (lowered_id, source_id, sweeps, declared)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(lowered_id) DO NOTHING
	`, run.LoweredID, run.SourceID, run.Sweeps, declared)
	if err != nil {
		return fmt.Errorf("write lowering run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	if err := writeLoweringRules(ctx, tx, run.LoweredID, run.Rules); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write lowering run: commit: %w", err)
	}
	return nil
}

func writeLoweringRules(ctx context.Context, tx *sql.Tx, loweredID int64, rules []ir.LoweringRecord) error {
	for _, r := range rules {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO lowering_rules (lowered_id, rule, count)
			VALUES (?, ?, ?)
			ON CONFLICT(lowered_id, rule) DO NOTHING
		`, loweredID, r.Rule, r.Count)
		if err != nil {
			return fmt.Errorf("write lowering rule %s: %w", r.Rule, err)
		}
	}
	return nil
}
