package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/roach88/eir/internal/ir"
)

// ErrNotFound is returned when no artifact or run matches.
var ErrNotFound = errors.New("store: not found")

// IncompatibleVersionError is returned when a stored artifact was printed
// with an IR version the running tool cannot read.
type IncompatibleVersionError struct {
	Fingerprint string
	Version     string
	Constraint  string
}

// Error implements the error interface.
func (e *IncompatibleVersionError) Error() string {
	return fmt.Sprintf("artifact %s has IR version %q, need %s", short(e.Fingerprint), e.Version, e.Constraint)
}

// IsIncompatibleVersion returns true if err is or wraps an
// IncompatibleVersionError.
func IsIncompatibleVersion(err error) bool {
	var ve *IncompatibleVersionError
	return errors.As(err, &ve)
}

func short(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}

// checkVersion reports whether an artifact's IR version satisfies
// ir.IRCompat.
func checkVersion(a ir.Artifact) error {
	c, err := semver.NewConstraint(ir.IRCompat)
	if err != nil {
		return fmt.Errorf("ir compat constraint: %w", err)
	}
	v, err := semver.NewVersion(a.IRVersion)
	if err != nil || !c.Check(v) {
		return &IncompatibleVersionError{Fingerprint: a.Fingerprint, Version: a.IRVersion, Constraint: ir.IRCompat}
	}
	return nil
}

const artifactColumns = `id, fingerprint, module, stage, target, ir_version, session, text`

func scanArtifact(row interface{ Scan(...any) error }) (ir.Artifact, error) {
	var a ir.Artifact
	err := row.Scan(&a.ID, &a.Fingerprint, &a.Module, &a.Stage, &a.Target, &a.IRVersion, &a.Session, &a.Text)
	return a, err
}

// ReadArtifact returns the artifact with the given fingerprint and stage.
// It returns ErrNotFound when there is none and an
// IncompatibleVersionError when its IR version is not readable.
func (s *Store) ReadArtifact(ctx context.Context, fingerprint, stage string) (ir.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE fingerprint = ? AND stage = ?`,
		fingerprint, stage)
	return s.readOne(row)
}

// ReadArtifactByID returns the artifact with the given row id.
func (s *Store) ReadArtifactByID(ctx context.Context, id int64) (ir.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id)
	return s.readOne(row)
}

func (s *Store) readOne(row *sql.Row) (ir.Artifact, error) {
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Artifact{}, ErrNotFound
	}
	if err != nil {
		return ir.Artifact{}, fmt.Errorf("read artifact: %w", err)
	}
	if err := checkVersion(a); err != nil {
		return ir.Artifact{}, err
	}
	return a, nil
}

// ListArtifacts returns the artifacts of a module in insertion order, or
// of every module when module is empty. Artifacts are listed regardless of
// IR version.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListArtifacts(ctx context.Context, module string) ([]ir.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts`
	var args []any
	if module != "" {
		query += ` WHERE module = ?`
		args = append(args, module)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	artifacts := []ir.Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return artifacts, nil
}

// ReadLoweringRun returns the run that produced the lowered artifact.
// Rules are ordered by name.
func (s *Store) ReadLoweringRun(ctx context.Context, loweredID int64) (ir.LoweringRun, error) {
	run := ir.LoweringRun{LoweredID: loweredID}
	var declared string
	err := s.db.QueryRowContext(ctx,
		`SELECT source_id, sweeps, declared FROM lowering_runs WHERE lowered_id = ?`, loweredID,
	).Scan(&run.SourceID, &run.Sweeps, &declared)
	if errors.Is(err, sql.ErrNoRows) {
		return run, ErrNotFound
	}
	if err != nil {
		return run, fmt.Errorf("read lowering run: %w", err)
	}
	if run.Declared, err = unmarshalSymbols(declared); err != nil {
		return run, fmt.Errorf("read lowering run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rule, count FROM lowering_rules
		WHERE lowered_id = ?
		ORDER BY rule COLLATE BINARY ASC
	`, loweredID)
	if err != nil {
		return run, fmt.Errorf("read lowering rules: %w", err)
	}
	defer rows.Close()

	run.Rules = []ir.LoweringRecord{}
	for rows.Next() {
		r := ir.LoweringRecord{ArtifactID: loweredID}
		if err := rows.Scan(&r.Rule, &r.Count); err != nil {
			return run, fmt.Errorf("scan lowering rule: %w", err)
		}
		run.Rules = append(run.Rules, r)
	}
	if err := rows.Err(); err != nil {
		return run, fmt.Errorf("iterate lowering rules: %w", err)
	}
	return run, nil
}
