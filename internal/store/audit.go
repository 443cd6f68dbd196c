package store

import (
	"context"
	"fmt"

	"github.com/roach88/eir/internal/ir"
)

// AuditIssue describes one inconsistency found by Audit.
type AuditIssue struct {
	ArtifactID int64
	Module     string
	Problem    string
}

// Audit checks every stored artifact: its fingerprint must match its text,
// its IR version must be readable, and a lowered artifact must have a
// lowering run whose source is a built artifact.
//
// Returns an empty slice (not nil) when the store is consistent.
func (s *Store) Audit(ctx context.Context) ([]AuditIssue, error) {
	artifacts, err := s.ListArtifacts(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	stages := make(map[int64]string, len(artifacts))
	for _, a := range artifacts {
		stages[a.ID] = a.Stage
	}

	issues := []AuditIssue{}
	report := func(a ir.Artifact, format string, args ...any) {
		issues = append(issues, AuditIssue{ArtifactID: a.ID, Module: a.Module, Problem: fmt.Sprintf(format, args...)})
	}
	for _, a := range artifacts {
		if got := ir.TextFingerprint(a.Text); got != a.Fingerprint {
			report(a, "fingerprint %s does not match text (%s)", short(a.Fingerprint), short(got))
		}
		if err := checkVersion(a); err != nil {
			report(a, "%v", err)
		}
		if a.Stage != ir.StageLowered {
			continue
		}
		run, err := s.ReadLoweringRun(ctx, a.ID)
		if err != nil {
			report(a, "no lowering run")
			continue
		}
		if stages[run.SourceID] != ir.StageBuilt {
			report(a, "lowered from artifact %d, which is not a built artifact", run.SourceID)
		}
	}
	if len(issues) > 0 {
		s.logger.Warn("artifact store audit found issues", "issues", len(issues))
	}
	return issues, nil
}
