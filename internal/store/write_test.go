package store

import (
	"context"
	"strings"
	"testing"

	"github.com/roach88/eir/internal/ir"
)

func TestWriteArtifact_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a := createTestArtifact("demo", ir.StageBuilt, "module demo\n")

	id1, err := s.WriteArtifact(ctx, a)
	if err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	id2, err := s.WriteArtifact(ctx, a)
	if err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("duplicate write returned id %d, want %d", id2, id1)
	}

	all, err := s.ListArtifacts(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("got %d artifacts, want 1", len(all))
	}
}

func TestWriteArtifact_StagesAreDistinct(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	built := createTestArtifact("demo", ir.StageBuilt, "module demo\n")
	lowered := built
	lowered.Stage = ir.StageLowered

	id1, err := s.WriteArtifact(ctx, built)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.WriteArtifact(ctx, lowered)
	if err != nil {
		t.Fatal(err)
	}
	if id1 == id2 {
		t.Error("built and lowered stages share a row")
	}
}

func TestWriteArtifact_Rejects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*ir.Artifact)
		wantErr string
	}{
		{"missing fingerprint", func(a *ir.Artifact) { a.Fingerprint = "" }, "missing fingerprint"},
		{"unknown stage", func(a *ir.Artifact) { a.Stage = "optimized" }, "unknown stage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := createTestArtifact("demo", ir.StageBuilt, "module demo\n")
			tt.mutate(&a)
			_, err := s.WriteArtifact(ctx, a)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("WriteArtifact() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteArtifact_DefaultsVersion(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a := createTestArtifact("demo", ir.StageBuilt, "module demo\n")
	a.IRVersion = ""

	id, err := s.WriteArtifact(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadArtifactByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.IRVersion != ir.IRVersion {
		t.Errorf("IRVersion = %q, want %q", got.IRVersion, ir.IRVersion)
	}
}

func TestWriteLoweringRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	src, err := s.WriteArtifact(ctx, createTestArtifact("demo", ir.StageBuilt, "module demo\n"))
	if err != nil {
		t.Fatal(err)
	}
	low, err := s.WriteArtifact(ctx, createTestArtifact("demo", ir.StageLowered, "module demo\n\n"))
	if err != nil {
		t.Fatal(err)
	}

	run := ir.LoweringRun{
		SourceID:  src,
		LoweredID: low,
		Sweeps:    2,
		Declared:  []string{"__lumen_builtin_raise", "__lumen_builtin_cmp.eq"},
		Rules: []ir.LoweringRecord{
			{Rule: "throw", Count: 1},
			{Rule: "compare", Count: 3},
		},
	}
	if err := s.WriteLoweringRun(ctx, run); err != nil {
		t.Fatalf("WriteLoweringRun() failed: %v", err)
	}
	// a second write keeps the first
	run.Sweeps = 9
	if err := s.WriteLoweringRun(ctx, run); err != nil {
		t.Fatalf("second WriteLoweringRun() failed: %v", err)
	}

	got, err := s.ReadLoweringRun(ctx, low)
	if err != nil {
		t.Fatal(err)
	}
	if got.SourceID != src || got.Sweeps != 2 {
		t.Errorf("run = %+v, want source %d and 2 sweeps", got, src)
	}
	if want := []string{"__lumen_builtin_cmp.eq", "__lumen_builtin_raise"}; strings.Join(got.Declared, ",") != strings.Join(want, ",") {
		t.Errorf("Declared = %v, want sorted %v", got.Declared, want)
	}
	if len(got.Rules) != 2 || got.Rules[0].Rule != "compare" || got.Rules[0].Count != 3 || got.Rules[0].ArtifactID != low {
		t.Errorf("Rules = %+v", got.Rules)
	}
}

func TestWriteLoweringRun_ForeignKey(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteLoweringRun(context.Background(), ir.LoweringRun{SourceID: 41, LoweredID: 42})
	if err == nil {
		t.Error("run referencing missing artifacts was accepted")
	}
}
