package store

import (
	"context"
	"strings"
	"testing"

	"github.com/roach88/eir/internal/ir"
)

func TestAudit_Consistent(t *testing.T) {
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
	if err := s.WriteLoweringRun(ctx, ir.LoweringRun{SourceID: src, LoweredID: low, Sweeps: 1}); err != nil {
		t.Fatal(err)
	}

	issues, err := s.Audit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 0 {
		t.Errorf("Audit() = %+v, want none", issues)
	}
}

func TestAudit_FindsProblems(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tampered := createTestArtifact("bad", ir.StageBuilt, "module bad\n")
	tampered.Text = "module worse\n"
	if _, err := s.WriteArtifact(ctx, tampered); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteArtifact(ctx, createTestArtifact("orphan", ir.StageLowered, "module orphan\n")); err != nil {
		t.Fatal(err)
	}

	issues, err := s.Audit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 2 {
		t.Fatalf("Audit() = %+v, want 2 issues", issues)
	}
	if issues[0].Module != "bad" || !strings.Contains(issues[0].Problem, "does not match") {
		t.Errorf("issue[0] = %+v", issues[0])
	}
	if issues[1].Module != "orphan" || issues[1].Problem != "no lowering run" {
		t.Errorf("issue[1] = %+v", issues[1])
	}
}

func TestMarshalSymbols(t *testing.T) {
	text, err := marshalSymbols([]string{"b", "a<b>"})
	if err != nil {
		t.Fatal(err)
	}
	if text != `["a<b>","b"]` {
		t.Errorf("marshalSymbols() = %s", text)
	}
	empty, err := marshalSymbols(nil)
	if err != nil || empty != "[]" {
		t.Errorf("marshalSymbols(nil) = %q, %v", empty, err)
	}
	back, err := unmarshalSymbols(text)
	if err != nil || len(back) != 2 || back[0] != "a<b>" {
		t.Errorf("unmarshalSymbols() = %v, %v", back, err)
	}
}
