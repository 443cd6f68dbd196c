package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/eir/internal/ir"
)

func TestReadArtifact_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a := createTestArtifact("demo", ir.StageBuilt, "module demo\n")

	id, err := s.WriteArtifact(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadArtifact(ctx, a.Fingerprint, ir.StageBuilt)
	if err != nil {
		t.Fatalf("ReadArtifact() failed: %v", err)
	}
	a.ID = id
	if got != a {
		t.Errorf("ReadArtifact() = %+v, want %+v", got, a)
	}
}

func TestReadArtifact_NotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.ReadArtifact(ctx, "nope", ir.StageBuilt); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadArtifact() error = %v, want ErrNotFound", err)
	}
	if _, err := s.ReadArtifactByID(ctx, 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadArtifactByID() error = %v, want ErrNotFound", err)
	}
	if _, err := s.ReadLoweringRun(ctx, 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadLoweringRun() error = %v, want ErrNotFound", err)
	}
}

func TestReadArtifact_VersionCompatibility(t *testing.T) {
	tests := []struct {
		version string
		ok      bool
	}{
		{"1.0.0", true},
		{"1.9.3", true},
		{"2.0.0", false},
		{"0.9.0", false},
		{"banana", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			s := createTestStore(t)
			ctx := context.Background()
			a := createTestArtifact("demo", ir.StageBuilt, "module demo\n")
			a.IRVersion = tt.version
			if _, err := s.WriteArtifact(ctx, a); err != nil {
				t.Fatal(err)
			}

			_, err := s.ReadArtifact(ctx, a.Fingerprint, ir.StageBuilt)
			if tt.ok && err != nil {
				t.Errorf("ReadArtifact() failed: %v", err)
			}
			if !tt.ok && !IsIncompatibleVersion(err) {
				t.Errorf("ReadArtifact() error = %v, want IncompatibleVersionError", err)
			}
		})
	}
}

func TestListArtifacts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, a := range []ir.Artifact{
		createTestArtifact("alpha", ir.StageBuilt, "module alpha\n"),
		createTestArtifact("beta", ir.StageBuilt, "module beta\n"),
		createTestArtifact("alpha", ir.StageLowered, "module alpha\n\n"),
	} {
		if _, err := s.WriteArtifact(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	alpha, err := s.ListArtifacts(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(alpha) != 2 || alpha[0].Stage != ir.StageBuilt || alpha[1].Stage != ir.StageLowered {
		t.Errorf("ListArtifacts(alpha) = %+v", alpha)
	}

	none, err := s.ListArtifacts(ctx, "gamma")
	if err != nil {
		t.Fatal(err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("ListArtifacts(gamma) = %#v, want empty slice", none)
	}
}
