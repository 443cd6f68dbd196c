package ir

// NOTE: These are store-layer records, not part of the IR itself.

// Artifact is a printed module persisted by the artifact store.
type Artifact struct {
	ID          int64  `json:"id"`          // Auto-increment (store FK)
	Fingerprint string `json:"fingerprint"` // Fingerprint of the module
	Module      string `json:"module"`
	Stage       string `json:"stage"` // StageBuilt or StageLowered
	Target      string `json:"target"`
	IRVersion   string `json:"ir_version"`
	Session     string `json:"session"`
	Text        string `json:"text"`
}

// Artifact stages.
const (
	StageBuilt   = "built"
	StageLowered = "lowered"
)

// LoweringRecord counts how often a rewrite rule fired for an artifact.
type LoweringRecord struct {
	ArtifactID int64  `json:"artifact_id"`
	Rule       string `json:"rule"`
	Count      int    `json:"count"`
}

// LoweringRun links a lowered artifact to the built artifact it came from.
type LoweringRun struct {
	SourceID  int64            `json:"source_id"`
	LoweredID int64            `json:"lowered_id"`
	Sweeps    int              `json:"sweeps"`
	Declared  []string         `json:"declared"` // runtime symbols added by lowering
	Rules     []LoweringRecord `json:"rules"`
}
