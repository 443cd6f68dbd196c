package ir

// Version constants for the IR text format and the compiler.
const (
	// IRVersion is the version of the printed IR format. Stored artifacts
	// are readable when their version satisfies IRCompat.
	IRVersion = "1.2.0"

	// IRCompat is the semver constraint stored artifacts must satisfy.
	IRCompat = "^1.0.0"

	// CompilerVersion is the eir tool version.
	CompilerVersion = "0.3.0"
)
