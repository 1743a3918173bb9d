package taproot

import "errors"

// Sentinel errors. Callers match them with errors.Is; the wrapped message
// carries the offending path or name.
var (
	// ErrEntryPointNotFound is returned by queries whose starting file is
	// not a key in the dependency map.
	ErrEntryPointNotFound = errors.New("entry point not found")

	// ErrDuplicatePath is returned by Build when two include paths reach
	// the same file after normalization.
	ErrDuplicatePath = errors.New("duplicate file path")

	// ErrOutsideSourceRoot is returned when a path that must live under
	// the source root does not, e.g. an include path above the root.
	ErrOutsideSourceRoot = errors.New("path outside source root")

	// ErrParseFailed reports a Python syntax error. Build recovers from it
	// per file; it surfaces directly only from ParseImports.
	ErrParseFailed = errors.New("parse failed")
)
