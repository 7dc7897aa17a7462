// Package errors provides structured error handling for synapse.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and persistence errors
//   - 3XX: Indexing errors
//   - 4XX: Graph errors
//   - 5XX: Retrieval errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryIndex indicates indexing pipeline errors.
	CategoryIndex Category = "INDEX"
	// CategoryGraph indicates dependency graph errors.
	CategoryGraph Category = "GRAPH"
	// CategorySearch indicates retrieval errors.
	CategorySearch Category = "SEARCH"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error, the pass must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the process continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO and persistence errors (200-299)
	ErrCodeRootNotFound = "ERR_201_ROOT_NOT_FOUND"
	ErrCodePersistence  = "ERR_202_PERSISTENCE_FAILED"
	ErrCodeFileTooLarge = "ERR_203_FILE_TOO_LARGE"
	ErrCodeCorruptState = "ERR_204_CORRUPT_STATE"

	// Indexing errors (300-399)
	ErrCodeParseFailure = "ERR_301_PARSE_FAILURE"
	ErrCodeIndexLocked  = "ERR_302_INDEX_LOCKED"
	ErrCodeIndexFailed  = "ERR_303_INDEX_FAILED"

	// Graph errors (400-499)
	ErrCodeNodeNotFound       = "ERR_401_NODE_NOT_FOUND"
	ErrCodeGraphInconsistency = "ERR_402_GRAPH_INCONSISTENCY"

	// Retrieval errors (500-599)
	ErrCodeSearchBackend = "ERR_501_SEARCH_BACKEND"
	ErrCodeQueryEmpty    = "ERR_502_QUERY_EMPTY"
	ErrCodeInternal      = "ERR_503_INTERNAL"
)

// categoryFromCode extracts the category from an error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryIndex
	case '4':
		return CategoryGraph
	case '5':
		return CategorySearch
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from the code.
// Persistence and root failures abort a pass; everything else degrades.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeRootNotFound, ErrCodePersistence, ErrCodeIndexFailed:
		return SeverityFatal
	case ErrCodeParseFailure, ErrCodeSearchBackend:
		return SeverityWarning
	default:
		return SeverityError
	}
}
