package errors

import "strings"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Severity classifies an error code into the pipeline's handling classes.
type Severity int

const (
	// SeverityNone is returned for nil errors.
	SeverityNone Severity = iota

	// SeverityRecoverable marks data-gap errors: recovered locally with a
	// documented default and logged, never aborting the run.
	SeverityRecoverable

	// SeverityStructural marks errors that make one commodity
	// unprocessable; the commodity is skipped and reported.
	SeverityStructural

	// SeverityFatal marks invariant violations and infrastructure failures
	// that end the processing of the current unit of work; the caller
	// decides whether to abort the full run.
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityRecoverable:
		return "recoverable"
	case SeverityStructural:
		return "structural"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Common error codes.
const (
	CodeOK           ErrorCode = "OK"
	CodeUnknown      ErrorCode = "COMMON_000"
	CodeInternal     ErrorCode = "COMMON_001"
	CodeInvalidParam ErrorCode = "COMMON_002"
	CodeNotFound     ErrorCode = "COMMON_003"
	CodeValidation   ErrorCode = "COMMON_004"
)

// Trade data error codes.
const (
	CodeDataGap          ErrorCode = "TRD_001"
	CodeMissingRatio     ErrorCode = "TRD_002"
	CodeNegativeFlow     ErrorCode = "TRD_003"
	CodeEmptyTradeTable  ErrorCode = "TRD_004"
	CodeUnknownCommodity ErrorCode = "TRD_005"
)

// Selection and allocation error codes.
const (
	CodeShareInvariant     ErrorCode = "SEL_001"
	CodeNegativeVolume     ErrorCode = "SEL_002"
	CodeInvalidCutoff      ErrorCode = "SEL_003"
	CodeInvariantViolation ErrorCode = "SEL_004"
)

// Graph rewriting error codes.
const (
	CodeNoTemplate      ErrorCode = "GRF_001"
	CodeNodeNotFound    ErrorCode = "GRF_002"
	CodeDuplicateNode   ErrorCode = "GRF_003"
	CodeTemplateMutated ErrorCode = "GRF_004"
)

// Infrastructure error codes.
const (
	CodeDatabaseError   ErrorCode = "INF_001"
	CodeMigrationFailed ErrorCode = "INF_002"
	CodeWriteBackFailed ErrorCode = "INF_003"
	CodeSpatialError    ErrorCode = "INF_004"
	CodeConfigError     ErrorCode = "INF_005"
)

// codeSeverity maps every code to its handling class.  Codes absent from
// the map are fatal: an unclassified failure must never be absorbed.
var codeSeverity = map[ErrorCode]Severity{
	CodeOK: SeverityNone,

	CodeDataGap:          SeverityRecoverable,
	CodeMissingRatio:     SeverityRecoverable,
	CodeNegativeFlow:     SeverityRecoverable,
	CodeEmptyTradeTable:  SeverityRecoverable,
	CodeUnknownCommodity: SeverityStructural,

	CodeNoTemplate:    SeverityStructural,
	CodeNodeNotFound:  SeverityStructural,
	CodeDuplicateNode: SeverityStructural,

	CodeShareInvariant:     SeverityFatal,
	CodeNegativeVolume:     SeverityFatal,
	CodeInvalidCutoff:      SeverityFatal,
	CodeInvariantViolation: SeverityFatal,
	CodeTemplateMutated:    SeverityFatal,

	CodeInternal:        SeverityFatal,
	CodeInvalidParam:    SeverityFatal,
	CodeNotFound:        SeverityFatal,
	CodeValidation:      SeverityFatal,
	CodeDatabaseError:   SeverityFatal,
	CodeMigrationFailed: SeverityFatal,
	CodeWriteBackFailed: SeverityFatal,
	CodeSpatialError:    SeverityFatal,
	CodeConfigError:     SeverityFatal,
	CodeUnknown:         SeverityFatal,
}

// defaultMessage maps codes to their default human-readable messages.
var defaultMessage = map[ErrorCode]string{
	CodeInternal:     "internal error",
	CodeInvalidParam: "invalid parameter",
	CodeNotFound:     "resource not found",
	CodeValidation:   "validation failed",

	CodeDataGap:          "trade data gap",
	CodeMissingRatio:     "missing production/export ratio",
	CodeNegativeFlow:     "negative trade flow value",
	CodeEmptyTradeTable:  "trade table is empty",
	CodeUnknownCommodity: "commodity is not mapped",

	CodeShareInvariant:     "shares do not sum to one",
	CodeNegativeVolume:     "negative volume after correction",
	CodeInvalidCutoff:      "cutoff out of range (0, 1]",
	CodeInvariantViolation: "invariant violation",

	CodeNoTemplate:      "no template process for commodity",
	CodeNodeNotFound:    "process node not found",
	CodeDuplicateNode:   "duplicate process node id",
	CodeTemplateMutated: "template node mutated",

	CodeDatabaseError:   "database error",
	CodeMigrationFailed: "schema migration failed",
	CodeWriteBackFailed: "write-back failed",
	CodeSpatialError:    "spatialization failed",
	CodeConfigError:     "configuration error",
}

// SeverityForCode returns the handling class for a code.  Unknown codes are
// fatal.
func SeverityForCode(code ErrorCode) Severity {
	if s, ok := codeSeverity[code]; ok {
		return s
	}
	return SeverityFatal
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := defaultMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// ModuleForCode returns the module prefix of an ErrorCode, used as a metric
// label by the monitoring layer.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
