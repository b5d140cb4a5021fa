// Package importer turns untrusted workflow files into safe graphs and writes workflows back out as files.
package importer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies why an import was rejected.
type ErrorCode string

const (
	CodePayloadTooLarge ErrorCode = "payload_too_large"
	CodeMalformedJSON   ErrorCode = "malformed_json"
	CodeSchemaViolation ErrorCode = "schema_violation"
)

// maxReportedViolations bounds how many violations Error() shows.
const maxReportedViolations = 3

// ErrImportRejected is matched by every ImportError.
var ErrImportRejected = errors.New("import rejected")

// ImportError is returned for any rejected import. No partial result accompanies it.
type ImportError struct {
	Code       ErrorCode // Rejection class
	Violations []string  // Every violation found, in discovery order
	Err        error     // Underlying parse error, if any
}

func (e *ImportError) Error() string {
	if len(e.Violations) == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Code, e.Err)
		}

		return string(e.Code)
	}

	shown := e.Violations
	if len(shown) > maxReportedViolations {
		shown = shown[:maxReportedViolations]
	}

	message := fmt.Sprintf("%s: %s", e.Code, strings.Join(shown, "; "))
	if extra := len(e.Violations) - len(shown); extra > 0 {
		message += fmt.Sprintf(" (and %d more)", extra)
	}

	return message
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Is matches ErrImportRejected and the wrapped error.
func (e *ImportError) Is(target error) bool {
	return target == ErrImportRejected || errors.Is(e.Err, target)
}

// IsImportError checks if an error is an import rejection.
func IsImportError(err error) bool {
	return errors.Is(err, ErrImportRejected)
}

// AsImportError extracts the ImportError from err.
func AsImportError(err error) (*ImportError, bool) {
	var importErr *ImportError
	if errors.As(err, &importErr) {
		return importErr, true
	}

	return nil, false
}

func newImportError(code ErrorCode, err error, violations ...string) *ImportError {
	return &ImportError{Code: code, Violations: violations, Err: err}
}
