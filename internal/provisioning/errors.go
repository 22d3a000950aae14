package provisioning

import (
	"errors"
	"fmt"
	"strings"
)

// Severity levels of validation findings.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents a configuration validation error or warning.
// Errors abort the run before any resource is created.
type ValidationError struct {
	Field    string // Configuration field that failed validation
	Message  string // Human-readable error message
	Severity string // "error" or "warning"
	Err      error  // Underlying cause, if any
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message)
}

func (ve *ValidationError) Unwrap() error { return ve.Err }

// IsError returns true if this is an error (not a warning).
func (ve *ValidationError) IsError() bool {
	return ve.Severity == SeverityError
}

// ProvisioningError is fatal: the run skips straight to teardown.
type ProvisioningError struct {
	Step string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning step %s failed: %v", e.Step, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// Challenge operations.
const (
	OpCreate = "create"
	OpDelete = "delete"
)

// ChallengeError reports a DNS record failure for one domain. Create
// failures fail the domain; delete failures are logged and ignored.
type ChallengeError struct {
	Domain string
	Op     string
	Err    error
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("dns %s for %s failed: %v", e.Op, e.Domain, e.Err)
}

func (e *ChallengeError) Unwrap() error { return e.Err }

// IssuanceError reports that the agent failed for one domain.
type IssuanceError struct {
	Domain string
	Err    error
}

func (e *IssuanceError) Error() string {
	return fmt.Sprintf("issuance for %s failed: %v", e.Domain, e.Err)
}

func (e *IssuanceError) Unwrap() error { return e.Err }

// PublicationError reports a trust-store failure for one domain. Delete
// failures are ignored; create failures fail the domain.
type PublicationError struct {
	Domain string
	Op     string
	Err    error
}

func (e *PublicationError) Error() string {
	return fmt.Sprintf("publication %s for %s failed: %v", e.Op, e.Domain, e.Err)
}

func (e *PublicationError) Unwrap() error { return e.Err }

// TeardownError collects the failures of independent teardown steps.
type TeardownError struct {
	Errors []error
}

// Add records a failure; nil is ignored.
func (e *TeardownError) Add(step string, err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, fmt.Errorf("%s: %w", step, err))
}

// HasErrors reports whether any step failed.
func (e *TeardownError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *TeardownError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("teardown had %d failure(s): %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *TeardownError) Unwrap() error {
	return errors.Join(e.Errors...)
}

// ErrArtifactMissing is returned when an expected certificate artifact is
// not present on the instance.
var ErrArtifactMissing = errors.New("certificate artifact missing")
