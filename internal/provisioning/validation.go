package provisioning

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imamik/certzner/internal/config"
	"github.com/imamik/certzner/internal/util/naming"
)

// ValidationPhase implements the Phase interface for pre-flight validation.
type ValidationPhase struct{}

// NewValidationPhase creates a new validation phase.
func NewValidationPhase() *ValidationPhase {
	return &ValidationPhase{}
}

// Name implements the Phase interface.
func (vp *ValidationPhase) Name() string {
	return "Validate"
}

// Provision implements the Phase interface. It never creates resources.
func (vp *ValidationPhase) Provision(ctx *Context) error {
	ctx.Observer.Printf("[Validate] Running pre-flight validation...")

	var failures []error
	for _, ve := range ValidateRun(ctx.Run) {
		if ve.IsError() {
			ctx.Observer.Event(Event{Type: EventValidationError, Phase: "Validate", Message: ve.Error()})
			failures = append(failures, ve)
			continue
		}
		ctx.Observer.Event(Event{Type: EventValidationWarning, Phase: "Validate", Message: ve.Message})
	}

	if len(failures) > 0 {
		return errors.Join(failures...)
	}

	ctx.Observer.Printf("[Validate] Validation passed")
	return nil
}

// ValidateRun checks a run description and returns errors and warnings.
func ValidateRun(run RunContext) []*ValidationError {
	var errs []*ValidationError

	if len(run.Domains) == 0 {
		errs = append(errs, &ValidationError{
			Field:    "domains",
			Message:  "at least one domain is required",
			Severity: SeverityError,
		})
	}

	if run.IssuanceEnabled && strings.TrimSpace(run.Email) == "" {
		errs = append(errs, &ValidationError{
			Field:    "issuance.email",
			Message:  "a contact email is required when issuance is enabled",
			Severity: SeverityError,
		})
	}

	if run.RunTag == "" {
		errs = append(errs, &ValidationError{
			Field:    "run_tag",
			Message:  "run tag is required",
			Severity: SeverityError,
		})
	}

	for i, d := range run.Domains {
		if strings.Contains(d, "*") {
			errs = append(errs, &ValidationError{
				Field:    fmt.Sprintf("domains[%d]", i),
				Message:  "wildcard names cannot be issued over TLS-ALPN-01",
				Severity: SeverityError,
			})
			continue
		}
		if _, err := naming.Zone(d, run.DNSZones); err != nil {
			errs = append(errs, &ValidationError{
				Field:    fmt.Sprintf("domains[%d]", i),
				Message:  err.Error(),
				Severity: SeverityError,
				Err:      err,
			})
		}
	}

	if !run.IssuanceEnabled {
		errs = append(errs, &ValidationError{
			Field:    "issuance.enabled",
			Message:  "issuance is disabled, only certificates already on the instance are published",
			Severity: SeverityWarning,
		})
	}

	if run.StoreKind == config.StoreHCloud && run.IdentityEnabled {
		errs = append(errs, &ValidationError{
			Field:    "identity.enabled",
			Message:  "the hcloud store has no identity API, the publisher role is skipped",
			Severity: SeverityWarning,
		})
	}

	if run.RecordTTL > 0 && run.RecordTTL < 300 {
		errs = append(errs, &ValidationError{
			Field:    "dns.ttl",
			Message:  fmt.Sprintf("ttl %ds is short, resolvers may cache the record past the run anyway", run.RecordTTL),
			Severity: SeverityWarning,
		})
	}

	return errs
}
