package provisioning

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

// Logger is the minimal printf-style logging surface.
type Logger interface {
	Printf(format string, v ...any)
}

// Observer defines the interface for structured observability during a run.
type Observer interface {
	Logger

	// Event emits a structured event
	Event(event Event)

	// Progress reports progress for a phase
	Progress(phase string, current, total int)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured run event.
type Event struct {
	Type      EventType         // Type of event
	Phase     string            // Phase name (e.g., "Provision", "Teardown")
	Message   string            // Human-readable message
	Resource  string            // Resource name/ID if applicable
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
}

// EventType represents the type of run event.
type EventType string

const (
	EventPhaseStarted   EventType = "phase.started"
	EventPhaseCompleted EventType = "phase.completed"
	EventPhaseFailed    EventType = "phase.failed"

	EventResourceCreating EventType = "resource.creating"
	EventResourceCreated  EventType = "resource.created"
	EventResourceExists   EventType = "resource.exists"
	EventResourceFailed   EventType = "resource.failed"
	EventResourceDeleting EventType = "resource.deleting"
	EventResourceDeleted  EventType = "resource.deleted"

	EventDomainSucceeded EventType = "domain.succeeded"
	EventDomainFailed    EventType = "domain.failed"

	EventValidationWarning EventType = "validation.warning"
	EventValidationError   EventType = "validation.error"

	EventProgress EventType = "progress"
)

// ConsoleObserver implements Observer on top of a logr.Logger.
type ConsoleObserver struct {
	log           logr.Logger
	contextFields map[string]string
}

// NewConsoleObserver creates an observer writing through the standard log package.
func NewConsoleObserver() *ConsoleObserver {
	return NewLogrObserver(NewStdLogger(0))
}

// NewLogrObserver creates an observer backed by logger.
func NewLogrObserver(logger logr.Logger) *ConsoleObserver {
	return &ConsoleObserver{
		log:           logger,
		contextFields: make(map[string]string),
	}
}

// NewStdLogger returns a logr.Logger printing through the standard log
// package. Messages at V(level) up to verbosity are shown.
func NewStdLogger(verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			log.Printf("%s: %s", prefix, args)
			return
		}
		log.Print(args)
	}, funcr.Options{Verbosity: verbosity})
}

// Logr returns the underlying logger, for adapters that log on their own.
func (o *ConsoleObserver) Logr() logr.Logger {
	return o.log
}

// Printf implements Logger.
func (o *ConsoleObserver) Printf(format string, v ...any) {
	o.log.Info(fmt.Sprintf(format, v...))
}

// Event implements Observer interface.
func (o *ConsoleObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if event.Fields == nil {
		event.Fields = make(map[string]string)
	}
	for k, v := range o.contextFields {
		if _, exists := event.Fields[k]; !exists {
			event.Fields[k] = v
		}
	}

	msg := formatEvent(event)
	switch event.Type {
	case EventPhaseFailed, EventResourceFailed, EventDomainFailed, EventValidationError:
		o.log.Error(nil, msg)
	default:
		o.log.Info(msg)
	}
}

// Progress implements Observer interface.
func (o *ConsoleObserver) Progress(phase string, current, total int) {
	msg := fmt.Sprintf("%d/%d", current, total)
	if total > 0 {
		msg += fmt.Sprintf(" (%d%%)", (current*100)/total)
	}
	o.Event(Event{
		Type:    EventProgress,
		Phase:   phase,
		Message: msg,
	})
}

// WithFields implements Observer interface.
func (o *ConsoleObserver) WithFields(fields map[string]string) Observer {
	newFields := make(map[string]string, len(o.contextFields)+len(fields))
	for k, v := range o.contextFields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &ConsoleObserver{
		log:           o.log,
		contextFields: newFields,
	}
}

// formatEvent formats an event for console output. Fields are sorted so
// output is stable.
func formatEvent(event Event) string {
	var parts []string

	parts = append(parts, string(event.Type))
	if event.Phase != "" {
		parts = append(parts, fmt.Sprintf("[%s]", event.Phase))
	}
	if event.Resource != "" {
		parts = append(parts, fmt.Sprintf("resource=%s", event.Resource))
	}
	parts = append(parts, event.Message)

	if len(event.Fields) > 0 {
		keys := make([]string, 0, len(event.Fields))
		for k := range event.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fieldParts := make([]string, 0, len(keys))
		for _, k := range keys {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%s", k, event.Fields[k]))
		}
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(fieldParts, ", ")))
	}

	return strings.Join(parts, " ")
}

// Helper functions for common events

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{
		Type:    EventPhaseStarted,
		Phase:   phase,
		Message: "starting",
	})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventPhaseCompleted,
		Phase:   phase,
		Message: fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogPhaseFailed logs a phase failure event.
func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{
		Type:    EventPhaseFailed,
		Phase:   phase,
		Message: fmt.Sprintf("failed: %v", err),
	})
}

// LogResourceCreating logs that a resource is about to be created or reconciled.
func LogResourceCreating(observer Observer, phase string, kind ResourceKind, name string) {
	observer.Event(Event{
		Type:     EventResourceCreating,
		Phase:    phase,
		Resource: name,
		Message:  fmt.Sprintf("creating %s", kind),
		Fields:   map[string]string{"kind": string(kind)},
	})
}

// LogResourceExists logs that an existing resource is used instead of a new one.
func LogResourceExists(observer Observer, phase string, kind ResourceKind, name, id string) {
	observer.Event(Event{
		Type:     EventResourceExists,
		Phase:    phase,
		Resource: name,
		Message:  fmt.Sprintf("%s already exists", kind),
		Fields: map[string]string{
			"kind": string(kind),
			"id":   id,
		},
	})
}

// LogResourceFailed logs a failed create or delete.
func LogResourceFailed(observer Observer, phase string, kind ResourceKind, name string, err error) {
	observer.Event(Event{
		Type:     EventResourceFailed,
		Phase:    phase,
		Resource: name,
		Message:  fmt.Sprintf("%s failed: %v", kind, err),
		Fields:   map[string]string{"kind": string(kind)},
	})
}

// LogResourceDeleting logs that a resource is about to be deleted.
func LogResourceDeleting(observer Observer, phase string, kind ResourceKind, name string) {
	observer.Event(Event{
		Type:     EventResourceDeleting,
		Phase:    phase,
		Resource: name,
		Message:  fmt.Sprintf("deleting %s", kind),
		Fields:   map[string]string{"kind": string(kind)},
	})
}

// LogResourceCreated logs a successful resource creation event.
func LogResourceCreated(observer Observer, phase string, kind ResourceKind, name, id string) {
	observer.Event(Event{
		Type:     EventResourceCreated,
		Phase:    phase,
		Resource: name,
		Message:  fmt.Sprintf("%s created", kind),
		Fields: map[string]string{
			"kind": string(kind),
			"id":   id,
		},
	})
}

// LogResourceDeleted logs a successful resource deletion event.
func LogResourceDeleted(observer Observer, phase string, kind ResourceKind, name string) {
	observer.Event(Event{
		Type:     EventResourceDeleted,
		Phase:    phase,
		Resource: name,
		Message:  fmt.Sprintf("%s deleted", kind),
		Fields: map[string]string{
			"kind": string(kind),
		},
	})
}

// LogDomainOutcome logs the final outcome of a domain.
func LogDomainOutcome(observer Observer, o *DomainOutcome) {
	ev := Event{
		Type:     EventDomainSucceeded,
		Phase:    "Issue",
		Resource: o.Domain,
		Message:  string(o.Status),
		Fields:   map[string]string{},
	}
	if o.StoreName != "" {
		ev.Fields["store_name"] = o.StoreName
	}
	if o.Reused {
		ev.Fields["reused"] = "true"
	}
	if o.Err != nil {
		ev.Type = EventDomainFailed
		ev.Message = fmt.Sprintf("%s: %v", o.Status, o.Err)
	}
	observer.Event(ev)
}
