package provisioning

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockObserver records everything it is given.
type MockObserver struct {
	mu       sync.Mutex
	events   []Event
	messages []string
	fields   map[string]string
}

func NewMockObserver() *MockObserver {
	return &MockObserver{fields: make(map[string]string)}
}

func (m *MockObserver) Printf(format string, v ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, fmt.Sprintf(format, v...))
}

func (m *MockObserver) Event(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *MockObserver) Progress(phase string, current, total int) {
	m.Event(Event{
		Type:    EventProgress,
		Phase:   phase,
		Message: "progress",
		Fields:  map[string]string{"current": fmt.Sprint(current), "total": fmt.Sprint(total)},
	})
}

func (m *MockObserver) WithFields(fields map[string]string) Observer {
	n := NewMockObserver()
	for k, v := range m.fields {
		n.fields[k] = v
	}
	for k, v := range fields {
		n.fields[k] = v
	}
	return n
}

func (m *MockObserver) eventsOf(t EventType) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// captured returns an observer writing to lines.
func captured() (*ConsoleObserver, *[]string) {
	var lines []string
	logger := funcr.New(func(prefix, args string) {
		lines = append(lines, args)
	}, funcr.Options{})
	return NewLogrObserver(logger), &lines
}

func TestConsoleObserver_Printf(t *testing.T) {
	t.Parallel()
	obs, lines := captured()

	obs.Printf("[%s] created %d", "Provision", 3)

	require.Len(t, *lines, 1)
	assert.Contains(t, (*lines)[0], "[Provision] created 3")
}

func TestConsoleObserver_EventErrorsAreLoggedAsErrors(t *testing.T) {
	t.Parallel()
	obs, lines := captured()

	obs.Event(Event{Type: EventPhaseFailed, Phase: "Provision", Message: "boom"})
	obs.Event(Event{Type: EventPhaseCompleted, Phase: "Provision", Message: "ok"})

	require.Len(t, *lines, 2)
	assert.Contains(t, (*lines)[0], `"error"`)
	assert.NotContains(t, (*lines)[1], `"error"`)
}

func TestConsoleObserver_WithFields(t *testing.T) {
	t.Parallel()
	obs, lines := captured()

	child := obs.WithFields(map[string]string{"run": "run-test"})
	child.Event(Event{Type: EventResourceCreated, Message: "network created", Fields: map[string]string{"kind": "network"}})
	obs.Event(Event{Type: EventResourceCreated, Message: "plain"})

	require.Len(t, *lines, 2)
	assert.Contains(t, (*lines)[0], "(kind=network, run=run-test)")
	assert.NotContains(t, (*lines)[1], "run=run-test")
}

func TestConsoleObserver_Progress(t *testing.T) {
	t.Parallel()
	obs, lines := captured()

	obs.Progress("Issue", 1, 4)
	obs.Progress("Issue", 0, 0)

	assert.Contains(t, (*lines)[0], "progress [Issue] 1/4 (25%)")
	assert.Contains(t, (*lines)[1], "progress [Issue] 0/0")
	assert.NotContains(t, (*lines)[1], "%")
}

func TestFormatEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "minimal",
			event: Event{Type: EventPhaseStarted, Message: "starting"},
			want:  "phase.started starting",
		},
		{
			name:  "phase and resource",
			event: Event{Type: EventResourceDeleted, Phase: "Teardown", Resource: "run-test", Message: "network deleted"},
			want:  "resource.deleted [Teardown] resource=run-test network deleted",
		},
		{
			name:  "sorted fields",
			event: Event{Type: EventResourceCreated, Message: "m", Fields: map[string]string{"z": "1", "a": "2"}},
			want:  "resource.created m (a=2, z=1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, formatEvent(tt.event))
		})
	}
}

func TestLogHelpers(t *testing.T) {
	t.Parallel()
	obs := NewMockObserver()

	LogPhaseStart(obs, "Provision")
	LogPhaseComplete(obs, "Provision", 1500*time.Millisecond)
	LogPhaseFailed(obs, "Provision", errors.New("boom"))
	LogResourceCreated(obs, "Provision", KindNetwork, "run-test", "42")
	LogResourceDeleted(obs, "Teardown", KindNetwork, "run-test")
	LogResourceCreating(obs, "Provision", KindSecurityGroup, "run-test")
	LogResourceExists(obs, "Provision", KindKeyPair, "laptop", "7")
	LogResourceFailed(obs, "Provision", KindInstance, "run-test-issuer", errors.New("limit"))
	LogResourceDeleting(obs, "Teardown", KindInstance, "run-test-issuer")

	require.Len(t, obs.events, 9)
	assert.Equal(t, "completed in 1.5s", obs.events[1].Message)
	assert.Equal(t, "failed: boom", obs.events[2].Message)
	assert.Equal(t, map[string]string{"kind": "network", "id": "42"}, obs.events[3].Fields)
	assert.Equal(t, "run-test", obs.events[4].Resource)

	assert.Equal(t, EventResourceCreating, obs.events[5].Type)
	assert.Equal(t, "creating security-group", obs.events[5].Message)
	assert.Equal(t, EventResourceExists, obs.events[6].Type)
	assert.Equal(t, map[string]string{"kind": "key-pair", "id": "7"}, obs.events[6].Fields)
	assert.Equal(t, EventResourceFailed, obs.events[7].Type)
	assert.Equal(t, "instance failed: limit", obs.events[7].Message)
	assert.Equal(t, EventResourceDeleting, obs.events[8].Type)
	assert.Equal(t, "run-test-issuer", obs.events[8].Resource)
}

func TestLogDomainOutcome(t *testing.T) {
	t.Parallel()
	obs := NewMockObserver()

	LogDomainOutcome(obs, &DomainOutcome{Domain: "a.example.com", Status: DomainPublished, StoreName: "a-example-com", Reused: true})
	LogDomainOutcome(obs, &DomainOutcome{Domain: "b.example.com", Status: DomainFailed, Err: errors.New("agent failed")})

	ok := obs.eventsOf(EventDomainSucceeded)
	require.Len(t, ok, 1)
	assert.Equal(t, map[string]string{"store_name": "a-example-com", "reused": "true"}, ok[0].Fields)

	failed := obs.eventsOf(EventDomainFailed)
	require.Len(t, failed, 1)
	assert.True(t, strings.HasPrefix(failed[0].Message, "failed: agent failed"))
}
