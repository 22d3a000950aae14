package testing

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/imamik/certzner/internal/provisioning"
)

// FakeDNS is an in-memory DNSProvider keyed by record name.
type FakeDNS struct {
	mu      sync.Mutex
	Records map[string]string
	Log     []string

	// CreateErrors and DeleteErrors inject failures per record name.
	CreateErrors map[string]error
	DeleteErrors map[string]error
}

var _ provisioning.DNSProvider = (*FakeDNS)(nil)

// NewFakeDNS creates an empty DNS provider.
func NewFakeDNS() *FakeDNS {
	return &FakeDNS{
		Records:      make(map[string]string),
		CreateErrors: make(map[string]error),
		DeleteErrors: make(map[string]error),
	}
}

// UpsertARecord implements DNSProvider.
func (f *FakeDNS) UpsertARecord(_ context.Context, zone, name, value string, ttl int64, wait bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Log = append(f.Log, fmt.Sprintf("upsert %s zone=%s value=%s ttl=%d wait=%t", name, zone, value, ttl, wait))
	if err := f.CreateErrors[name]; err != nil {
		return err
	}
	f.Records[name] = value
	return nil
}

// DeleteARecord implements DNSProvider.
func (f *FakeDNS) DeleteARecord(_ context.Context, zone, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Log = append(f.Log, fmt.Sprintf("delete %s zone=%s", name, zone))
	if err := f.DeleteErrors[name]; err != nil {
		return err
	}
	delete(f.Records, name)
	return nil
}

// Names returns the names of records that currently exist, sorted.
func (f *FakeDNS) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.Records))
	for n := range f.Records {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FakeStore is an in-memory CertificateStore.
type FakeStore struct {
	mu      sync.Mutex
	Entries map[string]provisioning.PublishedCertificate
	Ops     []string

	CreateErrors map[string]error
	DeleteError  error
}

var _ provisioning.CertificateStore = (*FakeStore)(nil)

// NewFakeStore creates an empty store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		Entries:      make(map[string]provisioning.PublishedCertificate),
		CreateErrors: make(map[string]error),
	}
}

// Kind implements CertificateStore.
func (f *FakeStore) Kind() string { return "fake" }

// DeleteCertificate implements CertificateStore.
func (f *FakeStore) DeleteCertificate(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ops = append(f.Ops, "delete "+name)
	if f.DeleteError != nil {
		return f.DeleteError
	}
	delete(f.Entries, name)
	return nil
}

// CreateCertificate implements CertificateStore. Names are unique.
func (f *FakeStore) CreateCertificate(_ context.Context, cert provisioning.PublishedCertificate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ops = append(f.Ops, "create "+cert.Name)
	if err := f.CreateErrors[cert.Name]; err != nil {
		return err
	}
	if _, ok := f.Entries[cert.Name]; ok {
		return fmt.Errorf("certificate %s already exists", cert.Name)
	}
	f.Entries[cert.Name] = cert
	return nil
}

// Names returns the stored entry names, sorted.
func (f *FakeStore) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.Entries))
	for n := range f.Entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FakeRemote is an in-memory RemoteExecutor with a file system.
type FakeRemote struct {
	mu       sync.Mutex
	Files    map[string][]byte
	Commands []string

	// Handler answers Execute. It runs without the lock held so it may call Put.
	Handler func(cmd string) (string, error)
}

var _ provisioning.RemoteExecutor = (*FakeRemote)(nil)

// NewFakeRemote creates a remote with no files.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{Files: make(map[string][]byte)}
}

// Put writes a file.
func (f *FakeRemote) Put(path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Files[path] = append([]byte(nil), data...)
}

// Execute implements RemoteExecutor.
func (f *FakeRemote) Execute(_ context.Context, cmd string) (string, error) {
	f.mu.Lock()
	f.Commands = append(f.Commands, cmd)
	handler := f.Handler
	f.mu.Unlock()

	if handler != nil {
		return handler(cmd)
	}
	return "", nil
}

// ReadFile implements RemoteExecutor.
func (f *FakeRemote) ReadFile(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.Files[path]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, os.ErrNotExist)
	}
	return append([]byte(nil), data...), nil
}

// FileExists implements RemoteExecutor.
func (f *FakeRemote) FileExists(_ context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Files[path]) > 0, nil
}

// CommandsContaining returns executed commands containing substr.
func (f *FakeRemote) CommandsContaining(substr string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.Commands {
		if strings.Contains(c, substr) {
			out = append(out, c)
		}
	}
	return out
}

// FakeIdentity is an in-memory IdentityManager.
type FakeIdentity struct {
	mu       sync.Mutex
	Account  string
	Roles    map[string]string
	Policies map[string]map[string]string
	Ops      []string

	Errors map[string]error
}

var _ provisioning.IdentityManager = (*FakeIdentity)(nil)

// NewFakeIdentity creates an identity backend for account 123456789012.
func NewFakeIdentity() *FakeIdentity {
	return &FakeIdentity{
		Account:  "123456789012",
		Roles:    make(map[string]string),
		Policies: make(map[string]map[string]string),
		Errors:   make(map[string]error),
	}
}

func (f *FakeIdentity) op(name, arg string) error {
	f.Ops = append(f.Ops, name+" "+arg)
	return f.Errors[name]
}

// CallerAccount implements IdentityManager.
func (f *FakeIdentity) CallerAccount(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.op("CallerAccount", ""); err != nil {
		return "", err
	}
	return f.Account, nil
}

// EnsureRole implements IdentityManager.
func (f *FakeIdentity) EnsureRole(_ context.Context, name, trustPolicy string, _ map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.op("EnsureRole", name); err != nil {
		return "", err
	}
	if _, ok := f.Roles[name]; !ok {
		f.Roles[name] = trustPolicy
	}
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", f.Account, name), nil
}

// PutRolePolicy implements IdentityManager.
func (f *FakeIdentity) PutRolePolicy(_ context.Context, role, policyName, document string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.op("PutRolePolicy", policyName); err != nil {
		return err
	}
	if f.Policies[role] == nil {
		f.Policies[role] = make(map[string]string)
	}
	f.Policies[role][policyName] = document
	return nil
}

// DeleteRolePolicy implements IdentityManager.
func (f *FakeIdentity) DeleteRolePolicy(_ context.Context, role, policyName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.op("DeleteRolePolicy", policyName); err != nil {
		return err
	}
	delete(f.Policies[role], policyName)
	if len(f.Policies[role]) == 0 {
		delete(f.Policies, role)
	}
	return nil
}

// DeleteRole implements IdentityManager.
func (f *FakeIdentity) DeleteRole(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.op("DeleteRole", name); err != nil {
		return err
	}
	if len(f.Policies[name]) > 0 {
		return fmt.Errorf("role %s still has inline policies", name)
	}
	delete(f.Roles, name)
	return nil
}

// RecordingObserver keeps every event and message it is given.
type RecordingObserver struct {
	mu       sync.Mutex
	events   []provisioning.Event
	messages []string
}

var _ provisioning.Observer = (*RecordingObserver)(nil)

// NewRecordingObserver creates an empty observer.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

// Printf implements provisioning.Logger.
func (r *RecordingObserver) Printf(format string, v ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, fmt.Sprintf(format, v...))
}

// Event implements provisioning.Observer.
func (r *RecordingObserver) Event(event provisioning.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Progress implements provisioning.Observer.
func (r *RecordingObserver) Progress(phase string, current, total int) {
	r.Event(provisioning.Event{
		Type:    provisioning.EventProgress,
		Phase:   phase,
		Message: fmt.Sprintf("%d/%d", current, total),
	})
}

// WithFields implements provisioning.Observer. Fields are dropped; events
// still land on r.
func (r *RecordingObserver) WithFields(map[string]string) provisioning.Observer {
	return r
}

// Resources returns "kind/name" for every event of type t, in order.
func (r *RecordingObserver) Resources(t provisioning.EventType) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e.Fields["kind"]+"/"+e.Resource)
		}
	}
	return out
}

// Count returns the number of events of type t.
func (r *RecordingObserver) Count(t provisioning.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}
