package provisioning

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RecordDedupes(t *testing.T) {
	t.Parallel()
	r := NewRegistry("run-test")

	require.NoError(t, r.Record(KindNetwork, "1", "run-test"))
	require.NoError(t, r.Record(KindNetwork, "1", "run-test"))
	require.NoError(t, r.Record(KindInstance, "2", "run-test-issuer"))

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, "run-test", r.RunTag())
	assert.Empty(t, r.Path())
	assert.Len(t, r.ByKind(KindNetwork), 1)
	assert.Empty(t, r.ByKind(KindKeyPair))
}

func TestRegistry_Remove(t *testing.T) {
	t.Parallel()
	r := NewRegistry("run-test")
	require.NoError(t, r.Record(KindNetwork, "1", "run-test"))
	require.NoError(t, r.Record(KindSubnet, "10.77.1.0/24", "run-test"))

	require.NoError(t, r.Remove(KindSubnet, "run-test"))
	require.NoError(t, r.Remove(KindSubnet, "run-test"))

	handles := r.Handles()
	require.Len(t, handles, 1)
	assert.Equal(t, KindNetwork, handles[0].Kind)
}

func TestRegistry_HandlesIsACopy(t *testing.T) {
	t.Parallel()
	r := NewRegistry("run-test")
	require.NoError(t, r.Record(KindNetwork, "1", "run-test"))

	h := r.Handles()
	h[0].Name = "changed"
	assert.Equal(t, "run-test", r.Handles()[0].Name)
}

func TestJournal_RoundTrip(t *testing.T) {
	t.Parallel()
	path := JournalPath(t.TempDir(), "run-test")
	assert.Equal(t, "run-test.journal.json", filepath.Base(path))

	r, err := OpenJournal(path, "run-test")
	require.NoError(t, err)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.now = func() time.Time { return fixed }
	require.NoError(t, r.Record(KindKeyPair, "7", "run-test-key"))
	require.NoError(t, r.Record(KindInstance, "8", "run-test-issuer"))

	reopened, err := OpenJournal(path, "run-test")
	require.NoError(t, err)
	assert.Equal(t, r.Handles(), reopened.Handles())
	assert.Equal(t, fixed, reopened.Handles()[0].CreatedAt)

	// an empty run tag adopts the journal's
	adopted, err := OpenJournal(path, "")
	require.NoError(t, err)
	assert.Equal(t, "run-test", adopted.RunTag())
}

func TestJournal_RunTagMismatch(t *testing.T) {
	t.Parallel()
	path := JournalPath(t.TempDir(), "run-test")
	r, err := OpenJournal(path, "run-test")
	require.NoError(t, err)
	require.NoError(t, r.Record(KindNetwork, "1", "run-test"))

	_, err = OpenJournal(path, "run-other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `belongs to run "run-test"`)
}

func TestJournal_Corrupt(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := OpenJournal(path, "run-test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse journal")
}

func TestJournal_Discard(t *testing.T) {
	t.Parallel()
	path := JournalPath(t.TempDir(), "run-test")
	r, err := OpenJournal(path, "run-test")
	require.NoError(t, err)
	require.NoError(t, r.Record(KindNetwork, "1", "run-test"))

	// handles remain: journal kept
	require.NoError(t, r.Discard())
	assert.FileExists(t, path)

	require.NoError(t, r.Remove(KindNetwork, "run-test"))
	require.NoError(t, r.Discard())
	assert.NoFileExists(t, path)

	// discarding twice is fine
	require.NoError(t, r.Discard())
}
