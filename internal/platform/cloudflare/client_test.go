package cloudflare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-memory Cloudflare zone with one zone, example.com.
type fakeAPI struct {
	mu       sync.Mutex
	records  map[string]Record
	nextID   int
	requests []string
	failures int // remaining requests to answer with 503
}

func newFakeAPI(t *testing.T, records ...Record) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{records: make(map[string]Record)}
	for _, r := range records {
		f.records[r.ID] = r
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if f.failures > 0 {
		f.failures--
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(apiResponse{Errors: []apiError{{Code: 1, Message: "try again"}}})
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "zones":
		if r.URL.Query().Get("name") == "example.com" {
			writeResult(w, []zoneResult{{ID: "zone-123"}})
			return
		}
		writeResult(w, []zoneResult{})
	case len(parts) == 3 && r.Method == http.MethodGet:
		var out []Record
		for _, rec := range f.records {
			if rec.Type == r.URL.Query().Get("type") && rec.Name == r.URL.Query().Get("name") {
				out = append(out, rec)
			}
		}
		writeResult(w, out)
	case len(parts) == 3 && r.Method == http.MethodPost:
		var rec Record
		_ = json.NewDecoder(r.Body).Decode(&rec)
		f.nextID++
		rec.ID = fmt.Sprintf("rec-%d", f.nextID)
		f.records[rec.ID] = rec
		writeResult(w, rec)
	case len(parts) == 4 && r.Method == http.MethodPut:
		var rec Record
		_ = json.NewDecoder(r.Body).Decode(&rec)
		rec.ID = parts[3]
		f.records[rec.ID] = rec
		writeResult(w, rec)
	case len(parts) == 4 && r.Method == http.MethodDelete:
		if _, ok := f.records[parts[3]]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(apiResponse{Errors: []apiError{{Code: 81044, Message: "Record does not exist."}}})
			return
		}
		delete(f.records, parts[3])
		writeResult(w, map[string]string{"id": parts[3]})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func writeResult(w http.ResponseWriter, v any) {
	data, _ := json.Marshal(v)
	_ = json.NewEncoder(w).Encode(apiResponse{Success: true, Result: data})
}

func (f *fakeAPI) aRecords(name string) []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Record
	for _, r := range f.records {
		if r.Type == "A" && r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient("test-token",
		WithBaseURL(srv.URL),
		WithPollInterval(time.Millisecond),
	)
}

// rewriteTransport sends every request to the test server.
type rewriteTransport struct {
	base    string
	wrapped http.RoundTripper
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = "http"
	req.URL.Host = strings.TrimPrefix(t.base, "http://")
	return t.wrapped.RoundTrip(req)
}

func TestGetZoneID(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/client/v4/zones", r.URL.Path)
		writeResult(w, []zoneResult{{ID: "zone-123"}})
	}))
	defer srv.Close()

	c := NewClient("test-token", WithHTTPClient(&http.Client{
		Transport: &rewriteTransport{base: srv.URL, wrapped: http.DefaultTransport},
	}))

	id, err := c.GetZoneID(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, "zone-123", id)
	assert.Equal(t, "Bearer test-token", auth)
}

func TestGetZoneID_CachedAndNotFound(t *testing.T) {
	f, srv := newFakeAPI(t)
	c := newTestClient(srv)

	_, err := c.GetZoneID(context.Background(), "example.com")
	require.NoError(t, err)
	_, err = c.GetZoneID(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Len(t, f.requests, 1)

	_, err = c.GetZoneID(context.Background(), "notfound.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no zone found")
}

func TestUpsertARecord_Creates(t *testing.T) {
	f, srv := newFakeAPI(t)
	c := newTestClient(srv)

	err := c.UpsertARecord(context.Background(), "example.com", "a.example.com", "203.0.113.10", 7200, true)
	require.NoError(t, err)

	records := f.aRecords("a.example.com")
	require.Len(t, records, 1)
	assert.Equal(t, "203.0.113.10", records[0].Content)
	assert.Equal(t, int64(7200), records[0].TTL)
	assert.False(t, records[0].Proxied)
}

func TestUpsertARecord_OverwritesExisting(t *testing.T) {
	f, srv := newFakeAPI(t,
		Record{ID: "old-1", Type: "A", Name: "a.example.com", Content: "198.51.100.1"},
		Record{ID: "old-2", Type: "A", Name: "a.example.com", Content: "198.51.100.2"},
		Record{ID: "txt", Type: "TXT", Name: "a.example.com", Content: "keep"},
	)
	c := newTestClient(srv)

	err := c.UpsertARecord(context.Background(), "example.com", "a.example.com", "203.0.113.10", 7200, true)
	require.NoError(t, err)

	records := f.aRecords("a.example.com")
	require.Len(t, records, 1)
	assert.Equal(t, "203.0.113.10", records[0].Content)
	assert.Contains(t, f.records, "txt")
}

func TestUpsertARecord_RetriesServerErrors(t *testing.T) {
	f, srv := newFakeAPI(t)
	f.failures = 1
	c := newTestClient(srv)

	err := c.UpsertARecord(context.Background(), "example.com", "a.example.com", "203.0.113.10", 7200, false)
	require.NoError(t, err)
	assert.Len(t, f.aRecords("a.example.com"), 1)
}

func TestUpsertARecord_UnknownZone(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := newTestClient(srv)

	err := c.UpsertARecord(context.Background(), "other.org", "a.other.org", "203.0.113.10", 7200, false)
	require.Error(t, err)
}

func TestDeleteARecord(t *testing.T) {
	f, srv := newFakeAPI(t,
		Record{ID: "a-1", Type: "A", Name: "a.example.com", Content: "203.0.113.10"},
		Record{ID: "a-2", Type: "A", Name: "b.example.com", Content: "203.0.113.10"},
	)
	c := newTestClient(srv)

	require.NoError(t, c.DeleteARecord(context.Background(), "example.com", "a.example.com"))
	assert.Empty(t, f.aRecords("a.example.com"))
	assert.Len(t, f.aRecords("b.example.com"), 1)

	// Absent record is success.
	require.NoError(t, c.DeleteARecord(context.Background(), "example.com", "a.example.com"))
}

func TestDeleteDNSRecord_NotRetriedOnClientError(t *testing.T) {
	f, srv := newFakeAPI(t)
	c := newTestClient(srv)

	err := c.DeleteDNSRecord(context.Background(), "zone-123", "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "Record does not exist.")
	assert.Len(t, f.requests, 1)
}
