package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient creates a Client backed by a test HTTP server.
// The handler receives real S3 XML-protocol requests.
func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(server.URL),
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		HTTPClient:                 &http.Client{Transport: &http.Transport{}},
	})
	return &Client{s3: client, region: "us-east-1"}
}

func xmlResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

const accessDenied = `<?xml version="1.0" encoding="UTF-8"?>
<Error>
  <Code>AccessDenied</Code>
  <Message>Access Denied</Message>
</Error>`

// memoryBucket serves a single path-style bucket named "certs".
type memoryBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []*http.Request
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{objects: make(map[string][]byte)}
}

func (b *memoryBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != "certs" {
		xmlResponse(w, http.StatusNotFound, `<Error><Code>NoSuchBucket</Code><Message>no bucket</Message></Error>`)
		return
	}

	switch {
	case r.Method == http.MethodHead && key == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		if _, ok := b.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		b.objects[key] = data
		b.puts = append(b.puts, r)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		delete(b.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	client, err := NewClient("https://fsn1.your-objectstorage.com", "fsn1", "ak", "sk")
	require.NoError(t, err)
	assert.Equal(t, "fsn1", client.region)
}

func TestObjectLifecycle(t *testing.T) {
	t.Parallel()

	bucket := newMemoryBucket()
	client := testClient(t, bucket)
	ctx := context.Background()

	exists, err := client.BucketExists(ctx, "certs")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, client.PutObject(ctx, "certs", "edge/a-example-com/cert.pem", []byte("CERT")))
	require.NoError(t, client.PutObject(ctx, "certs", "edge/a-example-com/privkey.pem", []byte("KEY")))

	assert.Equal(t, "AES256", bucket.puts[0].Header.Get("X-Amz-Server-Side-Encryption"))

	exists, err = client.ObjectExists(ctx, "certs", "edge/a-example-com/cert.pem")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Equal(t, []byte("CERT"), bucket.objects["edge/a-example-com/cert.pem"])
	assert.Len(t, bucket.objects, 2)

	require.NoError(t, client.DeleteObject(ctx, "certs", "edge/a-example-com/cert.pem"))
	exists, err = client.ObjectExists(ctx, "certs", "edge/a-example-com/cert.pem")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBucketExists_False(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	exists, err := client.BucketExists(context.Background(), "nonexistent-bucket")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAccessDeniedErrors(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		xmlResponse(w, http.StatusForbidden, accessDenied)
	}))
	ctx := context.Background()

	_, err := client.BucketExists(ctx, "certs")
	assert.ErrorContains(t, err, "failed to check bucket certs")

	err = client.PutObject(ctx, "certs", "k", []byte("data"))
	assert.ErrorContains(t, err, "failed to put object k in bucket certs")

	err = client.DeleteObject(ctx, "certs", "k")
	assert.ErrorContains(t, err, "failed to delete object k from bucket certs")

	_, err = client.ObjectExists(ctx, "certs", "k")
	assert.ErrorContains(t, err, "failed to check object k in bucket certs")
}

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "wrapped NoSuchBucket", err: fmt.Errorf("outer: %w", &s3types.NoSuchBucket{}), want: true},
		{name: "wrapped NoSuchKey", err: fmt.Errorf("outer: %w", &s3types.NoSuchKey{}), want: true},
		{name: "wrapped NotFound", err: fmt.Errorf("outer: %w", &s3types.NotFound{}), want: true},
		{name: "generic", err: fmt.Errorf("outer: %w", fmt.Errorf("inner error")), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isNotFoundError(tt.err))
		})
	}
}
