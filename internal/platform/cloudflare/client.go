// Package cloudflare is a minimal Cloudflare API client for the A records
// that route a domain to the issuer during a challenge.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/certzner/internal/util/retry"
)

const (
	defaultBaseURL      = "https://api.cloudflare.com/client/v4"
	defaultPollInterval = 5 * time.Second
)

// Client is a minimal Cloudflare API client for DNS record management.
type Client struct {
	apiToken     string
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	maxRetries   int
	log          logr.Logger

	mu    sync.Mutex
	zones map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithPollInterval sets how often propagation is checked.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// WithLogger sets the client logger.
func WithLogger(l logr.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Record represents a Cloudflare DNS record.
type Record struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int64  `json:"ttl,omitempty"`
	Proxied bool   `json:"proxied"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Errors     []apiError
}

func (e *APIError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ae := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%d: %s", ae.Code, ae.Message))
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, strings.Join(msgs, "; "))
}

// retryable reports whether the request may succeed when repeated.
func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type apiResponse struct {
	Success bool            `json:"success"`
	Errors  []apiError      `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type zoneResult struct {
	ID string `json:"id"`
}

// NewClient creates a new Cloudflare API client.
func NewClient(apiToken string, opts ...Option) *Client {
	c := &Client{
		apiToken:     apiToken,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: defaultPollInterval,
		maxRetries:   3,
		log:          logr.Discard(),
		zones:        make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetZoneID returns the zone ID for the given zone name.
func (c *Client) GetZoneID(ctx context.Context, zone string) (string, error) {
	c.mu.Lock()
	id, ok := c.zones[zone]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	var zones []zoneResult
	if err := c.call(ctx, http.MethodGet, "/zones?name="+url.QueryEscape(zone), nil, &zones); err != nil {
		return "", fmt.Errorf("get zone ID: %w", err)
	}
	if len(zones) == 0 {
		return "", fmt.Errorf("no zone found for domain %s", zone)
	}

	c.mu.Lock()
	c.zones[zone] = zones[0].ID
	c.mu.Unlock()
	return zones[0].ID, nil
}

// FindRecords returns the records of the given type and exact name.
func (c *Client) FindRecords(ctx context.Context, zoneID, recordType, name string) ([]Record, error) {
	q := url.Values{}
	q.Set("type", recordType)
	q.Set("name", name)
	q.Set("per_page", "100")

	var records []Record
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/zones/%s/dns_records?%s", zoneID, q.Encode()), nil, &records); err != nil {
		return nil, fmt.Errorf("list %s records for %s: %w", recordType, name, err)
	}
	return records, nil
}

// CreateDNSRecord creates a record and returns it with its ID.
func (c *Client) CreateDNSRecord(ctx context.Context, zoneID string, record Record) (*Record, error) {
	var created Record
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("/zones/%s/dns_records", zoneID), record, &created); err != nil {
		return nil, fmt.Errorf("create DNS record %s: %w", record.Name, err)
	}
	return &created, nil
}

// UpdateDNSRecord overwrites a record by ID.
func (c *Client) UpdateDNSRecord(ctx context.Context, zoneID, recordID string, record Record) error {
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, recordID), record, nil); err != nil {
		return fmt.Errorf("update DNS record %s: %w", recordID, err)
	}
	return nil
}

// DeleteDNSRecord deletes a DNS record by ID.
func (c *Client) DeleteDNSRecord(ctx context.Context, zoneID, recordID string) error {
	if err := c.call(ctx, http.MethodDelete, fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, recordID), nil, nil); err != nil {
		return fmt.Errorf("delete DNS record %s: %w", recordID, err)
	}
	return nil
}

// UpsertARecord points name at value, overwriting any existing A record of
// the same name. With wait set it blocks until the API serves the new value.
func (c *Client) UpsertARecord(ctx context.Context, zone, name, value string, ttl int64, wait bool) error {
	zoneID, err := c.GetZoneID(ctx, zone)
	if err != nil {
		return err
	}
	existing, err := c.FindRecords(ctx, zoneID, "A", name)
	if err != nil {
		return err
	}

	record := Record{Type: "A", Name: name, Content: value, TTL: ttl}
	if len(existing) == 0 {
		if _, err := c.CreateDNSRecord(ctx, zoneID, record); err != nil {
			return err
		}
	} else {
		c.log.V(1).Info("overwriting existing A record", "name", name, "previous", existing[0].Content)
		if err := c.UpdateDNSRecord(ctx, zoneID, existing[0].ID, record); err != nil {
			return err
		}
		for _, extra := range existing[1:] {
			if err := c.DeleteDNSRecord(ctx, zoneID, extra.ID); err != nil {
				return err
			}
		}
	}

	if !wait {
		return nil
	}
	return c.waitForRecord(ctx, zoneID, name, value)
}

// DeleteARecord removes every A record with the given name. Absence is success.
func (c *Client) DeleteARecord(ctx context.Context, zone, name string) error {
	zoneID, err := c.GetZoneID(ctx, zone)
	if err != nil {
		return err
	}
	records, err := c.FindRecords(ctx, zoneID, "A", name)
	if err != nil {
		return err
	}
	var errs []error
	for _, r := range records {
		if err := c.DeleteDNSRecord(ctx, zoneID, r.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// waitForRecord polls until exactly the expected value is served for name.
// The deadline comes from ctx.
func (c *Client) waitForRecord(ctx context.Context, zoneID, name, value string) error {
	timeout := 10 * time.Minute
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	err := retry.Poll(ctx, c.pollInterval, timeout, func(ctx context.Context) (bool, error) {
		records, err := c.FindRecords(ctx, zoneID, "A", name)
		if err != nil {
			return false, err
		}
		return len(records) == 1 && records[0].Content == value, nil
	})
	if err != nil {
		return fmt.Errorf("wait for %s to propagate: %w", name, err)
	}
	return nil
}

// call performs a request, retrying rate limits and server errors, and
// decodes the result field into out when non-nil.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	return retry.WithExponentialBackoff(ctx, func() error {
		resp, err := c.do(ctx, method, path, body)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.retryable() {
				return retry.Fatal(err)
			}
			return err
		}
		if out == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return retry.Fatal(fmt.Errorf("parse result: %w", err))
		}
		return nil
	}, retry.WithMaxRetries(c.maxRetries), retry.WithInitialDelay(500*time.Millisecond))
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*apiResponse, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed apiResponse
	if len(data) > 0 {
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse response: %w (status %d)", err, resp.StatusCode)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Errors: parsed.Errors}
	}
	return &parsed, nil
}
