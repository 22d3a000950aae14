package challenge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imamik/certzner/internal/config"
	"github.com/imamik/certzner/internal/provisioning"
	tu "github.com/imamik/certzner/internal/testing"
)

type mockDNS struct {
	mock.Mock
}

func (m *mockDNS) UpsertARecord(ctx context.Context, zone, name, value string, ttl int64, wait bool) error {
	args := m.Called(ctx, zone, name, value, ttl, wait)
	return args.Error(0)
}

func (m *mockDNS) DeleteARecord(ctx context.Context, zone, name string) error {
	args := m.Called(ctx, zone, name)
	return args.Error(0)
}

func newContext(t *testing.T, cfg *config.Config, dns provisioning.DNSProvider) *provisioning.Context {
	t.Helper()
	ctx := provisioning.NewContext(tu.TestContext(t), provisioning.NewRunContext(cfg), tu.NewFakeCloud(), nil)
	ctx.Observer = provisioning.NewLogrObserver(logr.Discard())
	ctx.DNS = dns
	ctx.State.InstanceIP = "203.0.113.10"
	return ctx
}

func TestPublish(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		domain   string
		zones    []string
		wantZone string
	}{
		{"subdomain", "a.example.com", nil, "example.com"},
		{"wildcard", "*.example.com", nil, "example.com"},
		{"deep subdomain", "x.y.example.com", nil, "y.example.com"},
		{"registered zone", "example.com", []string{"example.com"}, "example.com"},
		{"second-level suffix", "a.example.co.uk", nil, "example.co.uk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dns := new(mockDNS)
			dns.On("UpsertARecord", mock.Anything, tt.wantZone, tt.domain, "203.0.113.10", int64(7200), true).Return(nil)

			cfg := tu.NewConfigBuilder().WithDNS(config.DNSProviderCloudflare, tt.zones...).Build()
			err := NewCoordinator().Publish(newContext(t, cfg, dns), tt.domain)

			require.NoError(t, err)
			dns.AssertExpectations(t)
		})
	}
}

func TestPublish_BoundedByPropagationTimeout(t *testing.T) {
	t.Parallel()
	dns := new(mockDNS)
	dns.On("UpsertARecord", mock.Anything, "example.com", "a.example.com", "203.0.113.10", int64(7200), true).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(config.DefaultPropagationTimeout), deadline, 5*time.Second)
		}).
		Return(nil)

	err := NewCoordinator().Publish(newContext(t, tu.NewConfigBuilder().Build(), dns), "a.example.com")
	require.NoError(t, err)
	dns.AssertExpectations(t)
}

func TestPublish_Errors(t *testing.T) {
	t.Parallel()

	t.Run("provider failure", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("zone not found")
		dns := new(mockDNS)
		dns.On("UpsertARecord", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(cause)

		err := NewCoordinator().Publish(newContext(t, tu.NewConfigBuilder().Build(), dns), "a.example.com")

		var cerr *provisioning.ChallengeError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "a.example.com", cerr.Domain)
		assert.Equal(t, provisioning.OpCreate, cerr.Op)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("underivable zone", func(t *testing.T) {
		t.Parallel()
		dns := new(mockDNS)

		err := NewCoordinator().Publish(newContext(t, tu.NewConfigBuilder().Build(), dns), "example.com")

		var cerr *provisioning.ChallengeError
		require.ErrorAs(t, err, &cerr)
		dns.AssertNotCalled(t, "UpsertARecord", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no instance address", func(t *testing.T) {
		t.Parallel()
		dns := new(mockDNS)
		ctx := newContext(t, tu.NewConfigBuilder().Build(), dns)
		ctx.State.InstanceIP = ""

		err := NewCoordinator().Publish(ctx, "a.example.com")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "instance address is unknown")
	})

	t.Run("no provider", func(t *testing.T) {
		t.Parallel()
		err := NewCoordinator().Publish(newContext(t, tu.NewConfigBuilder().Build(), nil), "a.example.com")
		require.Error(t, err)
	})
}

func TestRetract(t *testing.T) {
	t.Parallel()

	t.Run("deletes record", func(t *testing.T) {
		t.Parallel()
		dns := new(mockDNS)
		dns.On("DeleteARecord", mock.Anything, "example.com", "a.example.com").Return(nil)

		NewCoordinator().Retract(newContext(t, tu.NewConfigBuilder().Build(), dns), "a.example.com")
		dns.AssertExpectations(t)
	})

	t.Run("failure is swallowed", func(t *testing.T) {
		t.Parallel()
		dns := new(mockDNS)
		dns.On("DeleteARecord", mock.Anything, "example.com", "a.example.com").Return(errors.New("rate limited"))

		assert.NotPanics(t, func() {
			NewCoordinator().Retract(newContext(t, tu.NewConfigBuilder().Build(), dns), "a.example.com")
		})
		dns.AssertExpectations(t)
	})
}

func TestRecord(t *testing.T) {
	t.Parallel()
	ctx := newContext(t, tu.NewConfigBuilder().Build(), nil)

	rec, err := Record(ctx, "*.example.com")
	require.NoError(t, err)
	assert.Equal(t, provisioning.DomainRecord{
		Domain: "*.example.com",
		Zone:   "example.com",
		Value:  "203.0.113.10",
		TTL:    7200,
	}, rec)
}
