package challenge

import (
	"context"
	"fmt"

	"github.com/imamik/certzner/internal/provisioning"
	"github.com/imamik/certzner/internal/util/naming"
)

const phase = "Challenge"

// Coordinator implements provisioning.ChallengeCoordinator on top of a
// provisioning.DNSProvider.
type Coordinator struct{}

var _ provisioning.ChallengeCoordinator = (*Coordinator)(nil)

// NewCoordinator creates a challenge coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Record returns the A record a domain is pointed at during issuance.
func Record(ctx *provisioning.Context, domain string) (provisioning.DomainRecord, error) {
	zone, err := naming.Zone(domain, ctx.Run.DNSZones)
	if err != nil {
		return provisioning.DomainRecord{}, err
	}
	return provisioning.DomainRecord{
		Domain: domain,
		Zone:   zone,
		Value:  ctx.State.InstanceIP,
		TTL:    ctx.Run.RecordTTL,
	}, nil
}

// Publish upserts the domain's A record and waits for the provider to report
// it propagated, bounded by the propagation timeout.
func (c *Coordinator) Publish(ctx *provisioning.Context, domain string) error {
	if ctx.DNS == nil {
		return &provisioning.ChallengeError{Domain: domain, Op: provisioning.OpCreate, Err: fmt.Errorf("dns provider is not configured")}
	}
	rec, err := Record(ctx, domain)
	if err != nil {
		return &provisioning.ChallengeError{Domain: domain, Op: provisioning.OpCreate, Err: err}
	}
	if rec.Value == "" {
		return &provisioning.ChallengeError{Domain: domain, Op: provisioning.OpCreate, Err: fmt.Errorf("instance address is unknown")}
	}

	ctx.Observer.Printf("[%s] Pointing %s at %s (zone %s, ttl %d)...", phase, rec.Domain, rec.Value, rec.Zone, rec.TTL)

	pctx := context.Context(ctx)
	if ctx.Run.PropagationTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, ctx.Run.PropagationTimeout)
		defer cancel()
	}

	if err := ctx.DNS.UpsertARecord(pctx, rec.Zone, rec.Domain, rec.Value, rec.TTL, true); err != nil {
		return &provisioning.ChallengeError{Domain: domain, Op: provisioning.OpCreate, Err: err}
	}
	ctx.Observer.Printf("[%s] Record for %s propagated", phase, domain)
	return nil
}

// Retract deletes the domain's A record. Failures are logged and never
// change the domain's outcome.
func (c *Coordinator) Retract(ctx *provisioning.Context, domain string) {
	if ctx.DNS == nil {
		return
	}
	zone, err := naming.Zone(domain, ctx.Run.DNSZones)
	if err != nil {
		ctx.Observer.Printf("[%s] Warning: cannot retract %s: %v", phase, domain, err)
		return
	}
	if err := ctx.DNS.DeleteARecord(ctx, zone, domain); err != nil {
		cerr := &provisioning.ChallengeError{Domain: domain, Op: provisioning.OpDelete, Err: err}
		ctx.Observer.Printf("[%s] Warning: %v", phase, cerr)
		return
	}
	ctx.Observer.Printf("[%s] Retracted record for %s", phase, domain)
}
