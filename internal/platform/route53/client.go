// Package route53 publishes and retracts challenge A records in Amazon
// Route 53 hosted zones.
package route53

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/go-logr/logr"
)

// API is the subset of the Route 53 client used here.
type API interface {
	route53.GetChangeAPIClient
	ChangeResourceRecordSets(ctx context.Context, in *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
	ListResourceRecordSets(ctx context.Context, in *route53.ListResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error)
	ListHostedZonesByName(ctx context.Context, in *route53.ListHostedZonesByNameInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesByNameOutput, error)
}

// Client manages A records in public hosted zones.
type Client struct {
	api                API
	propagationTimeout time.Duration
	waiterMinDelay     time.Duration
	log                logr.Logger

	// Route 53 throttles concurrent changes per account.
	changeMu sync.Mutex

	mu    sync.Mutex
	zones map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithPropagationTimeout bounds the INSYNC wait after a change.
func WithPropagationTimeout(d time.Duration) Option {
	return func(c *Client) { c.propagationTimeout = d }
}

// WithWaiterMinDelay sets the first delay between change status checks.
func WithWaiterMinDelay(d time.Duration) Option {
	return func(c *Client) { c.waiterMinDelay = d }
}

// WithLogger sets the client logger.
func WithLogger(l logr.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient wraps a Route 53 API client.
func NewClient(api API, opts ...Option) *Client {
	c := &Client{
		api:                api,
		propagationTimeout: 5 * time.Minute,
		waiterMinDelay:     5 * time.Second,
		log:                logr.Discard(),
		zones:              make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a Client from an AWS configuration.
func NewFromConfig(cfg aws.Config, opts ...Option) *Client {
	return NewClient(route53.NewFromConfig(cfg), opts...)
}

// HostedZoneID resolves a zone name to its public hosted zone ID.
func (c *Client) HostedZoneID(ctx context.Context, zone string) (string, error) {
	fqdn := fqdn(zone)

	c.mu.Lock()
	id, ok := c.zones[fqdn]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	out, err := c.api.ListHostedZonesByName(ctx, &route53.ListHostedZonesByNameInput{
		DNSName:  aws.String(fqdn),
		MaxItems: aws.Int32(10),
	})
	if err != nil {
		return "", fmt.Errorf("list hosted zones for %s: %w", zone, err)
	}
	for _, hz := range out.HostedZones {
		if aws.ToString(hz.Name) != fqdn {
			continue
		}
		if hz.Config != nil && hz.Config.PrivateZone {
			continue
		}
		id = strings.TrimPrefix(aws.ToString(hz.Id), "/hostedzone/")
		c.mu.Lock()
		c.zones[fqdn] = id
		c.mu.Unlock()
		return id, nil
	}
	return "", fmt.Errorf("no public hosted zone found for %s", zone)
}

// UpsertARecord points name at value with an UPSERT change. With wait set it
// blocks until Route 53 reports the change INSYNC.
func (c *Client) UpsertARecord(ctx context.Context, zone, name, value string, ttl int64, wait bool) error {
	zoneID, err := c.HostedZoneID(ctx, zone)
	if err != nil {
		return err
	}

	out, err := c.change(ctx, zoneID, types.ChangeActionUpsert, &types.ResourceRecordSet{
		Name:            aws.String(fqdn(name)),
		Type:            types.RRTypeA,
		TTL:             aws.Int64(ttl),
		ResourceRecords: []types.ResourceRecord{{Value: aws.String(value)}},
	})
	if err != nil {
		return fmt.Errorf("upsert A record %s: %w", name, err)
	}
	if !wait {
		return nil
	}
	if out == nil || out.ChangeInfo == nil || out.ChangeInfo.Id == nil {
		return errors.New("Route53 returned invalid response: missing ChangeInfo or Id")
	}

	waiter := route53.NewResourceRecordSetsChangedWaiter(c.api, func(o *route53.ResourceRecordSetsChangedWaiterOptions) {
		o.MinDelay = c.waiterMinDelay
		if o.MaxDelay < o.MinDelay {
			o.MaxDelay = o.MinDelay
		}
	})
	if err := waiter.Wait(ctx, &route53.GetChangeInput{Id: out.ChangeInfo.Id}, c.propagationTimeout); err != nil {
		return fmt.Errorf("waiting for %s to propagate: %w", name, err)
	}
	c.log.V(1).Info("record in sync", "name", name, "change", aws.ToString(out.ChangeInfo.Id))
	return nil
}

// DeleteARecord removes the A record set for name. Absence is success.
func (c *Client) DeleteARecord(ctx context.Context, zone, name string) error {
	zoneID, err := c.HostedZoneID(ctx, zone)
	if err != nil {
		return err
	}

	existing, err := c.findARecord(ctx, zoneID, fqdn(name))
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	// DELETE must match the live record set exactly.
	if _, err := c.change(ctx, zoneID, types.ChangeActionDelete, existing); err != nil {
		var invalid *types.InvalidChangeBatch
		if errors.As(err, &invalid) {
			c.log.V(1).Info("record already gone", "name", name)
			return nil
		}
		return fmt.Errorf("delete A record %s: %w", name, err)
	}
	return nil
}

func (c *Client) findARecord(ctx context.Context, zoneID, name string) (*types.ResourceRecordSet, error) {
	out, err := c.api.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(zoneID),
		StartRecordName: aws.String(name),
		StartRecordType: types.RRTypeA,
		MaxItems:        aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("list record sets for %s: %w", name, err)
	}
	for i := range out.ResourceRecordSets {
		rrs := out.ResourceRecordSets[i]
		listed := strings.ReplaceAll(aws.ToString(rrs.Name), `\052`, "*")
		if strings.EqualFold(listed, name) && rrs.Type == types.RRTypeA {
			return &rrs, nil
		}
	}
	return nil, nil
}

func (c *Client) change(ctx context.Context, zoneID string, action types.ChangeAction, rrs *types.ResourceRecordSet) (*route53.ChangeResourceRecordSetsOutput, error) {
	c.changeMu.Lock()
	defer c.changeMu.Unlock()

	return c.api.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &types.ChangeBatch{
			Comment: aws.String("certzner challenge record"),
			Changes: []types.Change{{Action: action, ResourceRecordSet: rrs}},
		},
	})
}

func fqdn(name string) string {
	name = strings.ToLower(name)
	if !strings.HasSuffix(name, ".") {
		name += "."
	}
	return name
}
