// Package labels provides consistent labeling utilities for ephemeral resources.
//
// Every resource created during a run carries the run tag under KeyRun so
// teardown can rediscover it by label even when the in-memory registry was
// lost.
package labels

import (
	"sort"
	"strings"
)

// Standard label keys, namespaced under certzner.io.
const (
	// KeyRun identifies the run that created a resource.
	KeyRun = "certzner.io/run"

	// KeyKind identifies the resource kind (instance, network, ...).
	KeyKind = "certzner.io/kind"

	// KeyManagedBy identifies the management system.
	KeyManagedBy = "certzner.io/managed-by"

	// KeyDomain is set on published certificates.
	KeyDomain = "certzner.io/domain"

	// KeyStorePath records the trust-store path for stores without a native path.
	KeyStorePath = "certzner.io/store-path"
)

// ManagedByCertzner is the KeyManagedBy value for all resources.
const ManagedByCertzner = "certzner"

// LabelBuilder provides a fluent interface for building resource labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the run tag pre-set.
func NewLabelBuilder(runTag string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyRun:       runTag,
			KeyManagedBy: ManagedByCertzner,
		},
	}
}

// WithKind adds a kind label.
func (lb *LabelBuilder) WithKind(kind string) *LabelBuilder {
	lb.labels[KeyKind] = kind
	return lb
}

// WithDomain adds a domain label. Hetzner label values cannot contain '*',
// so wildcard domains are stored with the asterisk replaced.
func (lb *LabelBuilder) WithDomain(domain string) *LabelBuilder {
	lb.labels[KeyDomain] = strings.ReplaceAll(domain, "*", "wildcard")
	return lb
}

// WithStorePath adds the trust-store path label. Slashes are not valid in
// label values and are folded to dots.
func (lb *LabelBuilder) WithStorePath(path string) *LabelBuilder {
	p := strings.Trim(path, "/")
	if p != "" {
		lb.labels[KeyStorePath] = strings.ReplaceAll(p, "/", ".")
	}
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// ForRun returns the selector labels shared by every resource of a run.
func ForRun(runTag string) map[string]string {
	return map[string]string{KeyRun: runTag}
}

// Selector converts a label map into a Hetzner Cloud label selector string.
// Keys are sorted so the selector is deterministic.
func Selector(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, ",")
}

// Tags renders labels as key/value pairs in deterministic order, for
// providers that model tags as lists.
func Tags(labels map[string]string) [][2]string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([][2]string, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, [2]string{k, labels[k]})
	}
	return tags
}
