package naming

import (
	"errors"
	"fmt"
	"strings"
)

// Naming functions for run resources.
// Every ephemeral resource is named after the run tag so a manual teardown
// can address it by name.

func SSHKey(runTag string) string {
	return fmt.Sprintf("%s-key", runTag)
}

func Network(runTag string) string {
	return runTag
}

func Firewall(runTag string) string {
	return runTag
}

func Server(runTag string) string {
	return fmt.Sprintf("%s-issuer", runTag)
}

func IdentityRole(runTag string) string {
	return fmt.Sprintf("%s-publisher", runTag)
}

func IdentityPolicy(runTag string) string {
	return fmt.Sprintf("%s-publish", runTag)
}

// StoreName derives the trust-store entry name for a domain.
//
// Existing hyphens are doubled before dots become single hyphens, so the
// mapping stays injective over valid hostnames (labels never start or end
// with a hyphen): foo.example.com → foo-example-com, foo-example.com →
// foo--example-com. A wildcard label becomes "_", which no other hostname
// character produces.
func StoreName(domain string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSuffix(domain, ".")) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-':
			b.WriteString("--")
		case r == '*':
			b.WriteByte('_')
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// ErrNoZone is returned when a zone cannot be derived for a domain.
var ErrNoZone = errors.New("cannot derive DNS zone")

// Zone derives the DNS zone for a domain by stripping the leftmost label.
// A domain listed in registered is its own zone (apex record). A domain
// with fewer than three labels has nothing to strip against a registrable
// zone and is rejected.
func Zone(domain string, registered []string) (string, error) {
	d := strings.ToLower(strings.TrimSuffix(domain, "."))
	for _, z := range registered {
		if strings.ToLower(strings.TrimSuffix(z, ".")) == d {
			return d, nil
		}
	}

	labels := strings.Split(d, ".")
	for _, l := range labels {
		if l == "" {
			return "", fmt.Errorf("%w: %q has an empty label", ErrNoZone, domain)
		}
	}
	if len(labels) < 3 {
		return "", fmt.Errorf("%w: %q has no subdomain label to strip (list it under dns.zones to use the apex)", ErrNoZone, domain)
	}
	return strings.Join(labels[1:], "."), nil
}

// ArtifactFile renders a domain the way the issuance agent names its files.
func ArtifactFile(domain string) string {
	return strings.ReplaceAll(strings.ToLower(domain), "*", "_")
}
