package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// WizardResult holds the answers of the init wizard.
type WizardResult struct {
	Domains     string
	Email       string
	Location    string
	DNSProvider string
	StoreKind   string
	StorePath   string
	Bucket      string
}

// RunWizard asks for the handful of settings a first run needs.
func RunWizard(ctx context.Context) (*WizardResult, error) {
	result := &WizardResult{
		Location:    DefaultLocation,
		DNSProvider: DefaultDNSProvider,
		StoreKind:   DefaultStoreKind,
		StorePath:   DefaultStorePath,
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Domains").
				Description("Comma-separated fully-qualified names, e.g. api.example.com").
				Value(&result.Domains).
				Validate(validateDomainList),
			huh.NewInput().
				Title("Contact email").
				Description("ACME account contact").
				Value(&result.Email).
				Validate(validateEmail),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Location").
				Description("Hetzner Cloud location for the ephemeral issuer").
				Options(
					huh.NewOption("Nuremberg, Germany (nbg1)", "nbg1"),
					huh.NewOption("Falkenstein, Germany (fsn1)", "fsn1"),
					huh.NewOption("Helsinki, Finland (hel1)", "hel1"),
					huh.NewOption("Ashburn, USA (ash)", "ash"),
					huh.NewOption("Hillsboro, USA (hil)", "hil"),
					huh.NewOption("Singapore (sin)", "sin"),
				).
				Value(&result.Location),
			huh.NewSelect[string]().
				Title("DNS provider").
				Options(
					huh.NewOption("Cloudflare (CLOUDFLARE_API_TOKEN)", DNSProviderCloudflare),
					huh.NewOption("AWS Route 53", DNSProviderRoute53),
				).
				Value(&result.DNSProvider),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Certificate store").
				Options(
					huh.NewOption("Hetzner Cloud certificates", StoreHCloud),
					huh.NewOption("AWS IAM server certificates", StoreIAM),
					huh.NewOption("S3 bucket", StoreS3),
				).
				Value(&result.StoreKind),
			huh.NewInput().
				Title("Store path").
				Description("IAM path or S3 prefix; must begin and end with '/'").
				Value(&result.StorePath),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("S3 bucket").
				Value(&result.Bucket).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("bucket is required")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return result.StoreKind != StoreS3 }),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// ToConfig converts wizard answers into a defaulted configuration.
func (r *WizardResult) ToConfig() *Config {
	cfg := &Config{
		Domains:  splitDomains(r.Domains),
		Issuance: IssuanceConfig{Email: strings.TrimSpace(r.Email)},
		Instance: InstanceConfig{Location: r.Location},
		DNS:      DNSConfig{Provider: r.DNSProvider},
		Store: StoreConfig{
			Kind:   r.StoreKind,
			Path:   r.StorePath,
			Bucket: strings.TrimSpace(r.Bucket),
		},
	}
	cfg.ApplyDefaults()
	// A fresh tag is generated per run; do not pin the wizard's.
	cfg.RunTag = ""
	return cfg
}

func splitDomains(s string) []string {
	var out []string
	for _, d := range strings.Split(s, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

func validateDomainList(s string) error {
	domains := splitDomains(s)
	if len(domains) == 0 {
		return errors.New("at least one domain is required")
	}
	for _, d := range domains {
		if !hostnamePattern.MatchString(strings.ToLower(d)) {
			return fmt.Errorf("%q is not a valid hostname", d)
		}
	}
	return nil
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "@") || strings.HasPrefix(s, "@") || strings.HasSuffix(s, "@") {
		return errors.New("enter a valid email address")
	}
	return nil
}
