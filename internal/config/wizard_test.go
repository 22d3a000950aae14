package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWizardResult_ToConfig(t *testing.T) {
	r := &WizardResult{
		Domains:     " a.example.com, b.example.com ,",
		Email:       " ops@example.com ",
		Location:    "hel1",
		DNSProvider: DNSProviderRoute53,
		StoreKind:   StoreS3,
		StorePath:   "/certs/",
		Bucket:      "edge-certs",
	}

	cfg := r.ToConfig()

	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.Domains)
	assert.Equal(t, "ops@example.com", cfg.Issuance.Email)
	assert.Equal(t, "hel1", cfg.Instance.Location)
	assert.Equal(t, "edge-certs", cfg.Store.Bucket)
	assert.Empty(t, cfg.RunTag)
	assert.Equal(t, DefaultAWSRegion, cfg.Store.Region)
}

func TestValidateDomainList(t *testing.T) {
	assert.NoError(t, validateDomainList("a.example.com,b.example.com"))
	assert.Error(t, validateDomainList(" , "))
	assert.Error(t, validateDomainList("a.example.com,not a host"))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, validateEmail("ops@example.com"))
	assert.Error(t, validateEmail("ops"))
	assert.Error(t, validateEmail("@example.com"))
}
