package config

import "time"

// Defaults applied by ApplyDefaults.
const (
	DefaultLocation    = "nbg1"
	DefaultImage       = "debian-13"
	DefaultServerType  = "cx23"
	DefaultSSHUser     = "root"
	DefaultIPRange     = "10.77.0.0/16"
	DefaultSubnetRange = "10.77.1.0/24"
	DefaultNetworkZone = "eu-central"

	DefaultDNSProvider = DNSProviderCloudflare
	DefaultRecordTTL   = 7200

	DefaultStoreKind = StoreHCloud
	DefaultStorePath = "/certzner/"
	DefaultAWSRegion = "us-east-1"

	DefaultIssuanceDirectory = "/etc/lego"
	DefaultKeyType           = "ec256"
	DefaultInstallCommand    = "apt-get update -q && DEBIAN_FRONTEND=noninteractive apt-get install -y -q lego"

	DefaultInitialSettle      = 20 * time.Second
	DefaultReachability       = 320 * time.Second
	DefaultReadiness          = 5 * time.Minute
	DefaultReadinessFallback  = 120 * time.Second
	DefaultTeardownWait       = 5 * time.Minute
	DefaultTeardownSettle     = 60 * time.Second
	DefaultPropagationTimeout = 5 * time.Minute
)

// ValidLocations contains the Hetzner Cloud locations an issuer may run in.
var ValidLocations = map[string]string{
	"nbg1": "eu-central",
	"fsn1": "eu-central",
	"hel1": "eu-central",
	"ash":  "us-east",
	"hil":  "us-west",
	"sin":  "ap-southeast",
}
