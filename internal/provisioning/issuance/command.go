package issuance

import (
	"path"
	"strings"

	"github.com/go-acme/lego/v4/lego"

	"github.com/imamik/certzner/internal/config"
	"github.com/imamik/certzner/internal/platform/ssh"
	"github.com/imamik/certzner/internal/util/naming"
)

const agentBinary = "lego"

// Paths is where the agent leaves a domain's certificate material.
type Paths struct {
	Certificate string // leaf followed by intermediates
	Key         string
	Issuer      string // intermediates only
}

// ArtifactPaths returns the agent's file layout for domain under dir.
func ArtifactPaths(dir, domain string) Paths {
	base := path.Join(dir, "certificates", naming.ArtifactFile(domain))
	return Paths{
		Certificate: base + ".crt",
		Key:         base + ".key",
		Issuer:      base + ".issuer.crt",
	}
}

// Directory returns the ACME directory URL for the configuration.
func Directory(cfg config.IssuanceConfig) string {
	switch {
	case cfg.Server != "":
		return cfg.Server
	case cfg.Staging:
		return lego.LEDirectoryStaging
	default:
		return lego.LEDirectoryProduction
	}
}

// Command renders the agent invocation that orders one certificate.
func Command(cfg config.IssuanceConfig, email, domain string) string {
	args := []string{
		agentBinary,
		"--accept-tos",
		"--email", ssh.Quote(email),
		"--server", ssh.Quote(Directory(cfg)),
		"--domains", ssh.Quote(domain),
		"--tls",
		"--path", ssh.Quote(cfg.Directory),
	}
	if cfg.KeyType != "" {
		args = append(args, "--key-type", ssh.Quote(cfg.KeyType))
	}
	args = append(args, "run")
	return strings.Join(args, " ")
}
