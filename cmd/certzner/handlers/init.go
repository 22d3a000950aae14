package handlers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/imamik/certzner/internal/config"
)

// Factory function variables for init - can be replaced in tests.
var (
	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	// runWizard runs the interactive wizard.
	runWizard = config.RunWizard

	// writeConfig writes the config to a file.
	writeConfig = config.WriteYAML
)

// Init runs the configuration wizard and writes the result to a file.
func Init(ctx context.Context, outputPath string) error {
	if fileExists(outputPath) {
		fmt.Printf("Warning: %s already exists and will be overwritten.\n\n", outputPath)
	}

	printWelcome()

	result, err := runWizard(ctx)
	if err != nil {
		return fmt.Errorf("wizard canceled: %w", err)
	}

	cfg := result.ToConfig()

	if err := writeConfig(cfg, outputPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printInitSuccess(outputPath, cfg)

	return nil
}

func printWelcome() {
	fmt.Println()
	fmt.Println("certzner - certificates from an ephemeral Hetzner Cloud issuer")
	fmt.Println("==============================================================")
	fmt.Println()
	fmt.Println("This wizard creates a run configuration with sensible defaults.")
	fmt.Println()
}

func printInitSuccess(outputPath string, cfg *config.Config) {
	fmt.Println()
	fmt.Println("Configuration saved!")
	fmt.Println()
	fmt.Printf("  File: %s\n", outputPath)
	fmt.Println()

	fmt.Println("Run Summary")
	fmt.Println("-----------")
	fmt.Printf("  Domains:  %s\n", strings.Join(cfg.Domains, ", "))
	fmt.Printf("  Email:    %s\n", cfg.Issuance.Email)
	fmt.Printf("  Location: %s\n", cfg.Instance.Location)
	fmt.Printf("  DNS:      %s\n", cfg.DNS.Provider)
	fmt.Printf("  Store:    %s (%s)\n", cfg.Store.Kind, cfg.Store.Path)
	if cfg.Store.Bucket != "" {
		fmt.Printf("  Bucket:   %s\n", cfg.Store.Bucket)
	}
	fmt.Println()

	fmt.Println("Next steps:")
	fmt.Println("  1. export HCLOUD_TOKEN=...")
	if cfg.DNS.Provider == config.DNSProviderCloudflare {
		fmt.Println("  2. export CLOUDFLARE_API_TOKEN=...")
	} else {
		fmt.Println("  2. configure AWS credentials (profile or environment)")
	}
	fmt.Printf("  3. certzner validate -c %s\n", outputPath)
	fmt.Printf("  4. certzner run -c %s\n", outputPath)
}
