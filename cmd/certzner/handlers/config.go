package handlers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/imamik/certzner/internal/config"
	"github.com/imamik/certzner/internal/provisioning"
)

// DefaultJournalDir holds run journals when no directory is given.
const DefaultJournalDir = ".certzner"

// Factory function variables for configuration - can be replaced in tests.
var (
	// readConfigFile reads a configuration file.
	readConfigFile = os.ReadFile

	// openJournal opens the persisted registry of a run.
	openJournal = provisioning.OpenJournal
)

// loadConfig reads, defaults and validates a configuration file. A non-empty
// runTag replaces the file's run tag before defaults are applied.
func loadConfig(path, runTag string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultConfigFilename
	}
	// #nosec G304
	data, err := readConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w\nRun 'certzner init' to create one", err)
	}
	cfg, err := config.Parse(data)
	if err != nil {
		return nil, err
	}
	if runTag != "" {
		cfg.RunTag = runTag
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// openRunJournal opens the journal of runTag under dir, creating dir.
func openRunJournal(dir, runTag string) (*provisioning.Registry, error) {
	if dir == "" {
		dir = DefaultJournalDir
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	return openJournal(provisioning.JournalPath(filepath.Clean(dir), runTag), runTag)
}
