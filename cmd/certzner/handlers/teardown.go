package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/imamik/certzner/internal/config"
	"github.com/imamik/certzner/internal/provisioning"
	"github.com/imamik/certzner/internal/provisioning/destroy"
)

// TeardownOptions are the flags of the teardown command.
type TeardownOptions struct {
	ConfigPath string
	RunTag     string
	JournalDir string
	Verbose    int
}

// Factory function variables for teardown - can be replaced in tests.
var (
	// newTeardownPhase creates the teardown phase.
	newTeardownPhase = func() provisioning.Phase {
		return destroy.NewReconciler()
	}
)

// Teardown handles the teardown command.
//
// It removes every resource of a run, using the run's journal when present
// and rediscovering the rest by the run tag label. It is safe to repeat.
func Teardown(ctx context.Context, opts TeardownOptions) error {
	if opts.RunTag == "" {
		return errors.New("a run tag is required")
	}

	cfg, err := teardownConfig(opts)
	if err != nil {
		return err
	}

	registry, err := openRunJournal(opts.JournalDir, cfg.RunTag)
	if err != nil {
		return err
	}

	token := os.Getenv(envHCloudToken)
	if token == "" {
		return fmt.Errorf("%s environment variable is required", envHCloudToken)
	}

	logger := provisioning.NewStdLogger(opts.Verbose)
	infra := newInfraClient(token, logger)

	log.Printf("Tearing down run %s", cfg.RunTag)

	pCtx := newProvisioningContext(ctx, provisioning.NewRunContext(cfg), infra, registry)
	pCtx.Observer = provisioning.NewLogrObserver(logger).WithFields(map[string]string{"run": cfg.RunTag})
	pCtx.Metrics = provisioning.NewMetrics()

	if cfg.Store.IsAWS() || len(registry.ByKind(provisioning.KindIdentityRole)) > 0 {
		awsCfg, err := loadAWSConfig(ctx, awsRegion(cfg))
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}
		pCtx.Identity = newIAMClient(awsCfg, logger)
	}

	if err := provisioning.RunPhases(pCtx, []provisioning.Phase{newTeardownPhase()}); err != nil {
		return fmt.Errorf("teardown of %s incomplete: %w", cfg.RunTag, err)
	}

	log.Printf("Run %s torn down", cfg.RunTag)
	return nil
}

// teardownConfig loads the run's configuration when one is given. Without
// one, defaults describe the run well enough for label rediscovery.
func teardownConfig(opts TeardownOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return loadConfig(opts.ConfigPath, opts.RunTag)
	}
	cfg := &config.Config{RunTag: opts.RunTag}
	cfg.ApplyDefaults()
	return cfg, nil
}
