package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imamik/certzner/internal/provisioning"
	"github.com/imamik/certzner/internal/provisioning/challenge"
	"github.com/imamik/certzner/internal/provisioning/destroy"
	"github.com/imamik/certzner/internal/provisioning/infrastructure"
	"github.com/imamik/certzner/internal/provisioning/issuance"
	"github.com/imamik/certzner/internal/provisioning/publish"
)

// RunOptions are the flags of the run command.
type RunOptions struct {
	ConfigPath     string
	RunTag         string
	JournalDir     string
	MetricsPushURL string
	Verbose        int
}

// ErrRunFailed is returned when a run did not publish every domain or left
// resources behind.
var ErrRunFailed = errors.New("run did not complete successfully")

const metricsPushTimeout = 30 * time.Second

// Factory function variables for run - can be replaced in tests.
var (
	// newProvisioningContext creates a new provisioning context.
	newProvisioningContext = provisioning.NewContext

	// newPipeline assembles the run pipeline.
	newPipeline = func() *provisioning.Pipeline {
		return &provisioning.Pipeline{
			Validate:  provisioning.NewValidationPhase(),
			Provision: infrastructure.NewProvisioner(),
			Challenge: challenge.NewCoordinator(),
			Issuer:    issuance.NewIssuer(),
			Publisher: publish.NewPublisher(),
			Teardown:  destroy.NewReconciler(),
		}
	}

	// reportOutput receives the rendered run report.
	reportOutput io.Writer = os.Stdout
)

// Run handles the run command.
//
// It provisions the issuer, issues and publishes a certificate per domain
// and tears everything down. SIGINT and SIGTERM skip the remaining domains;
// teardown still runs.
func Run(ctx context.Context, opts RunOptions) error {
	cfg, err := loadConfig(opts.ConfigPath, opts.RunTag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := provisioning.NewStdLogger(opts.Verbose)
	cl, err := buildClients(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := cl.preflight(ctx, cfg); err != nil {
		return fmt.Errorf("preflight failed: %w", err)
	}

	registry, err := openRunJournal(opts.JournalDir, cfg.RunTag)
	if err != nil {
		return err
	}

	log.Printf("Starting run %s for %d domain(s)", cfg.RunTag, len(cfg.Domains))

	pCtx := newProvisioningContext(ctx, provisioning.NewRunContext(cfg), cl.infra, registry)
	pCtx.Observer = provisioning.NewLogrObserver(logger).WithFields(map[string]string{"run": cfg.RunTag})
	pCtx.DNS = cl.dns
	pCtx.Store = cl.store
	pCtx.StoreForRole = cl.storeForRole
	pCtx.Dialer = cl.dialer
	pCtx.Identity = cl.identity
	pCtx.Metrics = provisioning.NewMetrics()

	report := newPipeline().Run(pCtx)

	if opts.MetricsPushURL != "" {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsPushTimeout)
		if err := pCtx.Metrics.Push(pushCtx, opts.MetricsPushURL, cfg.RunTag); err != nil {
			log.Printf("Warning: %v", err)
		}
		cancel()
	}

	fmt.Fprint(reportOutput, renderReport(report, isTerminal()))

	if !report.Succeeded() {
		if report.TeardownErr != nil && registry.Path() != "" {
			log.Printf("Resources may remain; retry with: certzner teardown --run-tag %s", cfg.RunTag)
		}
		return ErrRunFailed
	}
	return nil
}
