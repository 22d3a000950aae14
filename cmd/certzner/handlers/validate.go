package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/imamik/certzner/internal/provisioning"
)

// validateOutput receives the validation summary.
var validateOutput io.Writer = os.Stdout

// Validate handles the validate command. It checks the configuration and
// the run it describes without contacting any provider.
func Validate(_ context.Context, configPath string) error {
	cfg, err := loadConfig(configPath, "")
	if err != nil {
		return err
	}

	run := provisioning.NewRunContext(cfg)
	var errCount int
	for _, ve := range provisioning.ValidateRun(run) {
		fmt.Fprintln(validateOutput, ve.Error())
		if ve.IsError() {
			errCount++
		}
	}
	if errCount > 0 {
		return fmt.Errorf("validation failed with %d error(s)", errCount)
	}

	fmt.Fprintf(validateOutput, "Configuration is valid: %d domain(s), dns=%s, store=%s\n",
		len(cfg.Domains), cfg.DNS.Provider, cfg.Store.Kind)
	return nil
}
