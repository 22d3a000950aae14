package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds provider-call timeouts and retry tuning.
// These values can be customized via environment variables.
type Timeouts struct {
	ServerCreate      time.Duration // Timeout for server creation operations
	Delete            time.Duration // Timeout for each delete operation
	RemoteCommand     time.Duration // Timeout for a single remote command
	RetryMaxAttempts  int           // Maximum number of retry attempts
	RetryInitialDelay time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - CERTZNER_TIMEOUT_SERVER_CREATE (default: 10m)
//   - CERTZNER_TIMEOUT_DELETE (default: 5m)
//   - CERTZNER_TIMEOUT_REMOTE_COMMAND (default: 10m)
//   - CERTZNER_RETRY_MAX_ATTEMPTS (default: 5)
//   - CERTZNER_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		ServerCreate:      parseDuration("CERTZNER_TIMEOUT_SERVER_CREATE", 10*time.Minute),
		Delete:            parseDuration("CERTZNER_TIMEOUT_DELETE", 5*time.Minute),
		RemoteCommand:     parseDuration("CERTZNER_TIMEOUT_REMOTE_COMMAND", 10*time.Minute),
		RetryMaxAttempts:  parseInt("CERTZNER_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("CERTZNER_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(envVar))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func parseInt(envVar string, defaultVal int) int {
	i, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}
