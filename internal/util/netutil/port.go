// Package netutil provides network reachability checks.
package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/imamik/certzner/internal/util/retry"
)

const (
	// SSHPort is the port the issuer instance is dialed on.
	SSHPort = 22

	// DefaultDialInterval is how often WaitForPort dials.
	DefaultDialInterval = 2 * time.Second

	dialTimeout = 2 * time.Second
)

// ErrUnreachable is returned when a port does not open before the deadline.
var ErrUnreachable = errors.New("port unreachable")

// WaitForPort waits for a TCP port to accept connections on the target host.
// It dials immediately and then every DefaultDialInterval until timeout.
func WaitForPort(ctx context.Context, host string, port int, timeout time.Duration) error {
	return WaitForPortEvery(ctx, host, port, timeout, DefaultDialInterval)
}

// WaitForPortEvery is WaitForPort with an explicit dial interval.
func WaitForPortEvery(ctx context.Context, host string, port int, timeout, interval time.Duration) error {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	var d net.Dialer

	err := retry.Poll(ctx, interval, timeout, func(ctx context.Context) (bool, error) {
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		conn, err := d.DialContext(dialCtx, "tcp", address)
		if err != nil {
			return false, nil
		}
		_ = conn.Close()
		return true, nil
	})
	if errors.Is(err, retry.ErrPollTimeout) {
		return fmt.Errorf("%w: %s did not open within %v", ErrUnreachable, address, timeout)
	}
	return err
}
