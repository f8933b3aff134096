// Package retry provides the backoff executor used around external
// command calls, evidence-URI checks, and version-control operations.
// Transient failures are retried with exponential backoff; everything
// else propagates immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

// Config controls backoff behavior for one call-site category.
type Config struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the per-attempt delay.
	MaxBackoff time.Duration

	// Multiplier grows the delay between attempts.
	Multiplier float64
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
}

// CommandConfig is the policy for external issue-tracker command calls.
func CommandConfig() Config {
	return Config{MaxAttempts: 3, InitialBackoff: 500 * time.Millisecond, MaxBackoff: 5 * time.Second, Multiplier: 2.0}
}

// EvidenceConfig is the policy for evidence-URI reachability checks.
func EvidenceConfig() Config {
	return Config{MaxAttempts: 2, InitialBackoff: time.Second, MaxBackoff: 4 * time.Second, Multiplier: 2.0}
}

// VCSConfig is the policy for version-control operations.
func VCSConfig() Config {
	return Config{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: 10 * time.Second, Multiplier: 2.0}
}

// transientMarkers are message fragments that identify retryable
// failures from subprocesses and remote services.
var transientMarkers = []string{
	"connection reset",
	"connection refused",
	"timeout",
	"timed out",
	"temporary failure",
	"temporarily unavailable",
	"no such host",
	"dns",
	"429",
	"503",
	"504",
	"too many requests",
	"service unavailable",
	"lock",
	"busy",
	"temporary",
}

// IsTransient classifies an error as retryable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EBUSY) {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Do runs fn up to cfg.MaxAttempts times, sleeping
// min(MaxBackoff, InitialBackoff·Multiplier^(attempt-1)) between tries.
// Non-transient errors propagate immediately. Exhausted retries are
// wrapped into a storage error naming the operation and attempt count.
func Do(ctx context.Context, name string, cfg Config, fn func() error) error {
	cfg.ApplyDefaults()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := time.Duration(float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt-1)))
		if delay > cfg.MaxBackoff {
			delay = cfg.MaxBackoff
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return &knowledge.Error{
		Kind: knowledge.KindStorage,
		Op:   name,
		Msg:  fmt.Sprintf("failed after %d attempts", cfg.MaxAttempts),
		Err:  lastErr,
	}
}
