package client

import (
	"sync"
	"time"
)

// Logger is the minimal structured logging surface the client emits to.
// *slog.Logger satisfies it; the default is a no-op.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

func systemClock() Clock {
	return ClockFunc(func() time.Time { return time.Now().UTC() })
}

// AuditEntry is one line of the session's in-memory audit trail. The trail
// is observational only and never persisted.
type AuditEntry struct {
	Timestamp time.Time
	Operation string
	Detail    string
}

// AuditRecorder receives audit entries for significant session operations.
type AuditRecorder interface {
	Record(entry AuditEntry)
}

// MemoryAuditRecorder keeps audit entries in memory, the default recorder.
type MemoryAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// NewMemoryAuditRecorder constructs an empty in-memory audit trail.
func NewMemoryAuditRecorder() *MemoryAuditRecorder {
	return &MemoryAuditRecorder{}
}

// Record implements AuditRecorder.
func (r *MemoryAuditRecorder) Record(entry AuditEntry) {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

// Entries returns a copy of the recorded trail in order.
func (r *MemoryAuditRecorder) Entries() []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Lines renders the trail as human-readable strings.
func (r *MemoryAuditRecorder) Lines() []string {
	entries := r.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Operation + ": " + e.Detail
	}
	return out
}

// Option configures optional client collaborators.
type Option func(*Client)

// WithLogger injects a structured logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMetrics attaches a metrics recorder observing every operation.
func WithMetrics(recorder MetricsRecorder) Option {
	return func(c *Client) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// WithAuditRecorder overrides the in-memory audit trail destination.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(c *Client) {
		if recorder != nil {
			c.audit = recorder
		}
	}
}

// WithRenewInterval overrides the token renewal polling interval. Intended
// for tests; the production default is five seconds.
func WithRenewInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.renewInterval = interval
		}
	}
}
