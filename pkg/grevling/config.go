package grevling

import (
	"time"

	"go.uber.org/zap"

	"github.com/TheBB/Grevling/internal/grevlog"
	"github.com/TheBB/Grevling/pkg/script"
)

// Config carries the Case's tunables: worker counts, retry backoff, and
// the logging/ignore-missing knobs. Unlike CaseSpec (the description of
// what to run), Config is about how the core runs it, mirroring the
// teacher's Config/DefaultConfig/With... chain.
type Config struct {
	// Logger receives structured progress and failure records. Defaults
	// to a no-op logger.
	Logger *zap.Logger

	// Nprocs is the worker count for the Run stage (prepare and
	// download stay single-threaded: they are I/O-bound and mutate
	// shared book-keeping paths one instance at a time).
	Nprocs int

	// IgnoreMissing governs FileMap behavior: when true, a missing
	// premap/postmap source is a warning instead of a stage failure.
	IgnoreMissing bool

	// RetryBackoff overrides the default exponential pacing applied by
	// every Command with RetryOnFail set, unless the Command specifies
	// its own.
	RetryBackoff script.RetryBackoff

	// LockWait bounds how long Run/Collect/Capture wait to acquire the
	// storage root lock before giving up.
	LockWait time.Duration
}

// DefaultConfig returns the default Case configuration: one worker,
// missing premap/postmap sources treated as failures (IgnoreMissing
// false), the package
// default retry backoff, and a five-second lock-acquisition budget.
func DefaultConfig() Config {
	return Config{
		Logger:        grevlog.Nop(),
		Nprocs:        1,
		IgnoreMissing: false,
		RetryBackoff:  script.DefaultRetryBackoff(),
		LockWait:      5 * time.Second,
	}
}

// Option mutates a Config being built by New.
type Option func(*Config)

// WithLogger sets the Case's structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithNprocs sets the Run stage's worker count.
func WithNprocs(n int) Option {
	return func(c *Config) { c.Nprocs = n }
}

// WithIgnoreMissing toggles FileMap missing-source tolerance.
func WithIgnoreMissing(ignore bool) Option {
	return func(c *Config) { c.IgnoreMissing = ignore }
}

// WithRetryBackoff overrides the default Command retry pacing.
func WithRetryBackoff(b script.RetryBackoff) Option {
	return func(c *Config) { c.RetryBackoff = b }
}

// WithLockWait overrides the storage-root lock acquisition budget.
func WithLockWait(d time.Duration) Option {
	return func(c *Config) { c.LockWait = d }
}
