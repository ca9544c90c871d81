package shardqueue

import (
	"time"

	"github.com/rs/zerolog"
)

// Config tunes a ShardExecutor. Zero values fall back to defaults in
// NewShardExecutor.
type Config struct {
	Shards      int
	QueueSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxInterval time.Duration

	// Irrecoverable reports errors that must not be retried. Nil retries
	// every error up to MaxAttempts.
	Irrecoverable func(error) bool
	// RetryAfter, when it returns a positive duration for a failed attempt,
	// replaces the backoff wait before the next one.
	RetryAfter func(error) time.Duration
	// ErrorHandler observes the final error of every failed job.
	ErrorHandler func(error)
	Log          zerolog.Logger
}
