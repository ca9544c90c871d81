package shardqueue

import "context"

// Job is a unit of work executed by a ShardExecutor. Run may be invoked more
// than once when it returns a recoverable error.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function to a Job.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }
