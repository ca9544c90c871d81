// Package shardqueue is a sharded work queue that keeps FIFO order per key
// while running different keys in parallel. The resolver uses it so that all
// writes for one record are serialized.
//
// Jobs for one key run in the order Do accepted them. Concurrent callers
// for the same key are ordered by whoever reaches the queue first.
package shardqueue

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

type queuedJob struct {
	ctx context.Context
	job Job
	// result, when set, receives the job's final error exactly once.
	result chan<- error
}

// ShardExecutor runs Jobs on workers partitioned by a stable hash of the key.
type ShardExecutor struct {
	cfg    Config
	queues []chan queuedJob

	done   chan struct{} // closed in Stop
	closed uint32

	wg sync.WaitGroup
}

// NewShardExecutor applies defaults and starts the shard workers.
func NewShardExecutor(cfg Config) *ShardExecutor {
	if cfg.Shards <= 0 {
		cfg.Shards = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 20 * time.Second
	}

	p := &ShardExecutor{
		cfg:    cfg,
		queues: make([]chan queuedJob, cfg.Shards),
		done:   make(chan struct{}),
	}
	for i := 0; i < cfg.Shards; i++ {
		ch := make(chan queuedJob, cfg.QueueSize)
		p.queues[i] = ch
		p.wg.Add(1)
		go p.runWorker(i, ch)
	}
	return p
}

// Do queues job on the shard derived from key and waits for its final
// outcome, after retries. A full shard blocks the caller until a slot frees
// up, ctx is done or the executor stops.
func (p *ShardExecutor) Do(ctx context.Context, key string, job Job) error {
	result := make(chan error, 1)
	if err := p.enqueue(ctx, key, queuedJob{ctx: ctx, job: job, result: result}); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *ShardExecutor) enqueue(ctx context.Context, key string, qj queuedJob) error {
	if atomic.LoadUint32(&p.closed) == 1 {
		return ErrExecutorClosed
	}
	select {
	case <-p.done:
		return ErrExecutorClosed
	default:
	}

	shard := p.shardFor(key)
	ch := p.queues[shard]

	select {
	case ch <- qj:
		submissionsTotal.WithLabelValues(labelFor(shard)).Inc()
		return nil
	default:
	}

	enqueueWaitsTotal.WithLabelValues(labelFor(shard)).Inc()
	select {
	case ch <- qj:
		submissionsTotal.WithLabelValues(labelFor(shard)).Inc()
		return nil
	case <-p.done:
		return ErrExecutorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop drains every queue, waits for the workers and returns. It is
// idempotent.
func (p *ShardExecutor) Stop() {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return
	}
	p.cfg.Log.Debug().Int("shards", p.cfg.Shards).Msg("shardqueue: stopping executor")
	close(p.done)
	p.wg.Wait()
	p.cfg.Log.Debug().Msg("shardqueue: executor stopped")
}

// Close lets ShardExecutor satisfy io.Closer.
func (p *ShardExecutor) Close() error {
	p.Stop()
	return nil
}

// ------------------------- internals -------------------------

func (p *ShardExecutor) runWorker(idx int, ch <-chan queuedJob) {
	defer p.wg.Done()
	label := labelFor(idx)

	for {
		select {
		case qj := <-ch:
			p.execute(qj, label)
			queueDepth.WithLabelValues(label).Set(float64(len(ch)))

		case <-p.done:
			drained := 0
			for {
				select {
				case qj := <-ch:
					p.finish(qj, p.runOnce(qj, label))
					drained++
				default:
					if drained > 0 {
						p.cfg.Log.Debug().Int("shard", idx).Int("jobs", drained).Msg("shardqueue: drained on stop")
					}
					queueDepth.WithLabelValues(label).Set(0)
					return
				}
			}
		}
	}
}

// execute runs qj with exponential backoff between recoverable failures.
func (p *ShardExecutor) execute(qj queuedJob, label string) {
	if qj.job == nil {
		p.finish(qj, nil)
		return
	}
	// a cancelled caller must not stall the shard
	if err := qj.ctx.Err(); err != nil {
		p.finish(qj, err)
		return
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = p.cfg.MaxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()

	var err error
	for attempt := 1; ; attempt++ {
		err = p.runOnce(qj, label)
		if err == nil || p.irrecoverable(err) || attempt >= p.cfg.MaxAttempts {
			break
		}
		wait := exp.NextBackOff()
		if p.cfg.RetryAfter != nil {
			if hint := p.cfg.RetryAfter(err); hint > 0 {
				wait = hint
			}
		}
		p.cfg.Log.Debug().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("shardqueue: retrying job")
		select {
		case <-time.After(wait):
			continue
		case <-p.done:
		case <-qj.ctx.Done():
			err = qj.ctx.Err()
		}
		break
	}
	p.finish(qj, err)
}

// runOnce runs a single attempt, turning a panic into an error.
func (p *ShardExecutor) runOnce(qj queuedJob, label string) (err error) {
	if qj.job == nil {
		return nil
	}
	start := time.Now()
	defer func() {
		runDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			err = fmt.Errorf("shardqueue: job panic: %v", r)
			p.cfg.Log.Error().Str("shard", label).Interface("panic", r).Msg("shardqueue: job panicked")
		}
	}()
	return qj.job.Run(qj.ctx)
}

func (p *ShardExecutor) finish(qj queuedJob, err error) {
	if err != nil {
		p.safeHandleError(err)
	}
	if qj.result != nil {
		qj.result <- err
	}
}

func (p *ShardExecutor) irrecoverable(err error) bool {
	if p.cfg.Irrecoverable == nil {
		return false
	}
	return p.cfg.Irrecoverable(err)
}

func (p *ShardExecutor) safeHandleError(err error) {
	if err == nil || p.cfg.ErrorHandler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.cfg.Log.Error().Interface("panic", r).Msg("shardqueue: error handler panic")
		}
	}()
	p.cfg.ErrorHandler(err)
}

func (p *ShardExecutor) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.cfg.Shards))
}
