// Package health aggregates component checks into one service flag served
// by the health endpoint.
package health

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HealthChecker is a component check that caches its last result.
type HealthChecker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// ServiceHealthChecker is healthy only while every dependency is.
type ServiceHealthChecker struct {
	healthy atomic.Bool
	deps    []HealthChecker
	log     zerolog.Logger
}

func NewServiceHealthChecker(log zerolog.Logger, deps ...HealthChecker) *ServiceHealthChecker {
	return &ServiceHealthChecker{deps: deps, log: log}
}

func (h *ServiceHealthChecker) IsHealthy() bool { return h.healthy.Load() }

// Components reports each dependency's cached state by name.
func (h *ServiceHealthChecker) Components() map[string]bool {
	out := make(map[string]bool, len(h.deps))
	for _, c := range h.deps {
		out[c.Name()] = c.IsHealthy()
	}
	return out
}

// Start re-evaluates dependency health every interval until ctx is done.
func (h *ServiceHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := false
	eval := func() {
		failed := h.evaluate()
		cur := len(failed) == 0
		if cur == prev {
			return
		}
		if cur {
			h.log.Info().Msg("sync service health: UP")
		} else {
			h.log.Error().Strs("unhealthy", failed).Msg("sync service health: DOWN")
		}
		prev = cur
	}

	eval()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eval()
		}
	}
}

// evaluate refreshes the cached flag and returns the failing dependencies.
func (h *ServiceHealthChecker) evaluate() []string {
	var failed []string
	for _, c := range h.deps {
		if !c.IsHealthy() {
			failed = append(failed, c.Name())
		}
	}
	sort.Strings(failed)
	h.healthy.Store(len(failed) == 0)
	return failed
}
