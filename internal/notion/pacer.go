package notion

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/bondcrm/notionsync/internal/model"
)

// PagePatcher writes properties to one page.
type PagePatcher interface {
	UpdatePage(ctx context.Context, apiKey, pageID string, properties map[string]model.PropertyValue) (*model.RemotePage, error)
}

// PacedPatcher spaces page updates at least interval apart across every
// goroutine sharing it, so concurrent resolution workers stay under the rate
// limit together.
type PacedPatcher struct {
	next    PagePatcher
	limiter *rate.Limiter
}

// NewPacedPatcher wraps next. A non-positive interval disables pacing.
func NewPacedPatcher(next PagePatcher, interval time.Duration) *PacedPatcher {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &PacedPatcher{next: next, limiter: rate.NewLimiter(limit, 1)}
}

func (p *PacedPatcher) UpdatePage(ctx context.Context, apiKey, pageID string, properties map[string]model.PropertyValue) (*model.RemotePage, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.next.UpdatePage(ctx, apiKey, pageID, properties)
}
