package usecase

import (
	"context"
	"sync"
	"time"

	"callwatch-service/internal/domain/entity"
	"callwatch-service/pkg/logger"
)

// DraftSaver debounces keystroke-driven draft saves: rapid successive
// writes for the same call coalesce into one store write after a short
// quiet period. Losing the very last keystroke on abrupt termination is
// acceptable; Flush exists for deterministic shutdown and tests.
type DraftSaver struct {
	mu      sync.Mutex
	pending map[string]*entity.TicketDraft
	timer   *time.Timer

	store  *CallLifecycle
	delay  time.Duration
	logger logger.Logger
}

// NewDraftSaver creates a draft saver writing through to the store
func NewDraftSaver(store *CallLifecycle, delay time.Duration, logger logger.Logger) *DraftSaver {
	return &DraftSaver{
		pending: make(map[string]*entity.TicketDraft),
		store:   store,
		delay:   delay,
		logger:  logger,
	}
}

// Save schedules a draft write for a call, restarting the quiet period.
func (d *DraftSaver) Save(id string, draft *entity.TicketDraft) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[id] = draft
	if d.timer == nil {
		d.timer = time.AfterFunc(d.delay, func() {
			d.Flush(context.Background())
		})
		return
	}
	d.timer.Reset(d.delay)
}

// Flush writes all pending drafts immediately.
func (d *DraftSaver) Flush(ctx context.Context) {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	pending := d.pending
	d.pending = make(map[string]*entity.TicketDraft)
	d.mu.Unlock()

	for id, draft := range pending {
		d.store.SaveDraft(ctx, id, draft)
	}
	if len(pending) > 0 {
		d.logger.Debug("Flushed pending drafts", "count", len(pending))
	}
}
