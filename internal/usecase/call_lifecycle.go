package usecase

import (
	"context"
	"sync"
	"time"

	"callwatch-service/internal/domain/entity"
	"callwatch-service/internal/domain/repository"
	"callwatch-service/pkg/logger"
)

// CallLifecycle reconciles the polled current call against user activity
// and the bounded call history. It is the source of truth for a running
// session; persistence through the history repository is best-effort and
// never blocks in-memory state progression.
//
// All state is guarded by one mutex. Notifier callbacks run outside the
// lock so an observer may call back into the store.
type CallLifecycle struct {
	mu       sync.Mutex
	current  *entity.CallRecord
	entries  map[string]*entity.HistoryEntry
	order    []string // call ids, newest first
	lockedID string
	shown    map[string]struct{}
	polled   bool // first successful poll already seen

	historyRepo repository.HistoryRepository
	notifier    repository.Notifier
	logger      logger.Logger
	now         func() time.Time
}

// NewCallLifecycle creates the lifecycle store
func NewCallLifecycle(historyRepo repository.HistoryRepository, notifier repository.Notifier, logger logger.Logger) *CallLifecycle {
	return &CallLifecycle{
		entries:     make(map[string]*entity.HistoryEntry),
		shown:       make(map[string]struct{}),
		historyRepo: historyRepo,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

// LoadPersisted seeds the store from the persisted history at startup.
// Every loaded call counts as already shown, so a restart never
// re-notifies old calls.
func (s *CallLifecycle) LoadPersisted(ctx context.Context) error {
	entries, err := s.historyRepo.LoadRecent(ctx, entity.HistoryRetentionCap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		id := entry.Call.ID
		if id == "" {
			continue
		}
		if _, ok := s.entries[id]; ok {
			continue
		}
		s.entries[id] = entry
		s.order = append(s.order, id)
		s.shown[id] = struct{}{}
	}
	s.logger.Info("Loaded persisted call history", "entries", len(s.order))
	return nil
}

// Observe feeds one poll result into the store. rec is nil when the live
// page shows no call.
//
// A locked call pins the live slot: while locked, only records with the
// locked id update it (picking up portal-side changes during an edit).
// Skipped calls are never resurrected into the live slot. A call not yet
// shown triggers the new-call notification exactly once, except during
// the first poll after startup, when every observed call is pre-existing.
func (s *CallLifecycle) Observe(ctx context.Context, rec *entity.CallRecord) {
	s.mu.Lock()
	firstPoll := !s.polled
	s.polled = true

	if rec == nil {
		cleared := false
		if s.lockedID == "" && s.current != nil {
			s.current = nil
			cleared = true
		}
		s.mu.Unlock()
		if cleared {
			s.notifier.CallObserved(nil)
		}
		return
	}

	var createdEntry *entity.HistoryEntry
	entry := s.entries[rec.ID]
	if entry == nil && rec.ID != "" {
		entry = s.newEntryLocked(rec)
		createdEntry = entry
	}

	skipped := entry != nil && entry.Status == entity.StatusSkipped

	setCurrent := false
	if s.lockedID != "" {
		if s.lockedID == rec.ID {
			s.current = rec
			setCurrent = true
		}
	} else if !skipped {
		s.current = rec
		setCurrent = true
	}

	notify := false
	if rec.ID != "" {
		_, seen := s.shown[rec.ID]
		switch {
		case firstPoll, skipped, entry != nil && entry.Terminal():
			s.shown[rec.ID] = struct{}{}
		case !seen:
			notify = true
			s.shown[rec.ID] = struct{}{}
		}
	}

	evicted := s.evictLocked()
	var snapshot []*entity.HistoryEntry
	if createdEntry != nil {
		snapshot = s.snapshotLocked()
	}
	s.mu.Unlock()

	if setCurrent {
		s.notifier.CallObserved(rec)
	}
	if notify {
		s.notifier.NotifyNewCall(rec)
	}
	if createdEntry != nil {
		s.persist(ctx, createdEntry, evicted)
		s.notifier.HistoryChanged(snapshot)
	}
}

// Lock pins the live call slot to one id while the operator edits a
// draft, so polling cannot swap the call underneath them.
func (s *CallLifecycle) Lock(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockedID = id
}

// Unlock releases the live slot.
func (s *CallLifecycle) Unlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockedID = ""
}

// LockedID returns the currently locked call id, "" when unlocked.
func (s *CallLifecycle) LockedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockedID
}

// Current returns the live call slot, nil when empty.
func (s *CallLifecycle) Current() *entity.CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Skip marks a call skipped. Created entries stay created. Unknown ids
// are a no-op.
func (s *CallLifecycle) Skip(ctx context.Context, id string) {
	s.mu.Lock()
	entry := s.entries[id]
	if entry == nil {
		s.mu.Unlock()
		return
	}
	if s.lockedID == id {
		s.lockedID = ""
	}
	s.shown[id] = struct{}{}

	changed := false
	if entry.Status != entity.StatusCreated {
		entry.Status = entity.StatusSkipped
		entry.UpdatedAt = s.now()
		changed = true
	}

	cleared := false
	if changed && s.current != nil && s.current.ID == id {
		s.current = nil
		cleared = true
	}

	var snapshot []*entity.HistoryEntry
	if changed {
		snapshot = s.snapshotLocked()
	}
	s.mu.Unlock()

	if cleared {
		s.notifier.CallObserved(nil)
	}
	if changed {
		s.persist(ctx, entry, 0)
		s.notifier.HistoryChanged(snapshot)
	}
}

// MarkCreated records a created ticket for a call. Created is terminal:
// it overrides a previous skip and is never left again. Unknown ids are
// a no-op.
func (s *CallLifecycle) MarkCreated(ctx context.Context, id, ticketURL string) {
	s.mu.Lock()
	entry := s.entries[id]
	if entry == nil {
		s.mu.Unlock()
		return
	}
	if s.lockedID == id {
		s.lockedID = ""
	}
	s.shown[id] = struct{}{}

	entry.Status = entity.StatusCreated
	if ticketURL != "" {
		entry.TicketURL = ticketURL
	}
	entry.UpdatedAt = s.now()

	cleared := false
	if s.current != nil && s.current.ID == id {
		s.current = nil
		cleared = true
	}

	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if cleared {
		s.notifier.CallObserved(nil)
	}
	s.persist(ctx, entry, 0)
	s.notifier.HistoryChanged(snapshot)
}

// SaveDraft attaches in-progress ticket fields to an entry. Debouncing is
// the caller's concern. Unknown ids are a no-op.
func (s *CallLifecycle) SaveDraft(ctx context.Context, id string, draft *entity.TicketDraft) {
	s.mu.Lock()
	entry := s.entries[id]
	if entry == nil {
		s.mu.Unlock()
		return
	}
	entry.Draft = draft
	if draft != nil && draft.ClientID != "" {
		entry.AssociatedClient = &entity.ClientRef{ID: draft.ClientID, Name: draft.ClientName}
	}
	entry.UpdatedAt = s.now()
	s.mu.Unlock()

	s.persist(ctx, entry, 0)
}

// ReconcileHistory merges a bulk crawl result into the store: records not
// yet known get unprocessed entries, known ids keep their first-extracted
// fields. Reconciled calls are historical and never notified.
func (s *CallLifecycle) ReconcileHistory(ctx context.Context, records []*entity.CallRecord) {
	s.mu.Lock()
	var added []*entity.HistoryEntry
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		if _, ok := s.entries[rec.ID]; ok {
			continue
		}
		now := s.now()
		entry := &entity.HistoryEntry{
			Call:          *rec,
			Status:        entity.StatusUnprocessed,
			AddedAt:       now,
			UpdatedAt:     now,
			SchemaVersion: entity.HistorySchemaVersion,
		}
		// crawl results arrive newest-first; existing live entries stay newer
		s.entries[rec.ID] = entry
		s.order = append(s.order, rec.ID)
		s.shown[rec.ID] = struct{}{}
		added = append(added, entry)
	}
	evicted := s.evictLocked()
	var snapshot []*entity.HistoryEntry
	if len(added) > 0 {
		snapshot = s.snapshotLocked()
	}
	s.mu.Unlock()

	if len(added) == 0 {
		return
	}
	for _, entry := range added {
		s.persist(ctx, entry, 0)
	}
	if evicted > 0 {
		s.trim(ctx)
	}
	s.logger.Info("Reconciled crawl into history", "added", len(added), "evicted", evicted)
	s.notifier.HistoryChanged(snapshot)
}

// Entry returns a value copy of one history entry.
func (s *CallLifecycle) Entry(id string) (entity.HistoryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return entity.HistoryEntry{}, false
	}
	return *entry, true
}

// Entries returns a value-copied snapshot of the history, newest first.
func (s *CallLifecycle) Entries() []*entity.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ClearHistory drops all history entries. Shown ids are kept so the live
// call is not re-notified afterwards.
func (s *CallLifecycle) ClearHistory(ctx context.Context) {
	s.mu.Lock()
	s.entries = make(map[string]*entity.HistoryEntry)
	s.order = nil
	s.mu.Unlock()

	if err := s.historyRepo.Clear(ctx); err != nil {
		s.logger.Error("Failed to clear persisted history", "error", err)
	}
	s.notifier.HistoryChanged(nil)
}

// newEntryLocked creates and indexes an unprocessed entry for a record.
func (s *CallLifecycle) newEntryLocked(rec *entity.CallRecord) *entity.HistoryEntry {
	now := s.now()
	entry := &entity.HistoryEntry{
		Call:          *rec,
		Status:        entity.StatusUnprocessed,
		AddedAt:       now,
		UpdatedAt:     now,
		SchemaVersion: entity.HistorySchemaVersion,
	}
	s.entries[rec.ID] = entry
	s.order = append([]string{rec.ID}, s.order...)
	return entry
}

// evictLocked enforces the retention cap, oldest entries first. Returns
// the number of evicted entries.
func (s *CallLifecycle) evictLocked() int {
	evicted := 0
	for len(s.order) > entity.HistoryRetentionCap {
		last := s.order[len(s.order)-1]
		s.order = s.order[:len(s.order)-1]
		delete(s.entries, last)
		evicted++
	}
	return evicted
}

func (s *CallLifecycle) snapshotLocked() []*entity.HistoryEntry {
	snapshot := make([]*entity.HistoryEntry, 0, len(s.order))
	for _, id := range s.order {
		if entry, ok := s.entries[id]; ok {
			copied := *entry
			snapshot = append(snapshot, &copied)
		}
	}
	return snapshot
}

// persist writes an entry to the history repository. Failures are logged
// and never propagated; the in-memory store already moved on.
func (s *CallLifecycle) persist(ctx context.Context, entry *entity.HistoryEntry, evicted int) {
	s.mu.Lock()
	copied := *entry
	s.mu.Unlock()

	if err := s.historyRepo.Upsert(ctx, &copied); err != nil {
		s.logger.Error("Failed to persist history entry", "callId", copied.Call.ID, "error", err)
	}
	if evicted > 0 {
		s.trim(ctx)
	}
}

func (s *CallLifecycle) trim(ctx context.Context) {
	if err := s.historyRepo.Trim(ctx, entity.HistoryRetentionCap); err != nil {
		s.logger.Error("Failed to trim persisted history", "error", err)
	}
}
