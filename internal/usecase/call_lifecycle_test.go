package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"callwatch-service/internal/domain/entity"
	"callwatch-service/internal/usecase"
	"callwatch-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Fakes ---

type fakeHistoryRepo struct {
	mu         sync.Mutex
	upserts    int
	trims      int
	clears     int
	loaded     []*entity.HistoryEntry
	failUpsert bool
}

func (r *fakeHistoryRepo) Upsert(ctx context.Context, entry *entity.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if r.failUpsert {
		return errors.New("storage unavailable")
	}
	return nil
}

func (r *fakeHistoryRepo) LoadRecent(ctx context.Context, limit int) ([]*entity.HistoryEntry, error) {
	return r.loaded, nil
}

func (r *fakeHistoryRepo) Trim(ctx context.Context, cap int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trims++
	return nil
}

func (r *fakeHistoryRepo) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
	return nil
}

type fakeNotifier struct {
	mu            sync.Mutex
	observed      []*entity.CallRecord
	newCalls      []string
	historyEvents int
	progress      []int
	loginEvents   []bool
}

func (n *fakeNotifier) CallObserved(rec *entity.CallRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observed = append(n.observed, rec)
}

func (n *fakeNotifier) NotifyNewCall(rec *entity.CallRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.newCalls = append(n.newCalls, rec.ID)
}

func (n *fakeNotifier) HistoryChanged(entries []*entity.HistoryEntry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.historyEvents++
}

func (n *fakeNotifier) BulkProgress(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress = append(n.progress, count)
}

func (n *fakeNotifier) LoginStatusChanged(loggedIn bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loginEvents = append(n.loginEvents, loggedIn)
}

func (n *fakeNotifier) notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.newCalls...)
}

func call(id string) *entity.CallRecord {
	return &entity.CallRecord{
		ID:              id,
		Phone:           "79123456789",
		Timestamp:       "05.03.2024 14:21:08",
		DurationSeconds: 30,
	}
}

func newStore() (*usecase.CallLifecycle, *fakeHistoryRepo, *fakeNotifier) {
	repo := &fakeHistoryRepo{}
	notifier := &fakeNotifier{}
	store := usecase.NewCallLifecycle(repo, notifier, logger.NewNopLogger())
	return store, repo, notifier
}

// startPolled consumes the first-poll suppression with an empty poll.
func startPolled(store *usecase.CallLifecycle) {
	store.Observe(context.Background(), nil)
}

// --- Tests ---

func TestObserveNotifiesNewCallOnce(t *testing.T) {
	store, _, notifier := newStore()
	startPolled(store)
	ctx := context.Background()

	store.Observe(ctx, call("A"))
	store.Observe(ctx, call("A"))

	assert.Equal(t, []string{"A"}, notifier.notified())
	require.NotNil(t, store.Current())
	assert.Equal(t, "A", store.Current().ID)
}

func TestFirstPollSuppressesNotifications(t *testing.T) {
	store, _, notifier := newStore()
	ctx := context.Background()

	// the very first poll surfaces a pre-existing call
	store.Observe(ctx, call("X"))
	assert.Empty(t, notifier.notified())

	// it stays suppressed afterwards, it was already shown
	store.Observe(ctx, call("X"))
	assert.Empty(t, notifier.notified())

	// a genuinely new call still notifies
	store.Observe(ctx, call("Y"))
	assert.Equal(t, []string{"Y"}, notifier.notified())
}

func TestPersistedHistoryNeverRenotified(t *testing.T) {
	repo := &fakeHistoryRepo{
		loaded: []*entity.HistoryEntry{
			{Call: *call("X"), Status: entity.StatusUnprocessed},
		},
	}
	notifier := &fakeNotifier{}
	store := usecase.NewCallLifecycle(repo, notifier, logger.NewNopLogger())
	ctx := context.Background()

	require.NoError(t, store.LoadPersisted(ctx))
	startPolled(store)

	store.Observe(ctx, call("X"))
	assert.Empty(t, notifier.notified())
}

func TestSkipThenCreateOverridesSkip(t *testing.T) {
	store, _, _ := newStore()
	startPolled(store)
	ctx := context.Background()

	store.Observe(ctx, call("A"))
	store.Skip(ctx, "A")

	entry, ok := store.Entry("A")
	require.True(t, ok)
	assert.Equal(t, entity.StatusSkipped, entry.Status)

	store.MarkCreated(ctx, "A", "https://portal.example/Tickets/Details/9")
	entry, _ = store.Entry("A")
	assert.Equal(t, entity.StatusCreated, entry.Status)
	assert.Equal(t, "https://portal.example/Tickets/Details/9", entry.TicketURL)
}

func TestCreatedIsTerminal(t *testing.T) {
	store, _, _ := newStore()
	startPolled(store)
	ctx := context.Background()

	store.Observe(ctx, call("A"))
	store.MarkCreated(ctx, "A", "")
	store.Skip(ctx, "A")

	entry, ok := store.Entry("A")
	require.True(t, ok)
	assert.Equal(t, entity.StatusCreated, entry.Status)
}

func TestUnknownIDsAreNoOps(t *testing.T) {
	store, repo, notifier := newStore()
	ctx := context.Background()

	store.Skip(ctx, "ghost")
	store.MarkCreated(ctx, "ghost", "")
	store.SaveDraft(ctx, "ghost", &entity.TicketDraft{Subject: "x"})

	assert.Zero(t, repo.upserts)
	assert.Zero(t, notifier.historyEvents)
}

func TestRetentionCapEvictsOldest(t *testing.T) {
	store, _, _ := newStore()
	startPolled(store)
	ctx := context.Background()

	for i := 1; i <= 260; i++ {
		store.Observe(ctx, call(fmt.Sprintf("call-%03d", i)))
	}

	entries := store.Entries()
	require.Len(t, entries, entity.HistoryRetentionCap)

	// newest first, the oldest ten evicted
	assert.Equal(t, "call-260", entries[0].Call.ID)
	assert.Equal(t, "call-011", entries[len(entries)-1].Call.ID)
	_, ok := store.Entry("call-010")
	assert.False(t, ok)
}

func TestLockPinsLiveSlot(t *testing.T) {
	store, _, _ := newStore()
	startPolled(store)
	ctx := context.Background()

	store.Observe(ctx, call("A"))
	store.Lock("A")

	// another call comes in while the operator edits A
	store.Observe(ctx, call("B"))
	require.NotNil(t, store.Current())
	assert.Equal(t, "A", store.Current().ID)

	// portal-side changes to the locked call still propagate
	updated := call("A")
	updated.DurationSeconds = 95
	store.Observe(ctx, updated)
	assert.Equal(t, 95, store.Current().DurationSeconds)

	store.Unlock()
	store.Observe(ctx, call("B"))
	assert.Equal(t, "B", store.Current().ID)
}

func TestSkippedCallNotResurrected(t *testing.T) {
	store, _, notifier := newStore()
	startPolled(store)
	ctx := context.Background()

	store.Observe(ctx, call("A"))
	store.Skip(ctx, "A")
	assert.Nil(t, store.Current())

	store.Observe(ctx, call("A"))
	assert.Nil(t, store.Current())
	assert.Equal(t, []string{"A"}, notifier.notified())
}

func TestObserveNilRespectsLock(t *testing.T) {
	store, _, _ := newStore()
	startPolled(store)
	ctx := context.Background()

	store.Observe(ctx, call("A"))
	store.Lock("A")
	store.Observe(ctx, nil)
	require.NotNil(t, store.Current())

	store.Unlock()
	store.Observe(ctx, nil)
	assert.Nil(t, store.Current())
}

func TestSkipClearsMatchingLock(t *testing.T) {
	store, _, _ := newStore()
	startPolled(store)
	ctx := context.Background()

	store.Observe(ctx, call("A"))
	store.Lock("A")
	store.Skip(ctx, "A")
	assert.Empty(t, store.LockedID())
}

func TestFirstExtractionWinsForHistoricalFields(t *testing.T) {
	store, _, _ := newStore()
	startPolled(store)
	ctx := context.Background()

	store.Observe(ctx, call("A"))
	store.MarkCreated(ctx, "A", "")

	corrected := call("A")
	corrected.Phone = "79990000000"
	store.Observe(ctx, corrected)

	entry, ok := store.Entry("A")
	require.True(t, ok)
	assert.Equal(t, "79123456789", entry.Call.Phone)
	assert.Equal(t, entity.StatusCreated, entry.Status)
}

func TestPersistenceFailureDoesNotBlockState(t *testing.T) {
	store, repo, _ := newStore()
	repo.failUpsert = true
	startPolled(store)
	ctx := context.Background()

	store.Observe(ctx, call("A"))
	store.Skip(ctx, "A")

	entry, ok := store.Entry("A")
	require.True(t, ok)
	assert.Equal(t, entity.StatusSkipped, entry.Status)
}

func TestReconcileHistoryMergesWithoutNotifying(t *testing.T) {
	store, _, notifier := newStore()
	startPolled(store)
	ctx := context.Background()

	store.Observe(ctx, call("live"))

	store.ReconcileHistory(ctx, []*entity.CallRecord{
		call("live"), // already known, first extraction wins
		call("old-1"),
		call("old-2"),
		{Phone: "79000000000"}, // no id, excluded from history
	})

	entries := store.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "live", entries[0].Call.ID)

	// reconciled calls are historical, never notified
	assert.Equal(t, []string{"live"}, notifier.notified())

	// observing a reconciled call later does not notify either
	store.Observe(ctx, call("old-1"))
	assert.Equal(t, []string{"live"}, notifier.notified())
}

func TestSaveDraftAttachesClient(t *testing.T) {
	store, repo, _ := newStore()
	startPolled(store)
	ctx := context.Background()

	store.Observe(ctx, call("A"))
	store.SaveDraft(ctx, "A", &entity.TicketDraft{
		Subject:    "нет связи",
		ClientID:   "501",
		ClientName: "ООО Ромашка",
	})

	entry, ok := store.Entry("A")
	require.True(t, ok)
	require.NotNil(t, entry.Draft)
	assert.Equal(t, "нет связи", entry.Draft.Subject)
	require.NotNil(t, entry.AssociatedClient)
	assert.Equal(t, "501", entry.AssociatedClient.ID)
	assert.Positive(t, repo.upserts)
}

func TestClearHistory(t *testing.T) {
	store, repo, _ := newStore()
	startPolled(store)
	ctx := context.Background()

	store.Observe(ctx, call("A"))
	store.ClearHistory(ctx)

	assert.Empty(t, store.Entries())
	assert.Equal(t, 1, repo.clears)
}
