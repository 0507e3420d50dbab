package usecase_test

import (
	"context"
	"testing"
	"time"

	"callwatch-service/internal/domain/entity"
	"callwatch-service/internal/usecase"
	"callwatch-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftSaverCoalescesRapidSaves(t *testing.T) {
	store, repo, _ := newStore()
	startPolled(store)
	ctx := context.Background()
	store.Observe(ctx, call("A"))
	baseline := repo.upserts

	saver := usecase.NewDraftSaver(store, time.Hour, logger.NewNopLogger())
	saver.Save("A", &entity.TicketDraft{Subject: "н"})
	saver.Save("A", &entity.TicketDraft{Subject: "не"})
	saver.Save("A", &entity.TicketDraft{Subject: "нет связи"})

	// nothing written until the quiet period elapses or an explicit flush
	entry, ok := store.Entry("A")
	require.True(t, ok)
	assert.Nil(t, entry.Draft)

	saver.Flush(ctx)

	entry, _ = store.Entry("A")
	require.NotNil(t, entry.Draft)
	assert.Equal(t, "нет связи", entry.Draft.Subject)
	assert.Equal(t, baseline+1, repo.upserts)
}

func TestDraftSaverFiresAfterQuietPeriod(t *testing.T) {
	store, _, _ := newStore()
	startPolled(store)
	store.Observe(context.Background(), call("A"))

	saver := usecase.NewDraftSaver(store, 10*time.Millisecond, logger.NewNopLogger())
	saver.Save("A", &entity.TicketDraft{Subject: "сбой"})

	require.Eventually(t, func() bool {
		entry, ok := store.Entry("A")
		return ok && entry.Draft != nil
	}, time.Second, 5*time.Millisecond)

	entry, _ := store.Entry("A")
	assert.Equal(t, "сбой", entry.Draft.Subject)
}

func TestDraftSaverTracksCallsIndependently(t *testing.T) {
	store, _, _ := newStore()
	startPolled(store)
	ctx := context.Background()
	store.Observe(ctx, call("A"))
	store.Observe(ctx, call("B"))

	saver := usecase.NewDraftSaver(store, time.Hour, logger.NewNopLogger())
	saver.Save("A", &entity.TicketDraft{Subject: "для A"})
	saver.Save("B", &entity.TicketDraft{Subject: "для B"})
	saver.Flush(ctx)

	entryA, _ := store.Entry("A")
	entryB, _ := store.Entry("B")
	require.NotNil(t, entryA.Draft)
	require.NotNil(t, entryB.Draft)
	assert.Equal(t, "для A", entryA.Draft.Subject)
	assert.Equal(t, "для B", entryB.Draft.Subject)
}

func TestDraftSaverFlushIdempotent(t *testing.T) {
	store, repo, _ := newStore()
	startPolled(store)
	ctx := context.Background()
	store.Observe(ctx, call("A"))
	baseline := repo.upserts

	saver := usecase.NewDraftSaver(store, time.Hour, logger.NewNopLogger())
	saver.Save("A", &entity.TicketDraft{Subject: "x"})
	saver.Flush(ctx)
	saver.Flush(ctx)

	assert.Equal(t, baseline+1, repo.upserts)
}
