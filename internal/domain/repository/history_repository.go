package repository

import (
	"context"

	"callwatch-service/internal/domain/entity"
)

// HistoryRepository defines the interface for call history persistence.
// Persistence is best-effort: the in-memory lifecycle store is the source
// of truth for a running session.
type HistoryRepository interface {
	Upsert(ctx context.Context, entry *entity.HistoryEntry) error
	LoadRecent(ctx context.Context, limit int) ([]*entity.HistoryEntry, error)
	Trim(ctx context.Context, cap int) error
	Clear(ctx context.Context) error
}
