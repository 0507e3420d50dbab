package repository

import "callwatch-service/internal/domain/entity"

// Notifier receives lifecycle events for the UI collaborator. All methods
// are fire-and-forget: implementations must not block the caller.
type Notifier interface {
	// CallObserved reports the current live call slot; nil means cleared.
	CallObserved(rec *entity.CallRecord)

	// NotifyNewCall fires exactly once per newly surfaced call.
	NotifyNewCall(rec *entity.CallRecord)

	// HistoryChanged reports the full history snapshot, newest first.
	HistoryChanged(entries []*entity.HistoryEntry)

	// BulkProgress reports the cumulative record count of a running crawl.
	BulkProgress(count int)

	// LoginStatusChanged fires on auth-state edges, plus once on startup.
	LoginStatusChanged(loggedIn bool)
}
