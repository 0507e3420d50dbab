package notify

import (
	"callwatch-service/internal/domain/entity"
	"callwatch-service/internal/domain/repository"
	"callwatch-service/pkg/logger"
	"callwatch-service/pkg/metrics"
)

// LogNotifier surfaces lifecycle events through structured logs and
// metrics. The operator-facing UI lives in a separate process and
// subscribes to the same events; this implementation keeps the service
// observable on its own.
type LogNotifier struct {
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewLogNotifier creates a notifier backed by the service logger
func NewLogNotifier(logger logger.Logger, m *metrics.Metrics) repository.Notifier {
	return &LogNotifier{
		logger:  logger,
		metrics: m,
	}
}

// CallObserved reports the live call slot
func (n *LogNotifier) CallObserved(rec *entity.CallRecord) {
	if rec == nil {
		n.logger.Debug("Live call cleared")
		return
	}
	n.logger.Debug("Live call observed", "callId", rec.ID, "phone", rec.Phone)
}

// NotifyNewCall reports a newly surfaced call
func (n *LogNotifier) NotifyNewCall(rec *entity.CallRecord) {
	n.metrics.Notifications.Inc()
	n.logger.Info("New call",
		"callId", rec.ID,
		"phone", rec.Phone,
		"timestamp", rec.Timestamp,
		"suggestions", len(rec.SuggestedClients))
}

// HistoryChanged reports the history size after a change
func (n *LogNotifier) HistoryChanged(entries []*entity.HistoryEntry) {
	n.logger.Debug("Call history changed", "entries", len(entries))
}

// BulkProgress reports crawl progress
func (n *LogNotifier) BulkProgress(count int) {
	n.logger.Info("History crawl progress", "records", count)
}

// LoginStatusChanged reports auth-state edges
func (n *LogNotifier) LoginStatusChanged(loggedIn bool) {
	if loggedIn {
		n.metrics.LoggedIn.Set(1)
	} else {
		n.metrics.LoggedIn.Set(0)
	}
	n.logger.Info("Portal login status changed", "loggedIn", loggedIn)
}
