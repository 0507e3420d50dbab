package portal

import (
	"context"
	"time"

	"callwatch-service/internal/domain/entity"
	"callwatch-service/internal/domain/repository"
	"callwatch-service/internal/usecase"
	"callwatch-service/pkg/logger"
	"callwatch-service/pkg/metrics"
	"callwatch-service/pkg/utils"
)

// LiveFetcher is the slice of the portal client the poller needs.
type LiveFetcher interface {
	FetchLivePage(ctx context.Context) (string, error)
	Login(ctx context.Context) error
}

// Poller drives the live call stream: every interval it fetches the
// live-calls page, derives the auth state from login markers, extracts
// the current call and feeds it to the lifecycle store. One cycle runs at
// a time; a tick arriving mid-cycle waits for the next one.
type Poller struct {
	client       LiveFetcher
	extractor    *utils.CallExtractor
	store        *usecase.CallLifecycle
	associations repository.AssociationRepository
	notifier     repository.Notifier
	metrics      *metrics.Metrics
	logger       logger.Logger
	interval     time.Duration

	loggedIn bool
	checked  bool
}

// NewPoller creates a new live-call poller
func NewPoller(
	client LiveFetcher,
	extractor *utils.CallExtractor,
	store *usecase.CallLifecycle,
	associations repository.AssociationRepository,
	notifier repository.Notifier,
	m *metrics.Metrics,
	logger logger.Logger,
	interval time.Duration,
) *Poller {
	return &Poller{
		client:       client,
		extractor:    extractor,
		store:        store,
		associations: associations,
		notifier:     notifier,
		metrics:      m,
		logger:       logger,
		interval:     interval,
	}
}

// StartPolling polls the portal until the context is cancelled
func (p *Poller) StartPolling(ctx context.Context) {
	p.PollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Portal polling stopped")
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce runs a single poll cycle.
func (p *Poller) PollOnce(ctx context.Context) {
	p.metrics.PollsTotal.Inc()

	page, err := p.client.FetchLivePage(ctx)
	loggedIn := err == nil && !p.extractor.DetectLoginPage(page)
	p.reportLoginStatus(loggedIn)

	if err != nil {
		p.metrics.ErrorsCount.WithLabelValues("poll_fetch").Inc()
		p.logger.Error("Failed to fetch live page", "error", err)
		return
	}
	if !loggedIn {
		// session expired, re-authenticate for the next cycle
		if err := p.client.Login(ctx); err != nil {
			p.metrics.ErrorsCount.WithLabelValues("login").Inc()
			p.logger.Error("Portal re-login failed", "error", err)
		}
		return
	}

	rec := p.extractor.ExtractCurrentCall(page)
	if rec != nil {
		p.metrics.CallsDetected.Inc()
		p.mergeAssociation(ctx, rec)
	}
	p.store.Observe(ctx, rec)
}

// reportLoginStatus emits auth-state changes edge-triggered, except the
// very first check, which always emits once so observers can initialize.
func (p *Poller) reportLoginStatus(loggedIn bool) {
	if !p.checked || loggedIn != p.loggedIn {
		p.notifier.LoginStatusChanged(loggedIn)
		p.logger.Info("Portal login status", "loggedIn", loggedIn)
	}
	p.checked = true
	p.loggedIn = loggedIn
}

// mergeAssociation attaches the remembered client for the record's phone
// number as the leading suggestion.
func (p *Poller) mergeAssociation(ctx context.Context, rec *entity.CallRecord) {
	if rec.Phone == "" {
		return
	}
	assoc, err := p.associations.FindByPhone(ctx, rec.Phone)
	if err != nil {
		p.logger.Error("Failed to look up client association", "phone", rec.Phone, "error", err)
		return
	}
	if assoc == nil {
		return
	}

	merged := []entity.ClientRef{{ID: assoc.ClientID, Name: assoc.ClientName}}
	for _, ref := range rec.SuggestedClients {
		if ref.ID != assoc.ClientID {
			merged = append(merged, ref)
		}
	}
	rec.SuggestedClients = merged
}
