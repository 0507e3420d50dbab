package usecase

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"callwatch-service/internal/domain/entity"
	"callwatch-service/internal/domain/repository"
	"callwatch-service/pkg/logger"
	"callwatch-service/pkg/metrics"
	"callwatch-service/pkg/utils"
)

// ticketCreatePath addresses the portal's ticket form; the call is
// identified by the same query string the portal rendered for it.
const ticketCreatePath = "/Tickets/CreateFromCall"

// reTicketDetailsLink finds the created ticket's details link in the
// response page.
var reTicketDetailsLink = regexp.MustCompile(`href="([^"]*/Tickets/Details[^"]*)"`)

// FormPoster submits a form to the portal and reports the final URL
// after redirects plus the response body.
type FormPoster interface {
	PostForm(ctx context.Context, path string, values url.Values) (finalURL string, body string, err error)
}

// TicketRequest carries the operator's ticket fields for one call.
type TicketRequest struct {
	CallID     string
	Topic      string
	Subject    string
	Body       string
	ClientID   string
	ClientName string
}

// TicketCreator replays the portal's one-shot ticket form. Calls found
// via the fallback extraction path carry no original query string, so
// the request is reconstructed from the record's own fields.
type TicketCreator struct {
	portal       FormPoster
	store        *CallLifecycle
	topics       repository.TopicRepository
	associations repository.AssociationRepository
	metrics      *metrics.Metrics
	logger       logger.Logger
}

// NewTicketCreator creates a new ticket creator
func NewTicketCreator(
	portal FormPoster,
	store *CallLifecycle,
	topics repository.TopicRepository,
	associations repository.AssociationRepository,
	m *metrics.Metrics,
	logger logger.Logger,
) *TicketCreator {
	return &TicketCreator{
		portal:       portal,
		store:        store,
		topics:       topics,
		associations: associations,
		metrics:      m,
		logger:       logger,
	}
}

// Create submits the ticket form for a call and marks the history entry
// created. Returns the created ticket's URL when the portal exposed one.
func (t *TicketCreator) Create(ctx context.Context, req TicketRequest) (string, error) {
	entry, ok := t.store.Entry(req.CallID)
	if !ok {
		return "", fmt.Errorf("unknown call id %q", req.CallID)
	}

	query := entry.Call.SourceQuery
	if query == "" {
		query = utils.BuildCallQuery(&entry.Call)
	}

	form := url.Values{
		"Topic":       {req.Topic},
		"Subject":     {req.Subject},
		"Description": {req.Body},
		"ClientId":    {req.ClientID},
		"ClientName":  {req.ClientName},
	}

	finalURL, body, err := t.portal.PostForm(ctx, ticketCreatePath+"?"+query, form)
	if err != nil {
		t.metrics.ErrorsCount.WithLabelValues("ticket_create").Inc()
		return "", fmt.Errorf("ticket submission failed: %w", err)
	}
	if utils.ContainsLoginMarker(body) {
		t.metrics.ErrorsCount.WithLabelValues("ticket_create").Inc()
		return "", fmt.Errorf("ticket submission landed on login page")
	}

	ticketURL := ticketURLFrom(finalURL, body)

	t.store.MarkCreated(ctx, req.CallID, ticketURL)
	t.metrics.TicketsCreated.Inc()
	t.logger.Info("Ticket created", "callId", req.CallID, "ticketUrl", ticketURL)

	t.remember(ctx, req, entry.Call.Phone)
	return ticketURL, nil
}

// remember updates topic autocomplete and the phone-to-client
// association. Both are best-effort.
func (t *TicketCreator) remember(ctx context.Context, req TicketRequest, phone string) {
	if req.Topic != "" {
		if err := t.topics.Touch(ctx, req.Topic); err != nil {
			t.logger.Error("Failed to remember ticket topic", "topic", req.Topic, "error", err)
		}
	}
	if req.ClientID != "" && phone != "" {
		assoc := &entity.ClientAssociation{
			Phone:      phone,
			ClientID:   req.ClientID,
			ClientName: req.ClientName,
		}
		if err := t.associations.Upsert(ctx, assoc); err != nil {
			t.logger.Error("Failed to remember client association", "phone", phone, "error", err)
		}
	}
}

// ticketURLFrom extracts the created ticket's URL, preferring a redirect
// to the details page over a link inside the body.
func ticketURLFrom(finalURL, body string) string {
	if strings.Contains(finalURL, "/Tickets/Details") {
		return finalURL
	}
	if m := reTicketDetailsLink.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}
