package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"callwatch-service/internal/domain/entity"
	"callwatch-service/internal/domain/repository"
	"callwatch-service/internal/interface/portal"
	"callwatch-service/internal/usecase"
	"callwatch-service/pkg/logger"
)

// Handlers is the JSON surface the operator UI talks to. Rendering lives
// in the UI process; these endpoints only expose lifecycle operations.
type Handlers struct {
	store       *usecase.CallLifecycle
	drafts      *usecase.DraftSaver
	tickets     *usecase.TicketCreator
	bulkFetcher *portal.BulkFetcher
	topics      repository.TopicRepository
	notifier    repository.Notifier
	logger      logger.Logger
}

// NewHandlers creates the API handlers
func NewHandlers(
	store *usecase.CallLifecycle,
	drafts *usecase.DraftSaver,
	tickets *usecase.TicketCreator,
	bulkFetcher *portal.BulkFetcher,
	topics repository.TopicRepository,
	notifier repository.Notifier,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		store:       store,
		drafts:      drafts,
		tickets:     tickets,
		bulkFetcher: bulkFetcher,
		topics:      topics,
		notifier:    notifier,
		logger:      logger,
	}
}

// Register mounts the API routes on a mux
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/current", h.currentCall)
	mux.HandleFunc("GET /api/history", h.history)
	mux.HandleFunc("DELETE /api/history", h.clearHistory)
	mux.HandleFunc("POST /api/history/refresh", h.refreshHistory)
	mux.HandleFunc("POST /api/calls/{id}/skip", h.skipCall)
	mux.HandleFunc("POST /api/calls/{id}/lock", h.lockCall)
	mux.HandleFunc("POST /api/unlock", h.unlock)
	mux.HandleFunc("POST /api/calls/{id}/draft", h.saveDraft)
	mux.HandleFunc("POST /api/calls/{id}/ticket", h.createTicket)
	mux.HandleFunc("GET /api/topics", h.suggestTopics)
}

func (h *Handlers) currentCall(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"call":     h.store.Current(),
		"lockedId": h.store.LockedID(),
	})
}

func (h *Handlers) history(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.store.Entries())
}

func (h *Handlers) clearHistory(w http.ResponseWriter, r *http.Request) {
	h.store.ClearHistory(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) refreshHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.bulkFetcher.FetchAll(r.Context(), true, h.notifier.BulkProgress)
	if errors.Is(err, portal.ErrNotAuthenticated) {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.store.ReconcileHistory(r.Context(), records)
	writeJSON(w, map[string]int{"records": len(records)})
}

func (h *Handlers) skipCall(w http.ResponseWriter, r *http.Request) {
	h.store.Skip(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) lockCall(w http.ResponseWriter, r *http.Request) {
	h.store.Lock(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) unlock(w http.ResponseWriter, r *http.Request) {
	h.store.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) saveDraft(w http.ResponseWriter, r *http.Request) {
	var draft entity.TicketDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		http.Error(w, "invalid draft payload", http.StatusBadRequest)
		return
	}
	h.drafts.Save(r.PathValue("id"), &draft)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) createTicket(w http.ResponseWriter, r *http.Request) {
	var req usecase.TicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid ticket payload", http.StatusBadRequest)
		return
	}
	req.CallID = r.PathValue("id")

	ticketURL, err := h.tickets.Create(r.Context(), req)
	if err != nil {
		h.logger.Error("Ticket creation failed", "callId", req.CallID, "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]string{"ticketUrl": ticketURL})
}

func (h *Handlers) suggestTopics(w http.ResponseWriter, r *http.Request) {
	names, err := h.topics.Suggest(r.Context(), r.URL.Query().Get("q"), 10)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, names)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}
