package http

import (
	"context"
	"net/http"

	"github.com/redmag-edu/mentoria/internal/domain/chat"
	"github.com/redmag-edu/mentoria/internal/domain/content"
	"github.com/redmag-edu/mentoria/internal/service"
)

// ReadyCheck is one named readiness probe.
type ReadyCheck struct {
	Name string
	Fn   func(context.Context) error
}

// Handlers holds the services the HTTP layer dispatches to.
type Handlers struct {
	chat          *service.ChatService
	conversations *service.ConversationService
	content       *service.ContentService
	checks        []ReadyCheck
}

// NewHandlers creates the handler set.
func NewHandlers(chatSvc *service.ChatService, convSvc *service.ConversationService, contentSvc *service.ContentService, checks []ReadyCheck) *Handlers {
	return &Handlers{chat: chatSvc, conversations: convSvc, content: contentSvc, checks: checks}
}

// Health is the liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports per-dependency readiness. Any failing check returns 503.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.Fn(r.Context()); err != nil {
			deps[c.Name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			deps[c.Name] = "ok"
		}
	}
	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "dependencies": deps})
}

// Chat handles one inbound chat interaction.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[chat.Request](w, r)
	if !ok {
		return
	}
	res, err := h.chat.HandleMessage(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetConversation returns conversation info by ID.
func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversations.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// ConversationHistory returns one page of a conversation's turns.
func (h *Handlers) ConversationHistory(w http.ResponseWriter, r *http.Request) {
	page, err := h.conversations.History(r.Context(), urlParam(r, "id"),
		queryInt(r, "page", 1), queryInt(r, "size", 20))
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// LatestConversation returns the user's most recent conversation ID.
func (h *Handlers) LatestConversation(w http.ResponseWriter, r *http.Request) {
	id, err := h.conversations.Latest(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "no conversations for user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"conversation_id": id})
}

// contentType maps the route segment to the catalog type.
func contentType(r *http.Request) (content.Type, bool) {
	switch urlParam(r, "type") {
	case "meds":
		return content.TypeMED, true
	case "planeaciones":
		return content.TypePlaneacion, true
	default:
		return "", false
	}
}

// ListContent returns a page of catalog items.
func (h *Handlers) ListContent(w http.ResponseWriter, r *http.Request) {
	t, ok := contentType(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown content type")
		return
	}
	page, err := h.content.List(r.Context(), t, queryInt(r, "page", 1), queryInt(r, "size", 20))
	if err != nil {
		writeDomainError(w, err, "content not found")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// CreateContent indexes a new catalog item.
func (h *Handlers) CreateContent(w http.ResponseWriter, r *http.Request) {
	t, ok := contentType(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown content type")
		return
	}
	item, ok := readJSON[content.Item](w, r)
	if !ok {
		return
	}
	item.Type = t
	created, err := h.content.Create(r.Context(), item)
	if err != nil {
		writeDomainError(w, err, "content not found")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateContent re-indexes an existing catalog item.
func (h *Handlers) UpdateContent(w http.ResponseWriter, r *http.Request) {
	t, ok := contentType(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown content type")
		return
	}
	item, ok := readJSON[content.Item](w, r)
	if !ok {
		return
	}
	item.Type = t
	updated, err := h.content.Update(r.Context(), urlParam(r, "id"), item)
	if err != nil {
		writeDomainError(w, err, "content not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteContent removes a catalog item from the index.
func (h *Handlers) DeleteContent(w http.ResponseWriter, r *http.Request) {
	if _, ok := contentType(r); !ok {
		writeError(w, http.StatusNotFound, "unknown content type")
		return
	}
	if err := h.content.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "content not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
