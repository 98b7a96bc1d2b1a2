package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/redmag-edu/mentoria/internal/adapter/ws"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, hub *ws.Hub) {
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)

	if hub != nil {
		r.Get("/ws", hub.HandleWS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		r.Post("/chat", h.Chat)

		r.Get("/conversations/{id}", h.GetConversation)
		r.Get("/conversations/{id}/messages", h.ConversationHistory)
		r.Get("/users/{id}/conversations/latest", h.LatestConversation)

		// Content catalog: {type} is "meds" or "planeaciones".
		r.Get("/content/{type}", h.ListContent)
		r.Post("/content/{type}", h.CreateContent)
		r.Put("/content/{type}/{id}", h.UpdateContent)
		r.Delete("/content/{type}/{id}", h.DeleteContent)
	})
}
