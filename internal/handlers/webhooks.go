package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quickgig/backend/internal/webhooks"
)

// RegisterWebhook subscribes a URL to marketplace events.
// POST /api/v1/webhooks  body: {"url": "...", "events": [...], "secret": "..."}
func RegisterWebhook(registry *webhooks.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sub webhooks.WebhookSubscription
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		sub.ID = "" // IDs are always server-assigned

		if err := registry.Register(&sub); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	}
}

// ListWebhooks returns all registered subscriptions.
func ListWebhooks(registry *webhooks.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, registry.ListAll())
	}
}

// UnregisterWebhook removes a subscription by id.
func UnregisterWebhook(registry *webhooks.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := registry.Unregister(mux.Vars(r)["id"]); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
