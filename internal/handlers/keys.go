package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/quickgig/backend/internal/middleware"
)

// CreateAPIKey mints a new API key for a client wallet. The full key is only
// ever returned in this response.
// POST /api/v1/keys  body: {"client_address": "...", "name": "..."}
func CreateAPIKey(auth *middleware.APIKeyAuth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ClientAddress string `json:"client_address"`
			Name          string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.ClientAddress) == "" {
			writeError(w, http.StatusBadRequest, "client_address is required")
			return
		}

		record, fullKey, err := auth.CreateKey(r.Context(), req.ClientAddress, req.Name)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"key_id":         record.KeyID,
			"client_address": record.ClientAddress,
			"name":           record.Name,
			"api_key":        fullKey,
		})
	}
}
