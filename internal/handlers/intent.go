package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quickgig/backend/internal/intent"
)

// ClassifyIntent analyzes a free-text gig request and returns the structured
// intent analysis.
func ClassifyIntent(classifier *intent.Classifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		analysis, err := classifier.Classify(r.Context(), req.Message)
		if err != nil {
			if errors.Is(err, intent.ErrInvalidInput) {
				writeError(w, http.StatusBadRequest, "message is required")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, analysis)
	}
}
