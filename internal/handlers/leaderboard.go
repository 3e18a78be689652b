package handlers

import (
	"errors"
	"net/http"

	"github.com/quickgig/backend/internal/leaderboard"
)

// GetLeaderboard returns the agent rankings.
// GET /api/v1/leaderboard?window=&limit=
// Answers 503 when no DATABASE_URL was configured at boot.
func GetLeaderboard(svc *leaderboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			writeError(w, http.StatusServiceUnavailable, "leaderboard not configured")
			return
		}

		entries, err := svc.Top(r.Context(), r.URL.Query().Get("window"), intQuery(r, "limit", 20))
		if err != nil {
			if errors.Is(err, leaderboard.ErrBadWindow) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if entries == nil {
			entries = []leaderboard.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
