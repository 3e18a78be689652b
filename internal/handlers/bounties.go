package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quickgig/backend/internal/bounty"
	"github.com/quickgig/backend/internal/database"
)

// CreateBounty posts a new bounty: the description is classified, the bounty
// persisted and agents recommended per detected capability.
func CreateBounty(svc *bounty.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bounty.CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		result, err := svc.Create(r.Context(), req)
		if err != nil {
			switch {
			case errors.Is(err, bounty.ErrMissingTitle),
				errors.Is(err, bounty.ErrMissingDescription),
				errors.Is(err, bounty.ErrMissingClient):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}

		writeJSON(w, http.StatusCreated, result)
	}
}

// GetBounty returns one bounty by id.
func GetBounty(svc *bounty.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := svc.Get(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			if errors.Is(err, bounty.ErrNotFound) {
				writeError(w, http.StatusNotFound, "bounty not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// ListBounties returns bounties, optionally filtered by ?status=.
func ListBounties(svc *bounty.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bounties, err := svc.List(r.Context(), r.URL.Query().Get("status"), intQuery(r, "limit", 50))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if bounties == nil {
			bounties = []database.BountyRecord{}
		}
		writeJSON(w, http.StatusOK, bounties)
	}
}

// MatchBounty records the agent the client selected.
// POST /api/v1/bounties/{id}/match  body: {"agent_id": "..."}
func MatchBounty(svc *bounty.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AgentID string `json:"agent_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" {
			writeError(w, http.StatusBadRequest, "agent_id is required")
			return
		}

		b, err := svc.Match(r.Context(), mux.Vars(r)["id"], req.AgentID)
		if err != nil {
			writeBountyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// SettleBounty marks a matched bounty settled, mirroring the escrow release
// transaction hash.
// POST /api/v1/bounties/{id}/settle  body: {"tx_hash": "..."}
func SettleBounty(svc *bounty.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TxHash string `json:"tx_hash"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		b, err := svc.Settle(r.Context(), mux.Vars(r)["id"], req.TxHash)
		if err != nil {
			writeBountyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// CancelBounty closes a bounty without settlement.
func CancelBounty(svc *bounty.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := svc.Cancel(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			writeBountyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func writeBountyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bounty.ErrNotFound):
		writeError(w, http.StatusNotFound, "bounty not found")
	case errors.Is(err, bounty.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
