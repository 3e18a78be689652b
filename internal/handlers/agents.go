package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/quickgig/backend/internal/capability"
	"github.com/quickgig/backend/internal/database"
	"github.com/quickgig/backend/internal/recommend"
)

// RecommendAgents returns ranked agents for one capability. Query parameters
// override the configured defaults.
// GET /api/v1/agents/recommend?capability=&minReputation=&limit=&sortBy=
func RecommendAgents(provider recommend.Provider, defaults recommend.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag, err := capability.Parse(r.URL.Query().Get("capability"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		opts, ok := optionsFromQuery(w, r, defaults)
		if !ok {
			return
		}

		writeJSON(w, http.StatusOK, provider.Recommend(r.Context(), tag, opts))
	}
}

// RecommendAgentsBatch fans one query out across several capabilities.
// POST /api/v1/agents/recommend/batch
func RecommendAgentsBatch(provider recommend.Provider, defaults recommend.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Capabilities []string          `json:"capabilities"`
			Options      recommend.Options `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(req.Capabilities) == 0 {
			writeError(w, http.StatusBadRequest, "capabilities is required")
			return
		}
		if req.Options.SortBy != "" && !req.Options.SortBy.IsValid() {
			writeError(w, http.StatusBadRequest, "unknown sort key")
			return
		}

		caps := make([]capability.Capability, 0, len(req.Capabilities))
		for _, raw := range req.Capabilities {
			tag, err := capability.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			caps = append(caps, tag)
		}

		opts := req.Options
		if opts.MinReputation == 0 {
			opts.MinReputation = defaults.MinReputation
		}
		if opts.Limit == 0 {
			opts.Limit = defaults.Limit
		}
		writeJSON(w, http.StatusOK, provider.RecommendMultiple(r.Context(), caps, opts))
	}
}

// EstimateCost sums agent prices into a cost band.
// POST /api/v1/agents/cost
func EstimateCost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Agents []recommend.RecommendedAgent `json:"agents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		writeJSON(w, http.StatusOK, recommend.TotalCost(req.Agents))
	}
}

// ListAgents returns the stored agent roster.
func ListAgents(client *database.SupabaseClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := intQuery(r, "limit", 100)
		agents, err := client.ListAgents(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, agents)
	}
}

// GetAgent returns a single agent by ID.
func GetAgent(client *database.SupabaseClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := mux.Vars(r)["id"]

		agent, err := client.GetAgent(r.Context(), agentID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if agent == nil {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		writeJSON(w, http.StatusOK, agent)
	}
}

// optionsFromQuery parses recommendation tuning parameters on top of the
// configured defaults, writing a 400 and returning ok=false on a malformed
// value.
func optionsFromQuery(w http.ResponseWriter, r *http.Request, defaults recommend.Options) (recommend.Options, bool) {
	opts := defaults

	if raw := r.URL.Query().Get("minReputation"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "minReputation must be an integer")
			return opts, false
		}
		opts.MinReputation = v
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return opts, false
		}
		opts.Limit = v
	}
	if raw := r.URL.Query().Get("sortBy"); raw != "" {
		key := recommend.SortKey(raw)
		if !key.IsValid() {
			writeError(w, http.StatusBadRequest, "unknown sort key")
			return opts, false
		}
		opts.SortBy = key
	}

	return opts, true
}

func intQuery(r *http.Request, name string, fallback int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
