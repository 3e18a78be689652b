package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quickgig/backend/internal/registry"
)

// GetRegistryAgent returns the on-chain identity + reputation snapshot for a
// wallet address. Answers 503 when no RPC endpoint was configured at boot.
func GetRegistryAgent(client *registry.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if client == nil {
			writeError(w, http.StatusServiceUnavailable, "registry not configured")
			return
		}

		snapshot, err := client.Snapshot(r.Context(), mux.Vars(r)["address"])
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		if snapshot == nil {
			writeError(w, http.StatusNotFound, "agent not registered")
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	}
}
