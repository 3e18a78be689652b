package recommend

import "context"

// Availability statuses
const (
	StatusAvailable = "available"
	StatusBusy      = "busy"
	StatusOffline   = "offline"
)

// AvailabilityOracle reports an agent's real-time availability. The default
// implementation is static: no presence tracking source exists yet, so every
// agent reports available. A real tracker plugs in here without touching the
// recommender.
type AvailabilityOracle interface {
	Status(ctx context.Context, agentID string) string
}

// StaticAvailability always answers "available".
type StaticAvailability struct{}

// Status implements AvailabilityOracle.
func (StaticAvailability) Status(ctx context.Context, agentID string) string {
	return StatusAvailable
}
