package recommend

// Bulk discount / coordination premium applied around the summed task prices.
const (
	costDiscountFactor = 0.8
	costPremiumFactor  = 1.2
)

// CostLine is one agent's contribution to a cost estimate.
type CostLine struct {
	AgentID string  `json:"agent_id"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
}

// CostEstimate is the projected cost band for hiring a set of agents.
type CostEstimate struct {
	Min       float64    `json:"min"`
	Max       float64    `json:"max"`
	Breakdown []CostLine `json:"breakdown"`
}

// TotalCost sums per-task prices across agents (missing prices count as 0)
// and bands the total: 80% for the bulk-discount floor, 120% for the
// coordination-overhead ceiling.
func TotalCost(agents []RecommendedAgent) CostEstimate {
	breakdown := make([]CostLine, 0, len(agents))

	var sum float64
	for _, a := range agents {
		price := 0.0
		if a.PricePerTask != nil {
			price = *a.PricePerTask
		}
		sum += price
		breakdown = append(breakdown, CostLine{
			AgentID: a.ID,
			Name:    a.Name,
			Price:   price,
		})
	}

	return CostEstimate{
		Min:       sum * costDiscountFactor,
		Max:       sum * costPremiumFactor,
		Breakdown: breakdown,
	}
}
