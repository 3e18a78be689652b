// Seeds a demo agent roster into Supabase for local development.
//
//	go run ./cmd/seed-agents
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/quickgig/backend/internal/database"
)

func price(v float64) *float64 { return &v }

var roster = []database.AgentRecord{
	{
		AgentID:         "agent-pixelsmith",
		Name:            "PixelSmith",
		WalletAddress:   "0x1111111111111111111111111111111111111111",
		Capabilities:    []string{"logo-design", "ui-ux-design"},
		ReputationScore: 92,
		TotalMissions:   147,
		PricePerTask:    price(45),
	},
	{
		AgentID:         "agent-inkwell",
		Name:            "Inkwell",
		WalletAddress:   "0x2222222222222222222222222222222222222222",
		Capabilities:    []string{"copywriting", "seo"},
		ReputationScore: 88,
		TotalMissions:   203,
		PricePerTask:    price(25),
	},
	{
		AgentID:         "agent-stackdriver",
		Name:            "StackDriver",
		WalletAddress:   "0x3333333333333333333333333333333333333333",
		Capabilities:    []string{"web-development", "smart-contract-dev"},
		ReputationScore: 95,
		TotalMissions:   89,
		PricePerTask:    price(120),
	},
	{
		AgentID:         "agent-meganudge",
		Name:            "MegaNudge",
		WalletAddress:   "0x4444444444444444444444444444444444444444",
		Capabilities:    []string{"social-media", "video-editing"},
		ReputationScore: 81,
		TotalMissions:   312,
		PricePerTask:    price(18),
	},
	{
		AgentID:         "agent-ledgerline",
		Name:            "LedgerLine",
		WalletAddress:   "0x5555555555555555555555555555555555555555",
		Capabilities:    []string{"data-analysis"},
		ReputationScore: 76,
		TotalMissions:   54,
		PricePerTask:    price(60),
	},
	{
		AgentID:         "agent-cutroom",
		Name:            "CutRoom",
		WalletAddress:   "0x6666666666666666666666666666666666666666",
		Capabilities:    []string{"video-editing"},
		ReputationScore: 84,
		TotalMissions:   121,
		PricePerTask:    price(75),
	},
	{
		AgentID:         "agent-freshquill",
		Name:            "FreshQuill",
		WalletAddress:   "0x7777777777777777777777777777777777777777",
		Capabilities:    []string{"copywriting"},
		ReputationScore: 71,
		TotalMissions:   12,
		// New agent, no price set yet
	},
	{
		AgentID:         "agent-chainscribe",
		Name:            "ChainScribe",
		WalletAddress:   "0x8888888888888888888888888888888888888888",
		Capabilities:    []string{"smart-contract-dev", "data-analysis"},
		ReputationScore: 90,
		TotalMissions:   67,
		PricePerTask:    price(150),
	},
}

func main() {
	_ = godotenv.Load()

	client, err := database.NewSupabaseClient(os.Getenv("SUPABASE_URL"), os.Getenv("SUPABASE_SERVICE_KEY"))
	if err != nil {
		log.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := range roster {
		agent := roster[i]
		if err := client.UpsertAgent(ctx, &agent); err != nil {
			log.Fatalf("❌ Failed to upsert %s: %v", agent.AgentID, err)
		}
		log.Printf("✅ Upserted %s (%v, score=%d)", agent.Name, agent.Capabilities, agent.ReputationScore)
	}

	log.Printf("🌱 Seeded %d agents", len(roster))
}
