package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/quickgig/backend/internal/bounty"
	"github.com/quickgig/backend/internal/cache"
	"github.com/quickgig/backend/internal/config"
	"github.com/quickgig/backend/internal/database"
	"github.com/quickgig/backend/internal/events"
	"github.com/quickgig/backend/internal/handlers"
	"github.com/quickgig/backend/internal/intent"
	"github.com/quickgig/backend/internal/leaderboard"
	"github.com/quickgig/backend/internal/llm"
	"github.com/quickgig/backend/internal/metrics"
	"github.com/quickgig/backend/internal/middleware"
	"github.com/quickgig/backend/internal/recommend"
	"github.com/quickgig/backend/internal/registry"
	"github.com/quickgig/backend/internal/stream"
	"github.com/quickgig/backend/internal/webhooks"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Request logs go out as structured JSON; service logs keep their prefixes.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	m := metrics.NewMetrics()

	// Supabase is the system of record; nothing works without it.
	supabaseClient, err := database.NewSupabaseClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		log.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	// LLM client for intent classification. The classifier degrades to
	// keyword matching internally, so a missing key is survivable in dev.
	llmClient, err := llm.NewOpenRouterClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	}, m)
	var classifier *intent.Classifier
	if err != nil {
		log.Printf("⚠️  LLM client unavailable (%v), classification will use keyword fallback only", err)
		classifier = intent.NewClassifier(nil, m)
	} else {
		classifier = intent.NewClassifier(llmClient, m)
	}

	// Recommendation pipeline, optionally fronted by a Redis cache.
	var provider recommend.Provider = recommend.NewRecommender(supabaseClient, recommend.StaticAvailability{}, m)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		provider = cache.New(provider, rdb, cfg.Redis.TTL, m)
		log.Printf("🧠 Recommendation cache enabled (redis=%s ttl=%s)", cfg.Redis.Addr, cfg.Redis.TTL)
	}

	// Event plumbing: bus → websocket hub + webhook dispatcher.
	bus := events.NewEventBus()

	hub := stream.NewHub(m)
	go hub.Run()
	go hub.Bridge(bus)

	webhookRegistry := webhooks.NewRegistry()
	dispatcher := webhooks.NewDispatcher(webhookRegistry, 4, m)
	go dispatcher.Bridge(bus)

	bountyService := bounty.NewService(supabaseClient, classifier, provider, bus)

	// On-chain registry mirror is optional: without an RPC endpoint the
	// /registry routes answer 503 and no watcher runs.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	var registryClient *registry.Client
	if cfg.Chain.RPCURL != "" {
		registryClient, err = registry.NewClient(rootCtx, registry.Config{
			RPCURL:             cfg.Chain.RPCURL,
			WSURL:              cfg.Chain.WSURL,
			IdentityRegistry:   cfg.Chain.IdentityRegistry,
			ReputationRegistry: cfg.Chain.ReputationRegistry,
		})
		if err != nil {
			log.Printf("⚠️  Registry client unavailable: %v", err)
		} else {
			defer registryClient.Close()
			watcher := registry.NewFeedbackWatcher(registryClient, supabaseClient, bus)
			go watcher.Run(rootCtx)
			log.Printf("⛓️  Registry mirror enabled (rpc=%s)", cfg.Chain.RPCURL)
		}
	}

	// Leaderboard needs a direct Postgres connection; also optional.
	var leaderboardService *leaderboard.Service
	if cfg.Database.URL != "" {
		leaderboardService, err = leaderboard.New(cfg.Database.URL)
		if err != nil {
			log.Printf("⚠️  Leaderboard unavailable: %v", err)
		} else {
			defer leaderboardService.Close()
			log.Printf("🏆 Leaderboard enabled")
		}
	}

	auth := middleware.NewAPIKeyAuth(supabaseClient)
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		MaxCallsPerMinute: cfg.RateLimit.MaxCallsPerMinute,
		BurstSize:         cfg.RateLimit.BurstSize,
	})

	router := mux.NewRouter()

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		supabaseStatus := "connected"
		if _, err := supabaseClient.ListAgents(ctx, 1); err != nil {
			supabaseStatus = "error"
		}

		json.NewEncoder(w).Encode(map[string]string{
			"status":   "healthy",
			"service":  "quickgig-api",
			"supabase": supabaseStatus,
		})
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(rateLimiter.Middleware)

	// Read surface (no auth)
	api.HandleFunc("/intent/classify", handlers.ClassifyIntent(classifier)).Methods("POST")
	recDefaults := recommend.Options{
		MinReputation: cfg.Recommend.MinReputation,
		Limit:         cfg.Recommend.Limit,
	}
	api.HandleFunc("/agents/recommend", handlers.RecommendAgents(provider, recDefaults)).Methods("GET")
	api.HandleFunc("/agents/recommend/batch", handlers.RecommendAgentsBatch(provider, recDefaults)).Methods("POST")
	api.HandleFunc("/agents/cost", handlers.EstimateCost()).Methods("POST")
	api.HandleFunc("/agents", handlers.ListAgents(supabaseClient)).Methods("GET")
	api.HandleFunc("/agents/{id}", handlers.GetAgent(supabaseClient)).Methods("GET")
	api.HandleFunc("/bounties", handlers.ListBounties(bountyService)).Methods("GET")
	api.HandleFunc("/bounties/{id}", handlers.GetBounty(bountyService)).Methods("GET")
	api.HandleFunc("/leaderboard", handlers.GetLeaderboard(leaderboardService)).Methods("GET")
	api.HandleFunc("/registry/agents/{address}", handlers.GetRegistryAgent(registryClient)).Methods("GET")
	api.HandleFunc("/webhooks", handlers.ListWebhooks(webhookRegistry)).Methods("GET")
	api.HandleFunc("/keys", handlers.CreateAPIKey(auth)).Methods("POST")

	// Mutating surface (API key required)
	authed := api.NewRoute().Subrouter()
	authed.Use(auth.Middleware)
	authed.HandleFunc("/bounties", handlers.CreateBounty(bountyService)).Methods("POST")
	authed.HandleFunc("/bounties/{id}/match", handlers.MatchBounty(bountyService)).Methods("POST")
	authed.HandleFunc("/bounties/{id}/settle", handlers.SettleBounty(bountyService)).Methods("POST")
	authed.HandleFunc("/bounties/{id}/cancel", handlers.CancelBounty(bountyService)).Methods("POST")
	authed.HandleFunc("/webhooks", handlers.RegisterWebhook(webhookRegistry)).Methods("POST")
	authed.HandleFunc("/webhooks/{id}", handlers.UnregisterWebhook(webhookRegistry)).Methods("DELETE")

	// WebSocket endpoint for live dashboard events
	router.HandleFunc("/api/v1/events/stream", hub.HandleWebSocket)

	router.Use(corsMiddleware)
	router.Use(loggingMiddleware)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal, shutting down gracefully...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}

		rootCancel()
		dispatcher.Shutdown()
	}()

	log.Printf("🚀 QuickGig API starting on port %s", cfg.Server.Port)
	log.Printf("📊 Health check: http://localhost:%s/health", cfg.Server.Port)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

// Middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
