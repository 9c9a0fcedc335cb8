package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/NT710/willmyflightbelate/internal/auditlog"
	"github.com/NT710/willmyflightbelate/internal/cache"
	"github.com/NT710/willmyflightbelate/internal/config"
	"github.com/NT710/willmyflightbelate/internal/confidence"
	"github.com/NT710/willmyflightbelate/internal/events"
	"github.com/NT710/willmyflightbelate/internal/flight"
	"github.com/NT710/willmyflightbelate/internal/history"
	"github.com/NT710/willmyflightbelate/internal/prediction"
	"github.com/NT710/willmyflightbelate/internal/stats"
	"github.com/NT710/willmyflightbelate/internal/store"
	"github.com/NT710/willmyflightbelate/internal/types"
	"github.com/NT710/willmyflightbelate/internal/weather"
)

const statsPersistInterval = 5 * time.Minute

// server holds the request handlers' dependencies.
type server struct {
	engine *prediction.Engine
	stats  *stats.Stats
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resultCache := buildCache(cfg)
	defer resultCache.Close()

	dbClient, err := store.New(cfg.DBConnStr)
	if err != nil {
		log.Printf("Failed to connect to historical store: %v", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	serviceStats := stats.New()
	serviceStats.SetPersister(dbClient)
	go serviceStats.StartPersistence(ctx, statsPersistInterval)

	scorer, err := confidence.New()
	if err != nil {
		log.Printf("Failed to create confidence scorer: %v", err)
		os.Exit(1)
	}

	deps := prediction.Deps{
		Flights:   flight.New(cfg.FlightBaseURL, cfg.OpenSkyUsername, cfg.OpenSkyPassword),
		Weather:   weather.New(cfg.WeatherBaseURL, resultCache, cfg.WeatherTTL),
		History:   history.New(dbClient),
		Cache:     resultCache,
		Scorer:    scorer,
		Stats:     serviceStats,
		ResultTTL: cfg.PredictionTTL,
		Timeout:   cfg.PredictionTimeout,
	}

	if cfg.NATSURL != "" {
		publisher, err := events.New(cfg.NATSURL)
		if err != nil {
			log.Printf("Warning: event publishing disabled: %v", err)
		} else {
			defer publisher.Close()
			deps.Publisher = publisher
		}
	}

	if cfg.AuditDir != "" {
		audit := auditlog.New(cfg.AuditDir)
		if err := audit.Start(); err != nil {
			log.Printf("Warning: audit log disabled: %v", err)
		} else {
			defer audit.Stop()
			deps.Audit = audit
		}
	}

	engine, err := prediction.New(deps)
	if err != nil {
		log.Printf("Failed to create prediction engine: %v", err)
		os.Exit(1)
	}

	srv := &server{engine: engine, stats: serviceStats}

	router := mux.NewRouter()
	router.HandleFunc("/api/predictions/{flightNumber}", srv.handlePrediction).Methods(http.MethodGet)
	router.HandleFunc("/api/stats", srv.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/healthz", srv.handleHealth).Methods(http.MethodGet)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Prediction service listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: HTTP shutdown incomplete: %v", err)
	}
	log.Printf("Final stats: %s", serviceStats)
}

// buildCache returns the Redis-backed cache when configured, the in-process
// map otherwise. Call sites only ever see the interface.
func buildCache(cfg *config.Config) cache.Cache {
	if cfg.RedisAddr == "" {
		log.Println("REDIS_ADDR not set, using in-process cache")
		return cache.NewMemory()
	}

	redisCache, err := cache.NewRedis(cfg.RedisAddr)
	if err != nil {
		log.Printf("Warning: Redis unavailable, falling back to in-process cache: %v", err)
		return cache.NewMemory()
	}
	return redisCache
}

func (s *server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	flightNumber := mux.Vars(r)["flightNumber"]

	result, err := s.engine.Predict(r.Context(), flightNumber)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, types.ErrFlightNotFound):
			status = http.StatusNotFound
		case errors.Is(err, types.ErrRateLimited):
			status = http.StatusTooManyRequests
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}
