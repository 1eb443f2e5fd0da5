// main.go — Flixsy server entrypoint.
// Mounts the entitlements, catalog and livetv services on one mux and serves
// them from a single process.
package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/flixsy/flixsy-server/internal/auth"
	"github.com/flixsy/flixsy-server/internal/config"
	"github.com/flixsy/flixsy-server/internal/metrics"
	"github.com/flixsy/flixsy-server/internal/ratelimit"
	"github.com/flixsy/flixsy-server/internal/shutdown"
	"github.com/flixsy/flixsy-server/pkg/logging"
	"github.com/flixsy/flixsy-server/pkg/telemetry"
	"github.com/flixsy/flixsy-server/services/catalog"
	"github.com/flixsy/flixsy-server/services/entitlements"
	"github.com/flixsy/flixsy-server/services/livetv"
)

const release = "flixsy-server@0.3.0"

func main() {
	log := logging.NewLogger("flixsy")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	if err := telemetry.InitSentry(cfg.SentryDSN, "flixsy", release); err != nil {
		log.WithError(err).Warn("sentry init failed, continuing without error tracking")
	}
	defer telemetry.Flush()

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.WithError(err).Fatal("open postgres")
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		log.WithError(err).Fatal("ping postgres")
	}

	// Rate limiting rides on Redis when available and degrades to allow-all
	// when it is not.
	var limiter *ratelimit.Limiter
	if cfg.RedisURL != "" {
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("invalid REDIS_URL")
		}
		limiter = ratelimit.New(ratelimit.NewRedisStore(goredis.NewClient(opts)))
		log.Info("rate limiting enabled (redis)")
	} else {
		limiter = ratelimit.New(nil)
		log.Warn("REDIS_URL not set, rate limiting disabled")
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		log.WithError(err).Fatal("auth verifier")
	}

	var bridge entitlements.PaymentBridge
	if cfg.StripeSecretKey != "" {
		sb, err := entitlements.NewStripeBridge(cfg.StripeSecretKey, cfg.BaseURL, cfg.PremiumPriceID)
		if err != nil {
			log.WithError(err).Fatal("stripe bridge")
		}
		bridge = sb
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, premium checkout disabled")
	}

	var tmdb *catalog.TMDBClient
	if cfg.TMDBAPIKey != "" {
		tmdb, err = catalog.NewTMDBClient(cfg.TMDBAPIKey)
		if err != nil {
			log.WithError(err).Fatal("tmdb client")
		}
	} else {
		log.Warn("TMDB_API_KEY not set, catalog endpoints disabled")
	}

	store := entitlements.NewPostgresStore(db)

	mux := http.NewServeMux()
	entitlements.NewServer(store, bridge, limiter, cfg.DailyCredits).RegisterRoutes(mux, verifier)
	catalog.NewServer(tmdb).RegisterRoutes(mux)
	livetv.NewServer(livetv.NewLister()).RegisterRoutes(mux)

	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": "flixsy-server"})
	})

	handler := cors.New(cors.Options{
		AllowedOrigins:   corsOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)
	handler = telemetry.PanicRecoveryMiddleware("flixsy")(handler)
	handler = metrics.Middleware("flixsy", handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.WithField("port", cfg.Port).Info("flixsy server listening")
	if err := shutdown.GracefulServe(srv, 15*time.Second, log); err != nil {
		log.WithError(err).Error("server exited with error")
		telemetry.Flush()
		os.Exit(1)
	}
}

// corsOrigins returns the browser origins allowed to call the API. Production
// pins to FLIXSY_WEB_ORIGIN; development allows the usual local dev servers.
func corsOrigins(cfg *config.Config) []string {
	if origin := os.Getenv("FLIXSY_WEB_ORIGIN"); origin != "" {
		return []string{origin}
	}
	if cfg.IsProduction() {
		return []string{"https://flixsy.app"}
	}
	return []string{"http://localhost:3000", "http://localhost:5173"}
}
