package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"apertura/internal/config"
	"apertura/internal/database"
	"apertura/internal/events"
	"apertura/internal/export"
	"apertura/internal/geo"
	"apertura/internal/metrics"
	"apertura/internal/notify"
	"apertura/internal/scheduling"
	"apertura/internal/solar"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("APERTURA_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	geoClient := geo.NewClient(
		cfg.Providers.GeocodeBaseURL,
		cfg.Providers.RoutingBaseURL,
		cfg.Providers.APIKey,
		cfg.ProviderTimeout(),
		&logger,
	)
	solarClient := solar.NewClient(cfg.Providers.SolarBaseURL, cfg.Providers.APIKey, cfg.ProviderTimeout(), &logger)
	if rdb != nil && cfg.Providers.CacheTTLSeconds > 0 {
		geoClient.UseRedisCache(rdb, cfg.ProviderCacheTTL())
		solarClient.UseRedisCache(rdb, cfg.ProviderCacheTTL())
	}

	registry := config.NewTenantRegistry(nil)
	if err := config.WatchTenants(ctx, cfg.TenantsPath, 30*time.Second, registry.Update); err != nil {
		logger.Fatal().Err(err).Msg("failed to load tenants config")
	}

	bus := events.NewEventBus()

	var webhook, telegram notify.Notifier
	if cfg.Notify.WebhookURL != "" {
		webhook = notify.NewWebhookNotifier(cfg.Notify.WebhookURL, time.Duration(cfg.Notify.TimeoutSeconds)*time.Second, &logger)
	}
	if cfg.Notify.TelegramToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.Notify.TelegramToken, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("telegram notifier unavailable")
		} else {
			telegram = tg
		}
	}
	dispatcher := notify.NewDispatcher(webhook, telegram, db, notify.DispatcherConfig{
		RatePerSecond: cfg.NotifyRate(),
		Burst:         cfg.NotifyBurst(),
	}, &logger)
	dispatcher.SubscribeTo(bus)
	dispatcher.Start()
	defer dispatcher.Stop()

	resolver := solar.NewResolver(geoClient, solarClient, &logger)
	decomposer := scheduling.NewDecomposer(resolver, &logger)
	quota := scheduling.NewQuotaEnforcer(db, &logger)
	travel := scheduling.NewTravelValidator(db, db, geoClient, &logger)
	orchestrator := scheduling.NewOrchestrator(db, registry, geoClient, decomposer, quota, travel, bus, &logger)
	exporter := export.NewExporter(db, &logger)

	backup := database.NewBackupService(cfg.Database.Path, database.BackupConfig{
		Enabled:       cfg.Backup.Enabled,
		Interval:      time.Duration(cfg.Backup.IntervalHours) * time.Hour,
		StoragePath:   cfg.Backup.Path,
		RetentionDays: cfg.Backup.RetentionDays,
	}, &logger)
	go backup.Start(ctx)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	logger.Info().Int("port", cfg.Server.Port).Msg("Scheduler started")
	startAPIServer(ctx, cfg.Server.Port, orchestrator, exporter, registry, &logger)
}

func startAPIServer(ctx context.Context, port int, orchestrator *scheduling.Orchestrator, exporter *export.Exporter, registry *config.TenantRegistry, logger *zerolog.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/tenants/{tenant}/bookings", func(w http.ResponseWriter, r *http.Request) {
		var req scheduling.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		appt, err := orchestrator.Upsert(r.Context(), r.PathValue("tenant"), req)
		if err != nil {
			writeEngineError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(appt)
	})

	mux.HandleFunc("GET /api/v1/tenants/{tenant}/schedule.xlsx", func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.PathValue("tenant")
		day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		loc := time.UTC
		if tenant := registry.Tenant(tenantID); tenant != nil && tenant.DefaultTimeZone != "" {
			if l, err := time.LoadLocation(tenant.DefaultTimeZone); err == nil {
				loc = l
			}
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := exporter.ExportDay(r.Context(), w, tenantID, day, loc); err != nil {
			logger.Error().Err(err).Msg("schedule export failed")
		}
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("api server error")
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case isValidation(err):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case isConflict(err):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func isValidation(err error) bool {
	_, ok := scheduling.IsValidationError(err)
	return ok
}

func isConflict(err error) bool {
	if _, ok := scheduling.IsQuotaExceeded(err); ok {
		return true
	}
	_, ok := scheduling.IsTravelConflict(err)
	return ok
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
