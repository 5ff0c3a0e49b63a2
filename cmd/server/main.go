package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"roombook/internal/api"
	"roombook/internal/cache"
	"roombook/internal/catalog"
	"roombook/internal/clock"
	"roombook/internal/config"
	"roombook/internal/database"
	"roombook/internal/events"
	"roombook/internal/lock"
	"roombook/internal/memstore"
	"roombook/internal/metrics"
	"roombook/internal/reservation"
	"roombook/internal/slots"
)

// store is what both services need from persistence.
type store interface {
	reservation.Repository
	catalog.Repository
}

func main() {
	// .env is optional; it only seeds variables referenced from config.yaml.
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv(config.EnvPath))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc := cfg.Scheduler.Location()
	clk := clock.NewSystem(loc)
	checks := map[string]api.Pinger{}

	var repo store
	var db *database.DB
	switch cfg.Database.Driver {
	case "memory":
		mem := memstore.New()
		repo = mem
		checks["store"] = mem
	default:
		db, err = database.NewDB(cfg.Database.Path, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("open db error")
		}
		defer db.Close()
		repo = db
		checks["db"] = api.PingFunc(db.PingContext)
	}

	var rdb *redis.Client
	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		locker = lock.NewRedis(rdb, lock.RedisOptions{TTL: cfg.LockTTL(), Logger: &logger})
		checks["redis"] = api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	bus := events.NewEventBus(&logger)
	bus.SubscribeAll(func(e events.Event) error {
		logger.Debug().
			Str("event", e.Type).
			Int64("reservation_id", e.Reservation.ID).
			Int64("room_id", e.Reservation.RoomID).
			Str("status", string(e.Reservation.Status)).
			Msg("reservation event")
		return nil
	})
	bus.Subscribe(events.RoomsSynced, func(e events.Event) error {
		logger.Info().Time("at", e.OccurredAt).Msg("room catalog reloaded")
		return nil
	})

	fallback := slots.ScheduleInfo{Window: cfg.Scheduler.Window(), SlotDuration: cfg.Scheduler.SlotDuration()}
	rooms := catalog.NewService(repo, cache.NewRooms(rdb, cfg.CacheTTL(), &logger), clk, &logger, fallback)
	if cfg.Rooms.Path != "" {
		err := config.WatchRooms(ctx, cfg.Rooms.Path, cfg.RoomsWatchInterval(), func(rc *config.RoomsConfig) {
			if err := rooms.SyncFromConfig(ctx, rc); err != nil {
				logger.Error().Err(err).Msg("failed to sync rooms")
				return
			}
			bus.Publish(events.Event{Type: events.RoomsSynced, OccurredAt: clk.Now()})
		}, func(err error) {
			logger.Warn().Err(err).Str("path", cfg.Rooms.Path).Msg("rooms config reload rejected, keeping current catalog")
		})
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.Rooms.Path).Msg("rooms config not loaded, keeping stored catalog")
		}
	}

	reservations := reservation.NewService(repo, locker, clk, &logger,
		reservation.WithDefaultStatus(cfg.Scheduler.Status()),
		reservation.WithLocation(loc),
		reservation.WithEventBus(bus),
	)

	if db != nil && cfg.Backup.Enabled {
		go database.NewBackupService(db, cfg.Backup, &logger).Start(ctx)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go serve(ctx, "health", cfg.Monitoring.HealthCheckPort, api.NewHealthMux(checks), &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go serve(ctx, "metrics", cfg.Monitoring.PrometheusPort, mux, &logger)
	}

	server := api.NewHTTPServer(api.Options{
		Port:           cfg.Server.Port,
		APIKeys:        cfg.Server.APIKeys,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		RequestTimeout: cfg.RequestTimeout(),
		Window:         cfg.Scheduler.Window(),
		SlotDuration:   cfg.Scheduler.SlotDuration(),
	}, reservations, rooms, clk, &logger)

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	logger.Info().Str("timezone", loc.String()).Str("driver", cfg.Database.Driver).Msg("roombook started")
	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
	logger.Info().Msg("roombook stopped")
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if !cfg.Logging.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func serve(ctx context.Context, name string, port int, handler http.Handler, logger *zerolog.Logger) {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
