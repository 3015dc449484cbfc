package main // server entry point

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/parking-ledger/internal/config"
	"github.com/iliyamo/parking-ledger/internal/database"
	"github.com/iliyamo/parking-ledger/internal/handler"
	"github.com/iliyamo/parking-ledger/internal/logger"
	"github.com/iliyamo/parking-ledger/internal/middleware"
	"github.com/iliyamo/parking-ledger/internal/queue"
	"github.com/iliyamo/parking-ledger/internal/repository"
	"github.com/iliyamo/parking-ledger/internal/router"
	"github.com/iliyamo/parking-ledger/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.NewWithConfig(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, ping, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open store")
	}
	defer closeStore()

	accounts := service.NewAccounts(store, log)
	if n, err := accounts.ProvisionSlots(ctx, cfg.SlotCount); err != nil {
		log.Fatal().Err(err).Msg("provision slots")
	} else if n > 0 {
		log.Info().Int("created", n).Int("slots", cfg.SlotCount).Msg("slots provisioned")
	}
	if cfg.SeedFile != "" {
		seed, err := config.LoadSeed(cfg.SeedFile)
		if err != nil {
			log.Fatal().Err(err).Msg("load seed")
		}
		if err := accounts.ApplySeed(ctx, seed); err != nil {
			log.Fatal().Err(err).Msg("apply seed")
		}
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithLockTimeout(cfg.LockTimeout),
		service.WithFees(service.Fees{Park: cfg.ParkFee, Unpark: cfg.UnparkFee, MaxRecharge: cfg.MaxRecharge}),
	}
	if cfg.EventsEnabled {
		pub := queue.NewAMQPPublisher(cfg.AMQPURL, log)
		defer pub.Close()
		opts = append(opts, service.WithPublisher(pub))

		consumer := queue.NewAuditConsumer(cfg.AMQPURL, cfg.AuditLogDir, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("audit consumer stopped")
			}
		}()
	}
	engine := service.NewEngine(store, opts...)

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	router.RegisterRoutes(e, router.Deps{
		Engine:       engine,
		Reader:       service.NewSnapshotReader(store, log),
		Admin:        service.NewAdmin(store, engine, log),
		Accounts:     accounts,
		JWTSecret:    cfg.JWTSecret,
		PollInterval: cfg.PollInterval,
		Redis:        rdb,
		RateLimit:    cfg.RateLimit,
		Cache:        cfg.Cache,
		Log:          log,
		Ping:         ping,
	})
	if cfg.AuthDisabled {
		log.Warn().Msg("AUTH_DISABLED: user routes are not authenticated and admin routes are closed")
	}

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("store", cfg.StoreDriver).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

// openStore returns the configured store with its health check and a
// close function.
func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (repository.Store, handler.Pinger, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn().Msg("using in-memory store; state is lost on restart")
		return repository.NewMemStore(), nil, func() {}, nil
	}

	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return repository.NewSQLStore(db), db.PingContext, closer(db, log), nil
}

func closer(db *sql.DB, log zerolog.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}
}
