package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/docconv/internal/command"
	"github.com/iliyamo/docconv/internal/config"
	"github.com/iliyamo/docconv/internal/convert"
	"github.com/iliyamo/docconv/internal/database"
	"github.com/iliyamo/docconv/internal/handler"
	"github.com/iliyamo/docconv/internal/ledger"
	"github.com/iliyamo/docconv/internal/logging"
	"github.com/iliyamo/docconv/internal/middleware"
	"github.com/iliyamo/docconv/internal/plan"
	"github.com/iliyamo/docconv/internal/queue"
	"github.com/iliyamo/docconv/internal/repository"
	"github.com/iliyamo/docconv/internal/router"
	"github.com/iliyamo/docconv/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, ServiceName: "docconv"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisCfg := config.LoadRedisConfig()
	rdb := config.NewRedisClient(redisCfg)
	if rdb == nil {
		log.Warn().Str("addr", redisCfg.Addr).Msg("redis unreachable; rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	store, closeStore := openStore(ctx, cfg, redisCfg, rdb, log)
	defer closeStore()

	plans := plan.Default()
	l := ledger.New(store, plans, ledger.WithLogger(log.With("component", "ledger")))

	opts := []service.Option{
		service.WithMaxBytes(cfg.MaxUploadBytes),
		service.WithLogger(log.With("component", "converter")),
	}
	if cfg.EventsEnabled {
		opts = append(opts, service.WithPublisher(service.NewAMQPPublisher(cfg.AMQPURL)))
	}
	conv := service.NewConverter(convert.NewEngine(cfg.AcceptedExtensions...), l, plans, opts...)
	commands := command.NewDefault(conv, plans, cfg.IsAdmin)

	if cfg.ConsumerEnabled {
		go func() {
			err := queue.StartConversionConsumer(ctx, cfg.AMQPURL, cfg.ConversionLogDir, log.With("component", "consumer"))
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("conversion consumer stopped")
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLogger(log.With("component", "http")))

	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rate limit configuration")
	}

	accounts := handler.NewAccountHandler(conv, log)
	router.RegisterRoutes(e)
	router.RegisterUser(e, router.UserRoutes{
		Documents: handler.NewDocumentHandler(conv, log),
		Accounts:  accounts,
		Commands:  handler.NewCommandHandler(commands, log),
		RateLimit: middleware.NewTokenBucket(rlCfg, rdb, log),
		MaxUpload: cfg.MaxUploadBytes,
	}, cfg.JWTSecret)
	router.RegisterAdmin(e, accounts, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("ledger", cfg.LedgerBackend).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	conv.Wait()
}

// openStore builds the ledger backend selected by LEDGER_BACKEND.  Failures
// are fatal: the service never runs without a usable ledger.
func openStore(ctx context.Context, cfg config.Config, redisCfg config.RedisConfig, rdb *redis.Client, log *logging.Logger) (ledger.Store, func()) {
	switch cfg.LedgerBackend {
	case "redis":
		if rdb == nil {
			log.Fatal().Str("addr", redisCfg.Addr).Msg("LEDGER_BACKEND=redis but redis is unreachable")
		}
		return repository.NewRedisStore(rdb, redisCfg.Prefix, cfg.UsageRetention), func() {}
	case "memory":
		log.Warn().Msg("in-memory ledger: usage is lost on restart")
		return ledger.NewMemoryStore(), func() {}
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open database")
	}
	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	store, err := repository.NewSQLStore(db, cfg.DBDriver)
	if err != nil {
		log.Fatal().Err(err).Msg("build sql store")
	}
	return store, func() { _ = db.Close() }
}
