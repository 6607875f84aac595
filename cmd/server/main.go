package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/booking"
	"github.com/iliyamo/hotel-booking/internal/config"
	"github.com/iliyamo/hotel-booking/internal/database"
	"github.com/iliyamo/hotel-booking/internal/handler"
	"github.com/iliyamo/hotel-booking/internal/hotel"
	"github.com/iliyamo/hotel-booking/internal/ledger"
	"github.com/iliyamo/hotel-booking/internal/logger"
	"github.com/iliyamo/hotel-booking/internal/metrics"
	"github.com/iliyamo/hotel-booking/internal/middleware"
	"github.com/iliyamo/hotel-booking/internal/payment"
	"github.com/iliyamo/hotel-booking/internal/pricerefresh"
	"github.com/iliyamo/hotel-booking/internal/pricing"
	"github.com/iliyamo/hotel-booking/internal/queue"
	"github.com/iliyamo/hotel-booking/internal/repository"
	"github.com/iliyamo/hotel-booking/internal/repository/memory"
	"github.com/iliyamo/hotel-booking/internal/reservation"
	"github.com/iliyamo/hotel-booking/internal/router"
	"github.com/iliyamo/hotel-booking/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

// stores bundles the persistence chosen by STORE_DRIVER.
type stores struct {
	store  repository.Store
	users  handler.Users
	tokens handler.Tokens
	ping   func(context.Context) error
	close  func() error
}

func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (stores, error) {
	if cfg.StoreDriver == "memory" {
		log.Warn("using in-memory store; data is lost on restart")
		return stores{
			store:  memory.New(),
			users:  memory.NewUsers(),
			tokens: memory.NewTokens(),
			ping:   func(context.Context) error { return nil },
			close:  func() error { return nil },
		}, nil
	}
	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return stores{}, fmt.Errorf("open database: %w", err)
	}
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return stores{}, fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema applied")
	}
	return stores{
		store:  repository.NewMySQLStore(db, log),
		users:  repository.NewUserRepo(db),
		tokens: repository.NewTokenRepo(db),
		ping:   db.PingContext,
		close:  db.Close,
	}, nil
}

func newGateway(cfg config.Config, log *zap.Logger) payment.Gateway {
	if cfg.PaymentProvider == "stripe" {
		return payment.NewStripeClient(cfg.PaymentAPIURL, cfg.PaymentAPIKey, cfg.PaymentCurrency, log)
	}
	log.Warn("using local payment gateway; checkouts complete only through signed webhooks")
	return payment.NewLocalGateway()
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	shutdownTracing, err := tracing.Init(cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if shutdownTracing != nil {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(sctx)
		}()
	}

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting and response cache disabled")
	} else {
		defer func(c *redis.Client) { _ = c.Close() }(rdb)
	}

	holidays, err := pricing.ParseCalendar(cfg.Holidays)
	if err != nil {
		return fmt.Errorf("holidays: %w", err)
	}
	engine := pricing.NewEngine(holidays)
	l := ledger.New(log, cfg.HorizonDays)
	coord := reservation.New(st.store, l, engine, log)

	var opts []booking.Option
	if cfg.EventsEnabled {
		pub := queue.NewPublisher(cfg.RabbitMQURL, log)
		defer func() { _ = pub.Close() }()
		opts = append(opts, booking.WithPublisher(pub))
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.RabbitMQURL, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}
	bookings := booking.NewService(st.store, coord, newGateway(cfg, log), booking.Config{
		TTL:         cfg.BookingTTL,
		FrontendURL: cfg.FrontendURL,
		SweepGrace:  cfg.SweepGrace,
		SweepBatch:  cfg.SweepBatch,
	}, log, opts...)
	hotels := hotel.NewService(st.store, l, log)

	go booking.NewJanitor(bookings, cfg.SweepInterval, log).Run(ctx)
	if cfg.PriceRefreshInterval > 0 {
		refresher := pricerefresh.New(st.store, engine, log,
			pricerefresh.WithBatch(cfg.PriceRefreshBatch), pricerefresh.WithHorizon(cfg.HorizonDays))
		go refresher.Run(ctx, cfg.PriceRefreshInterval)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(tracing.Middleware)
	e.Use(metrics.Middleware)

	limit := middleware.RateLimit(config.LoadRateLimitConfig(), rdb, log)
	cache := middleware.ResponseCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e, handler.Health(st.ping))
	router.RegisterAuth(e, handler.NewAuthHandler(handler.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	}, st.users, st.tokens, log), cfg.JWTSecret, limit)
	hotelHandler := handler.NewHotelHandler(hotels, log)
	router.RegisterPublic(e, hotelHandler,
		handler.NewWebhookHandler(bookings, payment.NewWebhookVerifier(cfg.PaymentWebhookSecret, 0), log), cache)
	router.RegisterBookings(e, handler.NewBookingHandler(bookings, log), cfg.JWTSecret, limit)
	router.RegisterAdmin(e, hotelHandler, cfg.JWTSecret, limit)

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreDriver), zap.String("payments", cfg.PaymentProvider))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}
