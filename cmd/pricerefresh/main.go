// Command pricerefresh runs one price refresh over every active hotel and
// exits.  It is meant for cron or a Kubernetes CronJob when the server's
// built-in schedule is turned off.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/config"
	"github.com/iliyamo/hotel-booking/internal/database"
	"github.com/iliyamo/hotel-booking/internal/logger"
	"github.com/iliyamo/hotel-booking/internal/pricerefresh"
	"github.com/iliyamo/hotel-booking/internal/pricing"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName+"-pricerefresh")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.StoreDriver != "mysql" {
		log.Fatal("pricerefresh needs STORE_DRIVER=mysql", zap.String("driver", cfg.StoreDriver))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	holidays, err := pricing.ParseCalendar(cfg.Holidays)
	if err != nil {
		log.Fatal("holidays", zap.Error(err))
	}
	job := pricerefresh.New(repository.NewMySQLStore(db, log), pricing.NewEngine(holidays), log,
		pricerefresh.WithBatch(cfg.PriceRefreshBatch), pricerefresh.WithHorizon(cfg.HorizonDays))

	res, err := job.RefreshAll(ctx)
	if err != nil {
		log.Error("refresh finished with errors", zap.Int("failed", res.Failed), zap.Error(err))
		os.Exit(1)
	}
}
