package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sujal-kumar-jasti/Apex-Invest/config"
	"github.com/sujal-kumar-jasti/Apex-Invest/data"
	"github.com/sujal-kumar-jasti/Apex-Invest/data/cache"
	"github.com/sujal-kumar-jasti/Apex-Invest/data/repository/postgres"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/externalApi/cloudMirrorApi/driveMirrorApi"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/externalApi/currencyApi"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/externalApi/domesticApi"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/externalApi/globalApi"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/notifier"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/reportGenerator/portfolioReport"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/scheduler"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/service/marketDataService"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/service/portfolioService"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/transport/httpapi"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(cfg, pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)

	domesticApiClient := domesticApi.New(cfg)
	globalApiClient := globalApi.New(cfg)
	currencyApiClient := currencyApi.New(cfg)

	driveMirror := driveMirrorApi.New(ctx, cfg)

	reportGenerator := portfolioReport.New()

	ntf := notifier.New()

	marketDataSrv := marketDataService.New(cfg, redisCache, domesticApiClient, globalApiClient, currencyApiClient)
	portfolioSrv := portfolioService.New(cfg, pgRepo, driveMirror, marketDataSrv, reportGenerator, ntf)

	sched := scheduler.New()
	sched.NewIntervalJob("refresh prices", portfolioSrv.RefreshAllUsers, cfg.Jobs.RefreshPricesInterval, false)
	sched.NewIntervalJob("refresh usd rate", func(ctx context.Context) error {
		return marketDataSrv.RefreshRate(ctx)
	}, cfg.Jobs.RefreshRateInterval, true)
	sched.Start()
	defer sched.Stop()

	controller := httpapi.NewController(portfolioSrv, marketDataSrv, ntf)
	app := httpapi.NewApp(cfg, controller)

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			slog.Error("http server stopped", slog.String("err", err.Error()))
		}
	}()
	defer func() {
		if err := app.Shutdown(); err != nil {
			slog.Error("http server shutdown error", slog.String("err", err.Error()))
		}
	}()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
