package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Spok95/salon-ledger/internal/bot"
	"github.com/Spok95/salon-ledger/internal/config"
	"github.com/Spok95/salon-ledger/internal/domain/clients"
	"github.com/Spok95/salon-ledger/internal/domain/inventory"
	"github.com/Spok95/salon-ledger/internal/domain/materials"
	"github.com/Spok95/salon-ledger/internal/infra/db"
	httpx "github.com/Spok95/salon-ledger/internal/infra/http"
	"github.com/Spok95/salon-ledger/internal/infra/logger"
	"github.com/Spok95/salon-ledger/internal/infra/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	// остатки уходят в JSON числами, а не строками
	decimal.MarshalJSONWithoutQuotes = true

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		log.Warn("unknown timezone, falling back to UTC", "tz", cfg.App.Timezone, "err", err)
		loc = time.UTC
	}

	if err := db.Migrate(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	materialsRepo := materials.NewRepo(pool)
	clientsRepo := clients.NewRepo(pool)

	watchers := inventory.Watchers{metrics.LowStockWatcher{}}

	if cfg.Telegram.Enabled {
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Error("telegram init failed", "err", err)
			return
		}
		api.Debug = cfg.App.Env == "dev"
		log.Info("telegram authorized", "username", api.Self.UserName)

		b := bot.New(api, log, materialsRepo, cfg.Telegram.AdminChatID)
		watchers = append(watchers, b)
		go func() {
			if err := b.Run(ctx, cfg.Telegram.Timeout); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("bot stopped", "err", err)
			}
		}()
	}

	ledger := inventory.NewLedger(pool, log, watchers)
	api := httpx.NewAPI(log, ledger, materialsRepo, clientsRepo, loc)

	srv := httpx.New(cfg.HTTP.Addr, api, cfg.Metrics.Enabled)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			stop()
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
