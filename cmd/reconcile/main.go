// Command reconcile сверяет остатки материалов с журналом движений.
//
//	reconcile [-config path] [-fix]
//
// Без -fix только печатает расхождения и завершается с кодом 1, если они есть.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Spok95/salon-ledger/internal/config"
	"github.com/Spok95/salon-ledger/internal/domain/inventory"
	"github.com/Spok95/salon-ledger/internal/infra/db"
	"github.com/Spok95/salon-ledger/internal/infra/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run возвращает код выхода: 0 журнал сходится или исправлен, 1 есть расхождения, 2 ошибка.
func run(args []string) int {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	path := fs.String("config", config.Path(), "path to config file")
	fix := fs.Bool("fix", false, "append compensating adjustments for drifted materials")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 2
	}
	log := logger.New(cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return 2
	}
	defer pool.Close()

	drifts, err := inventory.NewLedger(pool, log, nil).Reconcile(ctx, *fix)
	if err != nil {
		log.Error("reconcile failed", "err", err)
		return 2
	}
	for _, d := range drifts {
		log.Warn("stock drift",
			"material_id", d.MaterialID,
			"name", d.Name,
			"current_stock", d.CurrentStock.String(),
			"logged_stock", d.LoggedStock.String(),
			"delta", d.Delta().String(),
		)
	}
	switch {
	case len(drifts) == 0:
		log.Info("ledger is consistent")
	case *fix:
		log.Info("drift fixed", "materials", len(drifts))
	default:
		return 1
	}
	return 0
}
