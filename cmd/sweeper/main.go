package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-order-settlement.git/internal/config"
	"github.com/ariefcatur/go-order-settlement.git/internal/inventory"
	"github.com/ariefcatur/go-order-settlement.git/internal/logx"
	"github.com/ariefcatur/go-order-settlement.git/internal/postgres"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Sweeper melepas reservation yang expired: order PLACED yang tidak
// kunjung dibayar tidak boleh nyandera stok selamanya.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New("reservation-sweeper")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	sw := &inventory.Sweeper{
		Ledger:   &inventory.PGLedger{DB: db, TTL: cfg.ReservationTTL},
		Interval: cfg.SweepInterval,
		Log:      log,
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		cancel()
	}()

	sw.Run(ctx)
}
