package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-order-settlement.git/internal/config"
	"github.com/ariefcatur/go-order-settlement.git/internal/httpx"
	"github.com/ariefcatur/go-order-settlement.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-settlement.git/internal/kafka"
	"github.com/ariefcatur/go-order-settlement.git/internal/logx"
	"github.com/ariefcatur/go-order-settlement.git/internal/notify"
	"github.com/ariefcatur/go-order-settlement.git/internal/orders"
	"github.com/ariefcatur/go-order-settlement.git/internal/payment"
	"github.com/ariefcatur/go-order-settlement.git/internal/postgres"
	"github.com/ariefcatur/go-order-settlement.git/internal/redisx"
	"github.com/ariefcatur/go-order-settlement.git/internal/reports"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer func() { _ = rdb.Close() }()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, notify.Topic, 1024, log)
	prod.Start(ctx)
	notifier := notify.New(prod, cfg.ServiceName)

	orderStore := &orders.PGStore{DB: db}
	ledger := &inventory.PGLedger{DB: db, TTL: cfg.ReservationTTL}

	paymentStore := &payment.PGStore{DB: db}
	gateways := map[payment.Method]payment.Gateway{
		payment.MethodCard: payment.NewStripeGateway(cfg.StripeKey, cfg.GatewayTimeout, log),
		payment.MethodCOD:  payment.CODGateway{},
	}
	rec := &payment.Reconciler{
		Payments: paymentStore,
		Orders:   orderStore,
		Ledger:   ledger,
		Notifier: notifier,
		RDB:      rdb,
		Log:      log,
	}
	paySvc := payment.NewService(paymentStore, orderStore, ledger, gateways, rec, notifier, cfg.PaymentRetryLimit, log)
	orderSvc := orders.NewService(orderStore, ledger, paySvc, notifier, log)

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Svc: orderSvc, Redis: rdb}).Register(router)
	(&httpx.PaymentsHandler{Svc: paySvc}).Register(router)
	(&httpx.ReportsHandler{Agg: &reports.Aggregator{Store: &reports.PGStore{DB: db}}}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()
	cancel()
	prod.WaitClosed()
}
