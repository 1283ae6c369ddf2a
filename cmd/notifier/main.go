package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-order-settlement.git/internal/config"
	kafkax "github.com/ariefcatur/go-order-settlement.git/internal/kafka"
	"github.com/ariefcatur/go-order-settlement.git/internal/logx"
	"github.com/ariefcatur/go-order-settlement.git/internal/notify"
	"github.com/ariefcatur/go-order-settlement.git/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Worker notifikasi: konsumsi event order lalu kirim ke channel user.
// Pengiriman email/push beneran di belakang sini; untuk sekarang cukup
// log terstruktur + dedup per event.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New("order-notifier")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer func() { _ = rdb.Close() }()

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, "order-notifier", notify.Topic, 4, log)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		cancel()
	}()

	if err := cons.Start(ctx, handler(rdb, log)); err != nil {
		log.Fatal("consumer", zap.Error(err))
	}
}

func handler(rdb *redis.Client, log *zap.Logger) kafkax.Handler {
	return func(ctx context.Context, m kafkago.Message) error {
		var ev notify.Envelope
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			// pesan rusak tidak akan sembuh dengan retry, commit saja
			log.Warn("skip malformed event", zap.Error(err))
			return nil
		}

		// at-least-once delivery; event yang sudah dikirim jangan dobel
		dedupKey := fmt.Sprintf("dedup:notify:%s", ev.EventID)
		ok, err := rdb.SetNX(ctx, dedupKey, "1", redisx.TTLGatewayDedup).Result()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		log.Info("notification dispatched",
			zap.String("kind", string(ev.Kind)),
			zap.String("order_id", ev.OrderID),
			zap.String("user_id", ev.UserID),
			zap.Time("occurred_at", ev.OccurredAt),
		)
		return nil
	}
}
