package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/segmentio/kafka-go"

	"github.com/tierbet/backoffice/internal/domain"
	"github.com/tierbet/backoffice/internal/infra"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox consumer failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("outbox-consumer connected to postgres")

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()

	poller := infra.NewOutboxPoller(pool, producer, logger)
	poller.Start(ctx)

	// Tail the balance topic so operators see every published change.
	balanceTopic := infra.Topic(string(domain.AggregateWallet), string(domain.EventBalanceChanged))
	consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, balanceTopic, "backoffice-balance-log", cfg.KafkaEnabled, logger)
	defer consumer.Close()
	go consumer.Consume(ctx, func(msg kafka.Message) {
		logger.Info("balance event", "key", string(msg.Key), "payload", string(msg.Value))
	})

	<-ctx.Done()
	logger.Info("outbox-consumer shutting down")
	return nil
}
