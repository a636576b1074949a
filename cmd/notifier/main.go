package main

import (
	"context"
	"github.com/ariefcatur/go-order-status.git/internal/config"
	kafkax "github.com/ariefcatur/go-order-status.git/internal/kafka"
	"github.com/ariefcatur/go-order-status.git/internal/logging"
	"github.com/ariefcatur/go-order-status.git/internal/mail"
	"github.com/ariefcatur/go-order-status.git/internal/notify"
	"github.com/ariefcatur/go-order-status.git/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("config")
	}
	name := cfg.ServiceName + "-notifier"
	log := logging.New(name, cfg.LogLevel, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Mailer: &mail.SMTPSender{
			Addr:     cfg.SMTP.Addr,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		},
		Dedup:       &redisx.Cache{Client: rdb},
		Log:         log,
		ServiceName: name,
	}

	cons := kafkax.NewConsumer(
		kafkax.NewReader(cfg.KafkaBrokers, cfg.NotifierGroup, cfg.NotifyTopic),
		cfg.NotifierWorkers,
		log,
	)
	cons.Retry.MaxAttempts = cfg.NotifierAttempts

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info().
			Str("group", cfg.NotifierGroup).
			Str("topic", cfg.NotifyTopic).
			Int("workers", cfg.NotifierWorkers).
			Msg("notifier consumer started")
		if err := cons.Start(ctx, svc.HandleShipped); err != nil {
			log.Error().Err(err).Msg("consumer exit")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down consumer")
	cancel()
	<-done
}
