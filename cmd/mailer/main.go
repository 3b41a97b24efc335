// Command mailer consumes password-recovery events and delivers them over
// SMTP. It is the best-effort worker behind the reset-request endpoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/segmentio/kafka-go"

	"github.com/mkravch/buyrate/internal/config"
	"github.com/mkravch/buyrate/internal/logging"
	"github.com/mkravch/buyrate/internal/mail"
)

func main() {
	log := logging.New(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{cfg.KAFKA_ADDRESS},
		Topic:   cfg.EMAIL_TOPIC,
		GroupID: "mailer",
	})
	defer reader.Close()

	worker := &mail.Worker{
		Reader: reader,
		Sender: &mail.SMTPSender{
			Addr:     cfg.SMTP_ADDR,
			From:     cfg.SMTP_FROM,
			Username: cfg.SMTP_USER,
			Password: cfg.SMTP_PASSWORD,
		},
		BaseURL: cfg.BASE_URL,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.IntoContext(ctx, log)

	log.Info("mail worker starting", "topic", cfg.EMAIL_TOPIC)
	if err := worker.Run(ctx); err != nil {
		log.Error("mail worker stopped", "error", err)
		os.Exit(1)
	}
}
