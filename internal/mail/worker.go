package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/mkravch/buyrate/internal/logging"
	"github.com/mkravch/buyrate/internal/mykafka"
)

// MessageReader is the slice of kafka.Reader the worker needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Worker consumes reset-email events and delivers them best-effort: a failed
// send is logged and the message is not retried.
type Worker struct {
	Reader  MessageReader
	Sender  Sender
	BaseURL string
}

// Run loops until the context is cancelled, logging through the logger
// carried in ctx.
func (w *Worker) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	for {
		msg, err := w.Reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("mail worker: read failed: %w", err)
		}

		var event mykafka.ResetEmailEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("mail worker: bad message", "error", err)
			continue
		}
		if event.Type != mykafka.EventPasswordReset {
			continue
		}

		url := ResetURL(w.BaseURL, event.UID, event.Token)
		if err := w.Sender.Send(event.Email, "Password recovery", url); err != nil {
			log.Error("mail worker: send failed", "email", event.Email, "error", err)
			continue
		}
		log.Info("mail worker: recovery email sent", "email", event.Email)
	}
}

// ResetURL builds the confirmation link embedded in the recovery email.
func ResetURL(baseURL, uid, token string) string {
	return fmt.Sprintf("%sreset_password_confirm/%s/%s", ensureSlash(baseURL), uid, token)
}

func ensureSlash(s string) string {
	if s == "" || strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
