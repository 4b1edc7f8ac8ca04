package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"eventhub/internal/domain"
)

// Consumer feeds queued message bodies to a handler until ctx ends.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, []byte) error) error
}

// EmailWorker drains the email queue and hands each message to a Mailer.
type EmailWorker struct {
	consumer Consumer
	mailer   domain.Mailer
	logger   *slog.Logger
	done     chan struct{}
	cancel   context.CancelFunc
}

func NewEmailWorker(consumer Consumer, mailer domain.Mailer, logger *slog.Logger) *EmailWorker {
	return &EmailWorker{
		consumer: consumer,
		mailer:   mailer,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (w *EmailWorker) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.logger.Info("email worker started")
	go func() {
		defer close(w.done)
		if err := w.consumer.Consume(cctx, w.handle); err != nil {
			w.logger.Error("email worker stopped", "err", err)
			return
		}
		w.logger.Info("email worker stopped")
	}()
}

// Stop cancels consumption and waits for the in-flight message to finish.
func (w *EmailWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
}

func (w *EmailWorker) handle(ctx context.Context, body []byte) error {
	var msg domain.EmailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// A malformed body will never succeed; ack it so it leaves the queue.
		w.logger.ErrorContext(ctx, "discarding malformed email message", "err", err)
		return nil
	}
	if msg.To == "" {
		w.logger.ErrorContext(ctx, "discarding email message without recipient", "subject", msg.Subject)
		return nil
	}
	if err := w.mailer.Send(ctx, msg.To, msg.Subject, msg.HTML, msg.Text); err != nil {
		return fmt.Errorf("deliver email to %s: %w", msg.To, err)
	}
	w.logger.InfoContext(ctx, "queued email delivered", "to", msg.To)
	return nil
}
