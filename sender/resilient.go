package sender

import (
	"context"
	"time"

	"fulfillment-service/catalog"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	sendAttempts = 3
	retryBackoff = 2 * time.Second
)

// ResilientSender decorates an EmailSender with a circuit breaker and a
// small bounded retry. A tripped breaker fails fast instead of holding
// webhook requests open against a dead SMTP relay. Permanent failures
// (see PermanentError) are returned on the first attempt and do not count
// against the breaker: a bad catalog entry says nothing about relay health.
type ResilientSender struct {
	inner   EmailSender
	breaker *gobreaker.CircuitBreaker[SendResult]
	backoff time.Duration
	logger  *zap.Logger
}

func NewResilientSender(inner EmailSender, logger *zap.Logger) *ResilientSender {
	settings := gobreaker.Settings{
		Name:    "smtp",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
	}
	return &ResilientSender{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[SendResult](settings),
		backoff: retryBackoff,
		logger:  logger,
	}
}

func (s *ResilientSender) SendEmail(ctx context.Context, to, subject, body string, attachments []catalog.Attachment) (SendResult, error) {
	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		res, err := s.breaker.Execute(func() (SendResult, error) {
			return s.inner.SendEmail(ctx, to, subject, body, attachments)
		})
		if err == nil {
			return res, nil
		}
		lastErr = err

		if IsPermanent(err) {
			// Retrying a deterministic failure just delays the webhook.
			return SendResult{}, err
		}
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			// Retrying against an open breaker is pointless.
			return SendResult{}, err
		}
		if attempt == sendAttempts {
			break
		}
		s.logger.Warn("Email send failed, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return SendResult{}, ctx.Err()
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
	return SendResult{}, lastErr
}
