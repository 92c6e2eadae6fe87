package sender

import (
	"context"
	"errors"
	"time"

	"fulfillment-service/catalog"
)

type SendResult struct {
	MessageID string
	SentAt    time.Time
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string, attachments []catalog.Attachment) (SendResult, error)
}

// PermanentError marks a send failure that no retry can cure, such as a
// catalog entry pointing at a file that does not exist. Retry and breaker
// logic must not treat these as transport health signals.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
