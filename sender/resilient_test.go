package sender

import (
	"context"
	"errors"
	"testing"
	"time"

	"fulfillment-service/catalog"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockInnerSender struct{ mock.Mock }

func (m *MockInnerSender) SendEmail(ctx context.Context, to, subject, body string, attachments []catalog.Attachment) (SendResult, error) {
	args := m.Called(ctx, to, subject, body, attachments)
	return args.Get(0).(SendResult), args.Error(1)
}

func newFastResilientSender(inner EmailSender) *ResilientSender {
	rs := NewResilientSender(inner, zap.NewNop())
	rs.backoff = time.Millisecond
	return rs
}

func TestResilientSender(t *testing.T) {
	t.Run("Passes Through Success", func(t *testing.T) {
		inner := new(MockInnerSender)
		inner.On("SendEmail", mock.Anything, "a@b.c", "s", "b", mock.Anything).
			Return(SendResult{MessageID: "smtp-1"}, nil).Once()

		rs := newFastResilientSender(inner)
		res, err := rs.SendEmail(context.Background(), "a@b.c", "s", "b", nil)
		assert.NoError(t, err)
		assert.Equal(t, "smtp-1", res.MessageID)
		inner.AssertExpectations(t)
	})

	t.Run("Transient Failure Then Success", func(t *testing.T) {
		inner := new(MockInnerSender)
		inner.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(SendResult{}, errors.New("smtp send failed: connection reset")).Once()
		inner.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(SendResult{MessageID: "smtp-2"}, nil).Once()

		rs := newFastResilientSender(inner)
		res, err := rs.SendEmail(context.Background(), "a@b.c", "s", "b", nil)
		assert.NoError(t, err)
		assert.Equal(t, "smtp-2", res.MessageID)
		inner.AssertNumberOfCalls(t, "SendEmail", 2)
	})

	t.Run("Exhausts Attempts On Persistent Transient Failure", func(t *testing.T) {
		inner := new(MockInnerSender)
		sendErr := errors.New("smtp send failed: connection refused")
		inner.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(SendResult{}, sendErr)

		rs := newFastResilientSender(inner)
		_, err := rs.SendEmail(context.Background(), "a@b.c", "s", "b", nil)
		assert.ErrorIs(t, err, sendErr)
		inner.AssertNumberOfCalls(t, "SendEmail", sendAttempts)
	})

	t.Run("Permanent Failure Is Not Retried", func(t *testing.T) {
		inner := new(MockInnerSender)
		resolveErr := Permanent(errors.New("resolve attachment Ebook.pdf: file does not exist"))
		inner.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(SendResult{}, resolveErr)

		rs := newFastResilientSender(inner)
		_, err := rs.SendEmail(context.Background(), "a@b.c", "s", "b", nil)
		assert.True(t, IsPermanent(err))
		inner.AssertNumberOfCalls(t, "SendEmail", 1)
	})

	t.Run("Permanent Failures Do Not Trip The Breaker", func(t *testing.T) {
		inner := new(MockInnerSender)
		resolveErr := Permanent(errors.New("resolve attachment Ebook.pdf: file does not exist"))
		// Enough bad-catalog orders to trip the breaker, were they counted.
		inner.On("SendEmail", mock.Anything, "bad@example.com", mock.Anything, mock.Anything, mock.Anything).
			Return(SendResult{}, resolveErr).Times(6)
		inner.On("SendEmail", mock.Anything, "good@example.com", mock.Anything, mock.Anything, mock.Anything).
			Return(SendResult{MessageID: "smtp-3"}, nil).Once()

		rs := newFastResilientSender(inner)
		for i := 0; i < 6; i++ {
			_, err := rs.SendEmail(context.Background(), "bad@example.com", "s", "b", nil)
			assert.True(t, IsPermanent(err))
		}

		res, err := rs.SendEmail(context.Background(), "good@example.com", "s", "b", nil)
		assert.NoError(t, err)
		assert.Equal(t, "smtp-3", res.MessageID)
		inner.AssertExpectations(t)
	})

	t.Run("Open Breaker Fails Fast", func(t *testing.T) {
		inner := new(MockInnerSender)
		inner.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(SendResult{}, errors.New("smtp send failed: connection refused"))

		rs := newFastResilientSender(inner)
		// First call burns 3 attempts, second reaches 5 consecutive
		// failures and trips the breaker mid-call.
		_, err := rs.SendEmail(context.Background(), "a@b.c", "s", "b", nil)
		assert.Error(t, err)
		_, err = rs.SendEmail(context.Background(), "a@b.c", "s", "b", nil)
		assert.Equal(t, gobreaker.ErrOpenState, err)
		inner.AssertNumberOfCalls(t, "SendEmail", 5)

		// While open, the relay is never dialed.
		_, err = rs.SendEmail(context.Background(), "a@b.c", "s", "b", nil)
		assert.Equal(t, gobreaker.ErrOpenState, err)
		inner.AssertNumberOfCalls(t, "SendEmail", 5)
	})

	t.Run("Stops Retrying On Context Cancel", func(t *testing.T) {
		inner := new(MockInnerSender)
		inner.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(SendResult{}, errors.New("smtp send failed"))

		rs := NewResilientSender(inner, zap.NewNop())
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		_, err := rs.SendEmail(ctx, "a@b.c", "s", "b", nil)
		assert.ErrorIs(t, err, context.Canceled)
		inner.AssertNumberOfCalls(t, "SendEmail", 1)
	})
}
