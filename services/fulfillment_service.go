package services

import (
	"context"
	"errors"
	"time"

	"fulfillment-service/catalog"
	"fulfillment-service/models"
	"fulfillment-service/repository"
	"fulfillment-service/sender"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Fixed email content, intentionally not templated.
const (
	emailSubject = "Your Digital Products"
	emailBody    = "Thanks for your purchase! Your files are attached."
)

const lineItemFetchTimeout = 20 * time.Second

// LineItemLister is the narrow slice of the Stripe client the fulfillment
// flow needs.
type LineItemLister interface {
	ListLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error)
}

type FulfillmentService struct {
	lister    LineItemLister
	catalogs  *catalog.Store
	sender    sender.EmailSender
	repo      repository.FulfillmentRepository
	publisher EventPublisher // nil when SNS is unconfigured
	logger    *zap.Logger
}

func NewFulfillmentService(
	lister LineItemLister,
	catalogs *catalog.Store,
	emailSender sender.EmailSender,
	repo repository.FulfillmentRepository,
	publisher EventPublisher,
	logger *zap.Logger,
) *FulfillmentService {
	return &FulfillmentService{
		lister:    lister,
		catalogs:  catalogs,
		sender:    emailSender,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// FulfillCheckout delivers the purchased files for a completed checkout
// session. Errors are returned for the caller to log but must never change
// the webhook response: Stripe retries on non-2xx only, and a retry storm
// helps nobody.
func (s *FulfillmentService) FulfillCheckout(ctx context.Context, sess *stripe.CheckoutSession) error {
	email := purchaserEmail(sess)
	if email == "" {
		s.logger.Warn("Checkout session has no customer email, skipping fulfillment",
			zap.String("session_id", sess.ID),
		)
		return nil
	}

	if prior, err := s.repo.GetBySessionID(ctx, sess.ID); err == nil {
		if prior.Delivered() {
			s.logger.Info("Session already fulfilled, skipping duplicate delivery",
				zap.String("session_id", sess.ID),
				zap.String("status", prior.Status),
			)
			return nil
		}
		// A prior failed attempt does not block redelivery; the upsert in
		// record overwrites its row.
		s.logger.Info("Retrying previously failed fulfillment",
			zap.String("session_id", sess.ID),
		)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("Fulfillment ledger lookup failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		// Prefer a possible duplicate email over silently dropping the
		// order when the ledger is unreachable.
	}

	fetchCtx, cancel := context.WithTimeout(ctx, lineItemFetchTimeout)
	defer cancel()
	items, err := s.lister.ListLineItems(fetchCtx, sess.ID)
	if err != nil {
		s.logger.Error("Failed to fetch line items",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		s.record(ctx, sess.ID, email, models.StatusFailed, 0, nil, err)
		return err
	}

	attachments := s.catalogs.Current().ResolveAttachments(items, s.logger)
	if len(attachments) == 0 {
		s.logger.Warn("No catalog matches for session, no email sent",
			zap.String("session_id", sess.ID),
			zap.Int("line_items", len(items)),
		)
		s.record(ctx, sess.ID, email, models.StatusSkippedEmpty, 0, nil, nil)
		return nil
	}

	res, err := s.sender.SendEmail(ctx, email, emailSubject, emailBody, attachments)
	if err != nil {
		s.logger.Error("Failed to send fulfillment email",
			zap.String("session_id", sess.ID),
			zap.String("to", email),
			zap.Error(err),
		)
		s.record(ctx, sess.ID, email, models.StatusFailed, len(attachments), nil, err)
		return err
	}

	s.logger.Info("Fulfillment email sent",
		zap.String("session_id", sess.ID),
		zap.String("to", email),
		zap.Int("attachments", len(attachments)),
		zap.String("message_id", res.MessageID),
	)
	s.record(ctx, sess.ID, email, models.StatusDelivered, len(attachments), &res.MessageID, nil)
	return nil
}

// purchaserEmail prefers the post-payment customer details over the
// pre-checkout email field.
func purchaserEmail(sess *stripe.CheckoutSession) string {
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		return sess.CustomerDetails.Email
	}
	return sess.CustomerEmail
}

// record writes the ledger row and publishes the matching event. Both are
// best-effort; failures here must not bubble into the webhook response.
func (s *FulfillmentService) record(ctx context.Context, sessionID, email, status string, attachmentCount int, messageID *string, cause error) {
	f := &models.Fulfillment{
		ID:              uuid.New(),
		SessionID:       sessionID,
		CustomerEmail:   email,
		Status:          status,
		AttachmentCount: attachmentCount,
		MessageID:       messageID,
	}
	if cause != nil {
		msg := cause.Error()
		f.Error = &msg
	}
	if err := s.repo.Upsert(ctx, f); err != nil {
		s.logger.Error("Failed to record fulfillment",
			zap.String("session_id", sessionID),
			zap.String("status", status),
			zap.Error(err),
		)
	}

	if s.publisher == nil {
		return
	}
	event := models.FulfillmentEvent{
		Type:            eventTypeFor(status),
		SessionID:       sessionID,
		CustomerEmail:   email,
		AttachmentCount: attachmentCount,
		Timestamp:       time.Now().UTC(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish fulfillment event",
			zap.String("session_id", sessionID),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
	}
}

func eventTypeFor(status string) string {
	switch status {
	case models.StatusDelivered:
		return "fulfillment_delivered"
	case models.StatusSkippedEmpty:
		return "fulfillment_skipped"
	default:
		return "fulfillment_failed"
	}
}
