package services

import (
	"context"
	"strings"
	"time"

	"github.com/pratik-mahalle/costmonitor/internal/domain/notification"
	apperrors "github.com/pratik-mahalle/costmonitor/internal/pkg/errors"
	"github.com/pratik-mahalle/costmonitor/internal/pkg/logger"
	"github.com/pratik-mahalle/costmonitor/internal/pkg/metrics"
)

// DefaultQuotaSafetyRatio leaves a 20% buffer below the account quota
const DefaultQuotaSafetyRatio = 0.8

// SafeSender gates every outbound email behind address validation, the suppression
// list, the account quota and the guard. It never retries; the transport owns retries.
type SafeSender struct {
	transmitter      notification.Transmitter
	suppression      notification.SuppressionChecker
	quota            notification.QuotaChecker
	guard            *EmailGuard
	quotaSafetyRatio float64
	now              func() time.Time
	logger           *logger.Logger
}

// NewSafeSender creates a new safe sender. suppression and quota may be nil to skip
// those checks.
func NewSafeSender(
	transmitter notification.Transmitter,
	suppression notification.SuppressionChecker,
	quota notification.QuotaChecker,
	guard *EmailGuard,
	quotaSafetyRatio float64,
	log *logger.Logger,
) *SafeSender {
	if quotaSafetyRatio <= 0 {
		quotaSafetyRatio = DefaultQuotaSafetyRatio
	}
	return &SafeSender{
		transmitter:      transmitter,
		suppression:      suppression,
		quota:            quota,
		guard:            guard,
		quotaSafetyRatio: quotaSafetyRatio,
		now:              time.Now,
		logger:           log,
	}
}

// WithClock replaces the clock used for guard windows
func (s *SafeSender) WithClock(now func() time.Time) *SafeSender {
	s.now = now
	return s
}

// SafeSend runs the checks in order and transmits on success. A rejection is an
// *errors.AppError of kind SEND_REJECTED; transport failures are TRANSPORT_ERROR.
func (s *SafeSender) SafeSend(ctx context.Context, email notification.Email) (*notification.Receipt, error) {
	valid := s.validRecipients(email.To)
	if len(valid) == 0 {
		return s.reject(apperrors.ErrNoValidRecipients)
	}

	active := s.filterSuppressed(ctx, valid)
	if len(active) == 0 {
		return s.reject(apperrors.ErrAllSuppressed)
	}

	if err := s.checkQuota(ctx); err != nil {
		return s.reject(err)
	}

	email.To = active
	return s.transmit(ctx, email)
}

// SendNotice sends an operational message, such as a run failure notice, through the
// guard only. Suppression and quota lookups are skipped because the AWS APIs behind
// them may be what failed. Notices still count toward the hourly cap, and an identical
// notice inside the dedup window is dropped.
func (s *SafeSender) SendNotice(ctx context.Context, email notification.Email) (*notification.Receipt, error) {
	email.To = s.validRecipients(email.To)
	if len(email.To) == 0 {
		return s.reject(apperrors.ErrNoValidRecipients)
	}
	return s.transmit(ctx, email)
}

// transmit reserves a guard slot, sends, and gives the slot back if the send fails
func (s *SafeSender) transmit(ctx context.Context, email notification.Email) (*notification.Receipt, error) {
	now := s.now()
	fingerprint := Fingerprint(email.Subject, email.Body(), email.To)
	if err := s.guard.Reserve(fingerprint, now); err != nil {
		return s.reject(err)
	}

	messageID, err := s.transmitter.Send(ctx, email)
	if err != nil {
		s.guard.Release(fingerprint, now)
		metrics.RecordEmail("failed")
		return nil, apperrors.SendFailed(err)
	}
	metrics.RecordEmail("sent")

	s.logger.WithFields(map[string]interface{}{
		"recipients": len(email.To),
		"message_id": messageID,
	}).Info("Email sent successfully")

	return &notification.Receipt{MessageID: messageID, Recipients: email.To}, nil
}

func (s *SafeSender) validRecipients(candidates []string) []string {
	valid := ValidateAddresses(candidates)
	if dropped := len(candidates) - len(valid); dropped > 0 {
		s.logger.WithFields(map[string]interface{}{
			"dropped": dropped,
			"kept":    len(valid),
		}).Warn("Invalid email addresses filtered out")
	}
	return valid
}

func (s *SafeSender) reject(err error) (*notification.Receipt, error) {
	metrics.RecordEmail(strings.ToLower(apperrors.CodeOf(err)))
	s.logger.WithFields(map[string]interface{}{
		"reason": apperrors.CodeOf(err),
	}).WarnWithErr(err, "Email send rejected")
	return nil, err
}

// filterSuppressed drops suppressed addresses. A failed lookup keeps the address.
func (s *SafeSender) filterSuppressed(ctx context.Context, addresses []string) []string {
	if s.suppression == nil {
		return addresses
	}

	active := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		suppressed, err := s.suppression.IsSuppressed(ctx, addr)
		if err != nil {
			s.logger.With("address", addr).WarnWithErr(err, "Failed to check suppression list")
		}
		if suppressed {
			s.logger.With("address", addr).Warn("Recipient is on suppression list")
			continue
		}
		active = append(active, addr)
	}
	return active
}

// checkQuota fails open: an unreadable quota is treated as safe.
func (s *SafeSender) checkQuota(ctx context.Context) error {
	if s.quota == nil {
		return nil
	}

	q, err := s.quota.GetQuota(ctx)
	if err != nil {
		s.logger.WarnWithErr(err, "Failed to check sending quota, assuming safe")
		return nil
	}

	if q.Max24HourSend > 0 && q.SentLast24Hours >= q.Max24HourSend*s.quotaSafetyRatio {
		return apperrors.ErrQuotaExceeded.WithDetails(map[string]interface{}{
			"sent_last_24_hours": q.SentLast24Hours,
			"max_24_hour_send":   q.Max24HourSend,
		})
	}
	return nil
}
