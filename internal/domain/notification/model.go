package notification

import (
	"context"
	"time"
)

// Email is one outbound message
type Email struct {
	From     string   `json:"from"`
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	HTMLBody string   `json:"html_body,omitempty"`
	TextBody string   `json:"text_body,omitempty"`
}

// Body returns the HTML body when set, the text body otherwise
func (e Email) Body() string {
	if e.HTMLBody != "" {
		return e.HTMLBody
	}
	return e.TextBody
}

// Receipt describes an accepted send
type Receipt struct {
	MessageID string `json:"message_id"`
	// Recipients are the addresses the message went to, after validation and suppression
	Recipients []string `json:"recipients"`
}

// SentRecord marks one successful send inside the guard's rolling window
type SentRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Fingerprint string    `json:"fingerprint"`
}

// Quota is the account-wide rolling send allowance
type Quota struct {
	Max24HourSend   float64 `json:"max_24_hour_send"`
	SentLast24Hours float64 `json:"sent_last_24_hours"`
}

// UsageRatio returns SentLast24Hours / Max24HourSend, or 0 when there is no cap
func (q Quota) UsageRatio() float64 {
	if q.Max24HourSend <= 0 {
		return 0
	}
	return q.SentLast24Hours / q.Max24HourSend
}

// Transmitter hands a message to the mail API and returns its message id
type Transmitter interface {
	Send(ctx context.Context, email Email) (string, error)
}

// SuppressionChecker reports whether an address is on the bounce/complaint list
type SuppressionChecker interface {
	IsSuppressed(ctx context.Context, address string) (bool, error)
}

// QuotaChecker reads the current sending quota
type QuotaChecker interface {
	GetQuota(ctx context.Context) (*Quota, error)
}
