package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"golang.org/x/time/rate"

	"github.com/pratik-mahalle/costmonitor/internal/domain/notification"
)

const charsetUTF8 = "UTF-8"

// SESAPI is the subset of the SES v2 client used here
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	GetAccount(ctx context.Context, params *sesv2.GetAccountInput, optFns ...func(*sesv2.Options)) (*sesv2.GetAccountOutput, error)
	GetSuppressedDestination(ctx context.Context, params *sesv2.GetSuppressedDestinationInput, optFns ...func(*sesv2.Options)) (*sesv2.GetSuppressedDestinationOutput, error)
}

// SESMailer implements notification.Transmitter, SuppressionChecker and QuotaChecker.
// Calls are paced by a token bucket to stay under the account's API rate.
type SESMailer struct {
	client  SESAPI
	limiter *rate.Limiter
}

// NewSESMailer creates a mailer allowing requestsPerSecond SES calls
func NewSESMailer(client SESAPI, requestsPerSecond float64) *SESMailer {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &SESMailer{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// Send transmits email as HTML when it has an HTML body, plain text otherwise
func (m *SESMailer) Send(ctx context.Context, email notification.Email) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body := &sestypes.Body{}
	if email.HTMLBody != "" {
		body.Html = &sestypes.Content{Data: aws.String(email.HTMLBody), Charset: aws.String(charsetUTF8)}
	} else {
		body.Text = &sestypes.Content{Data: aws.String(email.TextBody), Charset: aws.String(charsetUTF8)}
	}

	out, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(email.From),
		Destination:      &sestypes.Destination{ToAddresses: email.To},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(email.Subject), Charset: aws.String(charsetUTF8)},
				Body:    body,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send email: %w", err)
	}

	return aws.ToString(out.MessageId), nil
}

// IsSuppressed reports whether address is on the account suppression list.
// NotFoundException means it is not.
func (m *SESMailer) IsSuppressed(ctx context.Context, address string) (bool, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return false, err
	}

	out, err := m.client.GetSuppressedDestination(ctx, &sesv2.GetSuppressedDestinationInput{
		EmailAddress: aws.String(address),
	})
	if err != nil {
		var notFound *sestypes.NotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("ses get suppressed destination: %w", err)
	}

	return out.SuppressedDestination != nil, nil
}

// GetQuota reads the rolling 24 hour sending quota
func (m *SESMailer) GetQuota(ctx context.Context) (*notification.Quota, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := m.client.GetAccount(ctx, &sesv2.GetAccountInput{})
	if err != nil {
		return nil, fmt.Errorf("ses get account: %w", err)
	}
	if out.SendQuota == nil {
		return nil, fmt.Errorf("ses get account: no send quota returned")
	}

	return &notification.Quota{
		Max24HourSend:   out.SendQuota.Max24HourSend,
		SentLast24Hours: out.SendQuota.SentLast24Hours,
	}, nil
}
