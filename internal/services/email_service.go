package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/BradenHooton/voice-membership/internal/metrics"
	pkglogger "github.com/BradenHooton/voice-membership/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Mailer sends the transactional emails. Callers log and swallow failures;
// an email never blocks the flow that triggered it.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string, expiresAt time.Time) error
	SendUpgradeConfirmation(ctx context.Context, to string, u UpgradeReceipt) error
}

// UpgradeReceipt is the content of the upgrade confirmation email.
type UpgradeReceipt struct {
	Name           string
	MembershipName string
	Price          string
	ExpiryDate     time.Time
}

const (
	emailKindPasswordReset = "password_reset"
	emailKindUpgrade       = "upgrade_confirmation"
)

// SESMailer sends emails using AWS SES
type SESMailer struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

func NewSESMailer(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESMailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESMailer{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

func (m *SESMailer) SendPasswordReset(ctx context.Context, to, link string, expiresAt time.Time) error {
	textBody, htmlBody := passwordResetBody(link, expiresAt)
	return m.send(ctx, emailKindPasswordReset, to, "Reset your VOICE password", textBody, htmlBody)
}

func (m *SESMailer) SendUpgradeConfirmation(ctx context.Context, to string, u UpgradeReceipt) error {
	textBody, htmlBody := upgradeBody(u)
	return m.send(ctx, emailKindUpgrade, to, "Your VOICE membership upgrade", textBody, htmlBody)
}

func (m *SESMailer) send(ctx context.Context, kind, to, subject, textBody, htmlBody string) error {
	input := &ses.SendEmailInput{
		Source:      aws.String(m.fromAddress),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
			},
		},
	}

	result, err := m.sesClient.SendEmail(ctx, input)
	if err != nil {
		metrics.EmailsTotal.WithLabelValues(kind, "failed").Inc()
		return fmt.Errorf("failed to send %s email: %w", kind, err)
	}

	metrics.EmailsTotal.WithLabelValues(kind, "sent").Inc()
	m.logger.Info("email sent",
		slog.String("kind", kind),
		slog.String("email", pkglogger.SanitizedEmail(to)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// LogMailer stands in for SES when email is disabled. Links are logged so
// reset flows can be exercised locally.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendPasswordReset(ctx context.Context, to, link string, expiresAt time.Time) error {
	metrics.EmailsTotal.WithLabelValues(emailKindPasswordReset, "logged").Inc()
	m.Logger.InfoContext(ctx, "password reset email (not sent)",
		slog.String("email", pkglogger.SanitizedEmail(to)),
		slog.String("link", link),
		slog.Time("expires_at", expiresAt))
	return nil
}

func (m LogMailer) SendUpgradeConfirmation(ctx context.Context, to string, u UpgradeReceipt) error {
	metrics.EmailsTotal.WithLabelValues(emailKindUpgrade, "logged").Inc()
	m.Logger.InfoContext(ctx, "upgrade confirmation email (not sent)",
		slog.String("email", pkglogger.SanitizedEmail(to)),
		slog.String("membership", u.MembershipName))
	return nil
}

func passwordResetBody(link string, expiresAt time.Time) (string, string) {
	expiry := expiresAt.UTC().Format("January 2, 2006 15:04 MST")

	textBody := fmt.Sprintf(`Reset your password

We received a request to reset the password for your VOICE account.
Open the link below to choose a new password:

%s

The link expires on %s and can be used once.
If you did not ask for a reset, you can ignore this email.
`, link, expiry)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #333;">
<h2>Reset your password</h2>
<p>We received a request to reset the password for your VOICE account.</p>
<p><a href="%s">Choose a new password</a></p>
<p>The link expires on %s and can be used once.</p>
<p style="color: #666; font-size: 12px;">If you did not ask for a reset, you can ignore this email.</p>
</body></html>`, html.EscapeString(link), expiry)

	return textBody, htmlBody
}

func upgradeBody(u UpgradeReceipt) (string, string) {
	expiry := u.ExpiryDate.Format("January 02, 2006")

	textBody := fmt.Sprintf(`Hi %s,

Thank you for upgrading to the %s membership (%s).
Your membership is active until %s.

VOICE for Deaf and Hard of Hearing Children
`, u.Name, u.MembershipName, u.Price, expiry)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #333;">
<p>Hi %s,</p>
<p>Thank you for upgrading to the <strong>%s</strong> membership (%s).</p>
<p>Your membership is active until <strong>%s</strong>.</p>
<p>VOICE for Deaf and Hard of Hearing Children</p>
</body></html>`, html.EscapeString(u.Name), html.EscapeString(u.MembershipName), u.Price, expiry)

	return textBody, htmlBody
}
