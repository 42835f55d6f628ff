package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/linesmerrill/disaster-intake-api/models"
	templates "github.com/linesmerrill/disaster-intake-api/templates/html"
)

const (
	fromName    = "Disaster Intake Desk"
	fromAddress = "no-reply@disaster-intake.org"
)

// MailClient is the part of the sendgrid client used here
type MailClient interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// EmailNotifier emails the duty desk about reports that need attention
type EmailNotifier struct {
	client  MailClient
	to      string
	baseURL string
	now     func() time.Time
}

// NewEmailNotifier returns a notifier sending through sendgrid. With no api
// key or recipient it only logs.
func NewEmailNotifier(apiKey, to, baseURL string) *EmailNotifier {
	var client MailClient
	if apiKey != "" {
		client = sendgrid.NewSendClient(apiKey)
	}
	return NewEmailNotifierWithClient(client, to, baseURL)
}

// NewEmailNotifierWithClient returns a notifier sending through client
func NewEmailNotifierWithClient(client MailClient, to, baseURL string) *EmailNotifier {
	return &EmailNotifier{client: client, to: to, baseURL: baseURL, now: time.Now}
}

// Escalate sends the escalation email for r
func (e *EmailNotifier) Escalate(_ context.Context, r *models.EmergencyReport) error {
	if e.client == nil || e.to == "" {
		zap.S().Warnw("escalation email not sent, email is not configured", "report_id", r.ReportID)
		return nil
	}

	now := e.now()
	subject := templates.EscalationSubject(r)
	from := mail.NewEmail(fromName, fromAddress)
	to := mail.NewEmail("Duty Desk", e.to)
	message := mail.NewSingleEmail(from, subject, to,
		templates.EscalationText(r, e.baseURL, now),
		templates.RenderEscalationEmail(r, e.baseURL, now),
	)

	response, err := e.client.Send(message)
	if err != nil {
		zap.S().Errorw("failed to send escalation email", "error", err, "report_id", r.ReportID)
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "report_id", r.ReportID)
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}
	zap.S().Infow("escalation email sent", "report_id", r.ReportID, "subject", subject)
	return nil
}
