package channels

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/linesmerrill/disaster-intake-api/catalog"
	"github.com/linesmerrill/disaster-intake-api/location"
	"github.com/linesmerrill/disaster-intake-api/models"
	"github.com/linesmerrill/disaster-intake-api/sessions"
)

const (
	smsKeyword = "EMERGENCY"
	// DefaultSMSDescription is used when a message carries no description
	DefaultSMSDescription = "Emergency reported via SMS"
)

// ParseSMS reads "EMERGENCY <category> <severity> <description...>".
// Unknown categories become other and an unreadable severity becomes 1.
func ParseSMS(from, body string) (*models.ReportDraft, error) {
	tokens := strings.Fields(body)
	if len(tokens) == 0 || !strings.EqualFold(tokens[0], smsKeyword) {
		return nil, &FormatError{Reason: "missing EMERGENCY keyword"}
	}
	if len(tokens) < 3 {
		return nil, &FormatError{Reason: "expected category and severity"}
	}

	severity, err := strconv.Atoi(tokens[2])
	if err != nil || !models.ValidSeverity(severity) {
		severity = models.MinSeverity
	}
	description := DefaultSMSDescription
	if len(tokens) > 3 {
		description = strings.Join(tokens[3:], " ")
	}

	return &models.ReportDraft{
		Channel:     models.ChannelSMS,
		PhoneNumber: from,
		Category:    models.NormalizeCategory(tokens[1]),
		Severity:    severity,
		Description: description,
		RawData: map[string]interface{}{
			"from": from,
			"body": body,
		},
	}, nil
}

// SMSMessage is one inbound text
type SMSMessage struct {
	From     string
	Body     string
	Language string
}

// SMS handles single-shot text reports
type SMS struct {
	reports Reports
	catalog *catalog.Catalog
}

// NewSMS returns an SMS driver
func NewSMS(reports Reports, c *catalog.Catalog) *SMS {
	return &SMS{reports: reports, catalog: c}
}

// Handle parses msg and stores the report. The outcome message is the reply
// owed to the sender.
func (s *SMS) Handle(ctx context.Context, msg SMSMessage) Outcome {
	lang := resolveLanguage(s.catalog, msg.Language, msg.From)

	draft, err := ParseSMS(msg.From, msg.Body)
	if err != nil {
		zap.S().Infow("rejected sms", "phone", location.MaskPhone(msg.From), "error", err)
		return Outcome{
			Status:   StatusError,
			Kind:     KindFormat,
			Language: lang,
			Message:  s.catalog.Message(lang, catalog.MsgInvalidFormat) + "\n" + s.catalog.Message(lang, catalog.MsgSMSUsage),
		}
	}
	draft.Language = lang

	report, err := s.reports.Create(ctx, draft)
	if err != nil {
		zap.S().Errorw("failed to create sms report", "phone", location.MaskPhone(msg.From), "error", err)
		return dependencyFailure(s.catalog, lang, 0)
	}
	return Outcome{
		Status:   StatusSuccess,
		Language: lang,
		Message:  s.catalog.ConfirmationText(lang, report),
		ReportID: report.ReportID,
		Report:   report,
	}
}

// resolveLanguage prefers an explicit language, then a guess from the phone
// number, and always returns a supported code
func resolveLanguage(c *catalog.Catalog, explicit, phone string) string {
	if strings.TrimSpace(explicit) != "" {
		return c.Match(explicit)
	}
	return c.Match(c.DetectLanguage(phone))
}

func dependencyFailure(c *catalog.Catalog, lang string, state sessions.State) Outcome {
	return Outcome{
		Status:   StatusError,
		Kind:     KindDependency,
		Language: lang,
		State:    state,
		Message:  c.Message(lang, catalog.MsgTryAgainLater),
	}
}
