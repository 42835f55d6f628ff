package templates

import (
	"fmt"
	"strings"
	"time"

	"github.com/linesmerrill/disaster-intake-api/models"
)

// EscalationSubject is the subject line of an escalation email
func EscalationSubject(r *models.EmergencyReport) string {
	return fmt.Sprintf("Unacknowledged %s emergency %s (priority %.0f)", r.Category, r.ReportID, r.PriorityScore)
}

// EscalationText is the plain text body of an escalation email
func EscalationText(r *models.EmergencyReport, baseURL string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report %s has been pending for %s without acknowledgment.\n\n", r.ReportID, now.Sub(r.CreatedAt).Round(time.Minute))
	fmt.Fprintf(&b, "Category: %s\n", r.Category)
	fmt.Fprintf(&b, "Severity: %d\n", r.Severity)
	fmt.Fprintf(&b, "Priority score: %.0f\n", r.PriorityScore)
	fmt.Fprintf(&b, "Channel: %s\n", r.Channel)
	if r.District != "" || r.State != "" {
		fmt.Fprintf(&b, "Location: %s, %s\n", r.District, r.State)
	}
	if r.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", r.Address)
	}
	fmt.Fprintf(&b, "Reported at: %s\n", r.CreatedAt.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "\nDescription:\n%s\n", r.Description)
	if baseURL != "" {
		fmt.Fprintf(&b, "\n%s/api/v1/emergency/reports/%s\n", strings.TrimRight(baseURL, "/"), r.ReportID)
	}
	return b.String()
}

// RenderEscalationEmail returns the HTML body of an escalation email
func RenderEscalationEmail(r *models.EmergencyReport, baseURL string, now time.Time) string {
	return RenderGenericEmail(EscalationSubject(r), EscalationText(r, baseURL, now))
}
