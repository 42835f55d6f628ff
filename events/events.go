// Package events publishes report lifecycle changes to responders
package events

import (
	"context"
	"errors"
	"time"

	"github.com/linesmerrill/disaster-intake-api/models"
)

// Type names a lifecycle change
type Type string

// Event types
const (
	ReportCreated       Type = "report.created"
	ReportAcknowledged  Type = "report.acknowledged"
	ReportStatusChanged Type = "report.status_changed"
	ReportEscalated     Type = "report.escalated"
)

// Event is the payload sent to every subscriber
type Event struct {
	Type          Type            `json:"type"`
	ReportID      string          `json:"report_id"`
	Status        models.Status   `json:"status"`
	PriorityScore float64         `json:"priority_score"`
	Channel       models.Channel  `json:"channel"`
	Category      models.Category `json:"category"`
	Severity      int             `json:"severity"`
	District      string          `json:"district,omitempty"`
	State         string          `json:"state,omitempty"`
	At            time.Time       `json:"at"`
}

// FromReport builds an event describing r
func FromReport(t Type, r *models.EmergencyReport, at time.Time) Event {
	return Event{
		Type:          t,
		ReportID:      r.ReportID,
		Status:        r.Status,
		PriorityScore: r.PriorityScore,
		Channel:       r.Channel,
		Category:      r.Category,
		Severity:      r.Severity,
		District:      r.District,
		State:         r.State,
		At:            at,
	}
}

// Publisher delivers events
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi fans an event out to every publisher and joins their errors
type Multi []Publisher

// Publish implements Publisher
func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event
type Nop struct{}

// Publish implements Publisher
func (Nop) Publish(context.Context, Event) error { return nil }
