// Package lifecycle owns emergency reports once a channel has collected them:
// creation, acknowledgment, status changes, escalation and the audit trail.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/linesmerrill/disaster-intake-api/databases"
	"github.com/linesmerrill/disaster-intake-api/events"
	"github.com/linesmerrill/disaster-intake-api/location"
	"github.com/linesmerrill/disaster-intake-api/models"
	"github.com/linesmerrill/disaster-intake-api/priority"
)

const (
	insertAttempts = 3
	updateAttempts = 3

	publishTimeout = 5 * time.Second

	// DefaultLanguage is stored when a draft carries none
	DefaultLanguage = "en"
)

// Filter narrows a report listing. Zero values match everything.
type Filter struct {
	Status   models.Status
	Category models.Category
	Severity int
	Channel  models.Channel
}

// Option configures a Manager
type Option func(*Manager)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDGenerator replaces the identifier source
func WithIDGenerator(g *IDGenerator) Option {
	return func(m *Manager) {
		m.ids = g
	}
}

// Manager applies the report lifecycle on top of the report collection
type Manager struct {
	reports   databases.ReportDatabase
	resolver  *location.Resolver
	publisher events.Publisher
	ids       *IDGenerator
	now       func() time.Time
	inflight  sync.WaitGroup
}

// NewManager returns a Manager. resolver and publisher may be nil.
func NewManager(reports databases.ReportDatabase, resolver *location.Resolver, publisher events.Publisher, opts ...Option) *Manager {
	if resolver == nil {
		resolver = location.NewResolver(nil)
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	m := &Manager{
		reports:   reports,
		resolver:  resolver,
		publisher: publisher,
		ids:       NewIDGenerator(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Create stores a new pending report built from draft. The priority score is
// computed here and frozen for the life of the report.
func (m *Manager) Create(ctx context.Context, draft *models.ReportDraft) (*models.EmergencyReport, error) {
	if draft == nil {
		return nil, ErrInvalidDraft
	}
	if !draft.Channel.Valid() {
		return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidDraft, draft.Channel)
	}
	if !models.ValidSeverity(draft.Severity) {
		return nil, fmt.Errorf("%w: severity %d out of range", ErrInvalidDraft, draft.Severity)
	}
	if draft.Coordinates != nil && !location.ValidateCoordinates(draft.Coordinates.Lat, draft.Coordinates.Lng) {
		return nil, fmt.Errorf("%w: coordinates outside service area", ErrInvalidDraft)
	}

	category := models.NormalizeCategory(string(draft.Category))
	lang := draft.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	now := m.now()

	report := &models.EmergencyReport{
		Channel:       draft.Channel,
		Language:      lang,
		PhoneNumber:   location.NormalizePhone(draft.PhoneNumber),
		Category:      category,
		Severity:      draft.Severity,
		Description:   strings.TrimSpace(draft.Description),
		Coordinates:   draft.Coordinates,
		Status:        models.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		RawData:       draft.RawData,
		PriorityScore: priority.Score(draft.Severity, category),
		Responses:     []models.EmergencyResponse{},
	}
	if hint := m.locate(ctx, draft); hint != nil {
		report.State = hint.State
		report.District = hint.District
		report.Address = hint.Address
	}

	var err error
	for attempt := 0; attempt < insertAttempts; attempt++ {
		report.ReportID = m.ids.Next()
		_, err = m.reports.InsertOne(ctx, report)
		if err == nil || !mongo.IsDuplicateKeyError(err) {
			break
		}
		zap.S().Warnw("report id collision, retrying", "report_id", report.ReportID, "attempt", attempt+1)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert report: %w", err)
	}

	zap.S().Infow("report created",
		"report_id", report.ReportID,
		"channel", report.Channel,
		"category", report.Category,
		"severity", report.Severity,
		"priority", report.PriorityScore,
		"phone", location.MaskPhone(report.PhoneNumber))
	m.publish(ctx, events.ReportCreated, report)
	return report, nil
}

func (m *Manager) locate(ctx context.Context, draft *models.ReportDraft) *models.LocationHint {
	if draft.Location != nil {
		return draft.Location
	}
	if draft.Coordinates != nil {
		if hint := m.resolver.ResolveByCoordinates(ctx, draft.Coordinates.Lat, draft.Coordinates.Lng); hint != nil {
			return hint
		}
	}
	return m.resolver.ResolveByPhone(draft.PhoneNumber)
}

// Acknowledge moves a pending report to acknowledged and assigns it to actor.
// Acknowledging a report that is already acknowledged or further along
// returns it unchanged with changed false, so acknowledged_at is only ever
// set once.
func (m *Manager) Acknowledge(ctx context.Context, reportID, actor string) (*models.EmergencyReport, bool, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, false, ErrUnauthorized
	}
	report, err := m.get(ctx, reportID)
	if err != nil {
		return nil, false, err
	}
	if report.Status != models.StatusPending {
		return report, false, nil
	}

	now := m.now()
	resp := m.newResponse(actor, models.ResponseAcknowledgment, "Emergency report acknowledged", models.StatusPending, models.StatusAcknowledged)
	matched, err := m.reports.UpdateOne(ctx,
		bson.M{"report_id": report.ReportID, "status": models.StatusPending},
		bson.M{
			"$set": bson.M{
				"status":          models.StatusAcknowledged,
				"acknowledged_at": now,
				"updated_at":      now,
				"assigned_to":     actor,
			},
			"$push": bson.M{"responses": resp},
		})
	if err != nil {
		return nil, false, fmt.Errorf("failed to acknowledge report: %w", err)
	}
	if matched == 0 {
		// someone else moved it first
		report, err = m.get(ctx, reportID)
		return report, false, err
	}

	report.Status = models.StatusAcknowledged
	report.AcknowledgedAt = &now
	report.UpdatedAt = now
	report.AssignedTo = &actor
	report.Responses = append(report.Responses, resp)

	zap.S().Infow("report acknowledged", "report_id", report.ReportID, "actor", actor)
	m.publish(ctx, events.ReportAcknowledged, report)
	return report, true, nil
}

// UpdateStatus moves a report forward along its lifecycle. Moving backwards,
// or away from a terminal status, is rejected with ErrInvalidTransition.
// Re-stating the current status records a note without changing anything else.
func (m *Manager) UpdateStatus(ctx context.Context, reportID, actor string, status models.Status, message string) (*models.EmergencyReport, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, ErrUnauthorized
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	for attempt := 0; attempt < updateAttempts; attempt++ {
		report, err := m.get(ctx, reportID)
		if err != nil {
			return nil, err
		}
		current := report.Status
		if status != current && (current.Terminal() || status.Rank() < current.Rank()) {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, status)
		}

		now := m.now()
		respType := models.ResponseUpdate
		if status.Terminal() && status != current {
			respType = models.ResponseResolution
		}
		note := strings.TrimSpace(message)
		if note == "" {
			note = fmt.Sprintf("Status changed from %s to %s", current, status)
		}
		resp := m.newResponse(actor, respType, note, current, status)

		set := bson.M{"status": status, "updated_at": now}
		if status == models.StatusResolved && current != models.StatusResolved {
			set["resolved_at"] = now
			report.ResolvedAt = &now
		}
		if status == models.StatusAcknowledged && report.AcknowledgedAt == nil {
			set["acknowledged_at"] = now
			report.AcknowledgedAt = &now
		}
		if report.AssignedTo == nil {
			set["assigned_to"] = actor
			report.AssignedTo = &actor
		}

		matched, err := m.reports.UpdateOne(ctx,
			bson.M{"report_id": report.ReportID, "status": current},
			bson.M{"$set": set, "$push": bson.M{"responses": resp}})
		if err != nil {
			return nil, fmt.Errorf("failed to update report status: %w", err)
		}
		if matched == 0 {
			zap.S().Debugw("report changed while updating, retrying", "report_id", reportID, "attempt", attempt+1)
			continue
		}

		report.Status = status
		report.UpdatedAt = now
		report.Responses = append(report.Responses, resp)

		zap.S().Infow("report status changed", "report_id", report.ReportID, "from", current, "to", status, "actor", actor)
		m.publish(ctx, events.ReportStatusChanged, report)
		return report, nil
	}
	return nil, fmt.Errorf("%w: report %s kept changing", ErrInvalidTransition, reportID)
}

// GetDetails returns a report together with its responses in insertion order
func (m *Manager) GetDetails(ctx context.Context, reportID string) (*models.EmergencyReport, []models.EmergencyResponse, error) {
	report, err := m.get(ctx, reportID)
	if err != nil {
		return nil, nil, err
	}
	responses := report.Responses
	if responses == nil {
		responses = []models.EmergencyResponse{}
	}
	return report, responses, nil
}

// List returns one page of reports matching f, highest priority first
func (m *Manager) List(ctx context.Context, f Filter, limit, page int) ([]models.EmergencyReport, error) {
	query := bson.M{}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
		}
		query["status"] = f.Status
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.Severity != 0 {
		query["severity"] = f.Severity
	}
	if f.Channel != "" {
		query["channel"] = f.Channel
	}

	reports, err := m.reports.Find(ctx, query, databases.ListOptions(limit, page))
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	if reports == nil {
		reports = []models.EmergencyReport{}
	}
	return reports, nil
}

// Stale returns pending, unescalated reports created at or before cutoff with
// a priority score of at least minPriority
func (m *Manager) Stale(ctx context.Context, olderThan time.Duration, minPriority float64, limit int) ([]models.EmergencyReport, error) {
	cutoff := m.now().Add(-olderThan)
	reports, err := m.reports.Find(ctx, bson.M{
		"status":         models.StatusPending,
		"created_at":     bson.M{"$lte": cutoff},
		"priority_score": bson.M{"$gte": minPriority},
		"escalated_at":   bson.M{"$exists": false},
	}, databases.ListOptions(limit, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to find stale reports: %w", err)
	}
	return reports, nil
}

// Escalate marks a pending report as escalated and flags it for follow up.
// It reports false when the report was already escalated or is no longer
// pending.
func (m *Manager) Escalate(ctx context.Context, reportID, actor, message string) (*models.EmergencyReport, bool, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, false, ErrUnauthorized
	}
	report, err := m.get(ctx, reportID)
	if err != nil {
		return nil, false, err
	}
	if report.Status != models.StatusPending || report.EscalatedAt != nil {
		return report, false, nil
	}

	now := m.now()
	resp := m.newResponse(actor, models.ResponseEscalation, message, report.Status, report.Status)
	matched, err := m.reports.UpdateOne(ctx,
		bson.M{
			"report_id":    report.ReportID,
			"status":       models.StatusPending,
			"escalated_at": bson.M{"$exists": false},
		},
		bson.M{
			"$set":  bson.M{"escalated_at": now, "follow_up_required": true, "updated_at": now},
			"$push": bson.M{"responses": resp},
		})
	if err != nil {
		return nil, false, fmt.Errorf("failed to escalate report: %w", err)
	}
	if matched == 0 {
		return report, false, nil
	}

	report.EscalatedAt = &now
	report.FollowUp = true
	report.UpdatedAt = now
	report.Responses = append(report.Responses, resp)

	zap.S().Warnw("report escalated", "report_id", report.ReportID, "priority", report.PriorityScore, "age", now.Sub(report.CreatedAt).String())
	m.publish(ctx, events.ReportEscalated, report)
	return report, true, nil
}

func (m *Manager) get(ctx context.Context, reportID string) (*models.EmergencyReport, error) {
	if !ValidID(reportID) {
		return nil, ErrNotFound
	}
	report, err := m.reports.FindOne(ctx, bson.M{"report_id": reportID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

func (m *Manager) newResponse(actor string, t models.ResponseType, message string, from, to models.Status) models.EmergencyResponse {
	return models.EmergencyResponse{
		ID:         uuid.NewString(),
		Responder:  actor,
		Type:       t,
		Message:    message,
		FromStatus: from,
		ToStatus:   to,
		CreatedAt:  m.now(),
	}
}

// publish hands the event to the publisher in the background. Subscribers
// and brokers never hold up the caller.
func (m *Manager) publish(ctx context.Context, t events.Type, r *models.EmergencyReport) {
	e := events.FromReport(t, r, m.now())
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := m.publisher.Publish(ctx, e); err != nil {
			zap.S().Errorw("failed to publish report event", "type", e.Type, "report_id", e.ReportID, "error", err)
		}
	}()
}

// Wait blocks until every event handed to the publisher has been delivered
// or has timed out
func (m *Manager) Wait() {
	m.inflight.Wait()
}
