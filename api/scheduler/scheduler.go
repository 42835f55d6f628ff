package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/disaster-intake-api/models"
)

// Actor is recorded on responses written by scheduled jobs
const Actor = "system:scheduler"

const (
	escalationBatch = 50
	escalationLock  = "escalation_job"
	redeliveryLock  = "confirmation_redelivery_job"
)

// Reports finds and escalates reports nobody has picked up
type Reports interface {
	Stale(ctx context.Context, olderThan time.Duration, minPriority float64, limit int) ([]models.EmergencyReport, error)
	Escalate(ctx context.Context, reportID, actor, message string) (*models.EmergencyReport, bool, error)
}

// Outbox retries undelivered confirmations
type Outbox interface {
	Redeliver(ctx context.Context) (int, error)
}

// Notifier tells the duty desk about an escalated report
type Notifier interface {
	Escalate(ctx context.Context, r *models.EmergencyReport) error
}

// Scheduler handles periodic background jobs: stale report escalation and
// confirmation redelivery
type Scheduler struct {
	cron    *cron.Cron
	Reports Reports
	Outbox  Outbox
	Email   Notifier
	LockDB  Locker

	EscalateAfter time.Duration
	MinPriority   float64
	// OnEscalate is called once per escalated report
	OnEscalate func(*models.EmergencyReport)

	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(reports Reports, outbox Outbox, email Notifier, lockDB Locker, escalateAfter time.Duration, minPriority float64) *Scheduler {
	// Heroku sets DYNO to "web.1", "web.2", etc.
	instanceID := os.Getenv("DYNO")
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:          cron.New(cron.WithLocation(time.UTC)),
		Reports:       reports,
		Outbox:        outbox,
		Email:         email,
		LockDB:        lockDB,
		EscalateAfter: escalateAfter,
		MinPriority:   minPriority,
		OnEscalate:    func(*models.EmergencyReport) {},
		instanceID:    instanceID,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc("@every 1m", s.escalationJob); err != nil {
		zap.S().Errorw("failed to register escalation job", "error", err)
	}
	if _, err := s.cron.AddFunc("@every 30s", s.redeliveryJob); err != nil {
		zap.S().Errorw("failed to register redelivery job", "error", err)
	}

	s.cron.Start()
	zap.S().Infow("scheduler started", "instance", s.instanceID)
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("scheduler stopped")
}

func (s *Scheduler) escalationJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
	defer cancel()
	s.locked(ctx, escalationLock, 55*time.Second, func() {
		if _, err := s.EscalateStale(ctx); err != nil {
			zap.S().Errorw("escalation job failed", "error", err)
		}
	})
}

func (s *Scheduler) redeliveryJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()
	s.locked(ctx, redeliveryLock, 28*time.Second, func() {
		n, err := s.Outbox.Redeliver(ctx)
		if err != nil {
			zap.S().Errorw("confirmation redelivery failed", "error", err)
		}
		if n > 0 {
			zap.S().Infow("confirmations redelivered", "count", n)
		}
	})
}

// locked runs job only if this instance takes the named lock
func (s *Scheduler) locked(ctx context.Context, name string, ttl time.Duration, job func()) {
	acquired, err := s.LockDB.TryAcquireLock(ctx, name, s.instanceID, ttl)
	if err != nil {
		zap.S().Errorw("failed to acquire lock", "lock", name, "error", err)
		return
	}
	if !acquired {
		zap.S().Debugw("job already running on another instance, skipping", "lock", name)
		return
	}
	defer func() {
		if err := s.LockDB.ReleaseLock(context.Background(), name, s.instanceID); err != nil {
			zap.S().Warnw("failed to release lock", "lock", name, "error", err)
		}
	}()
	job()
}

// EscalateStale escalates every pending report older than EscalateAfter with
// a priority of at least MinPriority, once each. It returns how many reports
// it escalated.
func (s *Scheduler) EscalateStale(ctx context.Context) (int, error) {
	stale, err := s.Reports.Stale(ctx, s.EscalateAfter, s.MinPriority, escalationBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale reports: %w", err)
	}

	escalated := 0
	for _, r := range stale {
		message := fmt.Sprintf("Pending for more than %s with priority %.0f, escalated to the duty desk", s.EscalateAfter, r.PriorityScore)
		report, changed, err := s.Reports.Escalate(ctx, r.ReportID, Actor, message)
		if err != nil {
			zap.S().Errorw("failed to escalate report", "report_id", r.ReportID, "error", err)
			continue
		}
		if !changed {
			continue
		}
		escalated++
		s.OnEscalate(report)
		zap.S().Infow("report escalated", "report_id", report.ReportID, "priority", report.PriorityScore)
		if s.Email != nil {
			if err := s.Email.Escalate(ctx, report); err != nil {
				zap.S().Errorw("failed to send escalation email", "report_id", report.ReportID, "error", err)
			}
		}
	}
	return escalated, nil
}
