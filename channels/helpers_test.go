package channels_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/linesmerrill/disaster-intake-api/models"
	"github.com/linesmerrill/disaster-intake-api/sessions"
)

type fakeReports struct {
	mu     sync.Mutex
	drafts []*models.ReportDraft
	err    error
	delay  time.Duration
	// hold makes Create store the report only once the caller's deadline
	// has passed, like a slow event bus behind the insert
	hold bool
}

func (f *fakeReports) Create(ctx context.Context, d *models.ReportDraft) (*models.EmergencyReport, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.hold {
		<-ctx.Done()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.drafts = append(f.drafts, d)
	return &models.EmergencyReport{
		ReportID:    fmt.Sprintf("EMR-%08X", len(f.drafts)),
		Channel:     d.Channel,
		Language:    d.Language,
		PhoneNumber: d.PhoneNumber,
		Category:    d.Category,
		Severity:    d.Severity,
		Description: d.Description,
		Status:      models.StatusPending,
	}, nil
}

func (f *fakeReports) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.drafts)
}

func (f *fakeReports) last() *models.ReportDraft {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.drafts) == 0 {
		return nil
	}
	return f.drafts[len(f.drafts)-1]
}

func newStore(t *testing.T) (*sessions.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return sessions.NewRedisStore(client, 5*time.Minute), mr
}
