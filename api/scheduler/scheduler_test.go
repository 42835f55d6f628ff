package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/disaster-intake-api/models"
)

type fakeReports struct {
	stale     []models.EmergencyReport
	staleErr  error
	escalated map[string]bool
	failOn    string
	actors    []string
	args      []interface{}
}

func (f *fakeReports) Stale(_ context.Context, olderThan time.Duration, minPriority float64, limit int) ([]models.EmergencyReport, error) {
	f.args = []interface{}{olderThan, minPriority, limit}
	return f.stale, f.staleErr
}

func (f *fakeReports) Escalate(_ context.Context, id, actor, message string) (*models.EmergencyReport, bool, error) {
	if id == f.failOn {
		return nil, false, errors.New("mongo down")
	}
	f.actors = append(f.actors, actor)
	if f.escalated[id] {
		return &models.EmergencyReport{ReportID: id}, false, nil
	}
	f.escalated[id] = true
	return &models.EmergencyReport{ReportID: id, PriorityScore: 150}, true, nil
}

type fakeEmail struct {
	sent []string
	err  error
}

func (f *fakeEmail) Escalate(_ context.Context, r *models.EmergencyReport) error {
	f.sent = append(f.sent, r.ReportID)
	return f.err
}

type fakeOutbox struct {
	calls int
}

func (f *fakeOutbox) Redeliver(context.Context) (int, error) {
	f.calls++
	return 1, nil
}

func newLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client), mr
}

func TestRedisLocker(t *testing.T) {
	l, mr := newLocker(t)
	ctx := context.Background()

	ok, err := l.TryAcquireLock(ctx, "job", "web.1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.TryAcquireLock(ctx, "job", "web.2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// only the owner can release
	require.NoError(t, l.ReleaseLock(ctx, "job", "web.2"))
	assert.True(t, mr.Exists("lock:job"))
	require.NoError(t, l.ReleaseLock(ctx, "job", "web.1"))
	assert.False(t, mr.Exists("lock:job"))

	ok, err = l.TryAcquireLock(ctx, "job", "web.2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = l.TryAcquireLock(ctx, "job", "web.3", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerUnavailable(t *testing.T) {
	l, mr := newLocker(t)
	mr.Close()

	ok, err := l.TryAcquireLock(context.Background(), "job", "web.1", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestEscalateStale(t *testing.T) {
	reports := &fakeReports{
		stale: []models.EmergencyReport{
			{ReportID: "EMR-00000001", PriorityScore: 150},
			{ReportID: "EMR-00000002", PriorityScore: 120},
			{ReportID: "EMR-00000003", PriorityScore: 110},
		},
		escalated: map[string]bool{"EMR-00000002": true},
		failOn:    "EMR-00000003",
	}
	email := &fakeEmail{}
	l, _ := newLocker(t)
	s := NewScheduler(reports, &fakeOutbox{}, email, l, 15*time.Minute, 100)

	var counted []string
	s.OnEscalate = func(r *models.EmergencyReport) { counted = append(counted, r.ReportID) }

	n, err := s.EscalateStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"EMR-00000001"}, counted)
	assert.Equal(t, []string{"EMR-00000001"}, email.sent)
	assert.Equal(t, []interface{}{15 * time.Minute, 100.0, escalationBatch}, reports.args)
	for _, actor := range reports.actors {
		assert.Equal(t, Actor, actor)
	}
}

func TestEscalateStaleEmailFailureDoesNotStop(t *testing.T) {
	reports := &fakeReports{
		stale:     []models.EmergencyReport{{ReportID: "EMR-00000001"}, {ReportID: "EMR-00000002"}},
		escalated: map[string]bool{},
	}
	email := &fakeEmail{err: errors.New("sendgrid error: status 500")}
	l, _ := newLocker(t)
	s := NewScheduler(reports, &fakeOutbox{}, email, l, time.Minute, 0)

	n, err := s.EscalateStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, email.sent, 2)
}

func TestEscalateStaleQueryFailure(t *testing.T) {
	reports := &fakeReports{staleErr: errors.New("mongo down"), escalated: map[string]bool{}}
	l, _ := newLocker(t)
	s := NewScheduler(reports, &fakeOutbox{}, nil, l, time.Minute, 0)

	_, err := s.EscalateStale(context.Background())
	assert.Error(t, err)
}

func TestJobsSkipWhenLockHeld(t *testing.T) {
	reports := &fakeReports{stale: []models.EmergencyReport{{ReportID: "EMR-00000001"}}, escalated: map[string]bool{}}
	outbox := &fakeOutbox{}
	email := &fakeEmail{}
	l, mr := newLocker(t)
	s := NewScheduler(reports, outbox, email, l, time.Minute, 0)

	require.NoError(t, mr.Set("lock:"+escalationLock, "web.9"))
	require.NoError(t, mr.Set("lock:"+redeliveryLock, "web.9"))
	s.escalationJob()
	s.redeliveryJob()
	assert.Empty(t, email.sent)
	assert.Zero(t, outbox.calls)

	mr.Del("lock:" + escalationLock)
	mr.Del("lock:" + redeliveryLock)
	s.escalationJob()
	s.redeliveryJob()
	assert.Equal(t, []string{"EMR-00000001"}, email.sent)
	assert.Equal(t, 1, outbox.calls)

	// locks are released after each run
	assert.False(t, mr.Exists("lock:"+escalationLock))
	assert.False(t, mr.Exists("lock:"+redeliveryLock))
}

func TestStartStop(t *testing.T) {
	l, _ := newLocker(t)
	s := NewScheduler(&fakeReports{escalated: map[string]bool{}}, &fakeOutbox{}, nil, l, time.Minute, 0)
	s.Start()
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()
}
