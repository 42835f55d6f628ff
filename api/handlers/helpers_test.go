package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/linesmerrill/disaster-intake-api/api"
	"github.com/linesmerrill/disaster-intake-api/catalog"
	"github.com/linesmerrill/disaster-intake-api/channels"
	"github.com/linesmerrill/disaster-intake-api/lifecycle"
	"github.com/linesmerrill/disaster-intake-api/location"
	"github.com/linesmerrill/disaster-intake-api/models"
	"github.com/linesmerrill/disaster-intake-api/sessions"
)

const reporterPhone = "+919876543210"

// fakeReports is an in-memory ReportService
type fakeReports struct {
	mu        sync.Mutex
	reports   map[string]*models.EmergencyReport
	responses map[string][]models.EmergencyResponse
	drafts    []*models.ReportDraft
	filters   []lifecycle.Filter
	err       error
}

func newFakeReports() *fakeReports {
	return &fakeReports{
		reports:   map[string]*models.EmergencyReport{},
		responses: map[string][]models.EmergencyResponse{},
	}
}

func (f *fakeReports) add(r *models.EmergencyReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[r.ReportID] = r
}

func (f *fakeReports) Create(_ context.Context, d *models.ReportDraft) (*models.EmergencyReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.drafts = append(f.drafts, d)
	r := &models.EmergencyReport{
		ReportID:    fmt.Sprintf("EMR-%08X", len(f.drafts)),
		Channel:     d.Channel,
		Language:    d.Language,
		PhoneNumber: d.PhoneNumber,
		Category:    models.NormalizeCategory(string(d.Category)),
		Severity:    d.Severity,
		Description: d.Description,
		Status:      models.StatusPending,
	}
	f.reports[r.ReportID] = r
	return r, nil
}

func (f *fakeReports) Acknowledge(_ context.Context, id, actor string) (*models.EmergencyReport, bool, error) {
	f.mu.Lock()
	r, ok := f.reports[id]
	already := ok && r.Status != models.StatusPending
	f.mu.Unlock()
	if already && f.err == nil && actor != "" {
		return r, false, nil
	}
	r, err := f.UpdateStatus(context.Background(), id, actor, models.StatusAcknowledged, "")
	return r, err == nil, err
}

func (f *fakeReports) UpdateStatus(_ context.Context, id, actor string, status models.Status, message string) (*models.EmergencyReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if actor == "" {
		return nil, lifecycle.ErrUnauthorized
	}
	r, ok := f.reports[id]
	if !ok {
		return nil, lifecycle.ErrNotFound
	}
	r.Status = status
	f.responses[id] = append(f.responses[id], models.EmergencyResponse{Responder: actor, Message: message, ToStatus: status})
	return r, nil
}

func (f *fakeReports) GetDetails(_ context.Context, id string) (*models.EmergencyReport, []models.EmergencyResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, nil, f.err
	}
	r, ok := f.reports[id]
	if !ok {
		return nil, nil, lifecycle.ErrNotFound
	}
	return r, f.responses[id], nil
}

func (f *fakeReports) List(_ context.Context, filter lifecycle.Filter, limit, page int) ([]models.EmergencyReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.filters = append(f.filters, filter)
	out := []models.EmergencyReport{}
	for _, r := range f.reports {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeReports) lastDraft() *models.ReportDraft {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.drafts) == 0 {
		return nil
	}
	return f.drafts[len(f.drafts)-1]
}

// fakeConfirmer records queued confirmations
type fakeConfirmer struct {
	mu      sync.Mutex
	sent    []*models.Confirmation
	ctxErrs []error
	err     error
}

func (f *fakeConfirmer) Enqueue(ctx context.Context, c *models.Confirmation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return f.err
}

func (f *fakeConfirmer) all() []*models.Confirmation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Confirmation(nil), f.sent...)
}

type fixture struct {
	reports   *fakeReports
	confirmer *fakeConfirmer
	catalog   *catalog.Catalog
	metrics   *api.Metrics
	webhook   Webhook
	report    Report
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := sessions.NewRedisStore(client, 5*time.Minute)

	f := &fixture{
		reports:   newFakeReports(),
		confirmer: &fakeConfirmer{},
		catalog:   catalog.Default(),
		metrics:   api.NewMetrics(),
	}
	resolver := location.NewResolver(nil)
	notifier := reporterNotifier{confirmer: f.confirmer, catalog: f.catalog, baseURL: "https://intake.example.org"}
	f.webhook = Webhook{
		SMS:      channels.NewSMS(f.reports, f.catalog),
		USSD:     channels.NewUSSD(store, f.reports, f.catalog, resolver),
		IVR:      channels.NewIVR(store, f.reports, f.catalog, resolver, "+911234567890"),
		Reports:  f.reports,
		Catalog:  f.catalog,
		Metrics:  f.metrics,
		BaseURL:  "https://intake.example.org",
		notifier: notifier,
	}
	f.report = Report{
		Reports:  f.reports,
		Resolver: resolver,
		Catalog:  f.catalog,
		Metrics:  f.metrics,
		notifier: notifier,
	}
	return f
}

func formRequest(method, target string, form map[string]string) *http.Request {
	vals := url.Values{}
	for k, v := range form {
		vals.Set(k, v)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withActor(req *http.Request, actor string) *http.Request {
	return req.WithContext(api.WithActor(req.Context(), actor))
}
