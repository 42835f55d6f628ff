package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/linesmerrill/disaster-intake-api/databases"
	"github.com/linesmerrill/disaster-intake-api/location"
	"github.com/linesmerrill/disaster-intake-api/models"
)

// Delivery results passed to an Observer
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
)

const (
	sendTimeout    = 30 * time.Second
	redeliverBatch = 100
	baseBackoff    = 30 * time.Second
	maxBackoff     = 10 * time.Minute
)

var errNoSender = errors.New("no sender configured for confirmation kind")

// Observer is told the result of every delivery attempt
type Observer func(kind models.ConfirmationKind, result string)

// Dispatcher is the confirmation outbox. Every confirmation is stored before
// it is sent so that a failed or interrupted send is picked up by Redeliver.
type Dispatcher struct {
	store       databases.ConfirmationDatabase
	sms         SMSSender
	voice       VoiceCaller
	sem         *semaphore.Weighted
	maxAttempts int
	observe     Observer
	now         func() time.Time
	wg          sync.WaitGroup
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithObserver reports delivery results to o
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observe = o }
}

// WithDispatchClock overrides time.Now
func WithDispatchClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher returns a dispatcher running at most workers sends at once
func NewDispatcher(store databases.ConfirmationDatabase, sms SMSSender, voice VoiceCaller, workers int64, maxAttempts int, opts ...DispatcherOption) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	d := &Dispatcher{
		store:       store,
		sms:         sms,
		voice:       voice,
		sem:         semaphore.NewWeighted(workers),
		maxAttempts: maxAttempts,
		observe:     func(models.ConfirmationKind, string) {},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SMS builds a text confirmation for r
func SMS(r *models.EmergencyReport, body string) *models.Confirmation {
	return &models.Confirmation{
		ReportID: r.ReportID,
		Kind:     models.ConfirmationSMS,
		To:       r.PhoneNumber,
		Language: r.Language,
		Body:     body,
	}
}

// Voice builds a call-back confirmation for r
func Voice(r *models.EmergencyReport, callbackURL string) *models.Confirmation {
	return &models.Confirmation{
		ReportID:    r.ReportID,
		Kind:        models.ConfirmationVoice,
		To:          r.PhoneNumber,
		Language:    r.Language,
		CallbackURL: callbackURL,
	}
}

// Enqueue stores c and sends it in the background. Only the store write is
// reported; delivery failures are left to Redeliver.
func (d *Dispatcher) Enqueue(ctx context.Context, c *models.Confirmation) error {
	now := d.now()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = now
	c.NextAttemptAt = now
	if _, err := d.store.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("failed to store confirmation: %w", err)
	}

	pending := *c
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := d.sem.Acquire(sendCtx, 1); err != nil {
			zap.S().Warnw("confirmation left for redelivery", "confirmation_id", pending.ID, "error", err)
			return
		}
		defer d.sem.Release(1)
		d.deliver(sendCtx, &pending)
	}()
	return nil
}

// Redeliver retries undelivered confirmations that are due and have attempts
// left. It returns how many were delivered.
func (d *Dispatcher) Redeliver(ctx context.Context) (int, error) {
	filter := bson.M{
		"delivered":       false,
		"attempts":        bson.M{"$lt": d.maxAttempts},
		"next_attempt_at": bson.M{"$lte": d.now()},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "next_attempt_at", Value: 1}}).
		SetLimit(redeliverBatch)
	due, err := d.store.Find(ctx, filter, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to find due confirmations: %w", err)
	}

	var (
		mu        sync.Mutex
		delivered int
		wg        sync.WaitGroup
	)
	for i := range due {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(c *models.Confirmation) {
			defer wg.Done()
			defer d.sem.Release(1)
			if d.deliver(ctx, c) {
				mu.Lock()
				delivered++
				mu.Unlock()
			}
		}(&due[i])
	}
	wg.Wait()
	return delivered, ctx.Err()
}

// Wait blocks until every background send started by Enqueue has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, c *models.Confirmation) bool {
	ref, err := d.send(ctx, c)
	now := d.now()
	attempts := c.Attempts + 1
	filter := bson.M{"_id": c.ID, "delivered": false}

	var update bson.M
	if err != nil {
		zap.S().Warnw("confirmation delivery failed",
			"confirmation_id", c.ID,
			"report_id", c.ReportID,
			"kind", c.Kind,
			"to", location.MaskPhone(c.To),
			"attempt", attempts,
			"error", err,
		)
		d.observe(c.Kind, ResultFailed)
		update = bson.M{
			"$set": bson.M{"last_error": err.Error(), "next_attempt_at": now.Add(backoff(attempts))},
			"$inc": bson.M{"attempts": 1},
		}
	} else {
		d.observe(c.Kind, ResultDelivered)
		update = bson.M{
			"$set": bson.M{"delivered": true, "delivered_at": now, "provider_ref": ref},
			"$inc": bson.M{"attempts": 1},
		}
	}

	if _, uerr := d.store.UpdateOne(ctx, filter, update); uerr != nil {
		zap.S().Errorw("failed to record confirmation attempt", "confirmation_id", c.ID, "error", uerr)
	}
	return err == nil
}

func (d *Dispatcher) send(ctx context.Context, c *models.Confirmation) (string, error) {
	switch c.Kind {
	case models.ConfirmationSMS:
		if d.sms != nil {
			return d.sms.SendSMS(ctx, c.To, c.Body)
		}
	case models.ConfirmationVoice:
		if d.voice != nil {
			return d.voice.PlaceCall(ctx, c.To, c.CallbackURL)
		}
	}
	return "", fmt.Errorf("%w: %q", errNoSender, c.Kind)
}

// backoff doubles from baseBackoff per attempt up to maxBackoff
func backoff(attempts int) time.Duration {
	d := baseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
