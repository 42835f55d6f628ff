package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/disaster-intake-api/events"
	"github.com/linesmerrill/disaster-intake-api/models"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

type recordingPublisher struct {
	got []events.Event
	err error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.got = append(p.got, e)
	return p.err
}

func sampleReport() *models.EmergencyReport {
	return &models.EmergencyReport{
		ReportID:      "EMR-00C0FFEE",
		Channel:       models.ChannelUSSD,
		Category:      models.CategoryFlood,
		Severity:      3,
		Status:        models.StatusPending,
		PriorityScore: 90,
		District:      "Guwahati",
		State:         "Assam",
	}
}

func TestFromReport(t *testing.T) {
	at := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	e := events.FromReport(events.ReportCreated, sampleReport(), at)

	assert.Equal(t, events.ReportCreated, e.Type)
	assert.Equal(t, "EMR-00C0FFEE", e.ReportID)
	assert.Equal(t, 90.0, e.PriorityScore)
	assert.Equal(t, "Assam", e.State)
	assert.Equal(t, at, e.At)
}

func TestKafkaPublisher(t *testing.T) {
	w := &recordingWriter{}
	p := &events.KafkaPublisher{Writer: w}
	e := events.FromReport(events.ReportEscalated, sampleReport(), time.Now().UTC())

	require.NoError(t, p.Publish(context.Background(), e))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "EMR-00C0FFEE", string(w.msgs[0].Key))
	assert.Equal(t, "type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, "report.escalated", string(w.msgs[0].Headers[0].Value))

	var decoded events.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, events.ReportEscalated, decoded.Type)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherError(t *testing.T) {
	p := &events.KafkaPublisher{Writer: &recordingWriter{err: errors.New("mocked-error")}}
	err := p.Publish(context.Background(), events.Event{ReportID: "EMR-00000001"})
	assert.ErrorContains(t, err, "mocked-error")
}

func TestMultiPublishesToAll(t *testing.T) {
	a := &recordingPublisher{}
	b := &recordingPublisher{err: errors.New("b failed")}
	c := &recordingPublisher{}

	err := events.Multi{a, nil, b, c}.Publish(context.Background(), events.Event{ReportID: "EMR-00000001"})

	assert.ErrorContains(t, err, "b failed")
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
	assert.Len(t, c.got, 1)
}

func TestNop(t *testing.T) {
	assert.NoError(t, events.Nop{}.Publish(context.Background(), events.Event{}))
}

func TestHubBroadcast(t *testing.T) {
	hub := events.NewHub()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, r.URL.Query().Get("id"))
	}))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "?id=responder-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	e := events.FromReport(events.ReportCreated, sampleReport(), time.Now().UTC())
	require.NoError(t, hub.Publish(context.Background(), e))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Event string       `json:"event"`
		Data  events.Event `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "report.created", msg.Event)
	assert.Equal(t, "EMR-00C0FFEE", msg.Data.ReportID)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubPublishWithoutClients(t *testing.T) {
	assert.NoError(t, events.NewHub().Publish(context.Background(), events.Event{}))
}
