package config

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	conf := New()

	assert.NotEmpty(t, conf)
	assert.Equal(t, "mongodb://127.0.0.1:27017", conf.URL)
	assert.Equal(t, "test", conf.DatabaseName)
}

func TestNewDefaults(t *testing.T) {
	t.Setenv("SESSION_TTL", "")
	t.Setenv("ESCALATE_AFTER", "")
	t.Setenv("KAFKA_BROKERS", "")
	conf := New()

	assert.Equal(t, DefaultSessionTTL, conf.SessionTTL)
	assert.Equal(t, DefaultEscalateAfter, conf.EscalateAfter)
	assert.Equal(t, float64(DefaultEscalationPriority), conf.EscalationPriority)
	assert.Equal(t, DefaultConfirmationTries, conf.ConfirmationMaxTries)
	assert.Empty(t, conf.KafkaBrokers)
}

func TestNewOverrides(t *testing.T) {
	t.Setenv("SESSION_TTL", "90s")
	t.Setenv("WEBHOOK_RATE_PER_MINUTE", "12")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	conf := New()

	assert.Equal(t, 90*time.Second, conf.SessionTTL)
	assert.Equal(t, 12, conf.WebhookRatePerMinute)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, conf.KafkaBrokers)
}

func TestNewIgnoresBadValues(t *testing.T) {
	t.Setenv("SESSION_TTL", "soon")
	t.Setenv("CONFIRMATION_MAX_ATTEMPTS", "-3")
	conf := New()

	assert.Equal(t, DefaultSessionTTL, conf.SessionTTL)
	assert.Equal(t, DefaultConfirmationTries, conf.ConfirmationMaxTries)
}

func TestErrorStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorStatus("error it borked", http.StatusBadRequest, rr, errors.New("bad request"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"Response":{"Message":"error it borked","Error":"bad request"}}`, rr.Body.String())
}

func TestErrorStatusNilError(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorStatus("not found", http.StatusNotFound, rr, nil)

	assert.JSONEq(t, `{"Response":{"Message":"not found","Error":""}}`, rr.Body.String())
}

func TestSetLoggerSetsDevelopmentLogger(t *testing.T) {
	l, err := setLogger("development")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestSetLoggerSetsProductionLogger(t *testing.T) {
	l, err := setLogger("production")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestSetLoggerSetsLocalLogger(t *testing.T) {
	l, err := setLogger("local")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestSetLoggerUnknownEnvironment(t *testing.T) {
	_, err := setLogger("staging-ish")
	assert.Error(t, err)
}
