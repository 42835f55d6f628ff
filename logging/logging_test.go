package logging

import (
	"testing"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLeveledSatisfiesRetryableHTTP(t *testing.T) {
	var _ retryablehttp.LeveledLogger = NewLeveled("test")
}

func TestLeveledWritesKeyValues(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Leveled{S: zap.New(core).Sugar()}

	l.Info("request", "url", "http://example.test", "attempt", 2)
	l.Warn("retrying")
	l.Error("giving up", "err", "timeout")

	entries := logs.All()
	assert.Len(t, entries, 3)
	assert.Equal(t, "request", entries[0].Message)
	assert.Equal(t, int64(2), entries[0].ContextMap()["attempt"])
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
}
