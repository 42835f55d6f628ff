package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/disaster-intake-api/notify"
)

func TestHTTPGatewaySendSMS(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg-1"}`))
	}))
	defer srv.Close()

	g := notify.NewHTTPGateway(srv.URL, "secret", "sms-gateway")
	ref, err := g.SendSMS(context.Background(), "+911123456789", "Report EMR-0000000A received")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", ref)
	assert.Equal(t, "+911123456789", got["to"])
	assert.Equal(t, "Report EMR-0000000A received", got["message"])
	assert.Empty(t, got["url"])
}

func TestHTTPGatewayPlaceCall(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"sid":"CA123"}`))
	}))
	defer srv.Close()

	g := notify.NewHTTPGateway(srv.URL, "", "voice-gateway")
	ref, err := g.PlaceCall(context.Background(), "+919876543210", "https://intake.example/ivr/confirmation/EMR-0000000A")
	require.NoError(t, err)
	assert.Equal(t, "CA123", ref)
	assert.Equal(t, "https://intake.example/ivr/confirmation/EMR-0000000A", got["url"])
	assert.Empty(t, got["message"])
}

func TestHTTPGatewayEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ref, err := notify.NewHTTPGateway(srv.URL, "", "sms-gateway").SendSMS(context.Background(), "+911123456789", "hi")
	require.NoError(t, err)
	assert.Empty(t, ref)
}

func TestHTTPGatewayRejected(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("invalid number"))
	}))
	defer srv.Close()

	_, err := notify.NewHTTPGateway(srv.URL, "", "sms-gateway").SendSMS(context.Background(), "nope", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid number")
	assert.Equal(t, 1, calls)
}

func TestHTTPGatewayRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"id":"msg-2"}`))
	}))
	defer srv.Close()

	g := notify.NewHTTPGateway(srv.URL, "", "sms-gateway")
	g.Client.RetryWaitMin = 0
	g.Client.RetryWaitMax = 0
	ref, err := g.SendSMS(context.Background(), "+911123456789", "hi")
	require.NoError(t, err)
	assert.Equal(t, "msg-2", ref)
	assert.Equal(t, 2, calls)
}

func TestLogGateway(t *testing.T) {
	var g notify.LogGateway
	ref, err := g.SendSMS(context.Background(), "+911123456789", "hi")
	require.NoError(t, err)
	assert.Regexp(t, `^log-`, ref)

	ref, err = g.PlaceCall(context.Background(), "+911123456789", "https://intake.example/ivr/confirmation/EMR-0000000A")
	require.NoError(t, err)
	assert.Regexp(t, `^log-`, ref)
}
