package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveProvider(t *testing.T) {
	m := New()

	m.ObserveProvider("openai", "", 120*time.Millisecond)
	m.ObserveProvider("openai", "rate_limit", time.Second)
	m.ObserveProvider("openai", "rate_limit", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProviderErrors.WithLabelValues("openai", "rate_limit")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ProviderDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveProvider("anthropic", "auth", time.Second)
		m.MessageStored("user")
		m.SessionIssued()
		m.ChatCleared()
		m.RateLimitHit()
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.MessageStored("user")
	m.SessionIssued()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `qaderichat_messages_total{role="user"} 1`))
	assert.True(t, strings.Contains(body, "qaderichat_sessions_created_total 1"))
}

func TestCounters(t *testing.T) {
	m := New()
	m.ChatCleared()
	m.RateLimitHit()
	m.RateLimitHit()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatsCleared))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RateLimited))
}
