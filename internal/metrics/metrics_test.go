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

	"voluntia-backend/internal/domain"
)

func TestObserveTransition(t *testing.T) {
	m := New()
	m.ObserveTransition(domain.TransitionApprove, "success", 20*time.Millisecond)
	m.ObserveTransition(domain.TransitionApprove, "invalid_state", time.Millisecond)
	m.ObserveTransition(domain.TransitionApprove, "success", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("approve", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("approve", "invalid_state")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.transitionDuration))
}

func TestRecordHTTPRequestAndJobs(t *testing.T) {
	m := New()
	m.RecordHTTPRequest("POST", "/api/v1/applications", 201, time.Millisecond)
	m.RecordJobRun("pending_digest", true, time.Second)
	m.IncInFlight()
	m.DecInFlight()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/api/v1/applications", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("pending_digest", "true")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
}

func TestHandler_ExposesWorkflowSeries(t *testing.T) {
	m := New()
	m.ObserveTransition(domain.TransitionDecline, "success", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `voluntia_workflow_transitions_total{outcome="success",transition="decline"} 1`))
}
