package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func TestCollector_RecordSession(t *testing.T) {
	c := NewCollector("test", zap.NewNop())

	c.RecordSession("remote", "transmitted", 200*time.Millisecond)
	c.RecordSession("remote", "transmitted", 300*time.Millisecond)
	c.RecordSession("manual", "synthesis_failed", time.Second)

	if got := testutil.ToFloat64(c.sessionsTotal.WithLabelValues("remote", "transmitted")); got != 2 {
		t.Errorf("remote/transmitted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.sessionsTotal.WithLabelValues("manual", "synthesis_failed")); got != 1 {
		t.Errorf("manual/synthesis_failed = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.sessionDuration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("test", zap.NewNop())

	c.RecordFrame()
	c.RecordFrame()
	c.RecordSent(3, 3)
	c.RecordRejected("busy")
	c.SetHubClients(4)

	if got := testutil.ToFloat64(c.framesCaptured); got != 2 {
		t.Errorf("frames = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.messagesSent.WithLabelValues("binary")); got != 3 {
		t.Errorf("binary sent = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.commandsRejected.WithLabelValues("busy")); got != 1 {
		t.Errorf("busy rejections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.hubClients); got != 4 {
		t.Errorf("hub clients = %v, want 4", got)
	}
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.RecordSession("remote", "transmitted", time.Second)
	c.RecordFrame()
	c.RecordSent(1, 1)
	c.RecordRejected("decode")
	c.SetHubClients(1)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("nil collector handler status = %d, want 404", rec.Code)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("tractrelay", zap.NewNop())
	c.RecordFrame()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tractrelay_frames_captured_total 1") {
		t.Errorf("metrics output missing frame counter:\n%s", rec.Body.String())
	}
}
