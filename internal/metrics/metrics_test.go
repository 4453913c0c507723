package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は収集済みメトリクスから名前とラベルが一致するものを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if c := NewCollector(prometheus.NewRegistry()); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordHTTPStatus_CountsByStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	if v := findMetric(t, reg, "yogastudio_http_status_total", map[string]string{"status_code": "200"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("status 200 = %v, want 2", v)
	}
	if v := findMetric(t, reg, "yogastudio_http_status_total", map[string]string{"status_code": "404"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("status 404 = %v, want 1", v)
	}
}

func TestRecordLogin_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(LoginSuccess)
	c.RecordLogin(LoginFailure)
	c.RecordLogin(LoginFailure)

	if v := findMetric(t, reg, "yogastudio_login_total", map[string]string{"outcome": LoginFailure}).GetCounter().GetValue(); v != 2 {
		t.Errorf("login failure = %v, want 2", v)
	}
}

func TestRecordParticipation_CountsByAction(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordParticipation(ParticipationJoin)
	c.RecordParticipation(ParticipationLeave)

	if v := findMetric(t, reg, "yogastudio_participation_total", map[string]string{"action": ParticipationJoin}).GetCounter().GetValue(); v != 1 {
		t.Errorf("join = %v, want 1", v)
	}
}

func TestRecordSessionsPurgedAndConflicts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionsPurged(3)
	c.RecordSessionsPurged(2)
	c.RecordVersionConflict()

	if v := findMetric(t, reg, "yogastudio_sessions_purged_total", nil).GetCounter().GetValue(); v != 5 {
		t.Errorf("purged = %v, want 5", v)
	}
	if v := findMetric(t, reg, "yogastudio_session_version_conflict_total", nil).GetCounter().GetValue(); v != 1 {
		t.Errorf("conflicts = %v, want 1", v)
	}
}

func TestRecordRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(150 * time.Millisecond)

	h := findMetric(t, reg, "yogastudio_http_request_duration_seconds", nil).GetHistogram()
	if h.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", h.GetSampleCount())
	}
}
