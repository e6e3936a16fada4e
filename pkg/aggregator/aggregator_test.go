// SPDX-License-Identifier: Apache-2.0
package aggregator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openjurist/lexgate/pkg/alert"
	"github.com/openjurist/lexgate/pkg/errors"
)

type captureSink struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (s *captureSink) Send(ctx context.Context, a alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

func newTestAggregator(thresholds map[errors.Severity]int) (*Aggregator, *captureSink) {
	sink := &captureSink{}
	cfg := DefaultConfig()
	if thresholds != nil {
		cfg.AlertThresholds = thresholds
	}
	return New(cfg, sink), sink
}

func TestSignatureGroupsVolatileSubstrings(t *testing.T) {
	a, _ := newTestAggregator(nil)

	a.ReportError(errors.New(errors.CategoryExternalAPI,
		"fetch failed for docket 12345 at 2026-08-26T10:11:12Z", nil).WithEndpoint("dockets"))
	a.ReportError(errors.New(errors.CategoryExternalAPI,
		"fetch failed for docket 99921 at 2026-08-26T11:30:05Z", nil).WithEndpoint("dockets"))

	reports := a.Reports(Filter{})
	if len(reports) != 1 {
		t.Fatalf("expected one grouped report, got %d", len(reports))
	}
	if reports[0].Frequency != 2 {
		t.Errorf("expected frequency 2, got %d", reports[0].Frequency)
	}
	if strings.Contains(reports[0].Message, "12345") {
		t.Errorf("expected numbers normalized, got %q", reports[0].Message)
	}
}

func TestSignatureSeparatesCategories(t *testing.T) {
	a, _ := newTestAggregator(nil)
	a.ReportError(errors.New(errors.CategoryNetwork, "boom", nil).WithEndpoint("search"))
	a.ReportError(errors.New(errors.CategoryExternalAPI, "boom", nil).WithEndpoint("search"))

	if got := len(a.Reports(Filter{})); got != 2 {
		t.Errorf("different categories must not share a report, got %d", got)
	}
}

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"request 42 failed", "request <n> failed"},
		{"id 550e8400-e29b-41d4-a716-446655440000 missing", "id <uuid> missing"},
		{"seen at 2026-01-02 15:04:05", "seen at <ts>"},
		{"token sk_abcdefghijklmnopqrstuvwxyz123456 rejected", "token <token> rejected"},
	}
	for _, tt := range tests {
		if got := normalizeMessage(tt.in); got != tt.want {
			t.Errorf("normalizeMessage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAffectedEndpointsAccumulate(t *testing.T) {
	a, _ := newTestAggregator(nil)
	a.ReportError(errors.New(errors.CategoryTimeout, "slow", nil).WithEndpoint("search"))
	a.ReportError(errors.New(errors.CategoryTimeout, "slow", nil).WithEndpoint("search"))

	reports := a.Reports(Filter{Endpoint: "search"})
	if len(reports) != 1 {
		t.Fatalf("expected one report for endpoint filter, got %d", len(reports))
	}
	if len(reports[0].AffectedEndpoints) != 1 || reports[0].AffectedEndpoints[0] != "search" {
		t.Errorf("unexpected endpoints: %v", reports[0].AffectedEndpoints)
	}
}

func TestAlertThresholdFiresOnIncrement(t *testing.T) {
	a, sink := newTestAggregator(map[errors.Severity]int{errors.SeverityHigh: 3})

	for i := 0; i < 3; i++ {
		a.ReportError(errors.New(errors.CategoryExternalAPI, "down", nil).WithEndpoint("search"))
	}

	deadline := time.Now().Add(time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sink.count() != 1 {
		t.Fatalf("expected one alert at threshold, got %d", sink.count())
	}
	sink.mu.Lock()
	fired := sink.alerts[0]
	sink.mu.Unlock()
	if fired.Frequency != 3 || fired.Threshold != 3 {
		t.Errorf("unexpected alert payload: %+v", fired)
	}
}

func TestResolutionUpdate(t *testing.T) {
	a, _ := newTestAggregator(nil)
	a.ReportError(errors.New(errors.CategoryRateLimit, "throttled", nil).WithEndpoint("search"))

	sig := a.Reports(Filter{})[0].Signature
	if !a.UpdateResolution(sig, StatusInvestigating, "oncall", "rate limits raised upstream") {
		t.Fatalf("expected update to succeed")
	}
	if a.UpdateResolution("no-such-signature", StatusResolved, "", "") {
		t.Errorf("expected update to fail for unknown signature")
	}

	rpt := a.Reports(Filter{Status: StatusInvestigating})[0]
	if rpt.Assignee != "oncall" || rpt.Notes == "" {
		t.Errorf("expected assignee and notes recorded, got %+v", rpt)
	}
}

func TestRetentionCleanup(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retention = 50 * time.Millisecond
	a := New(cfg, nil)

	a.ReportError(errors.New(errors.CategoryNetwork, "old failure", nil).WithEndpoint("courts"))
	time.Sleep(80 * time.Millisecond)
	a.ReportError(errors.New(errors.CategoryTimeout, "new failure", nil).WithEndpoint("search"))

	if removed := a.Cleanup(); removed != 1 {
		t.Fatalf("expected one report purged, got %d", removed)
	}

	reports := a.Reports(Filter{})
	if len(reports) != 1 || reports[0].Category != errors.CategoryTimeout {
		t.Errorf("expected only the recent report to survive, got %+v", reports)
	}
}

func TestTrendsClassification(t *testing.T) {
	a, _ := newTestAggregator(nil)

	// Baseline window: 2 network errors.
	a.ReportError(errors.New(errors.CategoryNetwork, "n", nil))
	a.ReportError(errors.New(errors.CategoryNetwork, "n", nil))
	a.rotateTrends()

	// Current window: 5 network errors, 0 of the previous volume elsewhere.
	for i := 0; i < 5; i++ {
		a.ReportError(errors.New(errors.CategoryNetwork, "n", nil))
	}
	a.rotateTrends()

	trends := a.Trends()
	if len(trends) != 1 {
		t.Fatalf("expected one trend, got %d", len(trends))
	}
	if trends[0].Direction != TrendIncreasing {
		t.Errorf("5 vs baseline 2 must classify increasing, got %s", trends[0].Direction)
	}

	// Next window: silence. 0 vs 5 is decreasing.
	a.rotateTrends()
	trends = a.Trends()
	if trends[0].Direction != TrendDecreasing {
		t.Errorf("0 vs baseline 5 must classify decreasing, got %s", trends[0].Direction)
	}
}

func TestClassifyBands(t *testing.T) {
	tests := []struct {
		count, baseline int
		want            TrendDirection
	}{
		{0, 0, TrendStable},
		{1, 0, TrendIncreasing},
		{10, 10, TrendStable},
		{13, 10, TrendIncreasing},
		{7, 10, TrendDecreasing},
		{11, 10, TrendStable},
	}
	for _, tt := range tests {
		if got := classify(tt.count, tt.baseline); got != tt.want {
			t.Errorf("classify(%d, %d) = %s, want %s", tt.count, tt.baseline, got, tt.want)
		}
	}
}

func TestExportFormats(t *testing.T) {
	a, _ := newTestAggregator(nil)
	a.ReportError(errors.New(errors.CategoryExternalAPI, "boom", nil).WithEndpoint("opinions"))

	jsonOut, err := a.Export("json")
	if err != nil {
		t.Fatalf("json export: %v", err)
	}
	if !strings.Contains(jsonOut, "\"external_api\"") {
		t.Errorf("json export missing category: %s", jsonOut)
	}

	yamlOut, err := a.Export("yaml")
	if err != nil {
		t.Fatalf("yaml export: %v", err)
	}
	if !strings.Contains(yamlOut, "category: external_api") {
		t.Errorf("yaml export missing category: %s", yamlOut)
	}

	if _, err := a.Export("xml"); err == nil {
		t.Errorf("expected error for unknown format")
	}
}

func TestStartStopLoop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AggregationInterval = 10 * time.Millisecond
	cfg.Retention = time.Millisecond
	a := New(cfg, nil)

	a.ReportError(errors.New(errors.CategoryNetwork, "n", nil))
	a.Start()
	time.Sleep(50 * time.Millisecond)
	a.Stop()
	a.Stop() // idempotent

	if got := len(a.Reports(Filter{})); got != 0 {
		t.Errorf("expected retention loop to purge reports, got %d", got)
	}
	if len(a.Trends()) == 0 {
		t.Errorf("expected trend computation to have run")
	}
}
