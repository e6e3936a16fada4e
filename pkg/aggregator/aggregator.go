// SPDX-License-Identifier: Apache-2.0
// Package aggregator groups structurally similar gateway failures into
// rolling reports, evaluates per-severity alert thresholds, and bounds
// memory with a retention sweep.
package aggregator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openjurist/lexgate/pkg/alert"
	"github.com/openjurist/lexgate/pkg/errors"
)

// ResolutionStatus tracks triage state of a report.
type ResolutionStatus string

const (
	StatusUnresolved    ResolutionStatus = "unresolved"
	StatusInvestigating ResolutionStatus = "investigating"
	StatusResolved      ResolutionStatus = "resolved"
	StatusIgnored       ResolutionStatus = "ignored"
)

// ErrorReport is one rolling report per normalized error signature.
type ErrorReport struct {
	ID                string           `json:"id" yaml:"id"`
	Signature         string           `json:"signature" yaml:"signature"`
	FirstSeen         time.Time        `json:"first_seen" yaml:"first_seen"`
	LastSeen          time.Time        `json:"last_seen" yaml:"last_seen"`
	Frequency         int              `json:"frequency" yaml:"frequency"`
	Category          errors.Category  `json:"category" yaml:"category"`
	Severity          errors.Severity  `json:"severity" yaml:"severity"`
	Message           string           `json:"message" yaml:"message"`
	AffectedEndpoints []string         `json:"affected_endpoints" yaml:"affected_endpoints"`
	UserImpact        string           `json:"user_impact" yaml:"user_impact"`
	Resolution        ResolutionStatus `json:"resolution" yaml:"resolution"`
	Assignee          string           `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	Notes             string           `json:"notes,omitempty" yaml:"notes,omitempty"`

	endpoints map[string]struct{}
}

// Config controls aggregation behavior.
type Config struct {
	// AggregationInterval drives trend recomputation and the retention sweep.
	AggregationInterval time.Duration

	// Retention bounds how long a report survives past its last occurrence.
	Retention time.Duration

	// AlertThresholds maps severity to the report frequency that fires an
	// alert. Zero disables alerting for that severity.
	AlertThresholds map[errors.Severity]int
}

// DefaultConfig returns the aggregator defaults.
func DefaultConfig() Config {
	return Config{
		AggregationInterval: 5 * time.Minute,
		Retention:           30 * 24 * time.Hour,
		AlertThresholds: map[errors.Severity]int{
			errors.SeverityCritical: 1,
			errors.SeverityHigh:     5,
			errors.SeverityMedium:   20,
			errors.SeverityLow:      100,
		},
	}
}

// Filter selects reports in Reports queries. Zero values match everything.
type Filter struct {
	Category errors.Category
	Severity errors.Severity
	Endpoint string
	Status   ResolutionStatus
	Since    time.Time
	Limit    int
}

// Aggregator receives every unrecovered failure and maintains grouped
// reports, trends, and alerts. Safe for concurrent use. Start/Stop own the
// periodic trend and retention loop.
type Aggregator struct {
	cfg  Config
	sink alert.Sink
	log  *slog.Logger

	mu      sync.Mutex
	reports map[string]*ErrorReport
	current map[trendKey]int
	prev    map[trendKey]int
	trends  []ErrorTrend

	stopOnce sync.Once
	done     chan struct{}
}

// New creates an Aggregator delivering alerts to sink. A nil sink falls back
// to the structured log.
func New(cfg Config, sink alert.Sink) *Aggregator {
	if cfg.AggregationInterval <= 0 {
		cfg.AggregationInterval = 5 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if sink == nil {
		sink = alert.LogSink{}
	}
	return &Aggregator{
		cfg:     cfg,
		sink:    sink,
		log:     slog.Default(),
		reports: make(map[string]*ErrorReport),
		current: make(map[trendKey]int),
		prev:    make(map[trendKey]int),
		done:    make(chan struct{}),
	}
}

// ReportError folds err into its signature's report, creating the report on
// first occurrence, and evaluates the severity's alert threshold.
func (a *Aggregator) ReportError(err error) {
	ge := errors.AsGatewayError(err)
	if ge == nil {
		return
	}
	sig := Signature(ge)
	now := time.Now()

	a.mu.Lock()
	rpt, ok := a.reports[sig]
	if !ok {
		rpt = &ErrorReport{
			ID:         uuid.NewString(),
			Signature:  sig,
			FirstSeen:  now,
			Category:   ge.Category,
			Severity:   ge.Severity,
			Message:    normalizeMessage(ge.Message),
			UserImpact: userImpact(ge.Category),
			Resolution: StatusUnresolved,
			endpoints:  make(map[string]struct{}),
		}
		a.reports[sig] = rpt
	}
	rpt.Frequency++
	rpt.LastSeen = now
	if ge.Endpoint != "" {
		if _, seen := rpt.endpoints[ge.Endpoint]; !seen {
			rpt.endpoints[ge.Endpoint] = struct{}{}
			rpt.AffectedEndpoints = append(rpt.AffectedEndpoints, ge.Endpoint)
			sort.Strings(rpt.AffectedEndpoints)
		}
	}
	a.current[trendKey{ge.Category, ge.Severity}]++

	threshold := a.cfg.AlertThresholds[ge.Severity]
	fire := threshold > 0 && rpt.Frequency%threshold == 0
	snapshot := snapshotReport(rpt)
	a.mu.Unlock()

	if fire {
		a.dispatchAlert(snapshot, threshold)
	}
}

// dispatchAlert delivers asynchronously; delivery failures are logged and
// never surface to the reporting call.
func (a *Aggregator) dispatchAlert(rpt ErrorReport, threshold int) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		endpoint := ""
		if len(rpt.AffectedEndpoints) > 0 {
			endpoint = rpt.AffectedEndpoints[len(rpt.AffectedEndpoints)-1]
		}
		err := a.sink.Send(ctx, alert.Alert{
			Severity:  string(rpt.Severity),
			Category:  string(rpt.Category),
			Message:   rpt.Message,
			Endpoint:  endpoint,
			Frequency: rpt.Frequency,
			Threshold: threshold,
			FiredAt:   time.Now(),
		})
		if err != nil {
			a.log.Warn("aggregator.alert.failed",
				slog.String("signature", rpt.Signature),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Reports returns reports matching the filter, most recent first.
func (a *Aggregator) Reports(f Filter) []ErrorReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]ErrorReport, 0, len(a.reports))
	for _, rpt := range a.reports {
		if f.Category != "" && rpt.Category != f.Category {
			continue
		}
		if f.Severity != "" && rpt.Severity != f.Severity {
			continue
		}
		if f.Status != "" && rpt.Resolution != f.Status {
			continue
		}
		if !f.Since.IsZero() && rpt.LastSeen.Before(f.Since) {
			continue
		}
		if f.Endpoint != "" {
			if _, ok := rpt.endpoints[f.Endpoint]; !ok {
				continue
			}
		}
		out = append(out, snapshotReport(rpt))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// UpdateResolution sets triage state on the report with the given signature.
// Returns false when no such report exists.
func (a *Aggregator) UpdateResolution(signature string, status ResolutionStatus, assignee, notes string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	rpt, ok := a.reports[signature]
	if !ok {
		return false
	}
	rpt.Resolution = status
	if assignee != "" {
		rpt.Assignee = assignee
	}
	if notes != "" {
		rpt.Notes = notes
	}
	return true
}

// Cleanup purges reports whose last occurrence predates the retention window
// and returns the number removed.
func (a *Aggregator) Cleanup() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-a.cfg.Retention)
	removed := 0
	for sig, rpt := range a.reports {
		if rpt.LastSeen.Before(cutoff) {
			delete(a.reports, sig)
			removed++
		}
	}
	return removed
}

// Start launches the aggregation loop: each interval it recomputes trends
// and runs the retention sweep. The owner must call Stop on shutdown.
func (a *Aggregator) Start() {
	go func() {
		ticker := time.NewTicker(a.cfg.AggregationInterval)
		defer ticker.Stop()
		for {
			select {
			case <-a.done:
				return
			case <-ticker.C:
				a.rotateTrends()
				if removed := a.Cleanup(); removed > 0 {
					a.log.Info("aggregator.retention", slog.Int("removed", removed))
				}
			}
		}
	}()
}

// Stop terminates the aggregation loop. Safe to call more than once.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.done) })
}

// snapshotReport copies a report for use outside the lock.
func snapshotReport(rpt *ErrorReport) ErrorReport {
	out := *rpt
	out.AffectedEndpoints = append([]string(nil), rpt.AffectedEndpoints...)
	out.endpoints = nil
	return out
}

func userImpact(category errors.Category) string {
	switch category {
	case errors.CategoryNetwork:
		return "requests may fail or respond slowly while the upstream is unreachable"
	case errors.CategoryRateLimit:
		return "requests are being throttled; results may be delayed or degraded"
	case errors.CategoryExternalAPI:
		return "upstream legal data service is failing; stale or degraded results likely"
	case errors.CategoryTimeout:
		return "responses are slower than the configured limits"
	case errors.CategoryValidation:
		return "a client is sending malformed requests; no data impact"
	case errors.CategoryCircuitOpen:
		return "calls are failing fast while the upstream recovers"
	default:
		return "unclassified failures; impact unknown"
	}
}
