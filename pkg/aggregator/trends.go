// SPDX-License-Identifier: Apache-2.0
package aggregator

import (
	"sort"
	"time"

	"github.com/openjurist/lexgate/pkg/errors"
)

// TrendDirection is a coarse classification of recent error volume.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// ErrorTrend is a rolling per-(category, severity) counter for one
// aggregation window, with volume compared against the previous window.
// Ephemeral: rebuilt each aggregation cycle.
type ErrorTrend struct {
	Category  errors.Category `json:"category" yaml:"category"`
	Severity  errors.Severity `json:"severity" yaml:"severity"`
	Window    time.Duration   `json:"window" yaml:"window"`
	Count     int             `json:"count" yaml:"count"`
	Baseline  int             `json:"baseline" yaml:"baseline"`
	Direction TrendDirection  `json:"direction" yaml:"direction"`
}

type trendKey struct {
	category errors.Category
	severity errors.Severity
}

// Trends returns the trends computed in the most recent aggregation cycle.
func (a *Aggregator) Trends() []ErrorTrend {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]ErrorTrend, len(a.trends))
	copy(out, a.trends)
	return out
}

// rotateTrends recomputes each (category, severity) counter against the
// previous window's volume and starts a new window.
func (a *Aggregator) rotateTrends() {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys := make(map[trendKey]struct{}, len(a.current)+len(a.prev))
	for k := range a.current {
		keys[k] = struct{}{}
	}
	for k := range a.prev {
		keys[k] = struct{}{}
	}

	trends := make([]ErrorTrend, 0, len(keys))
	for k := range keys {
		count := a.current[k]
		baseline := a.prev[k]
		trends = append(trends, ErrorTrend{
			Category:  k.category,
			Severity:  k.severity,
			Window:    a.cfg.AggregationInterval,
			Count:     count,
			Baseline:  baseline,
			Direction: classify(count, baseline),
		})
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].Category != trends[j].Category {
			return trends[i].Category < trends[j].Category
		}
		return trends[i].Severity < trends[j].Severity
	})

	a.trends = trends
	a.prev = a.current
	a.current = make(map[trendKey]int)
}

// classify compares recent volume against the baseline with a 20% band to
// avoid flapping between directions on small variations.
func classify(count, baseline int) TrendDirection {
	if baseline == 0 {
		if count > 0 {
			return TrendIncreasing
		}
		return TrendStable
	}
	ratio := float64(count) / float64(baseline)
	switch {
	case ratio > 1.2:
		return TrendIncreasing
	case ratio < 0.8:
		return TrendDecreasing
	default:
		return TrendStable
	}
}
