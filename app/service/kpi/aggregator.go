package kpi

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

const defaultWindow = 1000

// Aggregator keeps the latest events in memory for summaries.
type Aggregator struct {
	window int

	mu             sync.RWMutex
	orchestrations []Orchestration
	latencies      []Latency
	diagnoses      []Diagnosis
}

var _ Recorder = (*Aggregator)(nil)

func NewAggregator(window int) *Aggregator {
	if window <= 0 {
		window = defaultWindow
	}

	return &Aggregator{window: window}
}

func (a *Aggregator) Record(event Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch payload := event.Payload.(type) {
	case Orchestration:
		a.orchestrations = keepLast(append(a.orchestrations, payload), a.window)
	case Latency:
		a.latencies = keepLast(append(a.latencies, payload), a.window)
	case Diagnosis:
		a.diagnoses = keepLast(append(a.diagnoses, payload), a.window)
	}

	return nil
}

func keepLast[T any](items []T, limit int) []T {
	if len(items) <= limit {
		return items
	}

	return append(items[:0:0], items[len(items)-limit:]...)
}

type Summary struct {
	Turns            int              `json:"turns"`
	MeanEfficiency   float64          `json:"mean_efficiency"`
	MedianEfficiency float64          `json:"median_efficiency"`
	EfficientShare   float64          `json:"efficient_share"`
	FailureRate      float64          `json:"failure_rate"`
	MeanNodes        float64          `json:"mean_nodes"`
	Categories       map[Category]int `json:"categories"`

	MeanLatency     float64 `json:"mean_latency_seconds"`
	P95Latency      float64 `json:"p95_latency_seconds"`
	WithinThreshold float64 `json:"within_threshold_share"`

	Diagnoses      int     `json:"diagnoses"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// Summary aggregates the recorded events, restricted to userID when set.
func (a *Aggregator) Summary(userID string) Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	summary := Summary{Categories: map[Category]int{}}

	var efficiency, nodes []float64
	failed, efficient := 0, 0
	for _, o := range a.orchestrations {
		if userID != "" && o.UserID != userID {
			continue
		}

		efficiency = append(efficiency, o.Efficiency)
		nodes = append(nodes, float64(o.NodesCount))
		summary.Categories[o.Category]++
		if o.Failed {
			failed++
		}
		if o.Efficient {
			efficient++
		}
	}

	summary.Turns = len(efficiency)
	if summary.Turns > 0 {
		turns := float64(summary.Turns)
		summary.MeanEfficiency = stat.Mean(efficiency, nil)
		summary.MedianEfficiency = quantile(0.5, efficiency)
		summary.MeanNodes = stat.Mean(nodes, nil)
		summary.FailureRate = float64(failed) / turns
		summary.EfficientShare = float64(efficient) / turns
	}

	var totals []float64
	within := 0
	for _, l := range a.latencies {
		if userID != "" && l.UserID != userID {
			continue
		}

		totals = append(totals, l.Total)
		if l.WithinThreshold {
			within++
		}
	}
	if len(totals) > 0 {
		summary.MeanLatency = stat.Mean(totals, nil)
		summary.P95Latency = quantile(0.95, totals)
		summary.WithinThreshold = float64(within) / float64(len(totals))
	}

	var confidence []float64
	for _, d := range a.diagnoses {
		if userID != "" && d.UserID != userID {
			continue
		}
		confidence = append(confidence, d.Confidence)
	}
	summary.Diagnoses = len(confidence)
	if len(confidence) > 0 {
		summary.MeanConfidence = stat.Mean(confidence, nil)
	}

	return summary
}

func quantile(p float64, values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	return stat.Quantile(p, stat.Empirical, sorted, nil)
}
