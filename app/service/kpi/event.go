package kpi

import (
	"time"
	"unicode/utf8"
)

type Kind string

const (
	KindOrchestration Kind = "orchestration"
	KindLatency       Kind = "latency"
	KindDiagnosis     Kind = "diagnostics"
)

const (
	efficientThreshold = 0.85
	maxQueryLength     = 500
)

type Event struct {
	Kind    Kind      `json:"kind"`
	Time    time.Time `json:"timestamp"`
	Payload any       `json:"data"`
}

// Orchestration is the per-turn efficiency snapshot.
type Orchestration struct {
	TurnID       string   `json:"turn_id"`
	UserID       string   `json:"user_id"`
	Query        string   `json:"query"`
	Category     Category `json:"category"`
	HasImage     bool     `json:"has_image"`
	Visited      []string `json:"visited"`
	Cycles       int      `json:"cycles"`
	NodesCount   int      `json:"nodes_count"`
	NodesMinimum int      `json:"nodes_minimum"`
	Efficiency   float64  `json:"efficiency"`
	Efficient    bool     `json:"efficient"`
	Failed       bool     `json:"failed"`
	Termination  string   `json:"termination"`
}

// NewOrchestration computes the efficiency of a finished turn. A node is
// counted for every responder activation and every decision cycle; the
// minimum never exceeds the count, so efficiency stays in (0,1].
func NewOrchestration(turnID, userID, query string, hasImage bool, visited []string, cycles int) Orchestration {
	category := ClassifyQuery(query, hasImage)

	count := len(visited) + cycles
	if count < 1 {
		count = 1
	}
	minimum := min(MinimumNodes(category), count)
	efficiency := float64(minimum) / float64(count)

	return Orchestration{
		TurnID:       turnID,
		UserID:       userID,
		Query:        truncate(query, maxQueryLength),
		Category:     category,
		HasImage:     hasImage,
		Visited:      append([]string{}, visited...),
		Cycles:       cycles,
		NodesCount:   count,
		NodesMinimum: minimum,
		Efficiency:   efficiency,
		Efficient:    efficiency >= efficientThreshold,
	}
}

// Latency is the wall time of a turn and its phase breakdown, in seconds.
type Latency struct {
	TurnID          string             `json:"turn_id"`
	UserID          string             `json:"user_id"`
	HasImage        bool               `json:"has_image"`
	Total           float64            `json:"total"`
	Decision        float64            `json:"decision"`
	Responders      map[string]float64 `json:"responders"`
	Threshold       float64            `json:"threshold"`
	WithinThreshold bool               `json:"within_threshold"`
}

func LatencyThreshold(hasImage bool) time.Duration {
	if hasImage {
		return 10 * time.Second
	}

	return 5 * time.Second
}

func NewLatency(turnID, userID string, hasImage bool, total, decision time.Duration, responders map[string]time.Duration) Latency {
	threshold := LatencyThreshold(hasImage)

	breakdown := make(map[string]float64, len(responders))
	for id, d := range responders {
		breakdown[id] = d.Seconds()
	}

	return Latency{
		TurnID:          turnID,
		UserID:          userID,
		HasImage:        hasImage,
		Total:           total.Seconds(),
		Decision:        decision.Seconds(),
		Responders:      breakdown,
		Threshold:       threshold.Seconds(),
		WithinThreshold: total <= threshold,
	}
}

// Diagnosis is emitted by the vision responder for every analysed image.
type Diagnosis struct {
	TurnID         string            `json:"turn_id"`
	UserID         string            `json:"user_id"`
	Diagnosis      string            `json:"diagnosis"`
	Confidence     float64           `json:"confidence"`
	ProcessingTime float64           `json:"processing_time"`
	ImageSizeKB    int               `json:"image_size_kb"`
	Conditions     map[string]string `json:"conditions"`
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	return string([]rune(s)[:limit])
}
