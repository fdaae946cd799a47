package kpi

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"agrosmi/app/service/capability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func record(t *testing.T, a *Aggregator, kind Kind, payload any) {
	t.Helper()
	require.NoError(t, a.Record(Event{Kind: kind, Time: time.Now(), Payload: payload}))
}

func TestAggregatorSummary(t *testing.T) {
	a := NewAggregator(10)

	ok := NewOrchestration("t1", "u1", "regar", false, []string{"water"}, 2)
	slow := NewOrchestration("t2", "u1", "regar", false, []string{"water", "risk", "production"}, 4)
	failed := NewOrchestration("t3", "u2", "precio", false, nil, 1)
	failed.Failed = true

	record(t, a, KindOrchestration, ok)
	record(t, a, KindOrchestration, slow)
	record(t, a, KindOrchestration, failed)
	record(t, a, KindLatency, NewLatency("t1", "u1", false, 2*time.Second, time.Second, nil))
	record(t, a, KindLatency, NewLatency("t2", "u1", false, 8*time.Second, time.Second, nil))
	record(t, a, KindDiagnosis, Diagnosis{UserID: "u1", Confidence: 0.8})

	all := a.Summary("")
	assert.Equal(t, 3, all.Turns)
	assert.InDelta(t, 1.0/3.0, all.FailureRate, 1e-9)
	assert.InDelta(t, (1.0+3.0/7.0+1.0)/3.0, all.MeanEfficiency, 1e-9)
	assert.InDelta(t, 1.0, all.MedianEfficiency, 1e-9)
	assert.Equal(t, 2, all.Categories[CategoryIrrigation])
	assert.InDelta(t, 5.0, all.MeanLatency, 1e-9)
	assert.InDelta(t, 8.0, all.P95Latency, 1e-9)
	assert.InDelta(t, 0.5, all.WithinThreshold, 1e-9)
	assert.Equal(t, 1, all.Diagnoses)

	u2 := a.Summary("u2")
	assert.Equal(t, 1, u2.Turns)
	assert.InDelta(t, 1.0, u2.FailureRate, 1e-9)
	assert.Zero(t, u2.MeanLatency)

	none := a.Summary("nobody")
	assert.Zero(t, none.Turns)
	assert.Zero(t, none.MeanEfficiency)
}

func TestAggregatorWindow(t *testing.T) {
	a := NewAggregator(2)
	for _, id := range []string{"t1", "t2", "t3"} {
		record(t, a, KindOrchestration, Orchestration{TurnID: id, Efficiency: 1})
	}
	record(t, a, "unknown", "ignored")

	assert.Equal(t, 2, a.Summary("").Turns)
}

func TestSummaryTool(t *testing.T) {
	a := NewAggregator(10)
	record(t, a, KindOrchestration, NewOrchestration("t1", "u1", "regar", false, []string{"water"}, 2))

	catalog, err := capability.NewCatalog()
	require.NoError(t, err)
	registry := capability.NewRegistry(catalog)
	require.NoError(t, registry.Bind(capability.GetKPISummary, SummaryTool(a)))

	set, err := registry.Set(capability.GetKPISummary)
	require.NoError(t, err)

	res := set.Invoke(context.Background(), llms.ToolCall{
		ID:           "1",
		FunctionCall: &llms.FunctionCall{Name: "get_kpi_summary", Arguments: `{"user_id":"u1"}`},
	})
	require.True(t, res.Success, res.Error)

	var summary Summary
	require.NoError(t, json.Unmarshal([]byte(res.Payload), &summary))
	assert.Equal(t, 1, summary.Turns)
}
