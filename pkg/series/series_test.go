package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeTwoGroupsSummaryAuthoritative(t *testing.T) {
	spendResp := Response{
		{Date: "2024-03-01", Values: map[string]any{"spend": "10.50"}},
		{Date: "2024-03-02", Values: map[string]any{"spend": "4.25"}},
	}
	reachResp := Response{
		{Date: "2024-03-01", Values: map[string]any{"reach": "800"}},
		{Date: "2024-03-02", Values: map[string]any{"reach": "700"}},
	}
	// Whole-interval reach is deduplicated upstream and deliberately
	// differs from the daily sum of 1500.
	summaryResp := Response{
		{Date: "2024-03-01", Values: map[string]any{"spend": "14.75", "reach": "1100"}},
	}

	records, summary := Merge([]Response{spendResp, reachResp}, summaryResp)

	require.Len(t, records, 2)
	assert.Equal(t, "2024-03-01", records[0].Date)
	assert.Equal(t, "2024-03-02", records[1].Date)
	for _, rec := range records {
		assert.Contains(t, rec.Metrics, "spend")
		assert.Contains(t, rec.Metrics, "reach")
	}
	assert.Equal(t, 10.50, records[0].Metrics["spend"])
	assert.Equal(t, 700.0, records[1].Metrics["reach"])

	assert.Equal(t, 1100.0, summary.Metrics["reach"], "summary reach must come from the whole-interval response, not the daily sum")
	assert.Equal(t, 14.75, summary.Metrics["spend"])
}

func TestMergeEmptySummaryYieldsZeros(t *testing.T) {
	daily := Response{
		{Date: "2024-03-01", Values: map[string]any{"spend": "10", "impressions": "500"}},
	}

	records, summary := Merge([]Response{daily}, nil)

	require.Len(t, records, 1)
	assert.Equal(t, 0.0, summary.Metrics["spend"])
	assert.Equal(t, 0.0, summary.Metrics["impressions"])
}

func TestMergeSortsByDate(t *testing.T) {
	resp := Response{
		{Date: "2024-03-03", Values: map[string]any{"clicks": "3"}},
		{Date: "2024-03-01", Values: map[string]any{"clicks": "1"}},
		{Date: "2024-03-02", Values: map[string]any{"clicks": "2"}},
	}

	records, _ := Merge([]Response{resp}, nil)

	require.Len(t, records, 3)
	for i, want := range []string{"2024-03-01", "2024-03-02", "2024-03-03"} {
		assert.Equal(t, want, records[i].Date)
	}
}

func TestMergeConversionsAllowList(t *testing.T) {
	resp := Response{
		{Date: "2024-03-01", Values: map[string]any{
			"actions": []any{
				map[string]any{"action_type": "purchase", "value": "3"},
				map[string]any{"action_type": "lead", "value": "2"},
				map[string]any{"action_type": "link_click", "value": "400"},
				map[string]any{"action_type": "omni_purchase", "value": "1"},
			},
		}},
	}

	records, _ := Merge([]Response{resp}, nil)

	require.Len(t, records, 1)
	assert.Equal(t, 6.0, records[0].Metrics["conversions"], "only allow-listed action types count")
	assert.NotContains(t, records[0].Metrics, "actions")
}

func TestMergeFlattensCompositeValues(t *testing.T) {
	resp := Response{
		{Date: "2024-03-01", Values: map[string]any{
			"cost_per_action_type": map[string]any{
				"purchase": "2.50",
				"lead":     "1.25",
			},
		}},
	}

	records, _ := Merge([]Response{resp}, nil)

	require.Len(t, records, 1)
	assert.Equal(t, 3.75, records[0].Metrics["cost_per_action_type"])
}

func TestMergeSkipsNonNumericValues(t *testing.T) {
	resp := Response{
		{Date: "2024-03-01", Values: map[string]any{
			"spend":         "12.00",
			"account_name":  "Spring Launch",
			"campaign_goal": nil,
		}},
	}

	records, _ := Merge([]Response{resp}, nil)

	require.Len(t, records, 1)
	assert.Equal(t, 12.0, records[0].Metrics["spend"])
	assert.NotContains(t, records[0].Metrics, "account_name")
	assert.NotContains(t, records[0].Metrics, "campaign_goal")
}

func TestMergeNoInput(t *testing.T) {
	records, summary := Merge(nil, nil)
	assert.Empty(t, records)
	assert.Empty(t, summary.Metrics)
}

func TestIsAdditive(t *testing.T) {
	tests := []struct {
		name         string
		wantAdditive bool
		wantOK       bool
	}{
		{"spend", true, true},
		{"impressions", true, true},
		{"conversions", true, true},
		{"reach", false, true},
		{"frequency", false, true},
		{"video_views", false, false},
	}

	for _, tt := range tests {
		additive, ok := IsAdditive(tt.name)
		assert.Equal(t, tt.wantAdditive, additive, tt.name)
		assert.Equal(t, tt.wantOK, ok, tt.name)
	}
}
