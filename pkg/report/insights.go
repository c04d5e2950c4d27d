package report

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stratdash/meta-insights/pkg/series"
)

// toSeriesRows decodes raw insight rows into series rows keyed by their
// date_start field. Whole-interval rows have the interval start there,
// which the caller ignores.
func toSeriesRows(items []json.RawMessage) (series.Response, error) {
	rows := make(series.Response, 0, len(items))
	for i, item := range items {
		var values map[string]any
		if err := json.Unmarshal(item, &values); err != nil {
			return nil, fmt.Errorf("decode insight row %d: %w", i, err)
		}
		date, _ := values["date_start"].(string)
		rows = append(rows, series.Row{Date: date, Values: values})
	}
	return rows, nil
}

// summaryMetrics extracts the fixed metric set from a whole-interval
// insights response. An empty response yields all zeros.
func summaryMetrics(rows series.Response) Metrics {
	if len(rows) == 0 {
		return Metrics{}
	}
	return metricsFrom(series.FlattenRow(rows[0]))
}

// actionValue sums the value of entries with the given action type in a
// row's actions list.
func actionValue(values map[string]any, actionType string) float64 {
	entries, ok := values["actions"].([]any)
	if !ok {
		return 0
	}

	total := 0.0
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := entry["action_type"].(string); t != actionType {
			continue
		}
		total += toFloat(entry["value"])
	}
	return total
}

// toFloat coerces a decoded JSON scalar to float64. The platform
// serializes most numbers as strings.
func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// parseCents converts a minor-unit amount string to currency units.
func parseCents(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f / 100
}

// centsPtr converts an optional minor-unit amount. The platform omits
// budget fields entirely on entities without one.
func centsPtr(s string) *float64 {
	if s == "" {
		return nil
	}
	v := parseCents(s)
	return &v
}
