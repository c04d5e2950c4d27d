// Package series folds raw insight responses into date-ordered daily
// records and interval summaries, honoring per-metric additivity.
package series

import (
	"sort"
	"strconv"
)

// Metric names with fixed combination semantics. Reach and frequency are
// deduplicated by the platform per query interval, so their totals must
// come from a single whole-interval request, never from summing days.
var additiveMetrics = map[string]bool{
	"spend":       true,
	"impressions": true,
	"clicks":      true,
	"conversions": true,
	"reach":       false,
	"frequency":   false,
}

// IsAdditive reports whether a metric's interval total may be computed by
// summing its daily values. Unknown metrics return ok=false; callers adding
// a new metric must register its additivity here rather than assume it.
func IsAdditive(name string) (additive, ok bool) {
	additive, ok = additiveMetrics[name]
	return additive, ok
}

// conversionActionTypes is the allow-list of action types counted as
// conversions. Entries outside the list are ignored, not errored.
var conversionActionTypes = map[string]bool{
	"purchase":                             true,
	"lead":                                 true,
	"complete_registration":                true,
	"omni_purchase":                        true,
	"offsite_conversion.fb_pixel_purchase": true,
}

// Row is one decoded insight row: a reporting date plus the raw metric
// values the platform returned for it.
type Row struct {
	Date   string
	Values map[string]any
}

// Response is one metric-group response, already decoded from the wire.
type Response []Row

// DailyRecord is the merged view of one reporting date across all metric
// groups.
type DailyRecord struct {
	Date    string             `json:"date"`
	Metrics map[string]float64 `json:"metrics"`
}

// Summary holds whole-interval totals.
type Summary struct {
	Metrics map[string]float64 `json:"metrics"`
}

// Merge folds daily metric-group responses into one ascending series and
// computes the interval summary.
//
// Within a date, each metric takes the last value written for it; metrics
// normally appear in exactly one response group, so this only matters when
// groups overlap. Days absent from every response do not appear in the
// series.
//
// The summary comes from summaryResponse, a whole-interval request issued
// without a daily increment. Summing the series would overcount
// non-additive metrics, so the supplied value is authoritative even for
// additive ones. An empty summaryResponse yields all-zero totals rather
// than an error.
func Merge(daily []Response, summaryResponse Response) ([]DailyRecord, Summary) {
	byDate := make(map[string]*DailyRecord)

	for _, resp := range daily {
		for _, row := range resp {
			rec, ok := byDate[row.Date]
			if !ok {
				rec = &DailyRecord{Date: row.Date, Metrics: make(map[string]float64)}
				byDate[row.Date] = rec
			}
			mergeValues(rec.Metrics, row.Values)
		}
	}

	records := make([]DailyRecord, 0, len(byDate))
	for _, rec := range byDate {
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date < records[j].Date
	})

	// Zero-seed every metric the series knows about, so the summary has
	// a stable shape even when the whole-interval request came back
	// empty.
	summary := Summary{Metrics: make(map[string]float64)}
	for _, rec := range records {
		for name := range rec.Metrics {
			summary.Metrics[name] = 0
		}
	}
	for _, row := range summaryResponse {
		mergeValues(summary.Metrics, row.Values)
	}

	return records, summary
}

// FlattenRow reduces one row's raw values to scalar metrics, applying the
// same actions and flattening rules as Merge. Useful for whole-interval
// responses that carry a single row.
func FlattenRow(row Row) map[string]float64 {
	m := make(map[string]float64)
	mergeValues(m, row.Values)
	return m
}

// mergeValues folds one row's raw values into a metric map. The actions
// list is reduced to the derived "conversions" metric; everything else is
// flattened to a scalar.
func mergeValues(dst map[string]float64, values map[string]any) {
	for name, value := range values {
		switch name {
		case "date_start", "date_stop":
			continue
		case "actions":
			dst["conversions"] = conversionsFromActions(value)
		default:
			if v, ok := FlattenValue(value); ok {
				dst[name] = v
			}
		}
	}
}

// conversionsFromActions sums the value field of every allow-listed entry
// in an actions-style list.
func conversionsFromActions(value any) float64 {
	entries, ok := value.([]any)
	if !ok {
		return 0
	}

	total := 0.0
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		actionType, _ := entry["action_type"].(string)
		if !conversionActionTypes[actionType] {
			continue
		}
		if v, ok := FlattenValue(entry["value"]); ok {
			total += v
		}
	}
	return total
}

// FlattenValue reduces a decoded JSON value to a scalar by summing its
// numeric leaves. The platform serializes numbers as strings, so numeric
// strings count as leaves. Non-numeric values reduce to nothing.
func FlattenValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case map[string]any:
		total, found := 0.0, false
		for _, leaf := range v {
			if f, ok := FlattenValue(leaf); ok {
				total += f
				found = true
			}
		}
		return total, found
	case []any:
		total, found := 0.0, false
		for _, leaf := range v {
			if f, ok := FlattenValue(leaf); ok {
				total += f
				found = true
			}
		}
		return total, found
	default:
		return 0, false
	}
}
