package daterange

import (
	"errors"
	"testing"
	"time"
)

func fixedResolver(date string) *Resolver {
	today, err := time.Parse(ISODate, date)
	if err != nil {
		panic(err)
	}
	return NewResolverAt(func() time.Time { return today })
}

func TestResolveExplicitRangePassthrough(t *testing.T) {
	r := fixedResolver("2024-06-15")

	tests := []struct {
		start, end string
	}{
		{"2024-01-01", "2024-03-31"},
		{"2024-06-15", "2024-06-15"},
		{"2021-07-12", "2024-06-14"}, // exactly 1068 days back, within the span limit
	}

	for _, tt := range tests {
		interval, err := r.Resolve("", tt.start, tt.end)
		if err != nil {
			t.Errorf("Resolve(%s, %s): %v", tt.start, tt.end, err)
			continue
		}
		if interval.SinceISO() != tt.start || interval.UntilISO() != tt.end {
			t.Errorf("Resolve(%s, %s) = [%s, %s], want unchanged",
				tt.start, tt.end, interval.SinceISO(), interval.UntilISO())
		}
	}
}

func TestResolveSpanLimit(t *testing.T) {
	r := fixedResolver("2024-06-15")

	// until - since of exactly 1100 days is the widest accepted range.
	interval, err := r.Resolve("", "2021-06-11", "2024-06-15")
	if err != nil {
		t.Fatalf("1100-day span rejected: %v", err)
	}
	if got := spanDays(interval); got != 1100 {
		t.Fatalf("span = %d days, want 1100", got)
	}

	_, err = r.Resolve("", "2021-06-10", "2024-06-15")
	if !errors.Is(err, ErrRangeTooLarge) {
		t.Errorf("1101-day span: err = %v, want ErrRangeTooLarge", err)
	}
}

func TestResolvePeriodThirtyDays(t *testing.T) {
	r := fixedResolver("2024-03-31")

	interval, err := r.Resolve("30d", "", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if interval.SinceISO() != "2024-03-02" {
		t.Errorf("since = %s, want 2024-03-02", interval.SinceISO())
	}
	if interval.UntilISO() != "2024-03-31" {
		t.Errorf("until = %s, want 2024-03-31", interval.UntilISO())
	}
	if interval.Days() != 30 {
		t.Errorf("days = %d, want 30", interval.Days())
	}
}

func TestResolvePeriodTable(t *testing.T) {
	r := fixedResolver("2024-03-31")

	tests := []struct {
		period    string
		wantSince string
	}{
		{"7d", "2024-03-25"},
		{"30d", "2024-03-02"},
		{"90d", "2024-01-02"},
		{"365d", "2023-04-02"},
		{"quarterly", "2024-03-02"}, // unknown symbol falls back to 30 days
		{"", "2024-03-02"},          // nothing supplied at all
	}

	for _, tt := range tests {
		interval, err := r.Resolve(tt.period, "", "")
		if err != nil {
			t.Errorf("Resolve(%q): %v", tt.period, err)
			continue
		}
		if interval.SinceISO() != tt.wantSince {
			t.Errorf("Resolve(%q) since = %s, want %s", tt.period, interval.SinceISO(), tt.wantSince)
		}
		if interval.UntilISO() != "2024-03-31" {
			t.Errorf("Resolve(%q) until = %s, want today", tt.period, interval.UntilISO())
		}
	}
}

func TestResolveValidationErrors(t *testing.T) {
	r := fixedResolver("2024-06-15")

	tests := []struct {
		name       string
		start, end string
		want       error
	}{
		{"garbage start", "15-06-2024", "2024-06-15", ErrInvalidDateFormat},
		{"garbage end", "2024-06-01", "June 15", ErrInvalidDateFormat},
		{"inverted", "2024-06-10", "2024-06-01", ErrInvalidRange},
		{"future end", "2024-06-01", "2024-06-16", ErrFutureEndDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve("", tt.start, tt.end)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResolveOldSinceWarnsButSucceeds(t *testing.T) {
	r := fixedResolver("2024-06-15")

	// Start far beyond the retention window but with a narrow span:
	// accepted, the retention concern is only logged.
	interval, err := r.Resolve("", "2019-01-01", "2019-03-01")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if interval.SinceISO() != "2019-01-01" {
		t.Errorf("since = %s, want passthrough", interval.SinceISO())
	}
}

func TestTimeRangeParam(t *testing.T) {
	interval, err := fixedResolver("2024-03-31").Resolve("", "2024-03-02", "2024-03-31")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := `{"since":"2024-03-02","until":"2024-03-31"}`
	if got := interval.TimeRangeParam(); got != want {
		t.Errorf("TimeRangeParam() = %s, want %s", got, want)
	}
}
