// Package daterange resolves symbolic reporting periods and explicit date
// ranges into validated closed intervals accepted by the Graph API.
package daterange

import (
	"errors"
	"fmt"
	"time"

	"github.com/stratdash/meta-insights/pkg/logging"
)

// ISODate is the calendar date layout used on the wire.
const ISODate = "2006-01-02"

// MaxSpanDays is the widest interval the remote platform accepts in a
// single insights request.
const MaxSpanDays = 1100

// Input validation errors. No network call is ever issued for a range
// that fails to resolve.
var (
	ErrInvalidDateFormat = errors.New("invalid date format, expected YYYY-MM-DD")
	ErrInvalidRange      = errors.New("range start is after range end")
	ErrRangeTooLarge     = errors.New("range exceeds maximum span")
	ErrFutureEndDate     = errors.New("range end is in the future")
)

// periodDays maps symbolic lookback periods to their day counts.
// Unrecognized symbols fall back to defaultPeriodDays.
var periodDays = map[string]int{
	"7d":   7,
	"30d":  30,
	"90d":  90,
	"365d": 365,
}

const defaultPeriodDays = 30

// Interval is a closed [Since, Until] calendar date range. Both endpoints
// are truncated to midnight UTC.
type Interval struct {
	Since time.Time
	Until time.Time
}

// SinceISO returns the interval start formatted for the wire.
func (i Interval) SinceISO() string { return i.Since.Format(ISODate) }

// UntilISO returns the interval end formatted for the wire.
func (i Interval) UntilISO() string { return i.Until.Format(ISODate) }

// TimeRangeParam renders the interval as the Graph API time_range query
// parameter value.
func (i Interval) TimeRangeParam() string {
	return fmt.Sprintf(`{"since":"%s","until":"%s"}`, i.SinceISO(), i.UntilISO())
}

// Days returns the inclusive day count covered by the interval.
func (i Interval) Days() int {
	return int(i.Until.Sub(i.Since).Hours()/24) + 1
}

// Resolver turns user-supplied period or range inputs into intervals. The
// clock is injectable so boundary behavior stays testable.
type Resolver struct {
	now func() time.Time
}

// NewResolver returns a resolver on the wall clock.
func NewResolver() *Resolver {
	return &Resolver{now: time.Now}
}

// NewResolverAt returns a resolver with a fixed notion of "now".
func NewResolverAt(now func() time.Time) *Resolver {
	return &Resolver{now: now}
}

// Resolve computes the reporting interval. An explicit start and end pair
// takes precedence over period; with neither given the last 30 days are
// used. Only explicit ranges are validated: symbolic periods are derived
// from today and cannot be out of bounds.
func (r *Resolver) Resolve(period, start, end string) (Interval, error) {
	today := truncateDay(r.now())

	if start != "" && end != "" {
		since, err := time.Parse(ISODate, start)
		if err != nil {
			return Interval{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, start)
		}
		until, err := time.Parse(ISODate, end)
		if err != nil {
			return Interval{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, end)
		}

		interval := Interval{Since: since, Until: until}
		if err := validate(interval, today); err != nil {
			return Interval{}, err
		}
		return interval, nil
	}

	days := defaultPeriodDays
	if period != "" {
		if d, ok := periodDays[period]; ok {
			days = d
		}
	}

	// Inclusive lookback: a 30-day period covers today and the 29
	// preceding days.
	return Interval{
		Since: today.AddDate(0, 0, -(days - 1)),
		Until: today,
	}, nil
}

func validate(i Interval, today time.Time) error {
	if i.Since.After(i.Until) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange, i.SinceISO(), i.UntilISO())
	}
	if i.Until.After(today) {
		return fmt.Errorf("%w: %s", ErrFutureEndDate, i.UntilISO())
	}
	if spanDays(i) > MaxSpanDays {
		return fmt.Errorf("%w: %d days, maximum %d", ErrRangeTooLarge, spanDays(i), MaxSpanDays)
	}

	// Data that old may already be purged upstream. That is the
	// platform's call, not a reason to reject the request here.
	if oldest := today.AddDate(0, 0, -MaxSpanDays); i.Since.Before(oldest) {
		logger := logging.NewLogger("daterange")
		logger.Warn().
			Str("since", i.SinceISO()).
			Str("oldest_retained", oldest.Format(ISODate)).
			Msg("Range start predates platform retention window")
	}
	return nil
}

// spanDays is the exclusive difference used by the platform's span limit:
// until minus since in whole days.
func spanDays(i Interval) int {
	return int(i.Until.Sub(i.Since).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
