// Package report composes the Graph client, date resolution, the
// dispatcher and series merging into the public reporting operations.
//
// Listing operations fail hard when the listing itself cannot be
// fetched. Per-entity metric enrichment degrades instead: a child whose
// insights call fails stays in the result with zero metrics and HasData
// false.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stratdash/meta-insights/pkg/daterange"
	"github.com/stratdash/meta-insights/pkg/dispatch"
	"github.com/stratdash/meta-insights/pkg/graph"
	"github.com/stratdash/meta-insights/pkg/logging"
	"github.com/stratdash/meta-insights/pkg/series"
)

// GraphAPI is the slice of the Graph client the assembler uses.
type GraphAPI interface {
	Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error)
	FetchAll(ctx context.Context, path string, params url.Values) ([]json.RawMessage, error)
}

// Options selects the reporting interval. An explicit Start and End pair
// wins over Period; with neither set the last 30 days are reported.
type Options struct {
	Period string
	Start  string
	End    string
}

// Config holds assembler configuration.
type Config struct {
	// Dispatch configures the per-entity fan-out pool.
	Dispatch dispatch.Config

	// Resolver for reporting intervals. Nil uses the wall clock.
	Resolver *daterange.Resolver
}

// Assembler executes reporting operations against one Graph session.
type Assembler struct {
	api      GraphAPI
	resolver *daterange.Resolver
	dispatch dispatch.Config
	logger   zerolog.Logger
}

// New creates an assembler over the given Graph API access.
func New(api GraphAPI, cfg Config) *Assembler {
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = daterange.NewResolver()
	}
	return &Assembler{
		api:      api,
		resolver: resolver,
		dispatch: cfg.Dispatch,
		logger:   logging.NewLogger("report"),
	}
}

func (a *Assembler) resolve(opts Options) (daterange.Interval, error) {
	return a.resolver.Resolve(opts.Period, opts.Start, opts.End)
}

// actPath normalizes an ad account id to its Graph path form.
func actPath(accountID string) string {
	if strings.HasPrefix(accountID, "act_") {
		return accountID
	}
	return "act_" + accountID
}

// insightRows issues a single insights request and decodes its envelope
// rows.
func (a *Assembler) insightRows(ctx context.Context, path string, params url.Values) (series.Response, error) {
	body, err := a.api.Get(ctx, path, params)
	if err != nil {
		return nil, err
	}

	var env graph.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode insights envelope for %s: %w", path, err)
	}
	return toSeriesRows(env.Data)
}

// accountInsightFields is the metric selection for account-level
// insights requests.
const accountInsightFields = "spend,impressions,clicks,actions,cpc,cpm,ctr,reach,frequency"

// AccountInsights reports an ad account's whole-interval summary plus
// its daily time series.
//
// The summary comes from a request without a daily increment: reach and
// frequency over the interval cannot be derived from the daily rows.
func (a *Assembler) AccountInsights(ctx context.Context, accountID string, opts Options) (*AccountReport, error) {
	interval, err := a.resolve(opts)
	if err != nil {
		return nil, err
	}

	path := actPath(accountID) + "/insights"

	summaryParams := url.Values{}
	summaryParams.Set("fields", accountInsightFields)
	summaryParams.Set("time_range", interval.TimeRangeParam())
	summaryRows, err := a.insightRows(ctx, path, summaryParams)
	if err != nil {
		return nil, fmt.Errorf("account summary: %w", err)
	}

	dailyParams := url.Values{}
	dailyParams.Set("fields", accountInsightFields)
	dailyParams.Set("time_range", interval.TimeRangeParam())
	dailyParams.Set("time_increment", "1")
	dailyItems, err := a.api.FetchAll(ctx, path, dailyParams)
	if err != nil {
		return nil, fmt.Errorf("account daily series: %w", err)
	}
	dailyRows, err := toSeriesRows(dailyItems)
	if err != nil {
		return nil, err
	}

	records, summary := series.Merge([]series.Response{dailyRows}, summaryRows)

	a.logger.Info().
		Str("account_id", accountID).
		Str("since", interval.SinceISO()).
		Str("until", interval.UntilISO()).
		Int("days", len(records)).
		Msg("Assembled account insights")

	return &AccountReport{
		AccountID: accountID,
		Interval:  interval,
		Since:     interval.SinceISO(),
		Until:     interval.UntilISO(),
		Summary:   metricsFrom(summary.Metrics),
		Series:    records,
	}, nil
}

const breakdownFields = "spend,impressions,clicks,reach,actions"

// DemographicBreakdown segments an account's interval metrics by age and
// gender.
func (a *Assembler) DemographicBreakdown(ctx context.Context, accountID string, opts Options) (*BreakdownReport, error) {
	return a.breakdown(ctx, accountID, opts, "age,gender")
}

// PlacementBreakdown segments an account's interval metrics by publisher
// platform and position.
func (a *Assembler) PlacementBreakdown(ctx context.Context, accountID string, opts Options) (*BreakdownReport, error) {
	return a.breakdown(ctx, accountID, opts, "publisher_platform,platform_position")
}

func (a *Assembler) breakdown(ctx context.Context, accountID string, opts Options, breakdowns string) (*BreakdownReport, error) {
	interval, err := a.resolve(opts)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fields", breakdownFields)
	params.Set("breakdowns", breakdowns)
	params.Set("time_range", interval.TimeRangeParam())

	items, err := a.api.FetchAll(ctx, actPath(accountID)+"/insights", params)
	if err != nil {
		return nil, fmt.Errorf("breakdown %s: %w", breakdowns, err)
	}

	rows := make([]BreakdownRow, 0, len(items))
	for i, item := range items {
		var values map[string]any
		if err := json.Unmarshal(item, &values); err != nil {
			return nil, fmt.Errorf("decode breakdown row %d: %w", i, err)
		}

		row := BreakdownRow{
			Metrics: metricsFrom(series.FlattenRow(series.Row{Values: values})),
		}
		row.Age, _ = values["age"].(string)
		row.Gender, _ = values["gender"].(string)
		row.Platform, _ = values["publisher_platform"].(string)
		row.PlatformPosition, _ = values["platform_position"].(string)
		rows = append(rows, row)
	}

	return &BreakdownReport{
		AccountID: accountID,
		Since:     interval.SinceISO(),
		Until:     interval.UntilISO(),
		Rows:      rows,
	}, nil
}
