package report

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/stratdash/meta-insights/pkg/daterange"
	"github.com/stratdash/meta-insights/pkg/dispatch"
	"github.com/stratdash/meta-insights/pkg/series"
)

const (
	adAccountFields = "id,account_id,name,account_status,currency,timezone_name,amount_spent,balance"
	campaignFields  = "id,name,objective,status,created_time,updated_time"
	adSetFields     = "id,name,status,targeting,optimization_goal,billing_event,budget_remaining,daily_budget,lifetime_budget,created_time,updated_time"
	adFields        = "id,name,status,creative{title,body,image_url,video_id,thumbnail_url},created_time,updated_time"

	campaignInsightFields = "spend,impressions,clicks,cpc,cpm,ctr"
	adSetInsightFields    = "spend,impressions,clicks,cpc,cpm,ctr,reach,frequency,actions"
	adInsightFields       = "spend,impressions,clicks,cpc,cpm,ctr,reach,frequency,actions,inline_link_clicks,cost_per_inline_link_click"
)

type adAccountRow struct {
	ID            string `json:"id"`
	AccountID     string `json:"account_id"`
	Name          string `json:"name"`
	AccountStatus int    `json:"account_status"`
	Currency      string `json:"currency"`
	TimezoneName  string `json:"timezone_name"`
	AmountSpent   string `json:"amount_spent"`
	Balance       string `json:"balance"`
}

type campaignRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Objective   string `json:"objective"`
	Status      string `json:"status"`
	CreatedTime string `json:"created_time"`
	UpdatedTime string `json:"updated_time"`
}

type targetingSpec struct {
	GeoLocations map[string]any `json:"geo_locations"`
	AgeMin       int            `json:"age_min"`
	AgeMax       int            `json:"age_max"`
	Genders      []int          `json:"genders"`
}

type adSetRow struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Status           string        `json:"status"`
	OptimizationGoal string        `json:"optimization_goal"`
	BillingEvent     string        `json:"billing_event"`
	DailyBudget      string        `json:"daily_budget"`
	LifetimeBudget   string        `json:"lifetime_budget"`
	BudgetRemaining  string        `json:"budget_remaining"`
	Targeting        targetingSpec `json:"targeting"`
	CreatedTime      string        `json:"created_time"`
	UpdatedTime      string        `json:"updated_time"`
}

type creativeRow struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	ImageURL     string `json:"image_url"`
	VideoID      string `json:"video_id"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type adRow struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Status      string      `json:"status"`
	Creative    creativeRow `json:"creative"`
	CreatedTime string      `json:"created_time"`
	UpdatedTime string      `json:"updated_time"`
}

// AdAccounts lists every ad account reachable with the session
// credential.
func (a *Assembler) AdAccounts(ctx context.Context) ([]AdAccount, error) {
	items, err := a.api.FetchAll(ctx, "me/adaccounts", url.Values{"fields": {adAccountFields}})
	if err != nil {
		return nil, fmt.Errorf("list ad accounts: %w", err)
	}

	accounts := make([]AdAccount, 0, len(items))
	for i, item := range items {
		var row adAccountRow
		if err := json.Unmarshal(item, &row); err != nil {
			return nil, fmt.Errorf("decode ad account %d: %w", i, err)
		}
		accounts = append(accounts, AdAccount{
			ID:          row.ID,
			AccountID:   row.AccountID,
			Name:        row.Name,
			Status:      accountStatus(row.AccountStatus),
			Currency:    row.Currency,
			Timezone:    row.TimezoneName,
			AmountSpent: parseCents(row.AmountSpent),
			Balance:     parseCents(row.Balance),
		})
	}

	a.logger.Info().Int("count", len(accounts)).Msg("Retrieved ad accounts")
	return accounts, nil
}

// entityMetrics fetches one entity's whole-interval metrics.
func (a *Assembler) entityMetrics(ctx context.Context, id, fields, timeRange string) (Metrics, error) {
	params := url.Values{}
	params.Set("fields", fields)
	params.Set("time_range", timeRange)

	rows, err := a.insightRows(ctx, id+"/insights", params)
	if err != nil {
		return Metrics{}, err
	}
	// An empty row set means nothing was delivered in this interval; that
	// is a zero row, not an error.
	return summaryMetrics(rows), nil
}

// Campaigns lists an ad account's campaigns with their interval metrics.
func (a *Assembler) Campaigns(ctx context.Context, accountID string, opts Options) (*ListReport[Campaign], error) {
	interval, err := a.resolve(opts)
	if err != nil {
		return nil, err
	}

	items, err := a.api.FetchAll(ctx, actPath(accountID)+"/campaigns", url.Values{"fields": {campaignFields}})
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}

	rows := make([]campaignRow, 0, len(items))
	ids := make([]string, 0, len(items))
	for i, item := range items {
		var row campaignRow
		if err := json.Unmarshal(item, &row); err != nil {
			return nil, fmt.Errorf("decode campaign %d: %w", i, err)
		}
		rows = append(rows, row)
		ids = append(ids, row.ID)
	}

	timeRange := interval.TimeRangeParam()
	outcomes, err := dispatch.Run(ctx, ids, a.dispatch, func(ctx context.Context, id string) (Metrics, error) {
		return a.entityMetrics(ctx, id, campaignInsightFields, timeRange)
	})
	if err != nil {
		return nil, err
	}
	byID := outcomeMap(outcomes)

	campaigns := make([]Campaign, 0, len(rows))
	for _, row := range rows {
		outcome := byID[row.ID]
		campaigns = append(campaigns, Campaign{
			ID:          row.ID,
			Name:        row.Name,
			Objective:   row.Objective,
			Status:      row.Status,
			CreatedTime: row.CreatedTime,
			UpdatedTime: row.UpdatedTime,
			Metrics:     outcome.Value,
			HasData:     outcome.HasData,
		})
	}

	return listReport(campaigns, interval, outcomes), nil
}

// AdSets lists a campaign's ad sets with budgets, targeting summary and
// interval metrics.
func (a *Assembler) AdSets(ctx context.Context, campaignID string, opts Options) (*ListReport[AdSet], error) {
	interval, err := a.resolve(opts)
	if err != nil {
		return nil, err
	}

	items, err := a.api.FetchAll(ctx, campaignID+"/adsets", url.Values{"fields": {adSetFields}})
	if err != nil {
		return nil, fmt.Errorf("list ad sets: %w", err)
	}

	rows := make([]adSetRow, 0, len(items))
	ids := make([]string, 0, len(items))
	for i, item := range items {
		var row adSetRow
		if err := json.Unmarshal(item, &row); err != nil {
			return nil, fmt.Errorf("decode ad set %d: %w", i, err)
		}
		rows = append(rows, row)
		ids = append(ids, row.ID)
	}

	timeRange := interval.TimeRangeParam()
	outcomes, err := dispatch.Run(ctx, ids, a.dispatch, func(ctx context.Context, id string) (Metrics, error) {
		return a.entityMetrics(ctx, id, adSetInsightFields, timeRange)
	})
	if err != nil {
		return nil, err
	}
	byID := outcomeMap(outcomes)

	adSets := make([]AdSet, 0, len(rows))
	for _, row := range rows {
		outcome := byID[row.ID]
		adSets = append(adSets, AdSet{
			ID:               row.ID,
			Name:             row.Name,
			CampaignID:       campaignID,
			Status:           row.Status,
			OptimizationGoal: row.OptimizationGoal,
			BillingEvent:     row.BillingEvent,
			DailyBudget:      centsPtr(row.DailyBudget),
			LifetimeBudget:   centsPtr(row.LifetimeBudget),
			BudgetRemaining:  centsPtr(row.BudgetRemaining),
			Targeting: TargetingSummary{
				Locations: row.Targeting.GeoLocations,
				AgeMin:    row.Targeting.AgeMin,
				AgeMax:    row.Targeting.AgeMax,
				Genders:   row.Targeting.Genders,
			},
			CreatedTime: row.CreatedTime,
			UpdatedTime: row.UpdatedTime,
			Metrics:     outcome.Value,
			HasData:     outcome.HasData,
		})
	}

	return listReport(adSets, interval, outcomes), nil
}

// adEnrichment is the per-ad fan-out payload: the shared metric set plus
// link-click detail.
type adEnrichment struct {
	Metrics
	LinkClicks       int64
	CostPerLinkClick float64
}

// Ads lists an ad set's ads with creatives and interval metrics.
func (a *Assembler) Ads(ctx context.Context, adSetID string, opts Options) (*ListReport[Ad], error) {
	interval, err := a.resolve(opts)
	if err != nil {
		return nil, err
	}

	items, err := a.api.FetchAll(ctx, adSetID+"/ads", url.Values{"fields": {adFields}})
	if err != nil {
		return nil, fmt.Errorf("list ads: %w", err)
	}

	rows := make([]adRow, 0, len(items))
	ids := make([]string, 0, len(items))
	for i, item := range items {
		var row adRow
		if err := json.Unmarshal(item, &row); err != nil {
			return nil, fmt.Errorf("decode ad %d: %w", i, err)
		}
		rows = append(rows, row)
		ids = append(ids, row.ID)
	}

	timeRange := interval.TimeRangeParam()
	outcomes, err := dispatch.Run(ctx, ids, a.dispatch, func(ctx context.Context, id string) (adEnrichment, error) {
		params := url.Values{}
		params.Set("fields", adInsightFields)
		params.Set("time_range", timeRange)

		insightRows, err := a.insightRows(ctx, id+"/insights", params)
		if err != nil {
			return adEnrichment{}, err
		}
		if len(insightRows) == 0 {
			return adEnrichment{}, nil
		}

		row := insightRows[0]
		flat := series.FlattenRow(row)
		return adEnrichment{
			Metrics:          metricsFrom(flat),
			LinkClicks:       int64(actionValue(row.Values, "link_click")),
			CostPerLinkClick: flat["cost_per_inline_link_click"],
		}, nil
	})
	if err != nil {
		return nil, err
	}
	byID := outcomeMap(outcomes)

	ads := make([]Ad, 0, len(rows))
	for _, row := range rows {
		outcome := byID[row.ID]
		ads = append(ads, Ad{
			ID:      row.ID,
			Name:    row.Name,
			AdSetID: adSetID,
			Status:  row.Status,
			Creative: Creative{
				Title:        row.Creative.Title,
				Body:         row.Creative.Body,
				ImageURL:     row.Creative.ImageURL,
				VideoID:      row.Creative.VideoID,
				ThumbnailURL: row.Creative.ThumbnailURL,
			},
			CreatedTime:      row.CreatedTime,
			UpdatedTime:      row.UpdatedTime,
			Metrics:          outcome.Value.Metrics,
			LinkClicks:       outcome.Value.LinkClicks,
			CostPerLinkClick: outcome.Value.CostPerLinkClick,
			HasData:          outcome.HasData,
		})
	}

	return listReport(ads, interval, outcomes), nil
}

// outcomeMap indexes dispatch outcomes by entity id.
func outcomeMap[T any](outcomes []dispatch.Outcome[T]) map[string]dispatch.Outcome[T] {
	m := make(map[string]dispatch.Outcome[T], len(outcomes))
	for _, o := range outcomes {
		m[o.ID] = o
	}
	return m
}

// listReport wraps enriched items with the interval and fan-out tallies.
func listReport[T, U any](items []T, interval daterange.Interval, outcomes []dispatch.Outcome[U]) *ListReport[T] {
	return &ListReport[T]{
		Items:     items,
		Since:     interval.SinceISO(),
		Until:     interval.UntilISO(),
		Succeeded: dispatch.Succeeded(outcomes),
		Failed:    dispatch.Failed(outcomes),
	}
}
