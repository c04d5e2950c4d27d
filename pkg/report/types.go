package report

import (
	"fmt"

	"github.com/stratdash/meta-insights/pkg/daterange"
	"github.com/stratdash/meta-insights/pkg/series"
)

// Metrics is the flattened per-entity metric set shared by account,
// campaign, ad set and ad reports.
type Metrics struct {
	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	CPC         float64 `json:"cpc"`
	CPM         float64 `json:"cpm"`
	CTR         float64 `json:"ctr"`
	Reach       int64   `json:"reach"`
	Frequency   float64 `json:"frequency"`
}

// metricsFrom shapes a flattened metric map into the fixed struct.
// Metrics absent from the map stay zero.
func metricsFrom(m map[string]float64) Metrics {
	return Metrics{
		Spend:       m["spend"],
		Impressions: int64(m["impressions"]),
		Clicks:      int64(m["clicks"]),
		Conversions: int64(m["conversions"]),
		CPC:         m["cpc"],
		CPM:         m["cpm"],
		CTR:         m["ctr"],
		Reach:       int64(m["reach"]),
		Frequency:   m["frequency"],
	}
}

// AccountReport is the whole-interval summary plus daily series for one
// ad account.
type AccountReport struct {
	AccountID string               `json:"account_id"`
	Interval  daterange.Interval   `json:"-"`
	Since     string               `json:"since"`
	Until     string               `json:"until"`
	Summary   Metrics              `json:"summary"`
	Series    []series.DailyRecord `json:"series"`
}

// accountStatusNames maps the platform's numeric account status codes to
// their names.
var accountStatusNames = map[int]string{
	1:   "ACTIVE",
	2:   "DISABLED",
	3:   "UNSETTLED",
	7:   "PENDING_RISK_REVIEW",
	8:   "PENDING_SETTLEMENT",
	9:   "IN_GRACE_PERIOD",
	100: "PENDING_CLOSURE",
	101: "CLOSED",
	201: "ANY_ACTIVE",
	202: "ANY_CLOSED",
}

func accountStatus(code int) string {
	if name, ok := accountStatusNames[code]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_%d", code)
}

// AdAccount is one ad account from the account listing. Monetary fields
// arrive in minor units and are converted to currency units.
type AdAccount struct {
	ID          string  `json:"id"`
	AccountID   string  `json:"account_id"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	Currency    string  `json:"currency"`
	Timezone    string  `json:"timezone"`
	AmountSpent float64 `json:"amount_spent"`
	Balance     float64 `json:"balance"`
}

// Campaign is one campaign with its interval metrics.
type Campaign struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Objective   string `json:"objective"`
	Status      string `json:"status"`
	CreatedTime string `json:"created_time"`
	UpdatedTime string `json:"updated_time"`
	Metrics
	HasData bool `json:"has_data"`
}

// TargetingSummary is the simplified view of an ad set's targeting spec.
type TargetingSummary struct {
	Locations map[string]any `json:"locations"`
	AgeMin    int            `json:"age_min"`
	AgeMax    int            `json:"age_max"`
	Genders   []int          `json:"genders"`
}

// AdSet is one ad set with budgets and interval metrics. Budget fields
// are nil when the platform omits them.
type AdSet struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	CampaignID       string           `json:"campaign_id"`
	Status           string           `json:"status"`
	OptimizationGoal string           `json:"optimization_goal"`
	BillingEvent     string           `json:"billing_event"`
	DailyBudget      *float64         `json:"daily_budget"`
	LifetimeBudget   *float64         `json:"lifetime_budget"`
	BudgetRemaining  *float64         `json:"budget_remaining"`
	Targeting        TargetingSummary `json:"targeting_summary"`
	CreatedTime      string           `json:"created_time"`
	UpdatedTime      string           `json:"updated_time"`
	Metrics
	HasData bool `json:"has_data"`
}

// Creative is the subset of an ad creative surfaced in reports.
type Creative struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	ImageURL     string `json:"image_url"`
	VideoID      string `json:"video_id"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Ad is one ad with its creative and interval metrics.
type Ad struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	AdSetID     string   `json:"ad_set_id"`
	Status      string   `json:"status"`
	Creative    Creative `json:"creative"`
	CreatedTime string   `json:"created_time"`
	UpdatedTime string   `json:"updated_time"`
	Metrics
	LinkClicks       int64   `json:"link_clicks"`
	CostPerLinkClick float64 `json:"cost_per_link_click"`
	HasData          bool    `json:"has_data"`
}

// ListReport is a listing with per-item metric enrichment. Items whose
// enrichment failed are present with zero metrics and HasData false;
// Succeeded and Failed count both kinds.
type ListReport[T any] struct {
	Items     []T    `json:"items"`
	Since     string `json:"since"`
	Until     string `json:"until"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// BreakdownRow is one row of a segmented insights response. Only the
// dimensions matching the requested breakdown are populated.
type BreakdownRow struct {
	Age              string `json:"age,omitempty"`
	Gender           string `json:"gender,omitempty"`
	Platform         string `json:"publisher_platform,omitempty"`
	PlatformPosition string `json:"platform_position,omitempty"`
	Metrics
}

// BreakdownReport is a segmented insights report for one ad account.
type BreakdownReport struct {
	AccountID string         `json:"account_id"`
	Since     string         `json:"since"`
	Until     string         `json:"until"`
	Rows      []BreakdownRow `json:"rows"`
}

// InstagramLink identifies the Instagram business account connected to a
// Facebook page.
type InstagramLink struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Page is one Facebook page from the page listing.
type Page struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Category       string         `json:"category"`
	FanCount       int64          `json:"fan_count"`
	FollowersCount int64          `json:"followers_count"`
	Link           string         `json:"link"`
	About          string         `json:"about"`
	Website        string         `json:"website"`
	Instagram      *InstagramLink `json:"instagram_account,omitempty"`
}

// PagePost is one page post with its engagement counts and lifetime
// insight metrics. Video fields are populated only for video posts.
type PagePost struct {
	ID           string `json:"id"`
	Message      string `json:"message,omitempty"`
	Story        string `json:"story,omitempty"`
	CreatedTime  string `json:"created_time"`
	StatusType   string `json:"status_type,omitempty"`
	Type         string `json:"type"`
	PictureURL   string `json:"picture_url,omitempty"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	PermalinkURL string `json:"permalink_url,omitempty"`

	Reactions       int64   `json:"reactions"`
	Likes           int64   `json:"likes"`
	Comments        int64   `json:"comments"`
	Shares          int64   `json:"shares"`
	TotalEngagement int64   `json:"total_engagement"`
	EngagementRate  float64 `json:"engagement_rate"`

	Impressions        int64 `json:"impressions"`
	UniqueImpressions  int64 `json:"unique_impressions"`
	PaidImpressions    int64 `json:"paid_impressions"`
	OrganicImpressions int64 `json:"organic_impressions"`
	Reach              int64 `json:"reach"`
	EngagedUsers       int64 `json:"engaged_users"`
	Clicks             int64 `json:"clicks"`
	NegativeFeedback   int64 `json:"negative_feedback"`

	VideoViews         int64 `json:"video_views,omitempty"`
	VideoCompleteViews int64 `json:"video_complete_views,omitempty"`

	HasData bool `json:"has_data"`
}

// PageReport holds page-level engagement metrics summed over the
// interval, plus the page's current follower counts.
type PageReport struct {
	PageID            string `json:"page_id"`
	Since             string `json:"since"`
	Until             string `json:"until"`
	Impressions       int64  `json:"impressions"`
	UniqueImpressions int64  `json:"unique_impressions"`
	PostEngagements   int64  `json:"post_engagements"`
	EngagedUsers      int64  `json:"engaged_users"`
	PageViews         int64  `json:"page_views"`
	Fans              int64  `json:"fans"`
	Followers         int64  `json:"followers"`
	NewLikes          int64  `json:"new_likes"`
	TalkingAboutCount int64  `json:"talking_about_count"`
}

// InstagramReport holds account-level Instagram metrics summed over the
// interval.
type InstagramReport struct {
	AccountID     string `json:"account_id"`
	Since         string `json:"since"`
	Until         string `json:"until"`
	Impressions   int64  `json:"impressions"`
	Reach         int64  `json:"reach"`
	ProfileViews  int64  `json:"profile_views"`
	WebsiteClicks int64  `json:"website_clicks"`
}

// InstagramMedia is one media item with its per-media metrics.
type InstagramMedia struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	MediaType     string `json:"media_type"`
	MediaURL      string `json:"media_url"`
	Permalink     string `json:"permalink"`
	Timestamp     string `json:"timestamp"`
	LikeCount     int64  `json:"like_count"`
	CommentsCount int64  `json:"comments_count"`
	Impressions   int64  `json:"impressions"`
	Reach         int64  `json:"reach"`
	Engagement    int64  `json:"engagement"`
	Saved         int64  `json:"saved"`
	HasData       bool   `json:"has_data"`
}

// OverviewAccount is one ad account's contribution to the overview:
// listing data plus its whole-interval metrics. Reach is reported per
// account only; it cannot be summed across accounts.
type OverviewAccount struct {
	AdAccount
	Metrics
	HasData bool `json:"has_data"`
}

// Overview is the combined cross-entity view.
type Overview struct {
	Since                   string            `json:"since"`
	Until                   string            `json:"until"`
	AdAccountsCount         int               `json:"ad_accounts_count"`
	PagesCount              int               `json:"pages_count"`
	InstagramAccountsCount  int               `json:"instagram_accounts_count"`
	TotalSpend              float64           `json:"total_spend"`
	TotalImpressions        int64             `json:"total_impressions"`
	TotalClicks             int64             `json:"total_clicks"`
	TotalConversions        int64             `json:"total_conversions"`
	TotalPageFollowers      int64             `json:"total_page_followers"`
	TotalInstagramFollowers int64             `json:"total_instagram_followers"`
	TotalSocialFollowers    int64             `json:"total_social_followers"`
	AdAccounts              []OverviewAccount `json:"ad_accounts"`
	Pages                   []Page            `json:"pages"`
}
