package report

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/stratdash/meta-insights/pkg/dispatch"
	"github.com/stratdash/meta-insights/pkg/series"
)

const pageFields = "id,name,category,fan_count,followers_count,link,about,website,instagram_business_account{id,username}"

type pageRow struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	FanCount       int64  `json:"fan_count"`
	FollowersCount int64  `json:"followers_count"`
	Link           string `json:"link"`
	About          string `json:"about"`
	Website        string `json:"website"`
	Instagram      *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"instagram_business_account"`
}

// metricSeries is one named metric from a page or Instagram insights
// response: a list of per-period values.
type metricSeries struct {
	Name   string `json:"name"`
	Values []struct {
		Value any `json:"value"`
	} `json:"values"`
}

// sum adds the metric's values, reducing composite values to scalars.
func (m metricSeries) sum() float64 {
	total := 0.0
	for _, v := range m.Values {
		if f, ok := series.FlattenValue(v.Value); ok {
			total += f
		}
	}
	return total
}

// Pages lists the Facebook pages managed by the session credential.
func (a *Assembler) Pages(ctx context.Context) ([]Page, error) {
	items, err := a.api.FetchAll(ctx, "me/accounts", url.Values{"fields": {pageFields}})
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	pages := make([]Page, 0, len(items))
	for i, item := range items {
		var row pageRow
		if err := json.Unmarshal(item, &row); err != nil {
			return nil, fmt.Errorf("decode page %d: %w", i, err)
		}

		page := Page{
			ID:             row.ID,
			Name:           row.Name,
			Category:       row.Category,
			FanCount:       row.FanCount,
			FollowersCount: row.FollowersCount,
			Link:           row.Link,
			About:          row.About,
			Website:        row.Website,
		}
		if row.Instagram != nil {
			page.Instagram = &InstagramLink{ID: row.Instagram.ID, Username: row.Instagram.Username}
		}
		pages = append(pages, page)
	}

	a.logger.Info().Int("count", len(pages)).Msg("Retrieved pages")
	return pages, nil
}

// pageMetrics are the per-day page metrics summed over the interval.
// Each lives on its own insights path.
var pageMetrics = []string{
	"page_impressions",
	"page_impressions_unique",
	"page_post_engagements",
	"page_total_actions",
	"page_views_total",
}

// PageInsights reports a page's engagement metrics summed over the
// interval together with its current follower counts. A metric the page
// cannot deliver counts as zero rather than failing the report.
func (a *Assembler) PageInsights(ctx context.Context, pageID string, opts Options) (*PageReport, error) {
	interval, err := a.resolve(opts)
	if err != nil {
		return nil, err
	}

	infoBody, err := a.api.Get(ctx, pageID, url.Values{
		"fields": {"followers_count,fan_count,new_like_count,talking_about_count"},
	})
	if err != nil {
		return nil, fmt.Errorf("page info: %w", err)
	}
	var info struct {
		FollowersCount    int64 `json:"followers_count"`
		FanCount          int64 `json:"fan_count"`
		NewLikeCount      int64 `json:"new_like_count"`
		TalkingAboutCount int64 `json:"talking_about_count"`
	}
	if err := json.Unmarshal(infoBody, &info); err != nil {
		return nil, fmt.Errorf("decode page info: %w", err)
	}

	totals := make(map[string]int64, len(pageMetrics))
	for _, metric := range pageMetrics {
		params := url.Values{}
		params.Set("since", interval.SinceISO())
		params.Set("until", interval.UntilISO())
		params.Set("period", "day")

		body, err := a.api.Get(ctx, pageID+"/insights/"+metric, params)
		if err != nil {
			// Pages expose different metric sets; treat a refused
			// metric as zero.
			a.logger.Debug().Err(err).Str("metric", metric).Msg("Page metric unavailable")
			continue
		}

		var env struct {
			Data []metricSeries `json:"data"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode page metric %s: %w", metric, err)
		}
		if len(env.Data) > 0 {
			totals[metric] = int64(env.Data[0].sum())
		}
	}

	return &PageReport{
		PageID:            pageID,
		Since:             interval.SinceISO(),
		Until:             interval.UntilISO(),
		Impressions:       totals["page_impressions"],
		UniqueImpressions: totals["page_impressions_unique"],
		PostEngagements:   totals["page_post_engagements"],
		EngagedUsers:      totals["page_total_actions"],
		PageViews:         totals["page_views_total"],
		Fans:              info.FanCount,
		Followers:         info.FollowersCount,
		NewLikes:          info.NewLikeCount,
		TalkingAboutCount: info.TalkingAboutCount,
	}, nil
}

const pagePostFields = "id,message,created_time,story,permalink_url,status_type," +
	"attachments{media,type,title,description}," +
	"reactions.summary(total_count).limit(0),likes.summary(true).limit(0)," +
	"comments.summary(true).limit(0),shares"

// postMetrics are the lifetime insight metrics requested per post.
const postMetrics = "post_impressions,post_impressions_unique,post_impressions_paid," +
	"post_impressions_organic,post_reach,post_engaged_users,post_clicks,post_negative_feedback"

const postVideoMetrics = "post_video_views,post_video_complete_views_30s"

// summaryCount matches Graph's .summary(total_count) field expansion.
type summaryCount struct {
	Summary struct {
		TotalCount int64 `json:"total_count"`
	} `json:"summary"`
}

type pagePostRow struct {
	ID           string `json:"id"`
	Message      string `json:"message"`
	Story        string `json:"story"`
	CreatedTime  string `json:"created_time"`
	StatusType   string `json:"status_type"`
	PermalinkURL string `json:"permalink_url"`
	Attachments  struct {
		Data []struct {
			Type        string `json:"type"`
			Title       string `json:"title"`
			Description string `json:"description"`
			Media       struct {
				Image struct {
					Src string `json:"src"`
				} `json:"image"`
			} `json:"media"`
		} `json:"data"`
	} `json:"attachments"`
	Reactions summaryCount `json:"reactions"`
	Likes     summaryCount `json:"likes"`
	Comments  summaryCount `json:"comments"`
	Shares    struct {
		Count int64 `json:"count"`
	} `json:"shares"`
}

// attachmentType returns the first attachment's type, or "status" for a
// plain text post.
func (r pagePostRow) attachmentType() string {
	if len(r.Attachments.Data) == 0 {
		return "status"
	}
	return r.Attachments.Data[0].Type
}

// isVideo reports whether the post's attachment carries video insight
// metrics.
func (r pagePostRow) isVideo() bool {
	switch r.attachmentType() {
	case "video", "video_inline", "video_autoplay":
		return true
	}
	return false
}

// postEnrichment is the per-post fan-out payload.
type postEnrichment struct {
	Impressions        int64
	UniqueImpressions  int64
	PaidImpressions    int64
	OrganicImpressions int64
	Reach              int64
	EngagedUsers       int64
	Clicks             int64
	NegativeFeedback   int64
	VideoViews         int64
	VideoCompleteViews int64
}

// postInsightTotals fetches one metric set for a post and reduces each
// metric's lifetime values to a scalar.
func (a *Assembler) postInsightTotals(ctx context.Context, postID, metrics string) (map[string]int64, error) {
	body, err := a.api.Get(ctx, postID+"/insights", url.Values{"metric": {metrics}})
	if err != nil {
		return nil, err
	}

	var env struct {
		Data []metricSeries `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode post insights: %w", err)
	}

	totals := make(map[string]int64, len(env.Data))
	for _, metric := range env.Data {
		totals[metric.Name] = int64(metric.sum())
	}
	return totals, nil
}

// PagePosts lists a page's posts published within the interval with their
// engagement counts, enriched with per-post lifetime insights through the
// dispatcher. Video posts carry an extra round trip for video metrics.
func (a *Assembler) PagePosts(ctx context.Context, pageID string, limit int, opts Options) (*ListReport[PagePost], error) {
	interval, err := a.resolve(opts)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fields", pagePostFields)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	items, err := a.api.FetchAll(ctx, pageID+"/posts", params)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	rows := make([]pagePostRow, 0, len(items))
	ids := make([]string, 0, len(items))
	video := make(map[string]bool, len(items))
	for i, item := range items {
		var row pagePostRow
		if err := json.Unmarshal(item, &row); err != nil {
			return nil, fmt.Errorf("decode post %d: %w", i, err)
		}
		// Graph timestamps use a zone offset without a colon.
		if published, err := time.Parse("2006-01-02T15:04:05-0700", row.CreatedTime); err == nil && published.Before(interval.Since) {
			continue
		}
		rows = append(rows, row)
		ids = append(ids, row.ID)
		video[row.ID] = row.isVideo()
	}

	outcomes, err := dispatch.Run(ctx, ids, a.dispatch, func(ctx context.Context, id string) (postEnrichment, error) {
		totals, err := a.postInsightTotals(ctx, id, postMetrics)
		if err != nil {
			return postEnrichment{}, err
		}
		enrich := postEnrichment{
			Impressions:        totals["post_impressions"],
			UniqueImpressions:  totals["post_impressions_unique"],
			PaidImpressions:    totals["post_impressions_paid"],
			OrganicImpressions: totals["post_impressions_organic"],
			Reach:              totals["post_reach"],
			EngagedUsers:       totals["post_engaged_users"],
			Clicks:             totals["post_clicks"],
			NegativeFeedback:   totals["post_negative_feedback"],
		}

		if video[id] {
			vt, err := a.postInsightTotals(ctx, id, postVideoMetrics)
			if err != nil {
				// Video metrics degrade like an unavailable page metric.
				a.logger.Debug().Err(err).Str("post_id", id).Msg("Video metrics unavailable")
			} else {
				enrich.VideoViews = vt["post_video_views"]
				enrich.VideoCompleteViews = vt["post_video_complete_views_30s"]
			}
		}
		return enrich, nil
	})
	if err != nil {
		return nil, err
	}
	byID := outcomeMap(outcomes)

	posts := make([]PagePost, 0, len(rows))
	for _, row := range rows {
		outcome := byID[row.ID]
		enrich := outcome.Value

		var pictureURL, title, description string
		if len(row.Attachments.Data) > 0 {
			first := row.Attachments.Data[0]
			pictureURL = first.Media.Image.Src
			title = first.Title
			description = first.Description
		}

		totalEngagement := row.Reactions.Summary.TotalCount +
			row.Comments.Summary.TotalCount + row.Shares.Count + enrich.Clicks
		var engagementRate float64
		if enrich.Reach > 0 {
			engagementRate = math.Round(float64(totalEngagement)/float64(enrich.Reach)*100*100) / 100
		}

		posts = append(posts, PagePost{
			ID:                 row.ID,
			Message:            row.Message,
			Story:              row.Story,
			CreatedTime:        row.CreatedTime,
			StatusType:         row.StatusType,
			Type:               row.attachmentType(),
			PictureURL:         pictureURL,
			Title:              title,
			Description:        description,
			PermalinkURL:       row.PermalinkURL,
			Reactions:          row.Reactions.Summary.TotalCount,
			Likes:              row.Likes.Summary.TotalCount,
			Comments:           row.Comments.Summary.TotalCount,
			Shares:             row.Shares.Count,
			TotalEngagement:    totalEngagement,
			EngagementRate:     engagementRate,
			Impressions:        enrich.Impressions,
			UniqueImpressions:  enrich.UniqueImpressions,
			PaidImpressions:    enrich.PaidImpressions,
			OrganicImpressions: enrich.OrganicImpressions,
			Reach:              enrich.Reach,
			EngagedUsers:       enrich.EngagedUsers,
			Clicks:             enrich.Clicks,
			NegativeFeedback:   enrich.NegativeFeedback,
			VideoViews:         enrich.VideoViews,
			VideoCompleteViews: enrich.VideoCompleteViews,
			HasData:            outcome.HasData,
		})
	}

	return listReport(posts, interval, outcomes), nil
}

const instagramMetrics = "impressions,reach,profile_views,website_clicks"

// InstagramInsights reports an Instagram business account's day metrics
// summed over the interval.
func (a *Assembler) InstagramInsights(ctx context.Context, accountID string, opts Options) (*InstagramReport, error) {
	interval, err := a.resolve(opts)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("metric", instagramMetrics)
	params.Set("period", "day")
	params.Set("since", interval.SinceISO())
	params.Set("until", interval.UntilISO())

	body, err := a.api.Get(ctx, accountID+"/insights", params)
	if err != nil {
		return nil, fmt.Errorf("instagram insights: %w", err)
	}

	var env struct {
		Data []metricSeries `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode instagram insights: %w", err)
	}

	totals := make(map[string]int64, len(env.Data))
	for _, metric := range env.Data {
		totals[metric.Name] = int64(metric.sum())
	}

	return &InstagramReport{
		AccountID:     accountID,
		Since:         interval.SinceISO(),
		Until:         interval.UntilISO(),
		Impressions:   totals["impressions"],
		Reach:         totals["reach"],
		ProfileViews:  totals["profile_views"],
		WebsiteClicks: totals["website_clicks"],
	}, nil
}

const mediaFields = "id,caption,media_type,media_url,permalink,timestamp,like_count,comments_count"

type mediaRow struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	MediaType     string `json:"media_type"`
	MediaURL      string `json:"media_url"`
	Permalink     string `json:"permalink"`
	Timestamp     string `json:"timestamp"`
	LikeCount     int64  `json:"like_count"`
	CommentsCount int64  `json:"comments_count"`
}

// mediaEnrichment is the per-media fan-out payload.
type mediaEnrichment struct {
	Impressions int64
	Reach       int64
	Engagement  int64
	Saved       int64
}

// InstagramMedia lists an account's media published within the interval,
// enriched with per-media metrics through the dispatcher.
func (a *Assembler) InstagramMedia(ctx context.Context, accountID string, limit int, opts Options) (*ListReport[InstagramMedia], error) {
	interval, err := a.resolve(opts)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fields", mediaFields)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	items, err := a.api.FetchAll(ctx, accountID+"/media", params)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}

	rows := make([]mediaRow, 0, len(items))
	ids := make([]string, 0, len(items))
	for i, item := range items {
		var row mediaRow
		if err := json.Unmarshal(item, &row); err != nil {
			return nil, fmt.Errorf("decode media %d: %w", i, err)
		}
		// Graph timestamps use a zone offset without a colon.
		if published, err := time.Parse("2006-01-02T15:04:05-0700", row.Timestamp); err == nil && published.Before(interval.Since) {
			continue
		}
		rows = append(rows, row)
		ids = append(ids, row.ID)
	}

	outcomes, err := dispatch.Run(ctx, ids, a.dispatch, func(ctx context.Context, id string) (mediaEnrichment, error) {
		body, err := a.api.Get(ctx, id+"/insights", url.Values{
			"metric": {"impressions,reach,engagement,saved"},
		})
		if err != nil {
			return mediaEnrichment{}, err
		}

		var env struct {
			Data []metricSeries `json:"data"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return mediaEnrichment{}, fmt.Errorf("decode media insights: %w", err)
		}

		totals := make(map[string]int64, len(env.Data))
		for _, metric := range env.Data {
			totals[metric.Name] = int64(metric.sum())
		}
		return mediaEnrichment{
			Impressions: totals["impressions"],
			Reach:       totals["reach"],
			Engagement:  totals["engagement"],
			Saved:       totals["saved"],
		}, nil
	})
	if err != nil {
		return nil, err
	}
	byID := outcomeMap(outcomes)

	media := make([]InstagramMedia, 0, len(rows))
	for _, row := range rows {
		outcome := byID[row.ID]
		media = append(media, InstagramMedia{
			ID:            row.ID,
			Caption:       row.Caption,
			MediaType:     row.MediaType,
			MediaURL:      row.MediaURL,
			Permalink:     row.Permalink,
			Timestamp:     row.Timestamp,
			LikeCount:     row.LikeCount,
			CommentsCount: row.CommentsCount,
			Impressions:   outcome.Value.Impressions,
			Reach:         outcome.Value.Reach,
			Engagement:    outcome.Value.Engagement,
			Saved:         outcome.Value.Saved,
			HasData:       outcome.HasData,
		})
	}

	return listReport(media, interval, outcomes), nil
}

// Overview builds the combined cross-entity view. Additive metrics are
// summed across ad accounts; reach stays per-account because summing it
// would double count people reached through more than one account.
func (a *Assembler) Overview(ctx context.Context, opts Options) (*Overview, error) {
	interval, err := a.resolve(opts)
	if err != nil {
		return nil, err
	}

	accounts, err := a.AdAccounts(ctx)
	if err != nil {
		return nil, err
	}
	pages, err := a.Pages(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		ids = append(ids, acc.ID)
	}

	timeRange := interval.TimeRangeParam()
	outcomes, err := dispatch.Run(ctx, ids, a.dispatch, func(ctx context.Context, id string) (Metrics, error) {
		return a.entityMetrics(ctx, id, accountInsightFields, timeRange)
	})
	if err != nil {
		return nil, err
	}
	byID := outcomeMap(outcomes)

	overview := &Overview{
		Since:           interval.SinceISO(),
		Until:           interval.UntilISO(),
		AdAccountsCount: len(accounts),
		PagesCount:      len(pages),
		Pages:           pages,
	}

	for _, acc := range accounts {
		outcome := byID[acc.ID]
		overview.AdAccounts = append(overview.AdAccounts, OverviewAccount{
			AdAccount: acc,
			Metrics:   outcome.Value,
			HasData:   outcome.HasData,
		})
		overview.TotalSpend += outcome.Value.Spend
		overview.TotalImpressions += outcome.Value.Impressions
		overview.TotalClicks += outcome.Value.Clicks
		overview.TotalConversions += outcome.Value.Conversions
	}

	var igCount int
	for _, page := range pages {
		overview.TotalPageFollowers += page.FollowersCount
		if page.Instagram == nil {
			continue
		}
		igCount++

		body, err := a.api.Get(ctx, page.Instagram.ID, url.Values{"fields": {"followers_count"}})
		if err != nil {
			a.logger.Warn().Err(err).Str("instagram_id", page.Instagram.ID).Msg("Instagram follower count unavailable")
			continue
		}
		var ig struct {
			FollowersCount int64 `json:"followers_count"`
		}
		if err := json.Unmarshal(body, &ig); err != nil {
			return nil, fmt.Errorf("decode instagram account: %w", err)
		}
		overview.TotalInstagramFollowers += ig.FollowersCount
	}
	overview.InstagramAccountsCount = igCount
	overview.TotalSocialFollowers = overview.TotalPageFollowers + overview.TotalInstagramFollowers

	return overview, nil
}
