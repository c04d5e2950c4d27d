package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratdash/meta-insights/internal/testutil"
	"github.com/stratdash/meta-insights/pkg/daterange"
	"github.com/stratdash/meta-insights/pkg/dispatch"
	"github.com/stratdash/meta-insights/pkg/graph"
	"github.com/stratdash/meta-insights/pkg/report"
)

func newTestServer(t *testing.T, mock *testutil.MockGraph) *Server {
	t.Helper()

	client, err := graph.New(graph.Config{
		BaseURL:     mock.URL(),
		HTTPTimeout: 5 * time.Second,
		MinInterval: time.Millisecond,
		Retry:       graph.RetryConfig{MaxRetries: 1, BaseBackoff: time.Millisecond, MaxBackoff: 10 * time.Millisecond},
		PageSize:    25,
	}, "test-token")
	require.NoError(t, err)

	today, err := time.Parse(daterange.ISODate, "2024-03-31")
	require.NoError(t, err)

	assembler := report.New(client, report.Config{
		Dispatch: dispatch.DefaultConfig(),
		Resolver: daterange.NewResolverAt(func() time.Time { return today }),
	})

	return New(Config{Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second}, assembler)
}

func doRequest(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	mock := testutil.NewMockGraph()
	defer mock.Close()

	rec := doRequest(t, newTestServer(t, mock), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	mock := testutil.NewMockGraph()
	defer mock.Close()

	rec := doRequest(t, newTestServer(t, mock), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAccountsEndpoint(t *testing.T) {
	mock := testutil.NewMockGraph()
	defer mock.Close()
	mock.SetEnvelope("/me/adaccounts",
		`{"id":"act_1","account_id":"1","name":"Main","account_status":1,"currency":"EUR","amount_spent":"2500","balance":"0"}`,
	)

	rec := doRequest(t, newTestServer(t, mock), "/api/accounts")
	require.Equal(t, http.StatusOK, rec.Code)

	var accounts []report.AdAccount
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, "ACTIVE", accounts[0].Status)
	assert.Equal(t, 25.0, accounts[0].AmountSpent)
}

func TestAccountInsightsEndpoint(t *testing.T) {
	mock := testutil.NewMockGraph()
	defer mock.Close()
	mock.SetEnvelope("/act_1/insights",
		`{"date_start":"2024-03-02","spend":"10.00","impressions":"500","clicks":"20","reach":"400"}`,
	)

	rec := doRequest(t, newTestServer(t, mock), "/api/accounts/1/insights?period=30d")
	require.Equal(t, http.StatusOK, rec.Code)

	var rep report.AccountReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "2024-03-02", rep.Since)
	assert.Equal(t, 10.0, rep.Summary.Spend)
}

func TestPagePostsEndpoint(t *testing.T) {
	mock := testutil.NewMockGraph()
	defer mock.Close()
	mock.SetEnvelope("/pg1/posts",
		`{"id":"po1","message":"hello","created_time":"2024-03-20T10:00:00+0000","reactions":{"summary":{"total_count":3}},"comments":{"summary":{"total_count":1}}}`,
	)
	mock.SetEnvelope("/po1/insights",
		`{"name":"post_impressions","values":[{"value":250}]}`,
		`{"name":"post_reach","values":[{"value":200}]}`,
	)

	rec := doRequest(t, newTestServer(t, mock), "/api/pages/pg1/posts?period=30d&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var rep report.ListReport[report.PagePost]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	require.Len(t, rep.Items, 1)
	assert.Equal(t, "po1", rep.Items[0].ID)
	assert.Equal(t, int64(250), rep.Items[0].Impressions)
	assert.Equal(t, int64(3), rep.Items[0].Reactions)
}

func TestInvalidDateRangeIsBadRequest(t *testing.T) {
	mock := testutil.NewMockGraph()
	defer mock.Close()

	s := newTestServer(t, mock)

	rec := doRequest(t, s, "/api/accounts/1/insights?start_date=oops&end_date=2024-03-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, mock.RequestCount(), "input errors must not reach the upstream")

	rec = doRequest(t, s, "/api/accounts/1/insights?start_date=2024-03-10&end_date=2024-03-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitMapsTo429(t *testing.T) {
	mock := testutil.NewMockGraph()
	defer mock.Close()
	mock.SetHandler("/me/adaccounts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(testutil.ErrorBody("Application request limit reached", 4)))
	})

	rec := doRequest(t, newTestServer(t, mock), "/api/accounts")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error.Message)
}

func TestUpstreamClientErrorPassesThrough(t *testing.T) {
	mock := testutil.NewMockGraph()
	defer mock.Close()
	mock.SetResponse("/me/adaccounts", testutil.MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       testutil.ErrorBody("Permissions error", 200),
	})

	rec := doRequest(t, newTestServer(t, mock), "/api/accounts")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownRouteIs404(t *testing.T) {
	mock := testutil.NewMockGraph()
	defer mock.Close()

	rec := doRequest(t, newTestServer(t, mock), "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
