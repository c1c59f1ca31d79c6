package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"tradedash/internal/chart"
	"tradedash/internal/config"
	"tradedash/internal/dashboard"
	"tradedash/internal/model"
	"tradedash/internal/providers"
	"tradedash/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type stubProvider struct {
	mu    sync.Mutex
	rows  map[string][]model.Record
	calls []model.Query
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Fetch(ctx context.Context, query model.Query) (model.Table, providers.Outcome) {
	query = query.Normalized()
	p.mu.Lock()
	p.calls = append(p.calls, query)
	rows, ok := p.rows[query.Reporter]
	p.mu.Unlock()
	if !ok {
		return model.EmptyTable(query), providers.Outcome{Status: http.StatusNotFound}
	}
	return model.Table{Query: query, Records: rows}, providers.Outcome{Status: http.StatusOK}
}

func (p *stubProvider) lastCall() model.Query {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[len(p.calls)-1]
}

type recordingJournal struct {
	store.NopStore
	mu     sync.Mutex
	events []store.FetchEvent
}

func (j *recordingJournal) RecordFetch(ctx context.Context, event store.FetchEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, event)
	return nil
}

func (j *recordingJournal) ListFetches(ctx context.Context, limit int) ([]store.FetchEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if limit > len(j.events) {
		limit = len(j.events)
	}
	return append([]store.FetchEvent{}, j.events[:limit]...), nil
}

type chartsPayload struct {
	ID     string              `json:"id"`
	Inputs dashboard.Inputs    `json:"inputs"`
	Rows   int                 `json:"rows"`
	Charts chart.Figures       `json:"charts"`
	Plotly chart.PlotlyFigures `json:"plotly"`
}

func newTestServer(t *testing.T) (*Server, *stubProvider, *recordingJournal) {
	t.Helper()
	provider := &stubProvider{rows: map[string][]model.Record{
		"NGA": {
			{Commodity: "Crude Petroleum", TradeValue: 500000, Period: "2023"},
			{Commodity: "Natural Gas", TradeValue: 250000, Period: "2024"},
		},
	}}
	journal := &recordingJournal{}
	app := dashboard.NewApp(provider, journal, config.DefaultOptions(), zaptest.NewLogger(t))
	return NewServer(":0", app, zaptest.NewLogger(t)), provider, journal
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIndexRendersControls(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<option value="NGA" selected>`)
	assert.Contains(t, body, `<option value="WLD" selected>`)
	assert.Contains(t, body, `value="2024"`)
	assert.Contains(t, body, `id="sankey"`)
	assert.Contains(t, body, `id="treemap"`)
	assert.Contains(t, body, `id="trendline"`)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/missing").Code)
}

func TestOptions(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := get(t, s, "/api/options")
	require.Equal(t, http.StatusOK, rec.Code)

	var got config.Options
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, config.DefaultOptions(), got)
}

func TestChartsUsesDefaultsForMissingParams(t *testing.T) {
	s, provider, journal := newTestServer(t)
	rec := get(t, s, "/api/charts")
	require.Equal(t, http.StatusOK, rec.Code)

	var got chartsPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, dashboard.Inputs{Reporter: "NGA", Partner: "WLD", Year: "2024", Classification: "HS"}, got.Inputs)
	assert.Equal(t, 2, got.Rows)
	assert.Equal(t, []string{"NGA", "Crude Petroleum", "Natural Gas", "WLD"}, got.Charts.Flow.Nodes)
	require.Len(t, got.Plotly.Flow.Data, 1)
	assert.Equal(t, "sankey", got.Plotly.Flow.Data[0]["type"])
	assert.Equal(t, model.Query{Reporter: "NGA", Partner: "WLD", Year: "2024", Classification: model.ClassificationHS}, provider.lastCall())

	require.Len(t, journal.events, 1)
	assert.Equal(t, got.ID, journal.events[0].ID)
}

func TestChartsUnavailableDataIsEmpty(t *testing.T) {
	s, provider, _ := newTestServer(t)
	rec := get(t, s, "/api/charts?reporter=USA&partner=CHN&year=2023&commodity=SITC")
	require.Equal(t, http.StatusOK, rec.Code)

	var got chartsPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Zero(t, got.Rows)
	assert.True(t, got.Charts.Flow.Empty())
	assert.True(t, got.Charts.Hierarchy.Empty())
	assert.True(t, got.Charts.Trend.Empty())
	assert.Empty(t, got.Plotly.Trend.Data)
	assert.Equal(t, model.ClassificationSITC, provider.lastCall().Classification)
}

func TestChartImage(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/api/charts/trend.png?width=320&height=200")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Refresh-Id"))
	cfg, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 200, cfg.Height)

	rec = get(t, s, "/api/charts/hierarchy.png")
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
}

func TestChartImageRejectsFlowAndUnknown(t *testing.T) {
	s, _, _ := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/charts/flow.png").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/charts/radar.png").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/charts/trend.svg").Code)
}

func TestFetches(t *testing.T) {
	s, _, _ := newTestServer(t)
	get(t, s, "/api/charts")
	get(t, s, "/api/charts?reporter=USA")

	rec := get(t, s, "/api/fetches?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []store.FetchEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "stub", events[0].Provider)

	rec = get(t, s, "/api/fetches")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 2)
}

func TestIntParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?a=12&b=-3&c=x&d=99999", nil)
	assert.Equal(t, 12, intParam(req, "a", 5, 100))
	assert.Equal(t, 5, intParam(req, "b", 5, 100))
	assert.Equal(t, 5, intParam(req, "c", 5, 100))
	assert.Equal(t, 100, intParam(req, "d", 5, 100))
	assert.Equal(t, 5, intParam(req, "missing", 5, 100))
}

func TestWebSocketPushesLatestRefresh(t *testing.T) {
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(dashboard.Inputs{Reporter: "NGA", Partner: "WLD", Year: "2024"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var got chartsPayload
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "NGA", got.Inputs.Reporter)
	assert.Equal(t, 2, got.Rows)
	assert.Len(t, got.Plotly.Trend.Data, 2)

	// Malformed messages are ignored and the session stays usable.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteJSON(dashboard.Inputs{Reporter: "USA", Partner: "CHN", Year: "2023"}))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "USA", got.Inputs.Reporter)
	assert.Zero(t, got.Rows)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	s.mu.Lock()
	assert.Empty(t, s.sessions)
	s.mu.Unlock()
}

func TestWebSocketRejectedAfterShutdown(t *testing.T) {
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		_ = conn.Close()
	}
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	_ = resp.Body.Close()

	s.mu.Lock()
	assert.Empty(t, s.sessions)
	s.mu.Unlock()
}
