package comtrade

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"tradedash/internal/model"
	"tradedash/internal/providers"
)

const (
	defaultBaseURL        = "https://comtradeapi.un.org/"
	defaultPreviewPath    = "public/v1/preview/partner/{reporter}"
	defaultType           = "C"
	defaultFrequency      = "A"
	defaultClassification = "HS"
	defaultTimeoutSeconds = 30
	defaultUserAgent      = "tradedash/0.1"
	maxErrorBody          = 512
)

var (
	ErrInvalidQuery     = errors.New("comtrade: invalid query")
	ErrUnexpectedStatus = errors.New("comtrade: unexpected status")
	ErrMalformedBody    = errors.New("comtrade: malformed response body")
)

type Config struct {
	BaseURL        string
	PreviewPath    string
	Type           string
	Frequency      string
	Classification string
	APIKey         string
	Timeout        time.Duration
	UserAgent      string
}

type Provider struct {
	config Config
	client *http.Client
	log    *zap.Logger
}

func New(log *zap.Logger) (*Provider, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg, log)
}

func NewWithConfig(cfg Config, log *zap.Logger) (*Provider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("comtrade: invalid base url: %w", err)
	}
	if strings.TrimSpace(cfg.PreviewPath) == "" {
		cfg.PreviewPath = defaultPreviewPath
	}
	if !strings.Contains(cfg.PreviewPath, "{reporter}") {
		return nil, errors.New("comtrade: preview path must contain {reporter}")
	}
	if strings.TrimSpace(cfg.Type) == "" {
		cfg.Type = defaultType
	}
	if strings.TrimSpace(cfg.Frequency) == "" {
		cfg.Frequency = defaultFrequency
	}
	if strings.TrimSpace(cfg.Classification) == "" {
		cfg.Classification = defaultClassification
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeoutSeconds * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Provider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.Named("comtrade"),
	}, nil
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		BaseURL:        getenv("COMTRADE_BASE_URL", defaultBaseURL),
		PreviewPath:    getenv("COMTRADE_PREVIEW_PATH", defaultPreviewPath),
		Type:           getenv("COMTRADE_TYPE", defaultType),
		Frequency:      getenv("COMTRADE_FREQUENCY", defaultFrequency),
		Classification: getenv("COMTRADE_CLASSIFICATION", defaultClassification),
		APIKey:         strings.TrimSpace(os.Getenv("COMTRADE_PRIMARY_KEY")),
		UserAgent:      getenv("COMTRADE_USER_AGENT", defaultUserAgent),
	}
	seconds := getenvInt("COMTRADE_TIMEOUT_SECONDS", defaultTimeoutSeconds)
	if seconds <= 0 {
		return Config{}, fmt.Errorf("comtrade: COMTRADE_TIMEOUT_SECONDS must be positive, got %d", seconds)
	}
	cfg.Timeout = time.Duration(seconds) * time.Second
	return cfg, nil
}

func (p *Provider) Name() string {
	return "comtrade"
}

// Fetch issues one GET for the query. Every failure (bad query, transport
// error, non-2xx, unreadable body) degrades to an empty table.
func (p *Provider) Fetch(ctx context.Context, query model.Query) (model.Table, providers.Outcome) {
	query = p.normalize(query)
	start := time.Now()

	records, status, err := p.fetch(ctx, query)
	outcome := providers.Outcome{Status: status, Err: err, Elapsed: time.Since(start)}

	fields := []zap.Field{
		zap.String("reporter", query.Reporter),
		zap.String("partner", query.Partner),
		zap.String("year", query.Year),
		zap.String("classification", string(query.Classification)),
		zap.Int("status", status),
		zap.Duration("elapsed", outcome.Elapsed),
	}
	if err != nil {
		p.log.Warn("fetch degraded to empty table", append(fields, zap.Error(err))...)
		return model.EmptyTable(query), outcome
	}
	p.log.Debug("fetch complete", append(fields, zap.Int("rows", len(records)))...)
	return model.Table{Query: query, Records: records}, outcome
}

func (p *Provider) normalize(query model.Query) model.Query {
	if strings.TrimSpace(string(query.Classification)) == "" {
		query.Classification = model.Classification(p.config.Classification)
	}
	return query.Normalized()
}

func (p *Provider) fetch(ctx context.Context, query model.Query) ([]model.Record, int, error) {
	uri, err := p.previewURL(query)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}
	if strings.TrimSpace(p.config.APIKey) != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, resp.StatusCode, fmt.Errorf("%w (%s): %s", ErrUnexpectedStatus, resp.Status, truncate(strings.TrimSpace(string(body)), maxErrorBody))
	}

	records, err := parseRecords(body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return records, resp.StatusCode, nil
}

// previewURL builds the preview endpoint for a query. The reporter is
// escaped as a path segment, everything else goes through url.Values.
func (p *Provider) previewURL(query model.Query) (string, error) {
	if query.Reporter == "" {
		return "", fmt.Errorf("%w: reporter is required", ErrInvalidQuery)
	}

	path := strings.TrimLeft(p.config.PreviewPath, "/")
	path = strings.ReplaceAll(path, "{reporter}", url.PathEscape(query.Reporter))
	endpoint := strings.TrimRight(p.config.BaseURL, "/") + "/" + path

	params := url.Values{}
	params.Set("type", p.config.Type)
	params.Set("freq", p.config.Frequency)
	params.Set("px", string(query.Classification))
	params.Set("ps", query.Year)
	params.Set("r", query.Reporter)
	params.Set("p", query.Partner)
	return endpoint + "?" + params.Encode(), nil
}

func parseRecords(body []byte) ([]model.Record, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	document, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level is %T, want object", ErrMalformedBody, payload)
	}

	raw, ok := document["data"]
	if !ok || raw == nil {
		return []model.Record{}, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: data is %T, want array", ErrMalformedBody, raw)
	}

	records := make([]model.Record, 0, len(items))
	for _, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			continue
		}
		record, ok := rowToRecord(row)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func rowToRecord(row map[string]any) (model.Record, bool) {
	value, ok := getFloat(row, "TradeValue", "tradeValue", "primaryValue", "PrimaryValue")
	if !ok {
		return model.Record{}, false
	}
	commodity, _ := getString(row, "cmdDescE", "cmdDesc", "CmdDescE")
	period, _ := getString(row, "period", "Period", "refPeriodId", "refYear")

	return model.Record{
		Commodity:  commodity,
		TradeValue: value,
		Period:     period,
		Fields:     row,
	}, true
}

func getString(row map[string]any, keys ...string) (string, bool) {
	value, ok := getValue(row, keys...)
	if !ok {
		return "", false
	}
	switch typed := value.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return "", false
		}
		return trimmed, true
	case json.Number:
		return typed.String(), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	default:
		return "", false
	}
}

func getFloat(row map[string]any, keys ...string) (float64, bool) {
	value, ok := getValue(row, keys...)
	if !ok {
		return 0, false
	}
	switch typed := value.(type) {
	case float64:
		return typed, finite(typed)
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, finite(parsed)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		return parsed, finite(parsed)
	default:
		return 0, false
	}
}

// finite rejects the NaN and Inf spellings strconv accepts.
func finite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}

func getValue(row map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if value, ok := row[key]; ok {
			return value, ok
		}
	}
	rowKeys := make([]string, 0, len(row))
	for rowKey := range row {
		rowKeys = append(rowKeys, rowKey)
	}
	sort.Strings(rowKeys)
	for _, key := range keys {
		for _, rowKey := range rowKeys {
			if strings.EqualFold(rowKey, key) {
				return row[rowKey], true
			}
		}
	}
	return nil, false
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

var _ providers.Provider = (*Provider)(nil)
