package comtrade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"tradeshare/internal/model"
	"tradeshare/internal/providers"
	"tradeshare/internal/sdmx"
)

const (
	defaultBaseURL           = "https://comtradeapi.un.org/"
	defaultDataPath          = "data/v1/get/{type}/{freq}/{cl}"
	defaultReportersURL      = "https://comtradeapi.un.org/files/v1/app/reference/Reporters.json"
	defaultPartnersURL       = "https://comtradeapi.un.org/files/v1/app/reference/partnerAreas.json"
	defaultAPIKeyParam       = "subscription-key"
	defaultType              = "C"
	defaultFrequency         = "A"
	defaultClassification    = "HS"
	defaultCommodity         = "TOTAL"
	defaultFlowExport        = "X"
	defaultFlowImport        = "M"
	defaultWorldCode         = "0"
	defaultMaxRecords        = 50000
	defaultTimeoutSeconds    = 30
	defaultUserAgent         = "tradeshare/0.1"
	defaultAllowISO3Fallback = true
	defaultMaxRetries        = 3
)

var ErrNoRecords = errors.New("comtrade: no records found")
var ErrQuotaExceeded = errors.New("comtrade: quota exceeded")

// ErrNoWorldTotal is returned when a response carries neither a world row
// nor any partner value to derive the total from.
var ErrNoWorldTotal = errors.New("comtrade: world total missing")

type Config struct {
	BaseURL           string
	DataPath          string
	ReportersURL      string
	PartnersURL       string
	APIKeyPrimary     string
	APIKeySecondary   string
	APIKeyParam       string
	Type              string
	Frequency         string
	Classification    string
	Commodity         string
	FlowExport        string
	FlowImport        string
	WorldCode         string
	MaxRecords        int
	Timeout           time.Duration
	UserAgent         string
	AllowISO3Fallback bool
	MaxRetries        int
	RetryDelay        time.Duration
}

// Provider derives partner shares from UN Comtrade partner trade values.
// One request per reporter, flow and year returns every partner; each
// partner value is divided by the world row to produce a percentage.
type Provider struct {
	config       Config
	client       *http.Client
	mu           sync.Mutex
	refsLoaded   bool
	reporters    []model.Reporter
	reporterCode map[string]string
	partnerISO3  map[string]string
}

type referenceEntry struct {
	Code        string
	ISO3        string
	Name        string
	IsReporter  bool
	HasReporter bool
	IsGroup     bool
}

func New() (*Provider, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.DataPath) == "" {
		cfg.DataPath = defaultDataPath
	}
	if strings.TrimSpace(cfg.ReportersURL) == "" {
		cfg.ReportersURL = defaultReportersURL
	}
	if strings.TrimSpace(cfg.PartnersURL) == "" {
		cfg.PartnersURL = defaultPartnersURL
	}
	if strings.TrimSpace(cfg.APIKeyParam) == "" {
		cfg.APIKeyParam = defaultAPIKeyParam
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
	if strings.TrimSpace(cfg.Commodity) == "" {
		cfg.Commodity = defaultCommodity
	}
	if strings.TrimSpace(cfg.FlowExport) == "" {
		cfg.FlowExport = defaultFlowExport
	}
	if strings.TrimSpace(cfg.FlowImport) == "" {
		cfg.FlowImport = defaultFlowImport
	}
	if strings.TrimSpace(cfg.WorldCode) == "" {
		cfg.WorldCode = defaultWorldCode
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = defaultMaxRecords
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeoutSeconds * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	return &Provider{
		config:       cfg,
		client:       &http.Client{Timeout: cfg.Timeout},
		reporterCode: make(map[string]string),
		partnerISO3:  make(map[string]string),
	}, nil
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		BaseURL:           providers.Getenv("COMTRADE_BASE_URL", defaultBaseURL),
		DataPath:          providers.Getenv("COMTRADE_DATA_PATH", defaultDataPath),
		ReportersURL:      providers.Getenv("COMTRADE_REPORTERS_URL", defaultReportersURL),
		PartnersURL:       providers.Getenv("COMTRADE_PARTNERS_URL", defaultPartnersURL),
		APIKeyPrimary:     providers.Getenv("COMTRADE_PRIMARY_KEY", ""),
		APIKeySecondary:   providers.Getenv("COMTRADE_SECONDARY_KEY", ""),
		APIKeyParam:       providers.Getenv("COMTRADE_API_KEY_PARAM", defaultAPIKeyParam),
		Type:              providers.Getenv("COMTRADE_TYPE", defaultType),
		Frequency:         providers.Getenv("COMTRADE_FREQUENCY", defaultFrequency),
		Classification:    providers.Getenv("COMTRADE_CLASSIFICATION", defaultClassification),
		Commodity:         providers.Getenv("COMTRADE_COMMODITY", defaultCommodity),
		FlowExport:        providers.Getenv("COMTRADE_FLOW_EXPORT", defaultFlowExport),
		FlowImport:        providers.Getenv("COMTRADE_FLOW_IMPORT", defaultFlowImport),
		WorldCode:         providers.Getenv("COMTRADE_WORLD_CODE", defaultWorldCode),
		AllowISO3Fallback: providers.GetenvBool("COMTRADE_ALLOW_ISO3_FALLBACK", defaultAllowISO3Fallback),
	}

	cfg.MaxRecords = providers.GetenvInt("COMTRADE_MAX_RECORDS", defaultMaxRecords)
	cfg.Timeout = time.Duration(providers.GetenvInt("COMTRADE_TIMEOUT_SECONDS", defaultTimeoutSeconds)) * time.Second
	cfg.MaxRetries = providers.GetenvInt("COMTRADE_MAX_RETRIES", defaultMaxRetries)

	return cfg, nil
}

func (p *Provider) Name() string {
	return "comtrade"
}

func (p *Provider) ListReporters(ctx context.Context) ([]model.Reporter, error) {
	if err := p.ensureReferences(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := make([]model.Reporter, len(p.reporters))
	copy(copied, p.reporters)
	return copied, nil
}

func (p *Provider) FetchPartnerShares(ctx context.Context, reporterISO3 string, flow model.Flow, year int) (*sdmx.Document, error) {
	reporterISO3 = model.NormalizeCode(reporterISO3)
	doc, err := p.fetchShares(ctx, reporterISO3, flow, year)
	if err != nil {
		return nil, providers.NewFetchError(p.Name(), reporterISO3, flow, err)
	}
	return doc, nil
}

func (p *Provider) fetchShares(ctx context.Context, reporterISO3 string, flow model.Flow, year int) (*sdmx.Document, error) {
	reporterCode := reporterISO3
	if err := p.ensureReferences(ctx); err != nil {
		if !p.config.AllowISO3Fallback {
			return nil, err
		}
	} else {
		code, err := p.resolveReporterCode(reporterISO3)
		if err != nil {
			return nil, err
		}
		reporterCode = code
	}

	params := url.Values{}
	params.Set("reportercode", reporterCode)
	params.Set("flowCode", p.flowCode(flow))
	params.Set("period", strconv.Itoa(year))
	params.Set("cmdCode", p.config.Commodity)
	params.Set("format", "json")
	if p.config.MaxRecords > 0 {
		params.Set("maxRecords", strconv.Itoa(p.config.MaxRecords))
	}

	body, err := p.doRequest(ctx, p.dataURL(), params)
	if err != nil {
		return nil, err
	}
	values, err := p.parsePartnerValues(body)
	if err != nil {
		return nil, err
	}
	return sharesDocument(values, strconv.Itoa(year))
}

type partnerValue struct {
	Partner string
	World   bool
	Value   float64
}

// sharesDocument turns partner trade values into percentage shares of the
// world total. When no world row exists the partner sum stands in for it.
func sharesDocument(values []partnerValue, period string) (*sdmx.Document, error) {
	if len(values) == 0 {
		return nil, ErrNoRecords
	}

	var world, sum float64
	hasWorld := false
	for _, value := range values {
		if value.World {
			world += value.Value
			hasWorld = true
			continue
		}
		sum += value.Value
	}
	if !hasWorld {
		world = sum
	}
	if world <= 0 {
		return nil, ErrNoWorldTotal
	}

	doc := &sdmx.Document{}
	for _, value := range values {
		if value.World || value.Partner == "" {
			continue
		}
		share := value.Value * 100 / world
		doc.Add(sdmx.DimensionPartner, value.Partner, period, strconv.FormatFloat(share, 'f', -1, 64))
	}
	return doc, nil
}

func (p *Provider) ensureReferences(ctx context.Context) error {
	p.mu.Lock()
	if p.refsLoaded {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	reporterEntries, err := p.fetchReferences(ctx, p.config.ReportersURL)
	if err != nil {
		return err
	}
	partnerEntries, err := p.fetchReferences(ctx, p.config.PartnersURL)
	if err != nil {
		return err
	}

	reporters := make([]model.Reporter, 0, len(reporterEntries))
	reporterCodes := make(map[string]string, len(reporterEntries))
	for _, entry := range reporterEntries {
		iso3 := model.NormalizeCode(entry.ISO3)
		if iso3 == "" || entry.IsGroup {
			continue
		}
		if entry.HasReporter && !entry.IsReporter {
			continue
		}
		if _, exists := reporterCodes[iso3]; exists {
			continue
		}
		reporterCodes[iso3] = codeOrISO3(entry.Code, iso3)
		reporters = append(reporters, model.Reporter{ISO3: iso3, Name: entry.Name})
	}
	if len(reporters) == 0 {
		return errors.New("comtrade: no reporters parsed")
	}

	partnerISO3 := make(map[string]string, len(partnerEntries))
	for _, entry := range partnerEntries {
		iso3 := model.NormalizeCode(entry.ISO3)
		code := strings.TrimSpace(entry.Code)
		if iso3 == "" || code == "" {
			continue
		}
		partnerISO3[code] = iso3
	}

	p.mu.Lock()
	p.reporters = reporters
	p.reporterCode = reporterCodes
	p.partnerISO3 = partnerISO3
	p.refsLoaded = true
	p.mu.Unlock()

	return nil
}

func codeOrISO3(code, iso3 string) string {
	if code = strings.TrimSpace(code); code != "" {
		return code
	}
	return iso3
}

func (p *Provider) fetchReferences(ctx context.Context, endpoint string) ([]referenceEntry, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("comtrade: reference url is required")
	}
	body, err := p.doRequest(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return parseReferenceEntries(body)
}

func (p *Provider) resolveReporterCode(iso3 string) (string, error) {
	if iso3 == "" {
		return "", errors.New("comtrade: reporter iso3 is required")
	}
	p.mu.Lock()
	code, ok := p.reporterCode[iso3]
	p.mu.Unlock()
	if ok && code != "" {
		return code, nil
	}
	if p.config.AllowISO3Fallback {
		return iso3, nil
	}
	return "", fmt.Errorf("comtrade: missing reporter code for %s", iso3)
}

func (p *Provider) partnerFromRow(row map[string]any) (string, bool) {
	code, _ := getString(row, "partnerCode", "ptCode")
	if code == p.config.WorldCode {
		return "", true
	}
	if iso3, ok := getString(row, "partnerISO", "pt3ISO", "partnerISO3", "PartnerISO3"); ok {
		iso3 = model.NormalizeCode(iso3)
		return iso3, iso3 == "W00" || iso3 == "WLD"
	}
	p.mu.Lock()
	iso3 := p.partnerISO3[code]
	p.mu.Unlock()
	return iso3, false
}

func (p *Provider) parsePartnerValues(body []byte) ([]partnerValue, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	rows, err := extractRows(payload)
	if err != nil {
		return nil, err
	}

	values := make([]partnerValue, 0, len(rows))
	for _, row := range rows {
		value, ok := getFloat(row, "primaryValue", "TradeValue", "tradeValue", "value")
		if !ok {
			continue
		}
		partner, world := p.partnerFromRow(row)
		if partner == "" && !world {
			continue
		}
		values = append(values, partnerValue{Partner: partner, World: world, Value: value})
	}
	return values, nil
}

func (p *Provider) dataURL() string {
	path := strings.TrimLeft(p.config.DataPath, "/")
	path = strings.ReplaceAll(path, "{type}", url.PathEscape(p.config.Type))
	path = strings.ReplaceAll(path, "{freq}", url.PathEscape(p.config.Frequency))
	path = strings.ReplaceAll(path, "{cl}", url.PathEscape(p.config.Classification))
	return strings.TrimRight(p.config.BaseURL, "/") + "/" + path
}

func (p *Provider) flowCode(flow model.Flow) string {
	switch flow {
	case model.FlowExport:
		return p.config.FlowExport
	case model.FlowImport:
		return p.config.FlowImport
	default:
		return string(flow)
	}
}

// doRequest tries the primary key then the secondary one. A 429 is retried
// with the same key after Retry-After; 401 and 403 move on to the next key.
func (p *Provider) doRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	keys := []string{}
	if strings.TrimSpace(p.config.APIKeyPrimary) != "" {
		keys = append(keys, p.config.APIKeyPrimary)
	}
	if strings.TrimSpace(p.config.APIKeySecondary) != "" && p.config.APIKeySecondary != p.config.APIKeyPrimary {
		keys = append(keys, p.config.APIKeySecondary)
	}
	if len(keys) == 0 {
		return nil, errors.New("comtrade: api key is required (COMTRADE_PRIMARY_KEY)")
	}

	var lastErr error
	for _, key := range keys {
		attempts := p.config.MaxRetries + 1
		for attempt := 0; attempt < attempts; attempt++ {
			body, status, retryAfter, err := p.doRequestWithKey(ctx, endpoint, params, key)
			if err == nil {
				return body, nil
			}
			lastErr = err
			if status == http.StatusUnauthorized || status == http.StatusForbidden {
				break
			}
			if status == http.StatusTooManyRequests && attempt < attempts-1 {
				if retryAfter <= 0 {
					retryAfter = p.config.RetryDelay
				}
				if err := sleepWithContext(ctx, retryAfter); err != nil {
					return nil, err
				}
				continue
			}
			return nil, err
		}
	}
	return nil, lastErr
}

func (p *Provider) doRequestWithKey(ctx context.Context, endpoint string, params url.Values, apiKey string) ([]byte, int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.buildURL(endpoint, params, apiKey), nil)
	if err != nil {
		return nil, 0, 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", apiKey)
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, 0, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter := parseRetryAfter(resp, body)
		if resp.StatusCode == http.StatusForbidden && isQuotaExceeded(body) {
			return nil, resp.StatusCode, retryAfter, fmt.Errorf("%w: %s", ErrQuotaExceeded, strings.TrimSpace(string(body)))
		}
		return nil, resp.StatusCode, retryAfter, fmt.Errorf("comtrade: request failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return body, resp.StatusCode, 0, nil
}

func (p *Provider) buildURL(endpoint string, params url.Values, apiKey string) string {
	query := url.Values{}
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	if strings.TrimSpace(p.config.APIKeyParam) != "" {
		query.Set(p.config.APIKeyParam, apiKey)
	}
	return endpoint + "?" + query.Encode()
}

func parseReferenceEntries(body []byte) ([]referenceEntry, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	rows, err := extractRows(payload)
	if err != nil {
		return nil, err
	}

	entries := make([]referenceEntry, 0, len(rows))
	for _, row := range rows {
		code, _ := getString(row, "id", "code", "reporterCode", "partnerCode")
		iso3, _ := getString(row, "iso3", "reporterCodeIsoAlpha3", "PartnerCodeIsoAlpha3", "partnerCodeIsoAlpha3")
		name, _ := getString(row, "text", "name", "reporterDesc", "partnerDesc")
		entry := referenceEntry{Code: code, ISO3: iso3, Name: name}

		if value, ok := getValue(row, "isReporter"); ok {
			entry.IsReporter = parseBool(value)
			entry.HasReporter = true
		}
		if value, ok := getValue(row, "isGroup"); ok {
			entry.IsGroup = parseBool(value)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func extractRows(payload any) ([]map[string]any, error) {
	switch typed := payload.(type) {
	case []any:
		rows := make([]map[string]any, 0, len(typed))
		for _, item := range typed {
			if row, ok := item.(map[string]any); ok {
				rows = append(rows, row)
			}
		}
		return rows, nil
	case map[string]any:
		for _, key := range []string{"data", "results", "dataset"} {
			if raw, ok := getValue(typed, key); ok {
				return extractRows(raw)
			}
		}
		return nil, errors.New("comtrade: unexpected response shape")
	default:
		return nil, errors.New("comtrade: unexpected response type")
	}
}

func getString(row map[string]any, keys ...string) (string, bool) {
	value, ok := getValue(row, keys...)
	if !ok {
		return "", false
	}
	switch typed := value.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		return trimmed, trimmed != ""
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
		return typed, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func getValue(row map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if value, ok := row[key]; ok && value != nil {
			return value, true
		}
	}
	for rowKey, value := range row {
		for _, key := range keys {
			if value != nil && strings.EqualFold(rowKey, key) {
				return value, true
			}
		}
	}
	return nil, false
}

func parseBool(value any) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "1", "true", "yes", "y":
			return true
		}
	case float64:
		return typed != 0
	}
	return false
}

func parseRetryAfter(resp *http.Response, body []byte) time.Duration {
	if value := strings.TrimSpace(resp.Header.Get("Retry-After")); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		if when, err := time.Parse(http.TimeFormat, value); err == nil {
			if wait := time.Until(when); wait > 0 {
				return wait
			}
		}
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0
	}
	message, _ := payload["message"].(string)
	if seconds := parseRetrySeconds(message); seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

func isQuotaExceeded(body []byte) bool {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		if message, ok := payload["message"].(string); ok {
			return strings.Contains(strings.ToLower(message), "quota")
		}
	}
	return strings.Contains(strings.ToLower(string(body)), "quota")
}

// parseRetrySeconds reads "Try again in N seconds" style messages.
func parseRetrySeconds(message string) int {
	msg := strings.ToLower(message)
	marker := "try again in"
	idx := strings.Index(msg, marker)
	if idx == -1 {
		return 0
	}
	for _, part := range strings.Fields(msg[idx+len(marker):]) {
		if value, err := strconv.Atoi(part); err == nil && value > 0 {
			return value
		}
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ providers.Provider = (*Provider)(nil)
