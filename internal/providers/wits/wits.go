package wits

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tradeshare/internal/model"
	"tradeshare/internal/providers"
	"tradeshare/internal/sdmx"
)

const (
	defaultBaseURL          = "https://wits.worldbank.org/API/V1/"
	defaultDataPathTemplate = "SDMX/V21/rest/data/df_wits_tradestats_trade/A.{reporter}..{product}.{indicator}/?startPeriod={year}&endPeriod={year}"
	defaultReportersPath    = "wits/datasource/trn/country/ALL"
	defaultTimeoutSeconds   = 20
	defaultUserAgent        = "tradeshare/0.1"
	defaultIndicatorExport  = "XPRT-PRTNR-SHR"
	defaultIndicatorImport  = "MPRT-PRTNR-SHR"
	defaultProductCode      = "999999"
	defaultLowerReporter    = true
)

var ErrNoRecords = errors.New("wits: no records found")

type Config struct {
	BaseURL          string
	DataPathTemplate string
	ReportersPath    string
	Timeout          time.Duration
	UserAgent        string
	IndicatorExport  string
	IndicatorImport  string
	ProductCode      string
	LowerReporter    bool
}

type Provider struct {
	config Config
	client *http.Client
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
		return nil, errors.New("wits base url is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/"
	if strings.TrimSpace(cfg.DataPathTemplate) == "" {
		cfg.DataPathTemplate = defaultDataPathTemplate
	}
	if strings.TrimSpace(cfg.ReportersPath) == "" {
		cfg.ReportersPath = defaultReportersPath
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeoutSeconds * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.IndicatorExport == "" {
		cfg.IndicatorExport = defaultIndicatorExport
	}
	if cfg.IndicatorImport == "" {
		cfg.IndicatorImport = defaultIndicatorImport
	}
	if cfg.ProductCode == "" {
		cfg.ProductCode = defaultProductCode
	}
	return &Provider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		BaseURL:          providers.Getenv("WITS_BASE_URL", defaultBaseURL),
		DataPathTemplate: providers.Getenv("WITS_DATA_PATH", defaultDataPathTemplate),
		ReportersPath:    providers.Getenv("WITS_REPORTERS_PATH", defaultReportersPath),
		UserAgent:        providers.Getenv("WITS_USER_AGENT", defaultUserAgent),
		IndicatorExport:  providers.Getenv("WITS_INDICATOR_EXPORT", defaultIndicatorExport),
		IndicatorImport:  providers.Getenv("WITS_INDICATOR_IMPORT", defaultIndicatorImport),
		ProductCode:      providers.Getenv("WITS_PRODUCT_CODE", defaultProductCode),
		LowerReporter:    providers.GetenvBool("WITS_LOWER_REPORTER", defaultLowerReporter),
	}
	cfg.Timeout = time.Duration(providers.GetenvInt("WITS_TIMEOUT_SECONDS", defaultTimeoutSeconds)) * time.Second
	return cfg, nil
}

func (p *Provider) Name() string {
	return "wits"
}

func (p *Provider) ListReporters(ctx context.Context) ([]model.Reporter, error) {
	body, err := p.doRequest(ctx, p.config.ReportersPath)
	if err != nil {
		return nil, err
	}
	reporters, err := parseReportersXML(body)
	if err != nil {
		return nil, err
	}

	if len(reporters) == 0 {
		return nil, errors.New("wits: no reporters parsed")
	}
	return reporters, nil
}

// FetchPartnerShares requests the partner-share series of one reporter for a
// single year. Every failure is returned as a *providers.FetchError.
func (p *Provider) FetchPartnerShares(ctx context.Context, reporterISO3 string, flow model.Flow, year int) (*sdmx.Document, error) {
	reporterISO3 = model.NormalizeCode(reporterISO3)
	path := p.dataPath(reporterISO3, p.indicatorForFlow(flow), year)

	body, err := p.doRequest(ctx, path)
	if err != nil {
		return nil, providers.NewFetchError(p.Name(), reporterISO3, flow, err)
	}
	doc, err := sdmx.Decode(body)
	if err != nil {
		return nil, providers.NewFetchError(p.Name(), reporterISO3, flow, err)
	}
	return doc, nil
}

// DataURL returns the full request URL for a reporter, flow and year.
func (p *Provider) DataURL(reporterISO3 string, flow model.Flow, year int) string {
	return p.buildURL(p.dataPath(model.NormalizeCode(reporterISO3), p.indicatorForFlow(flow), year))
}

func (p *Provider) dataPath(reporterISO3, indicator string, year int) string {
	reporter := reporterISO3
	if p.config.LowerReporter {
		reporter = strings.ToLower(reporter)
	}

	path := p.config.DataPathTemplate
	path = strings.ReplaceAll(path, "{reporter}", url.PathEscape(reporter))
	path = strings.ReplaceAll(path, "{product}", url.PathEscape(p.config.ProductCode))
	path = strings.ReplaceAll(path, "{indicator}", url.PathEscape(indicator))
	path = strings.ReplaceAll(path, "{year}", strconv.Itoa(year))
	return path
}

func (p *Provider) indicatorForFlow(flow model.Flow) string {
	switch flow {
	case model.FlowExport:
		return p.config.IndicatorExport
	case model.FlowImport:
		return p.config.IndicatorImport
	default:
		return flow.Code() + "-PRTNR-SHR"
	}
}

func (p *Provider) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.buildURL(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xml")
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if strings.Contains(string(body), "NoRecordsFound") {
		return nil, ErrNoRecords
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("wits: request failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return body, nil
}

func (p *Provider) buildURL(path string) string {
	return strings.TrimRight(p.config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

type witsCountryList struct {
	Countries []witsCountry `xml:"countries>country"`
}

type witsCountry struct {
	ISO3       string `xml:"iso3Code"`
	Name       string `xml:"name"`
	IsReporter string `xml:"isreporter,attr"`
	IsGroup    string `xml:"isgroup,attr"`
}

func parseReportersXML(payload []byte) ([]model.Reporter, error) {
	var response witsCountryList
	if err := xml.Unmarshal(payload, &response); err != nil {
		return nil, err
	}

	reporters := make([]model.Reporter, 0, len(response.Countries))
	for _, country := range response.Countries {
		if strings.TrimSpace(country.ISO3) == "" {
			continue
		}
		if strings.TrimSpace(country.IsReporter) != "1" {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(country.IsGroup), "no") {
			continue
		}
		reporters = append(reporters, model.Reporter{
			ISO3: model.NormalizeCode(country.ISO3),
			Name: strings.TrimSpace(country.Name),
		})
	}

	return reporters, nil
}

var _ providers.Provider = (*Provider)(nil)
