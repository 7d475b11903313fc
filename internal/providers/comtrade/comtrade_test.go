package comtrade

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeshare/internal/model"
	"tradeshare/internal/providers"
	"tradeshare/internal/sdmx"
)

const reportersJSON = `{"results":[
 {"id":"842","text":"USA","reporterCodeIsoAlpha3":"USA","isGroup":false},
 {"id":"156","text":"China","reporterCodeIsoAlpha3":"CHN","isGroup":false},
 {"id":"97","text":"EU","reporterCodeIsoAlpha3":"EUR","isGroup":true}
]}`

const partnersJSON = `{"results":[
 {"id":"0","text":"World","PartnerCodeIsoAlpha3":"W00"},
 {"id":"156","text":"China","PartnerCodeIsoAlpha3":"CHN"},
 {"id":"484","text":"Mexico","PartnerCodeIsoAlpha3":"MEX"}
]}`

const dataJSON = `{"data":[
 {"partnerCode":0,"partnerISO":"W00","primaryValue":1000},
 {"partnerCode":156,"partnerISO":"CHN","primaryValue":250},
 {"partnerCode":484,"primaryValue":150},
 {"partnerCode":999,"primaryValue":5}
]}`

type testServer struct {
	dataHandler http.HandlerFunc
	dataQueries []string
}

func newTestProvider(t *testing.T, ts *testServer, mutate func(*Config)) *Provider {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/reporters", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(reportersJSON))
	})
	mux.HandleFunc("/partners", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(partnersJSON))
	})
	mux.HandleFunc("/data/v1/get/C/A/HS", func(w http.ResponseWriter, r *http.Request) {
		ts.dataQueries = append(ts.dataQueries, r.URL.RawQuery)
		ts.dataHandler(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := Config{
		BaseURL:       server.URL,
		ReportersURL:  server.URL + "/reporters",
		PartnersURL:   server.URL + "/partners",
		APIKeyPrimary: "primary",
		RetryDelay:    time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := NewWithConfig(cfg)
	require.NoError(t, err)
	return p
}

func shareMap(t *testing.T, doc *sdmx.Document) map[string]float64 {
	t.Helper()
	shares := make(map[string]float64)
	for _, series := range doc.Series {
		partner, ok := series.Dimension(sdmx.DimensionPartner)
		require.True(t, ok)
		raw, ok := series.ObsValue()
		require.True(t, ok)
		value, err := strconv.ParseFloat(raw, 64)
		require.NoError(t, err)
		shares[partner] = value
	}
	return shares
}

func TestListReportersSkipsGroups(t *testing.T) {
	p := newTestProvider(t, &testServer{}, nil)

	reporters, err := p.ListReporters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Reporter{
		{ISO3: "USA", Name: "USA"},
		{ISO3: "CHN", Name: "China"},
	}, reporters)
}

func TestFetchPartnerSharesDividesByWorld(t *testing.T) {
	ts := &testServer{dataHandler: func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "primary", r.Header.Get("Ocp-Apim-Subscription-Key"))
		w.Write([]byte(dataJSON))
	}}
	p := newTestProvider(t, ts, nil)

	doc, err := p.FetchPartnerShares(context.Background(), "usa", model.FlowExport, 2020)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"CHN": 25, "MEX": 15}, shareMap(t, doc))
	assert.Equal(t, "2020", doc.Series[0].Obs[0].Period)

	require.Len(t, ts.dataQueries, 1)
	assert.Contains(t, ts.dataQueries[0], "reportercode=842")
	assert.Contains(t, ts.dataQueries[0], "flowCode=X")
	assert.Contains(t, ts.dataQueries[0], "period=2020")
	assert.NotContains(t, ts.dataQueries[0], "partnerCode")
}

func TestSharesDocumentWithoutWorldRow(t *testing.T) {
	doc, err := sharesDocument([]partnerValue{
		{Partner: "CHN", Value: 30},
		{Partner: "MEX", Value: 10},
	}, "2020")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"CHN": 75, "MEX": 25}, shareMap(t, doc))

	_, err = sharesDocument(nil, "2020")
	assert.ErrorIs(t, err, ErrNoRecords)

	_, err = sharesDocument([]partnerValue{{World: true, Value: 0}}, "2020")
	assert.ErrorIs(t, err, ErrNoWorldTotal)
}

func TestFetchRetriesTooManyRequests(t *testing.T) {
	calls := 0
	ts := &testServer{dataHandler: func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"message":"Rate limit is exceeded."}`))
			return
		}
		w.Write([]byte(dataJSON))
	}}
	p := newTestProvider(t, ts, func(cfg *Config) { cfg.MaxRetries = 2 })

	_, err := p.FetchPartnerShares(context.Background(), "CHN", model.FlowImport, 2020)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, ts.dataQueries[1], "flowCode=M")
}

func TestFetchFallsBackToSecondaryKey(t *testing.T) {
	ts := &testServer{dataHandler: func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("subscription-key") == "primary" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(dataJSON))
	}}
	p := newTestProvider(t, ts, func(cfg *Config) { cfg.APIKeySecondary = "secondary" })

	_, err := p.FetchPartnerShares(context.Background(), "USA", model.FlowExport, 2020)
	require.NoError(t, err)
	assert.Len(t, ts.dataQueries, 2)
}

func TestFetchQuotaExceeded(t *testing.T) {
	ts := &testServer{dataHandler: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"statusCode":403,"message":"Out of call volume quota. Quota will be replenished in 05:00:00."}`))
	}}
	p := newTestProvider(t, ts, nil)

	doc, err := p.FetchPartnerShares(context.Background(), "USA", model.FlowExport, 2020)
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, providers.ErrFetch)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestFetchRequiresKey(t *testing.T) {
	p := newTestProvider(t, &testServer{}, func(cfg *Config) { cfg.APIKeyPrimary = "" })

	_, err := p.FetchPartnerShares(context.Background(), "USA", model.FlowExport, 2020)
	assert.ErrorIs(t, err, providers.ErrFetch)
}

func TestParseRetrySeconds(t *testing.T) {
	assert.Equal(t, 3, parseRetrySeconds("Rate limit is exceeded. Try again in 3 seconds."))
	assert.Equal(t, 0, parseRetrySeconds("quota exceeded"))
}
