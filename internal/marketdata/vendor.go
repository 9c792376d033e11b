// Package marketdata ingests raw market data from the external vendor:
// a polled full-market snapshot (§4.1) and an authenticated WebSocket
// duplex stream of trades/quotes/aggregates (§4.2).
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/aristath/equiscan/internal/domain"
)

// VendorClient wraps the vendor's HTTP market-data API: full-market
// snapshot, ticker details, splits, market-status and holiday calendar.
type VendorClient struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
}

// NewVendorClient builds a client with bounded exponential-backoff
// retries (spec §8 "transient remote" policy: "retry with exponential
// backoff bounded to ~30s").
func NewVendorClient(baseURL, apiKey string, log zerolog.Logger) *VendorClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 5
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 30 * time.Second
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil // vendor errors surface through returned errors, not the retry library's own logger
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &VendorClient{baseURL: baseURL, apiKey: apiKey, http: rc}
}

func (c *VendorClient) get(ctx context.Context, path string, query map[string]string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("marketdata: build request %s: %w", path, err)
	}

	q := req.URL.Query()
	q.Set("apiKey", c.apiKey)
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketdata: request %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("marketdata: %s returned status %d", path, resp.StatusCode)
	}
	return resp, nil
}

// rawSnapshotRow is the tolerant wire shape of one row of the vendor's
// full-market snapshot endpoint; every field is optional since the spec
// requires tolerant schema validation (malformed rows are counted, not
// fatal).
type rawSnapshotRow struct {
	Symbol string `json:"symbol" `
	Day    *struct {
		Open   float64 `json:"o"`
		High   float64 `json:"h"`
		Low    float64 `json:"l"`
		Close  float64 `json:"c"`
		Volume float64 `json:"v"`
		Trades int64   `json:"n"`
	} `json:"day"`
	PrevDay *struct {
		Close  float64 `json:"c"`
		Volume float64 `json:"v"`
	} `json:"prevDay"`
	LastTrade *struct {
		Price     float64 `json:"p"`
		Size      float64 `json:"s"`
		Exchange  int     `json:"x"`
		Timestamp int64   `json:"t"` // vendor epoch nanos
	} `json:"lastTrade"`
	LastQuote *struct {
		BidPrice  float64 `json:"bp"`
		AskPrice  float64 `json:"ap"`
		BidSize   float64 `json:"bs"`
		AskSize   float64 `json:"as"`
		Timestamp int64   `json:"t"`
	} `json:"lastQuote"`
	UpdatedAt int64 `json:"updated"`
}

// FetchResult carries the parsed rows plus a count of rows that failed
// tolerant validation (spec §4.1: "malformed rows counted, not fatal").
type FetchResult struct {
	Rows         []domain.SnapshotRow
	MalformedCount int
	FetchedAt    time.Time
}

// FetchSnapshot pulls the vendor "all US stocks snapshot" endpoint.
func (c *VendorClient) FetchSnapshot(ctx context.Context) (*FetchResult, error) {
	resp, err := c.get(ctx, "/v2/snapshot/locale/us/markets/stocks/tickers", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Tickers []rawSnapshotRow `json:"tickers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("marketdata: decode snapshot: %w", err)
	}

	result := &FetchResult{FetchedAt: time.Now()}
	for _, raw := range payload.Tickers {
		row, ok := toSnapshotRow(raw)
		if !ok {
			result.MalformedCount++
			continue
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

func toSnapshotRow(raw rawSnapshotRow) (domain.SnapshotRow, bool) {
	if raw.Symbol == "" {
		return domain.SnapshotRow{}, false
	}

	row := domain.SnapshotRow{
		Symbol:            raw.Symbol,
		SnapshotTimestamp: time.Unix(0, raw.UpdatedAt),
	}
	if raw.Day != nil {
		row.Day = domain.DayBar{
			Open: raw.Day.Open, High: raw.Day.High, Low: raw.Day.Low,
			Close: raw.Day.Close, Volume: raw.Day.Volume, Trades: raw.Day.Trades,
		}
	}
	if raw.PrevDay != nil {
		row.PrevDay = domain.PrevDayBar{Close: raw.PrevDay.Close, Volume: raw.PrevDay.Volume}
	}
	if raw.LastTrade != nil {
		row.Trade = domain.Trade{
			Price: raw.LastTrade.Price, Size: raw.LastTrade.Size,
			Exchange: raw.LastTrade.Exchange, Timestamp: time.Unix(0, raw.LastTrade.Timestamp),
		}
	}
	if raw.LastQuote != nil {
		row.Quote = domain.Quote{
			BidPrice: raw.LastQuote.BidPrice, AskPrice: raw.LastQuote.AskPrice,
			BidSize: raw.LastQuote.BidSize, AskSize: raw.LastQuote.AskSize,
			Timestamp: time.Unix(0, raw.LastQuote.Timestamp),
		}
	}

	if !row.Valid() {
		return domain.SnapshotRow{}, false
	}
	return row, true
}

// DailyBar is one vendor-reported daily OHLCV bar for a single symbol
// (load_ohlc maintenance task, spec §4.9 step 2).
type DailyBar struct {
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// FetchDailyBars pulls the vendor's grouped-daily endpoint for every
// active symbol on date in one call.
func (c *VendorClient) FetchDailyBars(ctx context.Context, date time.Time) ([]DailyBar, error) {
	resp, err := c.get(ctx, "/v2/aggs/grouped/locale/us/market/stocks/"+date.Format("2006-01-02"), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []struct {
			Symbol string  `json:"T"`
			Open   float64 `json:"o"`
			High   float64 `json:"h"`
			Low    float64 `json:"l"`
			Close  float64 `json:"c"`
			Volume float64 `json:"v"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("marketdata: decode daily bars: %w", err)
	}

	bars := make([]DailyBar, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.Symbol == "" {
			continue
		}
		bars = append(bars, DailyBar{Symbol: r.Symbol, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume})
	}
	return bars, nil
}

// AggregateBar is one intraday OHLCV bar at the configured slot size,
// used to build the RVOL baseline (load_volume_slots, spec §4.9 step 3).
type AggregateBar struct {
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	VWAP        float64
	Trades      int64
	WindowStart time.Time
}

// FetchAggregateBars pulls symbol's intraday bars for date at
// slotMinutes resolution.
func (c *VendorClient) FetchAggregateBars(ctx context.Context, symbol string, date time.Time, slotMinutes int) ([]AggregateBar, error) {
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/%d/minute/%s/%s", symbol, slotMinutes, date.Format("2006-01-02"), date.Format("2006-01-02"))
	resp, err := c.get(ctx, path, map[string]string{"sort": "asc", "limit": "50000"})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []struct {
			Open        float64 `json:"o"`
			High        float64 `json:"h"`
			Low         float64 `json:"l"`
			Close       float64 `json:"c"`
			Volume      float64 `json:"v"`
			VWAP        float64 `json:"vw"`
			Trades      int64   `json:"n"`
			WindowStart int64   `json:"t"` // vendor epoch millis
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("marketdata: decode aggregate bars for %s: %w", symbol, err)
	}

	bars := make([]AggregateBar, 0, len(payload.Results))
	for _, r := range payload.Results {
		bars = append(bars, AggregateBar{
			Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
			VWAP: r.VWAP, Trades: r.Trades, WindowStart: time.UnixMilli(r.WindowStart),
		})
	}
	return bars, nil
}

// TickerListing is one row of the vendor's full reference-ticker list
// (sync_ticker_universe, spec §4.9 step 7).
type TickerListing struct {
	Symbol      string
	CompanyName string
	Exchange    string
	Active      bool
}

// FetchTickerList pulls every US common-stock ticker the vendor knows
// about, active or delisted, in pages of 1000 (spec §4.9: "add new
// listings, deactivate delistings, update names").
func (c *VendorClient) FetchTickerList(ctx context.Context) ([]TickerListing, error) {
	var all []TickerListing
	cursor := ""

	for {
		query := map[string]string{"market": "stocks", "limit": "1000"}
		if cursor != "" {
			query["cursor"] = cursor
		}
		resp, err := c.get(ctx, "/v3/reference/tickers", query)
		if err != nil {
			return nil, err
		}

		var payload struct {
			Results []struct {
				Ticker          string `json:"ticker"`
				Name            string `json:"name"`
				PrimaryExchange string `json:"primary_exchange"`
				Active          bool   `json:"active"`
			} `json:"results"`
			NextURL string `json:"next_url"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("marketdata: decode ticker list: %w", decodeErr)
		}

		for _, r := range payload.Results {
			if r.Ticker == "" {
				continue
			}
			all = append(all, TickerListing{Symbol: r.Ticker, CompanyName: r.Name, Exchange: r.PrimaryExchange, Active: r.Active})
		}

		if payload.NextURL == "" {
			break
		}
		cursor = extractCursor(payload.NextURL)
		if cursor == "" {
			break
		}
	}

	return all, nil
}

func extractCursor(nextURL string) string {
	u, err := url.Parse(nextURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("cursor")
}

// TickerDetails is the vendor's per-symbol reference-data payload
// (enrich_metadata / sync_ticker_universe, spec §4.9 steps 7-8).
type TickerDetails struct {
	Symbol            string
	CompanyName       string
	Exchange          string
	Sector            string
	Industry          string
	MarketCap         float64
	SharesOutstanding float64
	IsETF             bool
	Active            bool
}

// FetchTickerDetails pulls the vendor's ticker-details endpoint for a
// single symbol.
func (c *VendorClient) FetchTickerDetails(ctx context.Context, symbol string) (*TickerDetails, error) {
	resp, err := c.get(ctx, "/v3/reference/tickers/"+symbol, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results struct {
			Ticker            string  `json:"ticker"`
			Name              string  `json:"name"`
			PrimaryExchange   string  `json:"primary_exchange"`
			SicDescription    string  `json:"sic_description"`
			MarketCap         float64 `json:"market_cap"`
			ShareClassShares  float64 `json:"share_class_shares_outstanding"`
			Type              string  `json:"type"`
			Active            bool    `json:"active"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("marketdata: decode ticker details for %s: %w", symbol, err)
	}

	return &TickerDetails{
		Symbol:            payload.Results.Ticker,
		CompanyName:       payload.Results.Name,
		Exchange:          payload.Results.PrimaryExchange,
		Sector:            payload.Results.SicDescription,
		MarketCap:         payload.Results.MarketCap,
		SharesOutstanding: payload.Results.ShareClassShares,
		IsETF:             payload.Results.Type == "ETF",
		Active:            payload.Results.Active,
	}, nil
}

// TickerSplit is one vendor-reported stock split.
type TickerSplit struct {
	Symbol       string
	ExecutionDate time.Time
	SplitFrom    float64
	SplitTo      float64
}

// Factor returns the reverse-adjustment multiplier: SplitFrom/SplitTo
// for a forward split, >1 for a reverse split (spec §8 scenario 4).
func (s TickerSplit) Factor() float64 {
	if s.SplitTo == 0 {
		return 1
	}
	return s.SplitFrom / s.SplitTo
}

// FetchSplits pulls splits effective on or after since.
func (c *VendorClient) FetchSplits(ctx context.Context, since time.Time) ([]TickerSplit, error) {
	resp, err := c.get(ctx, "/v3/reference/splits", map[string]string{
		"execution_date.gte": since.Format("2006-01-02"),
		"limit":              "1000",
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []struct {
			Ticker        string  `json:"ticker"`
			ExecutionDate string  `json:"execution_date"`
			SplitFrom     float64 `json:"split_from"`
			SplitTo       float64 `json:"split_to"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("marketdata: decode splits: %w", err)
	}

	splits := make([]TickerSplit, 0, len(payload.Results))
	for _, r := range payload.Results {
		effective, err := time.Parse("2006-01-02", r.ExecutionDate)
		if err != nil {
			continue
		}
		splits = append(splits, TickerSplit{Symbol: r.Ticker, ExecutionDate: effective, SplitFrom: r.SplitFrom, SplitTo: r.SplitTo})
	}
	return splits, nil
}

// HolidayEntry is one entry of the vendor's market-holiday calendar.
type HolidayEntry struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	EarlyClose string `json:"close,omitempty"` // HH:MM override when the session closes early
}

// FetchHolidays pulls the vendor market-holiday calendar, cached by the
// caller for 30 days per spec §4.8.
func (c *VendorClient) FetchHolidays(ctx context.Context) ([]HolidayEntry, error) {
	resp, err := c.get(ctx, "/v1/marketstatus/upcoming", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var entries []HolidayEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("marketdata: decode holidays: %w", err)
	}
	return entries, nil
}
