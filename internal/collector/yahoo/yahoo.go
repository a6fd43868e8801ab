package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/tally/internal/collector"
	"github.com/newthinker/tally/internal/core"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	defaultTimeout = 10 * time.Second
)

// validSymbol matches exchange tickers like INFY, M&M, BAJAJ-AUTO, 0P0000XVKP
var validSymbol = regexp.MustCompile(`^[A-Za-z0-9&\-^=_.]{1,20}$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo serves daily closes from the Yahoo Finance chart API for one
// exchange, selected by the ticker suffix (".NS", ".BO", or none).
type Yahoo struct {
	client  *http.Client
	baseURL string
	name    string
	suffix  string
}

// New creates a new Yahoo source
func New(cfg collector.Config) *Yahoo {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	name := cfg.Name
	if name == "" {
		name = "yahoo" + strings.ToLower(cfg.Suffix)
	}
	return &Yahoo{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(base, "/"),
		name:    name,
		suffix:  cfg.Suffix,
	}
}

func (y *Yahoo) Name() string {
	return y.name
}

// toYahooSymbol appends the exchange suffix unless the symbol already has one
func (y *Yahoo) toYahooSymbol(symbol string) string {
	if y.suffix == "" || strings.HasSuffix(strings.ToUpper(symbol), strings.ToUpper(y.suffix)) {
		return symbol
	}
	return symbol + y.suffix
}

// History fetches daily closes for [start, end]. A symbol the exchange does
// not list yields an empty result rather than an error.
func (y *Yahoo) History(ctx context.Context, symbol string, start, end time.Time) ([]core.PricePoint, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}
	ticker := y.toYahooSymbol(symbol)

	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("period1", fmt.Sprint(core.Normalize(start).Unix()))
	// period2 is exclusive
	q.Set("period2", fmt.Sprint(core.AddDays(end, 1).Unix()))
	reqURL := fmt.Sprintf("%s/%s?%s", y.baseURL, url.PathEscape(ticker), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; tally)")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.Chart.Error != nil {
		if result.Chart.Error.Code == "Not Found" {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description)
	}

	if len(result.Chart.Result) == 0 {
		return nil, nil
	}

	return toPoints(result.Chart.Result[0]), nil
}

// toPoints converts bar timestamps to exchange-local calendar days
func toPoints(r chartResult) []core.PricePoint {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	closes := r.Indicators.Quote[0].Close
	offset := time.Duration(r.Meta.GMTOffset) * time.Second

	points := make([]core.PricePoint, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue // Skip missing data
		}
		points = append(points, core.PricePoint{
			Date:  core.Normalize(time.Unix(ts, 0).UTC().Add(offset)),
			Price: *closes[i],
		})
	}
	return points
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol    string `json:"symbol"`
	Currency  string `json:"currency"`
	GMTOffset int64  `json:"gmtoffset"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Close []*float64 `json:"close"`
}
