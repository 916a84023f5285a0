// Package yahoo fetches daily bars for Hong Kong and US listings from the chart API.
package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	xhttp "StockPulse/pkg/http"
	applogger "StockPulse/pkg/logger"
	xutil "StockPulse/pkg/util"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 2
)

// TimeRange is a chart lookback window understood by the API.
type TimeRange string

const (
	Range1y  TimeRange = "1y"
	Range2y  TimeRange = "2y"
	Range5y  TimeRange = "5y"
	Range10y TimeRange = "10y"
	RangeMax TimeRange = "max"
)

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
	Meta struct {
		Symbol    string `json:"symbol"`
		GmtOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []quote `json:"quote"`
	} `json:"indicators"`
}

// quote arrays contain nulls on halted days
type quote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

// Client implements domrepo.Provider for HK and US. The API is asked for a lookback window
// covering start; trimming to the exact range is left to the caller.
type Client struct {
	baseURL string
	timeout time.Duration
	retries int
	http    *xhttp.Client
	limiter *rate.Limiter
	logger  *applogger.Logger
	now     func() time.Time
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetries retries throttled or failed (5xx) requests up to n extra times.
func WithRetries(n int) ClientOption {
	return func(c *Client) { c.retries = n }
}

func WithLogger(l *applogger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  applogger.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = xhttp.NewClient(xhttp.WithTimeout(c.timeout), xhttp.WithRetry(c.retries, 0))
	return c
}

func (c *Client) Name() string { return "yahoo" }

// FetchDaily returns named columns date/open/high/low/close/volume.
func (c *Client) FetchDaily(ctx context.Context, symbol string, market models.MarketType, start, end string) (models.RawTable, error) {
	if market != models.MarketHK && market != models.MarketUS {
		return models.RawTable{}, fmt.Errorf("%w: yahoo does not serve %q", models.ErrUnsupportedMarket, market)
	}
	ticker := Ticker(symbol, market)

	if err := c.limiter.Wait(ctx); err != nil {
		return models.RawTable{}, fmt.Errorf("rate limit wait: %w", err)
	}

	var resp chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     c.baseURL + "/v8/finance/chart/" + url.PathEscape(ticker),
		Headers: map[string]string{"User-Agent": "Mozilla/5.0"},
		QueryParams: map[string][]string{
			"interval": {"1d"},
			"range":    {string(c.rangeFor(start))},
		},
	}, &resp)
	if err != nil {
		return models.RawTable{}, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}
	if resp.Chart.Error != nil {
		return models.RawTable{}, fmt.Errorf("yahoo chart %s: %s: %s", ticker, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}

	raw := models.RawTable{Columns: []string{"date", "open", "high", "low", "close", "volume"}}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		c.logger.Debug("yahoo returned no data", applogger.String("ticker", ticker))
		return raw, nil
	}

	res := resp.Chart.Result[0]
	q := res.Indicators.Quote[0]
	raw.Rows = make([][]string, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		closePx := at(q.Close, i)
		if closePx == nil {
			continue
		}
		date := time.Unix(ts+res.Meta.GmtOffset, 0).UTC()
		raw.Rows = append(raw.Rows, []string{
			xutil.FormatDay(date),
			cell(at(q.Open, i)),
			cell(at(q.High, i)),
			cell(at(q.Low, i)),
			cell(closePx),
			cell(at(q.Volume, i)),
		})
	}
	return raw, nil
}

// rangeFor picks the smallest lookback window that reaches back to start.
func (c *Client) rangeFor(start string) TimeRange {
	from, ok := xutil.ParseTime(start)
	if !ok {
		return Range1y
	}
	age := c.now().Sub(from)
	const year = 366 * 24 * time.Hour
	switch {
	case age <= year:
		return Range1y
	case age <= 2*year:
		return Range2y
	case age <= 5*year:
		return Range5y
	case age <= 10*year:
		return Range10y
	}
	return RangeMax
}

// Ticker maps a local code to the chart API symbol: 700 becomes 0700.HK, BRK.B becomes BRK-B.
func Ticker(symbol string, market models.MarketType) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if market == models.MarketHK {
		s = strings.TrimSuffix(s, ".HK")
		s = strings.TrimLeft(s, "0")
		if n, err := strconv.Atoi(s); err == nil {
			return fmt.Sprintf("%04d.HK", n)
		}
		return s + ".HK"
	}
	return strings.ReplaceAll(s, ".", "-")
}

func at(xs []*float64, i int) *float64 {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

func cell(v *float64) string {
	if v == nil {
		return ""
	}
	return xutil.FormatFloat(*v)
}

var _ domrepo.Provider = (*Client)(nil)
