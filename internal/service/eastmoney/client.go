// Package eastmoney fetches daily klines for A-shares, ETFs and LOFs.
package eastmoney

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/normalize"
	xhttp "StockPulse/pkg/http"
	applogger "StockPulse/pkg/logger"
)

const (
	DefaultBaseURL   = "https://push2his.eastmoney.com"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 5 // requests per second

	klinePath = "/api/qt/stock/kline/get"
	// date,open,close,high,low,volume,amount,amplitude,change_pct,change,turnover
	klineFields = "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61"
)

// Adjust selects the price adjustment mode.
type Adjust string

const (
	AdjustNone    Adjust = "0"
	AdjustForward Adjust = "1"
	AdjustBack    Adjust = "2"
)

// Client implements domrepo.Provider for markets served by the kline API.
type Client struct {
	baseURL string
	adjust  Adjust
	timeout time.Duration
	retries int
	http    *xhttp.Client
	limiter *rate.Limiter
	logger  *applogger.Logger
}

// ClientOption configures the client
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

func WithAdjust(a Adjust) ClientOption {
	return func(c *Client) { c.adjust = a }
}

func WithLogger(l *applogger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		adjust:  AdjustForward,
		timeout: DefaultTimeout,
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  applogger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = xhttp.NewClient(xhttp.WithTimeout(c.timeout), xhttp.WithRetry(c.retries, 0))
	return c
}

func (c *Client) Name() string { return "eastmoney" }

type klineResponse struct {
	RC   int `json:"rc"`
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// FetchDaily returns positional rows. A-share rows carry the code as their second column.
func (c *Client) FetchDaily(ctx context.Context, symbol string, market models.MarketType, start, end string) (models.RawTable, error) {
	switch market {
	case models.MarketA, models.MarketETF, models.MarketLOF:
	default:
		return models.RawTable{}, fmt.Errorf("%w: eastmoney does not serve %q", models.ErrUnsupportedMarket, market)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return models.RawTable{}, fmt.Errorf("rate limit wait: %w", err)
	}

	var resp klineResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + klinePath,
		QueryParams: map[string][]string{
			"secid":   {SecID(symbol)},
			"fields1": {"f1,f2,f3,f4,f5,f6"},
			"fields2": {klineFields},
			"klt":     {"101"},
			"fqt":     {string(c.adjust)},
			"beg":     {start},
			"end":     {end},
		},
	}, &resp)
	if err != nil {
		return models.RawTable{}, fmt.Errorf("eastmoney kline %s: %w", symbol, err)
	}

	raw := models.RawTable{Columns: normalize.ExpectedColumns(market)}
	if resp.Data == nil {
		c.logger.Debug("eastmoney returned no data", applogger.String("symbol", symbol), applogger.String("market", market.String()))
		return raw, nil
	}

	raw.Rows = make([][]string, 0, len(resp.Data.Klines))
	for _, line := range resp.Data.Klines {
		cells := strings.Split(line, ",")
		if market == models.MarketA && len(cells) > 0 {
			row := make([]string, 0, len(cells)+1)
			row = append(row, cells[0], symbol)
			cells = append(row, cells[1:]...)
		}
		raw.Rows = append(raw.Rows, cells)
	}
	return raw, nil
}

// SecID prefixes a code with its exchange id: 1 for Shanghai, 0 for Shenzhen and Beijing.
func SecID(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.IndexByte(code, '.'); i > 0 {
		code = code[:i]
	}
	if code == "" {
		return "0."
	}
	switch code[0] {
	case '5', '6', '9':
		return "1." + code
	}
	return "0." + code
}

var _ domrepo.Provider = (*Client)(nil)
