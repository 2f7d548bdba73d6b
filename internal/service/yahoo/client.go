// Package yahoo fetches the latest daily trading session for a ticker from
// a Yahoo-finance-style chart API.
package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"StockWatch/internal/domain/models"
	drepo "StockWatch/internal/domain/repository"
	"StockWatch/internal/service/ratelimit"
	xhttp "StockWatch/pkg/http"
)

const limiterKey = "yahoo"

// Client implements MarketData backed by the chart endpoint.
type Client struct {
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	maxRPS  float64
}

// New creates a new market data client.
func New(baseURL string, timeout time.Duration, maxRPS float64) drepo.MarketData {
	return &Client{
		baseURL: baseURL,
		http: xhttp.NewClient(
			xhttp.WithTimeout(timeout),
			xhttp.WithUserAgent("stockwatch/1.0"),
		),
		limiter: ratelimit.New(),
		maxRPS:  maxRPS,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string   `json:"symbol"`
				ShortName          string   `json:"shortName"`
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
				PreviousClose      *float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// LatestQuote returns the most recent daily close for ticker. Close is nil
// when the provider has no session data; that is not an error.
func (c *Client) LatestQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	if err := c.limiter.Wait(ctx, limiterKey, c.maxRPS, c.maxRPS); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var resp chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(ticker)),
		QueryParams: map[string][]string{
			"range":    {"1d"},
			"interval": {"1d"},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", ticker, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart %s: %s (%s)", ticker, resp.Chart.Error.Description, resp.Chart.Error.Code)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart %s: empty result", ticker)
	}

	res := resp.Chart.Result[0]
	q := &models.Quote{
		Ticker: ticker,
		Name:   res.Meta.ShortName,
		AsOf:   time.Now().UTC(),
	}

	// Prefer the last reported session close, fall back to the meta price.
	for _, series := range res.Indicators.Quote {
		for i := len(series.Close) - 1; i >= 0; i-- {
			if series.Close[i] != nil {
				v := *series.Close[i]
				q.Close = &v
				break
			}
		}
		if q.Close != nil {
			break
		}
	}
	if q.Close == nil && res.Meta.RegularMarketPrice != nil {
		v := *res.Meta.RegularMarketPrice
		q.Close = &v
	}

	if q.Close != nil && res.Meta.PreviousClose != nil && *res.Meta.PreviousClose != 0 {
		pct := (*q.Close - *res.Meta.PreviousClose) / *res.Meta.PreviousClose * 100
		q.PrevClosePct = &pct
	}

	return q, nil
}

type rawValue struct {
	Raw *float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			SummaryDetail struct {
				DividendYield rawValue `json:"dividendYield"`
				TrailingPE    rawValue `json:"trailingPE"`
				MarketCap     rawValue `json:"marketCap"`
			} `json:"summaryDetail"`
			CalendarEvents struct {
				ExDividendDate rawValue `json:"exDividendDate"`
				Earnings       struct {
					EarningsDate []rawValue `json:"earningsDate"`
				} `json:"earnings"`
			} `json:"calendarEvents"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// Fundamentals returns valuation data from the quote-summary endpoint.
// Tickers without coverage yield (nil, nil).
func (c *Client) Fundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error) {
	if err := c.limiter.Wait(ctx, limiterKey, c.maxRPS, c.maxRPS); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var resp quoteSummaryResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v10/finance/quoteSummary/%s", c.baseURL, url.PathEscape(ticker)),
		QueryParams: map[string][]string{
			"modules": {"summaryDetail,calendarEvents"},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("quote summary %s: %w", ticker, err)
	}
	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("quote summary %s: %s (%s)", ticker, resp.QuoteSummary.Error.Description, resp.QuoteSummary.Error.Code)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, nil
	}

	res := resp.QuoteSummary.Result[0]
	f := &models.Fundamentals{
		DividendYield: res.SummaryDetail.DividendYield.Raw,
		PriceEarnings: res.SummaryDetail.TrailingPE.Raw,
		MarketCap:     res.SummaryDetail.MarketCap.Raw,
	}
	if ts := res.CalendarEvents.ExDividendDate.Raw; ts != nil {
		t := time.Unix(int64(*ts), 0).UTC()
		f.DividendDate = &t
	}
	if dates := res.CalendarEvents.Earnings.EarningsDate; len(dates) > 0 && dates[0].Raw != nil {
		t := time.Unix(int64(*dates[0].Raw), 0).UTC()
		f.EarningsDate = &t
	}
	return f, nil
}
