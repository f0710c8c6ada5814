package market

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dghubble/sling"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com/"

type YahooProvider struct {
	sling *sling.Sling
}

type yahooParams struct {
	Symbols string `url:"symbols"`
}

type yahooResp struct {
	QuoteResponse struct {
		Result []yahooQuote `json:"result"`
		Error  *yahooError  `json:"error"`
	} `json:"quoteResponse"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type yahooQuote struct {
	ShortName                  *string  `json:"shortName"`
	Symbol                     *string  `json:"symbol"`
	RegularMarketPrice         *float64 `json:"regularMarketPrice"`
	RegularMarketChange        *float64 `json:"regularMarketChange"`
	RegularMarketChangePercent *float64 `json:"regularMarketChangePercent"`
	RegularMarketDayHigh       *float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow        *float64 `json:"regularMarketDayLow"`
	RegularMarketVolume        *int64   `json:"regularMarketVolume"`
	RegularMarketOpen          *float64 `json:"regularMarketOpen"`
	RegularMarketPreviousClose *float64 `json:"regularMarketPreviousClose"`
}

func NewYahooProvider(baseURL string, timeout time.Duration) *YahooProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = defaultYahooBaseURL
	}
	base := sling.New().Client(&http.Client{Timeout: timeout}).Base(baseURL).
		Set("Accept", "application/json").
		Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) market-snapshot")
	return &YahooProvider{sling: base}
}

func (p *YahooProvider) GetQuote(ctx context.Context, symbol string) (RawQuote, error) {
	req, err := p.sling.New().Get("v7/finance/quote").QueryStruct(&yahooParams{Symbols: symbol}).Request()
	if err != nil {
		return RawQuote{}, fmt.Errorf("build request: %w", err)
	}

	var payload yahooResp
	var failure yahooResp
	resp, err := p.sling.Do(req.WithContext(ctx), &payload, &failure)
	if err != nil {
		return RawQuote{}, fmt.Errorf("request yahoo: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if e := failure.QuoteResponse.Error; e != nil {
			return RawQuote{}, fmt.Errorf("yahoo status %d: %s", resp.StatusCode, e.Description)
		}
		return RawQuote{}, fmt.Errorf("yahoo status %d - %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if e := payload.QuoteResponse.Error; e != nil {
		return RawQuote{}, fmt.Errorf("yahoo error %s: %s", e.Code, e.Description)
	}

	for _, q := range payload.QuoteResponse.Result {
		if q.Symbol != nil && *q.Symbol != symbol {
			continue
		}
		return RawQuote(q), nil
	}
	// Unknown symbols come back as an empty result.
	return RawQuote{}, nil
}
