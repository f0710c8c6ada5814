package market

import "context"

// RawQuote is what a provider knows about one symbol. Nil fields were
// absent in the provider response.
type RawQuote struct {
	ShortName                  *string
	Symbol                     *string
	RegularMarketPrice         *float64
	RegularMarketChange        *float64
	RegularMarketChangePercent *float64
	RegularMarketDayHigh       *float64
	RegularMarketDayLow        *float64
	RegularMarketVolume        *int64
	RegularMarketOpen          *float64
	RegularMarketPreviousClose *float64
}

type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (RawQuote, error)
}

// Quote is a normalized stock quote. Price is always present; a missing
// change percent is stored as 0.
type Quote struct {
	Symbol        string   `json:"symbol"`
	Price         float64  `json:"price"`
	Change        *float64 `json:"change"`
	ChangePercent float64  `json:"changePercent"`
	Volume        *int64   `json:"volume"`
	DayHigh       *float64 `json:"high"`
	DayLow        *float64 `json:"low"`
	Open          *float64 `json:"open"`
	PreviousClose *float64 `json:"previousClose"`
}

type IndexQuote struct {
	Name          string   `json:"name"`
	Symbol        string   `json:"symbol"`
	Value         *float64 `json:"value"`
	Change        *float64 `json:"change"`
	ChangePercent *float64 `json:"changePercent"`
	DayHigh       *float64 `json:"high"`
	DayLow        *float64 `json:"low"`
}

type Breadth struct {
	Advances  int     `json:"advances"`
	Declines  int     `json:"declines"`
	Unchanged int     `json:"unchanged"`
	Ratio     float64 `json:"ratio"`
}

type Snapshot struct {
	Indices       []IndexQuote `json:"indices"`
	TopGainers    []Quote      `json:"topGainers"`
	TopLosers     []Quote      `json:"topLosers"`
	TopStocks     []Quote      `json:"topStocks"`
	MarketBreadth Breadth      `json:"marketBreadth"`
}

// Universe is the ordered symbol set one snapshot covers.
type Universe struct {
	IndexSymbols []string
	StockSymbols []string
}

func floatPtr(v float64) *float64 { return &v }

func int64Ptr(v int64) *int64 { return &v }

func stringPtr(v string) *string { return &v }
