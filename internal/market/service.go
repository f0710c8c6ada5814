package market

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

const topN = 5

const (
	SetIndex = "index"
	SetStock = "stock"
)

// FetchError reports the lookup that aborted a snapshot.
type FetchError struct {
	Set    string
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s quote %s: %v", e.Set, e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Service struct {
	provider QuoteProvider
	universe Universe
}

func NewService(provider QuoteProvider, universe Universe) *Service {
	return &Service{
		provider: provider,
		universe: universe,
	}
}

// Snapshot queries every configured symbol in order and derives breadth
// and rankings from the stocks. The first failed lookup aborts the call.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	if s == nil || s.provider == nil {
		return nil, fmt.Errorf("market provider not configured")
	}

	indices := make([]IndexQuote, 0, len(s.universe.IndexSymbols))
	for _, sym := range s.universe.IndexSymbols {
		raw, err := s.provider.GetQuote(ctx, sym)
		if err != nil {
			return nil, &FetchError{Set: SetIndex, Symbol: sym, Err: err}
		}
		indices = append(indices, NormalizeIndex(sym, raw))
	}

	stocks := make([]Quote, 0, len(s.universe.StockSymbols))
	for _, sym := range s.universe.StockSymbols {
		raw, err := s.provider.GetQuote(ctx, sym)
		if err != nil {
			return nil, &FetchError{Set: SetStock, Symbol: sym, Err: err}
		}
		if q, ok := NormalizeStock(sym, raw); ok {
			stocks = append(stocks, q)
		}
	}

	return Assemble(indices, stocks), nil
}

// Assemble builds the response payload from normalized quotes.
func Assemble(indices []IndexQuote, stocks []Quote) *Snapshot {
	valid := withChange(stocks)
	gainers := TopGainers(valid)
	losers := TopLosers(valid)

	top := make([]Quote, 0, len(gainers)+len(losers))
	top = append(top, gainers...)
	top = append(top, losers...)

	if indices == nil {
		indices = []IndexQuote{}
	}
	return &Snapshot{
		Indices:       indices,
		TopGainers:    gainers,
		TopLosers:     losers,
		TopStocks:     top,
		MarketBreadth: ComputeBreadth(stocks),
	}
}

func NormalizeIndex(symbol string, raw RawQuote) IndexQuote {
	name := symbol
	if raw.ShortName != nil {
		name = *raw.ShortName
	}
	sym := symbol
	if raw.Symbol != nil {
		sym = *raw.Symbol
	}
	return IndexQuote{
		Name:          name,
		Symbol:        sym,
		Value:         raw.RegularMarketPrice,
		Change:        raw.RegularMarketChange,
		ChangePercent: raw.RegularMarketChangePercent,
		DayHigh:       raw.RegularMarketDayHigh,
		DayLow:        raw.RegularMarketDayLow,
	}
}

// NormalizeStock returns false when the provider has no price.
func NormalizeStock(symbol string, raw RawQuote) (Quote, bool) {
	if raw.RegularMarketPrice == nil {
		return Quote{}, false
	}
	sym := symbol
	if raw.Symbol != nil {
		sym = *raw.Symbol
	}
	var pct float64
	if raw.RegularMarketChangePercent != nil {
		pct = *raw.RegularMarketChangePercent
	}
	return Quote{
		Symbol:        sym,
		Price:         *raw.RegularMarketPrice,
		Change:        raw.RegularMarketChange,
		ChangePercent: pct,
		Volume:        raw.RegularMarketVolume,
		DayHigh:       raw.RegularMarketDayHigh,
		DayLow:        raw.RegularMarketDayLow,
		Open:          raw.RegularMarketOpen,
		PreviousClose: raw.RegularMarketPreviousClose,
	}, true
}

// ComputeBreadth counts advances and declines by absolute change. With no
// declines the ratio is the advance count itself. Halves round to even.
func ComputeBreadth(stocks []Quote) Breadth {
	valid := withChange(stocks)
	var b Breadth
	for _, q := range valid {
		switch {
		case *q.Change > 0:
			b.Advances++
		case *q.Change < 0:
			b.Declines++
		}
	}
	b.Unchanged = len(valid) - b.Advances - b.Declines

	ratio := decimal.NewFromInt(int64(b.Advances))
	if b.Declines > 0 {
		ratio = ratio.Div(decimal.NewFromInt(int64(b.Declines)))
	}
	b.Ratio = ratio.RoundBank(2).InexactFloat64()
	return b
}

// TopGainers ranks by change percent, not absolute change.
func TopGainers(valid []Quote) []Quote {
	out := make([]Quote, 0, topN)
	for _, q := range valid {
		if q.ChangePercent > 0 {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ChangePercent > out[j].ChangePercent
	})
	return head(out)
}

func TopLosers(valid []Quote) []Quote {
	out := make([]Quote, 0, topN)
	for _, q := range valid {
		if q.ChangePercent < 0 {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ChangePercent < out[j].ChangePercent
	})
	return head(out)
}

func withChange(stocks []Quote) []Quote {
	out := make([]Quote, 0, len(stocks))
	for _, q := range stocks {
		if q.Change != nil {
			out = append(out, q)
		}
	}
	return out
}

func head(quotes []Quote) []Quote {
	if len(quotes) > topN {
		return quotes[:topN]
	}
	return quotes
}
