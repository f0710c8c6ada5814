package market

import (
	"context"
	"fmt"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
)

// FinanceGoProvider reads quotes through the piquette/finance-go client.
// That client reports missing numbers as zero, so only a missing quote
// is treated as absent data.
type FinanceGoProvider struct {
	get func(symbol string) (*finance.Quote, error)
}

func NewFinanceGoProvider() *FinanceGoProvider {
	return &FinanceGoProvider{get: quote.Get}
}

func (p *FinanceGoProvider) GetQuote(ctx context.Context, symbol string) (RawQuote, error) {
	if err := ctx.Err(); err != nil {
		return RawQuote{}, err
	}
	q, err := p.get(symbol)
	if err != nil {
		return RawQuote{}, fmt.Errorf("request finance-go: %w", err)
	}
	if q == nil {
		return RawQuote{}, nil
	}
	return RawQuote{
		ShortName:                  nonEmpty(q.ShortName),
		Symbol:                     nonEmpty(q.Symbol),
		RegularMarketPrice:         floatPtr(q.RegularMarketPrice),
		RegularMarketChange:        floatPtr(q.RegularMarketChange),
		RegularMarketChangePercent: floatPtr(q.RegularMarketChangePercent),
		RegularMarketDayHigh:       floatPtr(q.RegularMarketDayHigh),
		RegularMarketDayLow:        floatPtr(q.RegularMarketDayLow),
		RegularMarketVolume:        int64Ptr(int64(q.RegularMarketVolume)),
		RegularMarketOpen:          floatPtr(q.RegularMarketOpen),
		RegularMarketPreviousClose: floatPtr(q.RegularMarketPreviousClose),
	}, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return stringPtr(s)
}
