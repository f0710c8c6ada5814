package market

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	quotes map[string]RawQuote
	errs   map[string]error
	calls  []string
}

func (f *fakeProvider) GetQuote(_ context.Context, symbol string) (RawQuote, error) {
	f.calls = append(f.calls, symbol)
	if err, ok := f.errs[symbol]; ok {
		return RawQuote{}, err
	}
	return f.quotes[symbol], nil
}

func stock(symbol string, price float64, change *float64, pct *float64) RawQuote {
	return RawQuote{
		Symbol:                     stringPtr(symbol),
		RegularMarketPrice:         floatPtr(price),
		RegularMarketChange:        change,
		RegularMarketChangePercent: pct,
	}
}

func moving(symbol string, pct float64) RawQuote {
	return stock(symbol, 100, floatPtr(pct), floatPtr(pct))
}

func symbols(quotes []Quote) []string {
	out := make([]string, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, q.Symbol)
	}
	return out
}

func TestSnapshot_IndicesKeepConfiguredOrder(t *testing.T) {
	p := &fakeProvider{quotes: map[string]RawQuote{
		"^NSEI": {
			ShortName:          stringPtr("NIFTY 50"),
			Symbol:             stringPtr("^NSEI"),
			RegularMarketPrice: floatPtr(24000),
		},
	}}
	svc := NewService(p, Universe{IndexSymbols: []string{"^BSESN", "^NSEI"}})

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Indices, 2)

	// No data for ^BSESN: name and symbol fall back to the configured symbol.
	assert.Equal(t, "^BSESN", snap.Indices[0].Name)
	assert.Equal(t, "^BSESN", snap.Indices[0].Symbol)
	assert.Nil(t, snap.Indices[0].Value)

	assert.Equal(t, "NIFTY 50", snap.Indices[1].Name)
	assert.Equal(t, 24000.0, *snap.Indices[1].Value)
	assert.Equal(t, []string{"^BSESN", "^NSEI"}, p.calls)
}

func TestSnapshot_SkipsStocksWithoutPrice(t *testing.T) {
	p := &fakeProvider{quotes: map[string]RawQuote{
		"A.NS": moving("A.NS", 2),
		"B.NS": {Symbol: stringPtr("B.NS"), RegularMarketChange: floatPtr(5), RegularMarketChangePercent: floatPtr(9)},
	}}
	svc := NewService(p, Universe{StockSymbols: []string{"A.NS", "B.NS"}})

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A.NS"}, symbols(snap.TopGainers))
	assert.Equal(t, []string{"A.NS"}, symbols(snap.TopStocks))
	assert.Equal(t, 1, snap.MarketBreadth.Advances)
}

func TestSnapshot_AllPricesMissing(t *testing.T) {
	universe := Universe{}
	quotes := map[string]RawQuote{}
	for i := 0; i < 20; i++ {
		sym := fmt.Sprintf("S%d.NS", i)
		universe.StockSymbols = append(universe.StockSymbols, sym)
		quotes[sym] = RawQuote{RegularMarketChange: floatPtr(1), RegularMarketChangePercent: floatPtr(1)}
	}
	svc := NewService(&fakeProvider{quotes: quotes}, universe)

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.TopGainers)
	assert.Empty(t, snap.TopLosers)
	assert.Empty(t, snap.TopStocks)
	assert.NotNil(t, snap.TopStocks)
	assert.NotNil(t, snap.Indices)
	assert.Equal(t, Breadth{}, snap.MarketBreadth)
}

func TestSnapshot_ProviderErrorAborts(t *testing.T) {
	boom := errors.New("connection refused")
	p := &fakeProvider{
		quotes: map[string]RawQuote{"A.NS": moving("A.NS", 1)},
		errs:   map[string]error{"B.NS": boom},
	}
	svc := NewService(p, Universe{
		IndexSymbols: []string{"^NSEI"},
		StockSymbols: []string{"A.NS", "B.NS", "C.NS"},
	})

	snap, err := svc.Snapshot(context.Background())
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, boom)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, SetStock, fe.Set)
	assert.Equal(t, "B.NS", fe.Symbol)
	assert.Equal(t, []string{"^NSEI", "A.NS", "B.NS"}, p.calls)
}

func TestSnapshot_NoProvider(t *testing.T) {
	_, err := NewService(nil, Universe{}).Snapshot(context.Background())
	assert.Error(t, err)

	var svc *Service
	snap, err := svc.Snapshot(context.Background())
	assert.Nil(t, snap)
	assert.Error(t, err)
}

func TestSnapshot_TopStocksIsGainersThenLosers(t *testing.T) {
	universe := Universe{}
	quotes := map[string]RawQuote{}
	pcts := []float64{-1, 3, -4, 2, 0, -0.5, 7, 1, -2, 5, 4, -3, 6, -6}
	for i, pct := range pcts {
		sym := fmt.Sprintf("S%02d.NS", i)
		universe.StockSymbols = append(universe.StockSymbols, sym)
		quotes[sym] = moving(sym, pct)
	}
	snap, err := NewService(&fakeProvider{quotes: quotes}, universe).Snapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.TopGainers, 5)
	require.Len(t, snap.TopLosers, 5)
	for i, q := range snap.TopGainers {
		assert.Greater(t, q.ChangePercent, 0.0)
		if i > 0 {
			assert.GreaterOrEqual(t, snap.TopGainers[i-1].ChangePercent, q.ChangePercent)
		}
	}
	for i, q := range snap.TopLosers {
		assert.Less(t, q.ChangePercent, 0.0)
		if i > 0 {
			assert.LessOrEqual(t, snap.TopLosers[i-1].ChangePercent, q.ChangePercent)
		}
	}
	assert.Equal(t, 7.0, snap.TopGainers[0].ChangePercent)
	assert.Equal(t, -6.0, snap.TopLosers[0].ChangePercent)

	expected := append(append([]Quote{}, snap.TopGainers...), snap.TopLosers...)
	assert.Equal(t, expected, snap.TopStocks)
}

func TestComputeBreadth(t *testing.T) {
	build := func(adv, dec, flat, missing int) []Quote {
		var out []Quote
		for i := 0; i < adv; i++ {
			out = append(out, Quote{Change: floatPtr(1)})
		}
		for i := 0; i < dec; i++ {
			out = append(out, Quote{Change: floatPtr(-1)})
		}
		for i := 0; i < flat; i++ {
			out = append(out, Quote{Change: floatPtr(0)})
		}
		for i := 0; i < missing; i++ {
			out = append(out, Quote{})
		}
		return out
	}

	tests := []struct {
		name   string
		quotes []Quote
		want   Breadth
	}{
		{
			name:   "no declines yields advance count",
			quotes: build(7, 0, 0, 0),
			want:   Breadth{Advances: 7, Ratio: 7.00},
		},
		{
			name:   "ratio rounded to two places",
			quotes: build(12, 5, 3, 0),
			want:   Breadth{Advances: 12, Declines: 5, Unchanged: 3, Ratio: 2.40},
		},
		{
			name:   "repeating ratio",
			quotes: build(2, 3, 0, 0),
			want:   Breadth{Advances: 2, Declines: 3, Ratio: 0.67},
		},
		{
			name:   "half rounds down to even",
			quotes: build(1, 8, 0, 0),
			want:   Breadth{Advances: 1, Declines: 8, Ratio: 0.12},
		},
		{
			name:   "half rounds down to even above one",
			quotes: build(13, 8, 0, 0),
			want:   Breadth{Advances: 13, Declines: 8, Ratio: 1.62},
		},
		{
			name:   "five eighths",
			quotes: build(5, 8, 0, 0),
			want:   Breadth{Advances: 5, Declines: 8, Ratio: 0.62},
		},
		{
			name:   "nine eighths",
			quotes: build(9, 8, 0, 0),
			want:   Breadth{Advances: 9, Declines: 8, Ratio: 1.12},
		},
		{
			name:   "half rounds up to even",
			quotes: build(3, 8, 0, 0),
			want:   Breadth{Advances: 3, Declines: 8, Ratio: 0.38},
		},
		{
			name:   "missing change excluded",
			quotes: build(1, 1, 1, 4),
			want:   Breadth{Advances: 1, Declines: 1, Unchanged: 1, Ratio: 1},
		},
		{
			name:   "empty",
			quotes: nil,
			want:   Breadth{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeBreadth(tt.quotes)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got.Unchanged, 0)
		})
	}
}

func TestRankingUsesChangePercentNotChange(t *testing.T) {
	// Positive absolute change but negative percent lands in losers, while
	// breadth still counts it as an advance.
	quotes := []Quote{
		{Symbol: "ODD", Change: floatPtr(1.5), ChangePercent: -0.8},
		{Symbol: "INERT", Change: floatPtr(2)},
	}
	assert.Empty(t, TopGainers(quotes))
	assert.Equal(t, []string{"ODD"}, symbols(TopLosers(quotes)))
	assert.Equal(t, 2, ComputeBreadth(quotes).Advances)
}

func TestRankingExcludesMissingChange(t *testing.T) {
	p := &fakeProvider{quotes: map[string]RawQuote{
		"A.NS": stock("A.NS", 10, nil, floatPtr(5)),
		"B.NS": moving("B.NS", 1),
	}}
	snap, err := NewService(p, Universe{StockSymbols: []string{"A.NS", "B.NS"}}).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"B.NS"}, symbols(snap.TopGainers))
}

func TestRankingTiesKeepProviderOrder(t *testing.T) {
	quotes := []Quote{
		{Symbol: "FIRST", Change: floatPtr(1), ChangePercent: 2},
		{Symbol: "BIG", Change: floatPtr(1), ChangePercent: 3},
		{Symbol: "SECOND", Change: floatPtr(1), ChangePercent: 2},
		{Symbol: "DOWN1", Change: floatPtr(-1), ChangePercent: -1},
		{Symbol: "DOWN2", Change: floatPtr(-1), ChangePercent: -1},
	}
	assert.Equal(t, []string{"BIG", "FIRST", "SECOND"}, symbols(TopGainers(quotes)))
	assert.Equal(t, []string{"DOWN1", "DOWN2"}, symbols(TopLosers(quotes)))
}

func TestNormalizeStock(t *testing.T) {
	q, ok := NormalizeStock("X.NS", RawQuote{
		RegularMarketPrice:  floatPtr(12.5),
		RegularMarketVolume: int64Ptr(900),
	})
	require.True(t, ok)
	assert.Equal(t, "X.NS", q.Symbol)
	assert.Equal(t, 12.5, q.Price)
	assert.Equal(t, 0.0, q.ChangePercent)
	assert.Nil(t, q.Change)
	assert.Equal(t, int64(900), *q.Volume)

	_, ok = NormalizeStock("Y.NS", RawQuote{Symbol: stringPtr("Y.NS")})
	assert.False(t, ok)
}
