package market

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

type snapshotGetter interface {
	GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error)
}

// AlpacaProvider derives quote fields from an Alpaca market data snapshot.
// Change is measured against the previous daily close.
type AlpacaProvider struct {
	client snapshotGetter
	feed   string
}

type AlpacaConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
	Feed      string
}

func NewAlpacaProvider(cfg AlpacaConfig) *AlpacaProvider {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
	})
	return &AlpacaProvider{client: client, feed: cfg.Feed}
}

func (p *AlpacaProvider) GetQuote(ctx context.Context, symbol string) (RawQuote, error) {
	if err := ctx.Err(); err != nil {
		return RawQuote{}, err
	}
	snap, err := p.client.GetSnapshot(symbol, marketdata.GetSnapshotRequest{
		Feed: marketdata.Feed(p.feed),
	})
	if err != nil {
		return RawQuote{}, fmt.Errorf("request alpaca: %w", err)
	}
	if snap == nil {
		return RawQuote{}, nil
	}

	out := RawQuote{Symbol: stringPtr(symbol)}
	switch {
	case snap.LatestTrade != nil:
		out.RegularMarketPrice = floatPtr(snap.LatestTrade.Price)
	case snap.DailyBar != nil:
		out.RegularMarketPrice = floatPtr(snap.DailyBar.Close)
	}
	if bar := snap.DailyBar; bar != nil {
		out.RegularMarketOpen = floatPtr(bar.Open)
		out.RegularMarketDayHigh = floatPtr(bar.High)
		out.RegularMarketDayLow = floatPtr(bar.Low)
		out.RegularMarketVolume = int64Ptr(int64(bar.Volume))
	}
	if prev := snap.PrevDailyBar; prev != nil {
		out.RegularMarketPreviousClose = floatPtr(prev.Close)
		if out.RegularMarketPrice != nil && prev.Close > 0 {
			change := *out.RegularMarketPrice - prev.Close
			out.RegularMarketChange = floatPtr(change)
			out.RegularMarketChangePercent = floatPtr(change / prev.Close * 100)
		}
	}
	return out, nil
}
