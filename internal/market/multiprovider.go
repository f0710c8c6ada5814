package market

import (
	"context"
	"fmt"
)

// MultiProvider asks each provider in turn and returns the first answer.
type MultiProvider struct {
	providers []QuoteProvider
}

func NewMultiProvider(providers ...QuoteProvider) *MultiProvider {
	return &MultiProvider{providers: providers}
}

func (m *MultiProvider) GetQuote(ctx context.Context, symbol string) (RawQuote, error) {
	if len(m.providers) == 0 {
		return RawQuote{}, fmt.Errorf("no market providers configured")
	}
	var lastErr error
	for _, p := range m.providers {
		q, err := p.GetQuote(ctx, symbol)
		if err == nil {
			return q, nil
		}
		lastErr = err
	}
	return RawQuote{}, lastErr
}
