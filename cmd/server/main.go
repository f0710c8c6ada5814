package main

import (
	"fmt"
	"os"
	"time"

	"market-snapshot/internal/api"
	"market-snapshot/internal/briefagent"
	"market-snapshot/internal/config"
	"market-snapshot/internal/market"
	"market-snapshot/internal/store"

	"github.com/cloudwego/hertz/pkg/app/server"
	log "github.com/sirupsen/logrus"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("invalid log.level %q: %v", cfg.Log.Level, err)
	}
	log.SetLevel(level)

	provider, err := buildProvider(cfg.Market)
	if err != nil {
		log.Fatalf("market provider error: %v", err)
	}
	mktSvc := market.NewService(provider, market.Universe{
		IndexSymbols: cfg.Market.IndexSymbols,
		StockSymbols: cfg.Market.StockSymbols,
	})

	var st *store.Store
	if cfg.Store.Journal.Enabled {
		st, err = store.Open(cfg.Store.Journal.Path)
		if err != nil {
			log.Fatalf("store error: %v", err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				log.Printf("store close error: %v", err)
			}
		}()
	}

	agent := briefagent.New(briefagent.Config{
		Enabled:    cfg.BriefAgent.Enabled,
		Model:      cfg.BriefAgent.Model,
		APIKey:     cfg.BriefAgent.APIKey,
		BaseURL:    cfg.BriefAgent.BaseURL,
		ByAzure:    cfg.BriefAgent.ByAzure,
		APIVersion: cfg.BriefAgent.APIVersion,
		TimeoutMs:  cfg.BriefAgent.TimeoutMs,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	h := server.Default(server.WithHostPorts(addr))
	api.RegisterRoutes(h, mktSvc, st, agent)

	if agent.Enabled() {
		log.Printf("briefagent enabled (model=%s)", agent.Model())
	} else {
		log.Printf("briefagent using fallback (reason=%s)", agent.DisabledReason())
	}
	log.Printf("server starting on %s (providers=%v indices=%d stocks=%d journal=%t)",
		addr, cfg.Market.Providers, len(cfg.Market.IndexSymbols), len(cfg.Market.StockSymbols), st != nil)
	if err := h.Run(); err != nil {
		log.Fatalf("server run error: %v", err)
	}
}

func buildProvider(cfg config.MarketConfig) (market.QuoteProvider, error) {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	providers := make([]market.QuoteProvider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch name {
		case config.ProviderYahoo:
			providers = append(providers, market.NewYahooProvider(cfg.Yahoo.BaseURL, timeout))
		case config.ProviderFinanceGo:
			providers = append(providers, market.NewFinanceGoProvider())
		case config.ProviderAlpaca:
			providers = append(providers, market.NewAlpacaProvider(market.AlpacaConfig{
				APIKey:    cfg.Alpaca.APIKey,
				APISecret: cfg.Alpaca.APISecret,
				BaseURL:   cfg.Alpaca.BaseURL,
				Feed:      cfg.Alpaca.Feed,
			}))
		default:
			return nil, fmt.Errorf("unknown market provider: %q", name)
		}
	}
	if len(providers) == 1 {
		return providers[0], nil
	}
	return market.NewMultiProvider(providers...), nil
}
