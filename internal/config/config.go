package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/app.yaml"

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Market     MarketConfig     `yaml:"market"`
	Store      StoreConfig      `yaml:"store"`
	BriefAgent BriefAgentConfig `yaml:"brief_agent"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type MarketConfig struct {
	IndexSymbols []string     `yaml:"index_symbols"`
	StockSymbols []string     `yaml:"stock_symbols"`
	Providers    []string     `yaml:"providers"`
	TimeoutMs    int          `yaml:"timeout_ms"`
	Yahoo        YahooConfig  `yaml:"yahoo"`
	Alpaca       AlpacaConfig `yaml:"alpaca"`
}

type YahooConfig struct {
	BaseURL string `yaml:"base_url"`
}

type AlpacaConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	Feed      string `yaml:"feed"`
}

type StoreConfig struct {
	Journal JournalConfig `yaml:"journal"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type BriefAgentConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	ByAzure    bool   `yaml:"by_azure"`
	APIVersion string `yaml:"api_version"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

const (
	ProviderYahoo     = "yahoo"
	ProviderFinanceGo = "financego"
	ProviderAlpaca    = "alpaca"
)

// Sensex and Nifty 50, then twenty Nifty 50 constituents.
var (
	defaultIndexSymbols = []string{"^BSESN", "^NSEI"}
	defaultStockSymbols = []string{
		"RELIANCE.NS", "TCS.NS", "HDFCBANK.NS", "ICICIBANK.NS", "INFY.NS",
		"HINDUNILVR.NS", "BHARTIARTL.NS", "ITC.NS", "SBIN.NS", "LICI.NS",
		"BAJFINANCE.NS", "HCLTECH.NS", "KOTAKBANK.NS", "MARUTI.NS", "TATAMOTORS.NS",
		"SUNPHARMA.NS", "ONGC.NS", "NTPC.NS", "ADANIENT.NS", "WIPRO.NS",
	}
)

func Default() Config {
	return Config{
		Server: ServerConfig{Port: 5001},
		Log:    LogConfig{Level: "info"},
		Market: MarketConfig{
			IndexSymbols: append([]string(nil), defaultIndexSymbols...),
			StockSymbols: append([]string(nil), defaultStockSymbols...),
			Providers:    []string{ProviderYahoo},
			TimeoutMs:    10000,
			Yahoo:        YahooConfig{BaseURL: "https://query1.finance.yahoo.com/"},
			Alpaca:       AlpacaConfig{Feed: "iex"},
		},
		Store: StoreConfig{
			Journal: JournalConfig{Enabled: false, Path: "data/journal.db"},
		},
		BriefAgent: BriefAgentConfig{
			Enabled:   false,
			Model:     "gpt-4.1-mini",
			TimeoutMs: 10000,
		},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if len(c.Market.IndexSymbols) == 0 && len(c.Market.StockSymbols) == 0 {
		return fmt.Errorf("market symbols are empty")
	}
	if len(c.Market.Providers) == 0 {
		return fmt.Errorf("market.providers is empty")
	}
	for _, p := range c.Market.Providers {
		switch p {
		case ProviderYahoo, ProviderFinanceGo, ProviderAlpaca:
		default:
			return fmt.Errorf("unknown market provider: %q", p)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Market.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Market.Alpaca.APISecret = v
	}
	return nil
}
