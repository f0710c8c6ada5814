package briefagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"market-snapshot/internal/market"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Enabled    bool
	Model      string
	APIKey     string
	BaseURL    string
	ByAzure    bool
	APIVersion string
	TimeoutMs  int
}

const (
	BiasBullish = "bullish"
	BiasBearish = "bearish"
	BiasNeutral = "neutral"

	ModeLLM      = "llm"
	ModeFallback = "fallback"
)

type Brief struct {
	Bias       string   `json:"bias"`
	Headline   string   `json:"headline"`
	Highlights []string `json:"highlights"`
}

type chatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

type Agent struct {
	enabled        bool
	model          chatModel
	modelName      string
	disabledReason string
}

func New(cfg Config) *Agent {
	if !cfg.Enabled {
		return &Agent{enabled: false, disabledReason: "disabled by config"}
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.APIKey == "" || cfg.Model == "" {
		log.Printf("briefagent disabled: missing api key or model")
		return &Agent{enabled: false, disabledReason: "api_key or model missing"}
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cm, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		ByAzure:    cfg.ByAzure,
		APIVersion: cfg.APIVersion,
		Timeout:    timeout,
	})
	if err != nil {
		log.Printf("briefagent init error: %v", err)
		return &Agent{enabled: false, disabledReason: "init failed"}
	}

	return &Agent{enabled: true, model: cm, modelName: cfg.Model}
}

func (a *Agent) Enabled() bool {
	return a != nil && a.enabled && a.model != nil
}

// Model names the chat model, empty when disabled.
func (a *Agent) Model() string {
	if !a.Enabled() {
		return ""
	}
	return a.modelName
}

func (a *Agent) DisabledReason() string {
	if a == nil {
		return "not configured"
	}
	return a.disabledReason
}

// Evaluate asks the model for a brief and falls back to the rule-based one
// on any failure. The returned mode says which one was used.
func (a *Agent) Evaluate(ctx context.Context, snap *market.Snapshot) (Brief, string, error) {
	if !a.Enabled() {
		return FallbackBrief(snap), ModeFallback, nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return FallbackBrief(snap), ModeFallback, fmt.Errorf("marshal snapshot: %w", err)
	}

	system := `You are BriefAgent. Output ONLY valid JSON.
You summarise an equity market snapshot (indices, top gainers, top losers, breadth).
Must include keys: bias (one of bullish, bearish, neutral), headline (one sentence), highlights (array of short strings, at most 5).
No extra text.`

	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(fmt.Sprintf("Snapshot: %s", string(payload))),
	}

	resp, err := a.model.Generate(ctx, messages)
	if err != nil {
		logLLMError(err)
		return FallbackBrief(snap), ModeFallback, err
	}

	brief, err := parseBrief(strings.TrimSpace(resp.Content))
	if err != nil {
		return FallbackBrief(snap), ModeFallback, err
	}
	return sanitizeBrief(brief), ModeLLM, nil
}

// FallbackBrief derives the bias from breadth alone.
func FallbackBrief(snap *market.Snapshot) Brief {
	if snap == nil {
		return Brief{Bias: BiasNeutral, Headline: "No market data.", Highlights: []string{}}
	}
	b := snap.MarketBreadth
	bias := BiasNeutral
	switch {
	case b.Advances > b.Declines && b.Ratio >= 1.5:
		bias = BiasBullish
	case b.Declines > b.Advances && b.Ratio <= 0.67:
		bias = BiasBearish
	}

	highlights := []string{}
	for _, idx := range snap.Indices {
		if idx.ChangePercent != nil {
			highlights = append(highlights, fmt.Sprintf("%s %+.2f%%", idx.Name, *idx.ChangePercent))
		}
	}
	if len(snap.TopGainers) > 0 {
		g := snap.TopGainers[0]
		highlights = append(highlights, fmt.Sprintf("top gainer %s %+.2f%%", g.Symbol, g.ChangePercent))
	}
	if len(snap.TopLosers) > 0 {
		l := snap.TopLosers[0]
		highlights = append(highlights, fmt.Sprintf("top loser %s %+.2f%%", l.Symbol, l.ChangePercent))
	}

	headline := fmt.Sprintf("%d advances, %d declines, %d unchanged (ratio %.2f)",
		b.Advances, b.Declines, b.Unchanged, b.Ratio)
	return Brief{
		Bias:       bias,
		Headline:   headline,
		Highlights: highlights,
	}
}

func parseBrief(text string) (Brief, error) {
	var out Brief
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}
	jsonStr := extractFirstJSONObject(text)
	if jsonStr == "" {
		return Brief{}, fmt.Errorf("no json object found")
	}
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		return Brief{}, fmt.Errorf("parse brief: %w", err)
	}
	return out, nil
}

func extractFirstJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func sanitizeBrief(b Brief) Brief {
	switch strings.ToLower(strings.TrimSpace(b.Bias)) {
	case BiasBullish:
		b.Bias = BiasBullish
	case BiasBearish:
		b.Bias = BiasBearish
	default:
		b.Bias = BiasNeutral
	}
	if b.Highlights == nil {
		b.Highlights = []string{}
	}
	if len(b.Highlights) > 5 {
		b.Highlights = b.Highlights[:5]
	}
	return b
}

func logLLMError(err error) {
	apiErr := &openai.APIError{}
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		log.Printf("briefagent api error: status=%d message=%s", apiErr.HTTPStatusCode, msg)
		return
	}
	log.Printf("briefagent error: %v", err)
}
