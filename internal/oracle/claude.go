package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"confluence-trading-bot/internal/interfaces"
	"confluence-trading-bot/internal/logger"
	"confluence-trading-bot/internal/store"
	"confluence-trading-bot/internal/types"
)

const defaultSystem = "You are a disciplined FX and crypto trader. " +
	"Given multi-timeframe indicator snapshots, output STRICT JSON only: " +
	`{"signal":"BUY"|"SELL"|"NONE","confidence":0-100,"entry":number,"stop_loss":number,"take_profit":number,"rationale":string}. ` +
	"Answer NONE unless the evidence is strong."

// ClaudeOracle calls the Anthropic Messages API and parses the reply into a
// tagged OracleResult. A reply that is not strict JSON is reported as
// unparseable and never guessed around.
type ClaudeOracle struct {
	cfg      *store.Config
	endpoint string
	client   *http.Client
}

var _ interfaces.AdvisoryOracle = (*ClaudeOracle)(nil)

func NewClaude(cfg *store.Config) *ClaudeOracle {
	endpoint := "https://api.anthropic.com/v1/messages"
	if ep := os.Getenv("CLAUDE_API_ENDPOINT"); ep != "" {
		endpoint = ep
	}
	return &ClaudeOracle{
		cfg:      cfg,
		endpoint: endpoint,
		client: &http.Client{
			Timeout: time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
		},
	}
}

type adviceJSON struct {
	Signal     string  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Entry      float64 `json:"entry"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Rationale  string  `json:"rationale"`
}

func (o *ClaudeOracle) Ask(ctx context.Context, prompt interfaces.OraclePrompt) interfaces.OracleResult {
	apiKey := os.Getenv("CLAUDE_API_KEY")
	if apiKey == "" {
		return errResult(types.Unavailable("oracle", errors.New("CLAUDE_API_KEY missing")))
	}

	stateB, err := json.Marshal(map[string]any{
		"instrument":    prompt.Instrument,
		"current_price": prompt.CurrentPrice,
		"timeframes":    prompt.Snapshots,
		"headlines":     prompt.Headlines,
	})
	if err != nil {
		return errResult(err)
	}

	system := o.cfg.Oracle.System
	if system == "" {
		system = defaultSystem
	}
	reqBody, _ := json.Marshal(map[string]any{
		"model":  o.cfg.Oracle.Model,
		"system": system,
		"messages": []map[string]string{
			{"role": "user", "content": "State:" + string(stateB) + "\n\nRespond ONLY with compact JSON."},
		},
		"max_tokens":  o.cfg.Oracle.MaxTokens,
		"temperature": o.cfg.Oracle.Temperature,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return errResult(err)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return errResult(types.Unavailable("oracle", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errResult(types.Unavailable("oracle", err))
	}
	logger.Debug(ctx, "Oracle responded",
		"instrument", prompt.Instrument,
		"status_code", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode >= 300 {
		return errResult(types.Unavailable("oracle", fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(body), 200))))
	}

	text, err := assistantText(body)
	if err != nil {
		return errResult(err)
	}
	return parseAdvice(ctx, prompt.Instrument, text)
}

// assistantText extracts the assistant content from a Messages API response.
func assistantText(body []byte) (string, error) {
	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrUnparseable, err)
	}
	for _, c := range resp.Content {
		if c.Type == "text" && strings.TrimSpace(c.Text) != "" {
			return c.Text, nil
		}
	}
	return "", fmt.Errorf("%w: no text content in response", types.ErrUnparseable)
}

// parseAdvice decodes the model's JSON. Anything that deviates from the
// schema becomes AdviceError with an unparseable cause; a valid NONE or a
// confidence below the floor becomes AdviceNoSignal.
func parseAdvice(ctx context.Context, instrument, text string) interfaces.OracleResult {
	raw := extractJSON(text)
	if raw == "" {
		return errResult(fmt.Errorf("%w: no JSON object in %q", types.ErrUnparseable, truncate(text, 120)))
	}

	var a adviceJSON
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return errResult(fmt.Errorf("%w: %v", types.ErrUnparseable, err))
	}

	switch strings.ToUpper(strings.TrimSpace(a.Signal)) {
	case "NONE", "HOLD", "":
		return interfaces.OracleResult{Kind: interfaces.AdviceNoSignal}
	case "BUY", "SELL":
	default:
		return errResult(fmt.Errorf("%w: unknown signal %q", types.ErrUnparseable, a.Signal))
	}
	if a.Confidence < 0 || a.Confidence > 100 {
		return errResult(fmt.Errorf("%w: confidence %.1f out of range", types.ErrUnparseable, a.Confidence))
	}

	dir := types.Buy
	if strings.EqualFold(strings.TrimSpace(a.Signal), "SELL") {
		dir = types.Sell
	}
	logger.Debug(ctx, "Oracle advice parsed",
		"instrument", instrument,
		"signal", a.Signal,
		"confidence", a.Confidence,
	)
	return interfaces.OracleResult{
		Kind: interfaces.AdviceDecision,
		Advice: interfaces.Advice{
			Direction:         dir,
			ConfidencePercent: a.Confidence,
			Entry:             a.Entry,
			StopLoss:          a.StopLoss,
			TakeProfit:        a.TakeProfit,
			Rationale:         a.Rationale,
		},
	}
}

// extractJSON returns the first balanced top-level JSON object in s, tolerating
// prose or markdown fences around it.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func errResult(err error) interfaces.OracleResult {
	return interfaces.OracleResult{Kind: interfaces.AdviceError, Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
