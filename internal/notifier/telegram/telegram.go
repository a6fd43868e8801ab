package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/tally/internal/core"
	"github.com/newthinker/tally/internal/notifier"
	"github.com/newthinker/tally/internal/report"
	"github.com/newthinker/tally/internal/signal"
)

const defaultAPIBase = "https://api.telegram.org"

// Telegram implements the Notifier interface for Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

// New creates a new Telegram notifier. cfg.URL overrides the Bot API base.
func New(cfg notifier.Config) (*Telegram, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram: bot_token is required")
	}
	if cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram: chat_id is required")
	}
	base := cfg.URL
	if base == "" {
		base = defaultAPIBase
	}
	return &Telegram{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		apiBase:  strings.TrimSuffix(base, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Send(ctx context.Context, verdicts []signal.Verdict) error {
	if len(verdicts) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 *%d Portfolio Signals*\n\n", len(verdicts)))

	for i, v := range verdicts {
		sb.WriteString(formatVerdict(v))
		if i < len(verdicts)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return t.sendMessage(ctx, sb.String())
}

func formatVerdict(v signal.Verdict) string {
	var sb strings.Builder

	emoji := "📈"
	if v.Sell || v.Alert {
		emoji = "📉"
	}

	sb.WriteString(fmt.Sprintf("%s *%s* - %s\n", emoji, v.InstrumentID, strings.Join(notifier.Flags(v), ", ")))
	sb.WriteString(fmt.Sprintf("💰 Price: %s\n", report.Money(v.Metrics.CurrentPrice)))
	if ema := report.Money(v.Metrics.EMA); ema != "" {
		sb.WriteString(fmt.Sprintf("📐 EMA: %s\n", ema))
	}
	if rsi := report.Money(v.Metrics.RSI); rsi != "" {
		sb.WriteString(fmt.Sprintf("🌡 RSI: %s\n", rsi))
	}
	if below := report.Money(v.Metrics.PctBelowHigh); below != "" {
		sb.WriteString(fmt.Sprintf("🔻 Below high: %s%%\n", below))
	}

	if v.Reason != "" {
		sb.WriteString(fmt.Sprintf("💡 Reason: %s\n", v.Reason))
	}

	sb.WriteString(fmt.Sprintf("⏰ As of: %s", core.FormatDate(v.AsOf)))

	return sb.String()
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)

	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		return fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode, result)
	}

	return nil
}
