// Package webhook implements an HTTP webhook notifier
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/newthinker/tally/internal/core"
	"github.com/newthinker/tally/internal/notifier"
	"github.com/newthinker/tally/internal/signal"
)

// Webhook implements the Notifier interface for HTTP webhooks
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// New creates a new Webhook notifier
func New(cfg notifier.Config) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook: url is required")
	}
	return &Webhook{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, verdicts []signal.Verdict) error {
	if len(verdicts) == 0 {
		return nil
	}

	payloads := make([]verdictPayload, len(verdicts))
	for i, v := range verdicts {
		payloads[i] = toPayload(v)
	}

	return w.post(ctx, batchPayload{
		Type:     "signals",
		Count:    len(verdicts),
		Verdicts: payloads,
	})
}

type batchPayload struct {
	Type     string           `json:"type"`
	Count    int              `json:"count"`
	Verdicts []verdictPayload `json:"verdicts"`
}

// verdictPayload omits NaN metrics, which JSON cannot carry
type verdictPayload struct {
	InstrumentID  string   `json:"instrument_id"`
	AsOf          string   `json:"as_of"`
	Flags         []string `json:"flags"`
	Price         float64  `json:"price"`
	EMA           *float64 `json:"ema,omitempty"`
	RSI           *float64 `json:"rsi,omitempty"`
	PctBelowHigh  *float64 `json:"pct_below_high,omitempty"`
	RequiredPrice *float64 `json:"required_price_for_breakout,omitempty"`
	Reason        string   `json:"reason,omitempty"`
}

func toPayload(v signal.Verdict) verdictPayload {
	return verdictPayload{
		InstrumentID:  v.InstrumentID,
		AsOf:          core.FormatDate(v.AsOf),
		Flags:         notifier.Flags(v),
		Price:         v.Metrics.CurrentPrice,
		EMA:           finite(v.Metrics.EMA),
		RSI:           finite(v.Metrics.RSI),
		PctBelowHigh:  finite(v.Metrics.PctBelowHigh),
		RequiredPrice: finite(v.Metrics.RequiredPrice),
		Reason:        v.Reason,
	}
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func (w *Webhook) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: server returned %d", resp.StatusCode)
	}

	return nil
}
