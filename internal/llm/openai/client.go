package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WullieT22/Invoice-to-PO/internal/common"
	"github.com/WullieT22/Invoice-to-PO/internal/llm"
	"github.com/WullieT22/Invoice-to-PO/internal/metrics"
)

const systemPrompt = "You are an accounts payable assistant that matches supplier invoices to purchase order lines. " +
	"Respond with a single JSON object and nothing else."

// Invoke sends prompt to chat/completions and returns the reply content, unparsed.
// Failures wrap common.ErrOracleAuth, ErrOracleTimeout or ErrOracleTransport.
func (c *Client) Invoke(ctx context.Context, prompt string) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}
	start := time.Now()

	content, err := c.invoke(ctx, prompt, rid)
	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
	}
	metrics.RecordOracleCall(outcome, time.Since(start))
	return content, err
}

func (c *Client) invoke(ctx context.Context, prompt, rid string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: api key not configured", common.ErrOracleAuth)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", c.classify(ctx, err)
	}

	c.log.Info("llm.oracle.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"prompt_len", len(prompt),
	)

	body := llm.ChatRequest{
		Model:          c.cfg.Model,
		Temperature:    c.cfg.Temperature,
		ResponseFormat: &llm.ResponseFormat{Type: "json_object"},
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	if err != nil {
		err = c.classify(ctx, err)
		c.log.Error("llm.oracle.http_error", "req_id", rid, "error", err)
		return "", err
	}

	var cc llm.ChatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("%w: decode openai response: %v", common.ErrOracleTransport, err)
	}
	content, ok := cc.FirstContent()
	if !ok {
		return "", fmt.Errorf("%w: no choices in openai response", common.ErrOracleTransport)
	}

	c.log.Info("llm.oracle.ok", "req_id", rid, "content_len", len(content))
	return strings.TrimSpace(content), nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	var httpErr *llm.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status == http.StatusUnauthorized || httpErr.Status == http.StatusForbidden:
			return fmt.Errorf("%w: %v", common.ErrOracleAuth, err)
		case httpErr.Status == http.StatusRequestTimeout || httpErr.Status == http.StatusGatewayTimeout:
			return fmt.Errorf("%w: %v", common.ErrOracleTimeout, err)
		default:
			return fmt.Errorf("%w: %v", common.ErrOracleTransport, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", common.ErrOracleTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", common.ErrOracleTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrOracleTransport, err)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, common.ErrOracleAuth):
		return "auth"
	case errors.Is(err, common.ErrOracleTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "transport"
	}
}
