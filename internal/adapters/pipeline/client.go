// Package pipeline implements ports.Pipeline: the multi-stage reasoning
// pipeline over an OpenAI-compatible chat completions API, plus an offline
// fixture used by -dry-run.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4o-mini"

	// Límite conservador para no gastar cuota con ráfagas de tips.
	defaultRatePerSec = 2
	defaultBurst      = 4

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Config configures the HTTP pipeline client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration // per HTTP request
	RatePerSec  float64
}

// Client ejecuta las cuatro etapas en secuencia contra el API de chat.
type Client struct {
	http        *http.Client
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	limiter     *rate.Limiter
	retryWait   time.Duration
}

// NewClient creates a Client. Empty fields fall back to production defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}

	// Evita el doble /v1 si el base URL ya lo incluye.
	endpoint := strings.TrimRight(cfg.BaseURL, "/")
	if !strings.HasSuffix(endpoint, "/v1") {
		endpoint += "/v1"
	}
	endpoint += "/chat/completions"

	return &Client{
		http:        &http.Client{Timeout: cfg.Timeout},
		endpoint:    endpoint,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSec), defaultBurst),
		retryWait:   baseRetryWait,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Ask runs every stage in order and returns their outputs concatenated, one
// section per stage. A failing stage aborts the whole run.
func (c *Client) Ask(ctx context.Context, tip string) (string, error) {
	outputs := make(map[string]string, len(stages))
	var out strings.Builder

	for i, st := range stages {
		start := time.Now()
		content, err := c.complete(ctx, []chatMessage{
			{Role: "system", Content: st.render(outputs)},
			{Role: "user", Content: tip},
		})
		if err != nil {
			return out.String(), fmt.Errorf("pipeline.Ask: stage %s: %w", st.Name, err)
		}
		outputs[st.OutputKey] = content

		slog.Debug("pipeline: stage done",
			"stage", st.Name,
			"step", fmt.Sprintf("%d/%d", i+1, len(stages)),
			"elapsed", time.Since(start).Round(time.Millisecond),
			"chars", len(content),
		)
		fmt.Fprintf(&out, "## %s\n%s\n\n", st.Name, strings.TrimSpace(content))
	}
	return out.String(), nil
}

// complete hace una llamada de chat con rate limiting y retries.
func (c *Client) complete(ctx context.Context, msgs []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: msgs, Temperature: c.temperature})
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}

	var resp chatResponse
	err = c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		return c.http.Do(req)
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// doWithRetry ejecuta la función con backoff exponencial, respetando el contexto.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if ctx.Err() != nil || attempt == maxRetries {
				return fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d attempts", resp.StatusCode, attempt+1)
			}
			slog.Warn("pipeline: retrying", "status", resp.StatusCode, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
