// Package resolver asks an OpenAI-compatible chat endpoint which blockchain
// an otherwise-unresolvable token lives on. The model is treated as an
// opaque oracle: its answer is normalized and anything unrecognizable counts
// as "no answer".
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chainarb/chainarb/internal/chain"
)

// Resolver maps a token symbol to a canonical chain id. hints carries raw
// network labels already observed on exchanges, when any exist. An empty
// result with nil error means the resolver declined to answer.
type Resolver interface {
	Resolve(ctx context.Context, symbol string, hints []string) (string, error)
}

// Config points at a chat-completions endpoint.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// OpenAI is the HTTP Resolver implementation.
type OpenAI struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOpenAI(cfg Config, logger *slog.Logger) *OpenAI {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &OpenAI{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(slog.String("component", "resolver")),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPrompt = "You identify which blockchain a cryptocurrency token is primarily issued on. " +
	"Answer with exactly one lowercase chain name (e.g. ethereum, bsc, tron, solana) and nothing else. " +
	"Answer unknown if you are not sure."

// Resolve asks the model for the token's primary chain. The answer is passed
// through the chain normalizer, so a declined or unrecognizable reply comes
// back as "".
func (o *OpenAI) Resolve(ctx context.Context, symbol string, hints []string) (string, error) {
	prompt := fmt.Sprintf("Token symbol: %s.", strings.ToUpper(symbol))
	if len(hints) > 0 {
		prompt += fmt.Sprintf(" Network labels seen on exchanges: %s.", strings.Join(hints, ", "))
	}
	prompt += " Which blockchain is this token primarily issued on?"

	body, err := json.Marshal(chatRequest{
		Model:       o.cfg.Model,
		Messages:    []chatMessage{{Role: "system", Content: systemPrompt}, {Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   16,
	})
	if err != nil {
		return "", fmt.Errorf("resolver: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("resolver: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolver: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("resolver: unexpected status %d: %s", resp.StatusCode, string(detail))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("resolver: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}

	answer := strings.TrimSpace(out.Choices[0].Message.Content)
	normalized := chain.Normalize(answer)
	if normalized == "" {
		o.logger.Debug("resolver declined or gave unknown chain",
			slog.String("symbol", symbol),
			slog.String("answer", answer))
	}
	return normalized, nil
}

var _ Resolver = (*OpenAI)(nil)
