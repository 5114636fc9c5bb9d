package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"MailTracker/internal/config"
	"MailTracker/internal/domain"
	"MailTracker/internal/ports"
)

var (
	// ErrRateLimited marks 429/503 answers; these are retried.
	ErrRateLimited = errors.New("extractor rate limited")
	// ErrTransport marks network failures and other non-success statuses.
	ErrTransport = errors.New("extractor transport failure")
	// ErrMalformedResponse marks answers that do not honour the output contract.
	ErrMalformedResponse = errors.New("malformed extractor response")
)

// StatusError is a non-success HTTP answer from the chat endpoint.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat endpoint returned %d: %s", e.StatusCode, e.Body)
}

// Unwrap classifies the status for errors.Is.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable {
		return ErrRateLimited
	}
	return ErrTransport
}

// ChatGPTClient implements ports.Extractor backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	retry      RetryPolicy
	sleep      func(ctx context.Context, d time.Duration) error
}

var _ ports.Extractor = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.LLMConfig) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatGPTClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retry: RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     JitteredBackoff(cfg.BaseDelay, cfg.MaxDelay),
		},
		sleep: sleepContext,
	}
}

// Extract asks the model for the key fields and status of one email.
func (c *ChatGPTClient) Extract(ctx context.Context, req domain.ExtractionRequest) (domain.ExtractionResult, error) {
	if c == nil {
		return domain.ExtractionResult{}, fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.ExtractionResult{}, fmt.Errorf("chatgpt client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model":           c.model,
		"temperature":     0,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt(req)},
			{"role": "user", "content": userPrompt(req)},
		},
	})
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	attempts := c.retry.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := c.complete(ctx, body)
		if err == nil {
			return parseResult(content, req)
		}
		lastErr = err

		if !errors.Is(err, ErrRateLimited) || attempt == attempts {
			break
		}

		wait := c.retry.delay(attempt)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.RetryAfter > wait {
			wait = statusErr.RetryAfter
		}
		if err := c.sleep(ctx, wait); err != nil {
			return domain.ExtractionResult{}, fmt.Errorf("wait for retry: %w", err)
		}
	}

	return domain.ExtractionResult{}, fmt.Errorf("chat completion failed: %w", lastErr)
}

func (c *ChatGPTClient) complete(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send completion: %w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(payload)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion: %w: %w", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty completion: %w", ErrMalformedResponse)
	}
	return parsed.Choices[0].Message.Content, nil
}

// parseResult enforces the output contract: a JSON object carrying the two
// key fields and a status as strings, plus an optional numeric confidence.
func parseResult(content string, req domain.ExtractionRequest) (domain.ExtractionResult, error) {
	content = stripCodeFence(content)

	var fields map[string]any
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var res domain.ExtractionResult
	for name, dst := range map[string]*string{
		req.PrimaryField:   &res.Primary,
		req.SecondaryField: &res.Secondary,
		"status":           &res.Status,
	} {
		raw, ok := fields[name]
		if !ok {
			return domain.ExtractionResult{}, fmt.Errorf("%w: missing field %q", ErrMalformedResponse, name)
		}
		value, ok := raw.(string)
		if !ok {
			return domain.ExtractionResult{}, fmt.Errorf("%w: field %q is not a string", ErrMalformedResponse, name)
		}
		*dst = strings.TrimSpace(value)
	}

	if raw, ok := fields["confidence"]; ok && raw != nil {
		conf, ok := raw.(float64)
		if !ok || conf < 0 || conf > 1 {
			return domain.ExtractionResult{}, fmt.Errorf("%w: confidence %v out of range", ErrMalformedResponse, raw)
		}
		res.Confidence = conf
		res.HasConfidence = true
	}
	return res, nil
}

func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimPrefix(content, "json")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}
