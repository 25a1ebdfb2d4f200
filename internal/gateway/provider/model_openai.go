package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quantagent/internal/logger"
)

// OpenAIChatClient speaks the OpenAI-compatible chat completions protocol
// (/v1/chat/completions), which also covers DeepSeek, Qwen, Groq and most
// self-hosted gateways.
type OpenAIChatClient struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	// Bounded retry for 429/5xx. Zero means the default of 2.
	MaxRetries   int
	ExtraHeaders map[string]string

	httpClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
}

type imageURLPart struct {
	URL string `json:"url"`
}

// endpoint normalizes BaseURL so configs that already include the full
// /chat/completions path do not end up with a doubled path.
func (c *OpenAIChatClient) endpoint() string {
	url := strings.TrimSpace(c.BaseURL)
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimRight(url, "/")
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func (c *OpenAIChatClient) client() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c.httpClient = &http.Client{Timeout: timeout}
	return c.httpClient
}

func (c *OpenAIChatClient) Call(ctx context.Context, payload ChatPayload) (string, error) {
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	url := c.endpoint()

	var messages []chatMessage
	if payload.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: payload.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userContent(payload)})

	body := map[string]any{
		"model":       c.Model,
		"messages":    messages,
		"temperature": c.Temperature,
	}
	if payload.MaxTokens > 0 {
		body["max_tokens"] = payload.MaxTokens
	}
	if payload.ExpectJSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	httpc := c.client()
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt == 0 {
			logger.Debugf("[ai] POST %s model=%s auth=Bearer ****%s bytes=%d",
				url, c.Model, keyTail(c.APIKey), len(b))
		}
		req, rerr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if rerr != nil {
			return "", rerr
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}
		for k, v := range c.ExtraHeaders {
			req.Header.Set(k, v)
		}

		resp, err := httpc.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				if ctx.Err() == context.Canceled {
					return "", ctx.Err()
				}
				return "", fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			lastErr = err
			break
		}
		if resp.StatusCode/100 == 2 {
			var r struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			derr := json.NewDecoder(resp.Body).Decode(&r)
			resp.Body.Close()
			if derr != nil {
				return "", fmt.Errorf("decode completion: %w", derr)
			}
			if len(r.Choices) == 0 {
				return "", fmt.Errorf("empty choices")
			}
			return r.Choices[0].Message.Content, nil
		}
		var eresp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		resp.Body.Close()
		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
		if retryableStatus(resp.StatusCode) && attempt < maxRetries {
			wait := retryAfter(resp.Header.Get("Retry-After"))
			if wait == 0 {
				// 0.8s, 1.6s, 3.2s ... capped at 8s
				wait = (800 * time.Millisecond) << attempt
				if wait > 8*time.Second {
					wait = 8 * time.Second
				}
			}
			if !sleepCtx(ctx, wait) {
				return "", ctx.Err()
			}
			continue
		}
		break
	}
	return "", lastErr
}

func userContent(payload ChatPayload) any {
	if len(payload.Images) == 0 {
		return payload.User
	}
	parts := []contentPart{{Type: "text", Text: payload.User}}
	for _, img := range payload.Images {
		uri := strings.TrimSpace(img.DataURI)
		if uri == "" {
			continue
		}
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURLPart{URL: uri}})
	}
	return parts
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func keyTail(key string) string {
	if len(key) > 4 {
		return key[len(key)-4:]
	}
	return key
}

// OpenAIModelProvider adapts an OpenAIChatClient to the ModelProvider
// interface.
type OpenAIModelProvider struct {
	id         string
	enabled    bool
	vision     bool
	expectJSON bool
	client     *OpenAIChatClient
}

var _ ModelProvider = (*OpenAIModelProvider)(nil)

func NewOpenAIModelProvider(id string, enabled, vision, expectJSON bool, client *OpenAIChatClient) *OpenAIModelProvider {
	return &OpenAIModelProvider{id: id, enabled: enabled, vision: vision, expectJSON: expectJSON, client: client}
}

func (p *OpenAIModelProvider) ID() string           { return p.id }
func (p *OpenAIModelProvider) Enabled() bool        { return p.enabled }
func (p *OpenAIModelProvider) SupportsVision() bool { return p.vision }
func (p *OpenAIModelProvider) ExpectsJSON() bool    { return p.expectJSON }

func (p *OpenAIModelProvider) Call(ctx context.Context, payload ChatPayload) (string, error) {
	if !p.vision {
		payload.Images = nil
	}
	if !p.expectJSON {
		payload.ExpectJSON = false
	}
	return p.client.Call(ctx, payload)
}
