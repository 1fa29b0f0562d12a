// Package llm talks to an OpenAI-compatible chat-completions provider and
// turns one recipe image into the raw structured-output text.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/recipelens/platform/pkg/common/httpclient"
	"github.com/recipelens/platform/pkg/common/logger"
	"github.com/recipelens/platform/pkg/recipe"
	"github.com/recipelens/platform/pkg/workflow"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	roleSystem = "system"
	roleUser   = "user"

	schemaName = "melarecipe_result"
	maxBody    = 4 << 20
)

type message struct {
	Role    string    `json:"role"`
	Content []content `json:"content"`
}

// content is a text or image_url block.
type content struct {
	Type     string      `json:"type"`
	Text     string      `json:"text,omitempty"`
	ImageURL *imageBlock `json:"image_url,omitempty"`
}

type imageBlock struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string                 `json:"name"`
	Strict bool                   `json:"strict"`
	Schema map[string]interface{} `json:"schema"`
}

type payload struct {
	Model          string         `json:"model"`
	Messages       []message      `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat responseFormat `json:"response_format"`
}

type apiResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
			Refusal *string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.Code, e.Body)
}

// Retryable reports whether the provider may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return httpclient.IsRetriableStatus(e.Code)
}

type Client struct {
	cfg    Config
	prompt Prompt
	http   *http.Client
	schema map[string]interface{}
}

// NewClient never fails: an invalid Config is reported by every Extract call
// as a permanent error so the workflow can record it as the failure reason.
func NewClient(cfg Config, prompt Prompt) *Client {
	base := httpclient.New(cfg.Timeout)
	base.Transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey, TokenType: "Bearer"}),
		Base:   base.Transport,
	}
	return &Client{
		cfg:    cfg,
		prompt: prompt,
		http:   base,
		schema: recipe.ResponseSchema(),
	}
}

// Extract sends the image and returns the assistant's raw text. Errors that
// cannot succeed on retry are wrapped with workflow.Permanent.
func (c *Client) Extract(ctx context.Context, imageURL string) (string, error) {
	if err := c.cfg.Validate(); err != nil {
		return "", workflow.Permanent(err)
	}
	if imageURL == "" {
		return "", workflow.Permanent(errors.New("image url is empty"))
	}

	body := payload{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: roleSystem, Content: []content{{Type: "text", Text: c.prompt.System}}},
			{Role: roleUser, Content: []content{
				{Type: "text", Text: c.prompt.User},
				{Type: "image_url", ImageURL: &imageBlock{URL: imageURL}},
			}},
		},
		Temperature: c.prompt.Temperature,
		MaxTokens:   c.prompt.MaxTokens,
		ResponseFormat: responseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchema{Name: schemaName, Strict: true, Schema: c.schema},
		},
	}

	payloadBytes, err := json.Marshal(body)
	if err != nil {
		return "", workflow.Permanent(fmt.Errorf("encoding request: %w", err))
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payloadBytes))
	if err != nil {
		return "", workflow.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	log := logger.Log.WithFields(logrus.Fields{"model": c.cfg.Model, "bytes": len(payloadBytes)})
	log.Debug("calling model provider")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("reading provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Code: resp.StatusCode, Body: truncate(strings.TrimSpace(string(respBody)), 300)}
		if statusErr.Retryable() {
			return "", statusErr
		}
		return "", workflow.Permanent(statusErr)
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding provider response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", workflow.Permanent(errors.New("provider returned no choices"))
	}

	msg := result.Choices[0].Message
	if msg.Refusal != nil && *msg.Refusal != "" {
		return "", workflow.Permanent(fmt.Errorf("model refused: %s", *msg.Refusal))
	}
	if msg.Content == nil {
		return "", workflow.Permanent(errors.New("provider returned an empty message"))
	}

	log.WithField("finish_reason", result.Choices[0].FinishReason).Debug("model replied")
	return *msg.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
