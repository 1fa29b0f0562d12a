package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/recipelens/platform/pkg/common/logger"
	"github.com/recipelens/platform/pkg/workflow"
)

func init() {
	logger.Silence()
}

func testConfig(baseURL string) Config {
	return Config{APIKey: "sk-test", BaseURL: baseURL, Model: "openai/gpt-4o-mini", Timeout: 5 * time.Second}
}

func TestExtractSendsImageAndSchema(t *testing.T) {
	var got payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected Authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("invalid request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"result\":{}}"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL+"/"), DefaultPrompt())
	out, err := client.Extract(context.Background(), "https://example.com/cake.jpg")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if out != `{"result":{}}` {
		t.Fatalf("unexpected content %q", out)
	}

	if got.Model != "openai/gpt-4o-mini" || got.Temperature != 0.4 {
		t.Fatalf("unexpected model settings %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != roleSystem {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
	user := got.Messages[1].Content
	if len(user) != 2 || user[1].ImageURL == nil || user[1].ImageURL.URL != "https://example.com/cake.jpg" {
		t.Fatalf("image block missing: %+v", user)
	}
	if got.ResponseFormat.Type != "json_schema" || !got.ResponseFormat.JSONSchema.Strict {
		t.Fatalf("unexpected response format %+v", got.ResponseFormat)
	}
}

func TestExtractClassifiesErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		permanent bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`, false},
		{"server error", http.StatusBadGateway, `upstream`, false},
		{"timeout", http.StatusRequestTimeout, ``, false},
		{"bad request", http.StatusBadRequest, `{"error":"bad image"}`, true},
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`, true},
		{"no choices", http.StatusOK, `{"choices":[]}`, true},
		{"refusal", http.StatusOK, `{"choices":[{"message":{"content":null,"refusal":"cannot help"}}]}`, true},
		{"garbled", http.StatusOK, `not json`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(testConfig(server.URL), DefaultPrompt()).Extract(context.Background(), "https://example.com/a.jpg")
			if err == nil {
				t.Fatal("expected an error")
			}
			if workflow.IsPermanent(err) != tt.permanent {
				t.Fatalf("IsPermanent = %v, want %v (err: %v)", workflow.IsPermanent(err), tt.permanent, err)
			}
			if tt.status >= 300 {
				var statusErr *StatusError
				if !errors.As(err, &statusErr) || statusErr.Code != tt.status {
					t.Fatalf("expected StatusError %d, got %v", tt.status, err)
				}
			}
		})
	}
}

func TestExtractWithoutAPIKeyIsPermanent(t *testing.T) {
	cfg := testConfig("https://openrouter.ai/api/v1")
	cfg.APIKey = ""

	_, err := NewClient(cfg, DefaultPrompt()).Extract(context.Background(), "https://example.com/a.jpg")
	var cfgErr ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if !workflow.IsPermanent(err) {
		t.Fatal("configuration errors must not be retried")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid", testConfig("https://openrouter.ai/api/v1"), true},
		{"missing key", Config{BaseURL: "https://x.test", Model: "m"}, false},
		{"missing model", Config{APIKey: "k", BaseURL: "https://x.test"}, false},
		{"relative url", Config{APIKey: "k", BaseURL: "/v1", Model: "m"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestLoadPrompt(t *testing.T) {
	prompt, err := LoadPrompt("")
	if err != nil || prompt.Temperature != 0.4 || !strings.Contains(prompt.User, "prepTime") {
		t.Fatalf("unexpected default prompt: %+v, %v", prompt, err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.yaml")
	content := "system: be brief\nuser: extract the recipe\ntemperature: 0.2\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
	prompt, err = LoadPrompt(path)
	if err != nil {
		t.Fatalf("LoadPrompt failed: %v", err)
	}
	if prompt.System != "be brief" || prompt.Temperature != 0.2 || prompt.MaxTokens != DefaultPrompt().MaxTokens {
		t.Fatalf("unexpected prompt %+v", prompt)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("system: \"\"\nuser: \"\"\n"), 0o600); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
	if _, err := LoadPrompt(bad); err == nil {
		t.Fatal("expected an error for empty prompt text")
	}

	if _, err := LoadPrompt(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
