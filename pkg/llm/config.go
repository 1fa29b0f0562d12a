package llm

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config carries provider settings explicitly; the client never reads the
// environment itself.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ConfigError reports a provider setting that makes every call fail.
type ConfigError struct {
	Field  string
	Reason string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("llm config: %s %s", e.Field, e.Reason)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ConfigError{Field: "api key", Reason: "is not set"}
	}
	if strings.TrimSpace(c.Model) == "" {
		return ConfigError{Field: "model", Reason: "is not set"}
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ConfigError{Field: "base url", Reason: fmt.Sprintf("%q is not an absolute URL", c.BaseURL)}
	}
	return nil
}
