package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WORKFLOW_MAX_ATTEMPTS", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()
	if cfg.WorkflowMaxAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", cfg.WorkflowMaxAttempts)
	}
	if cfg.WorkflowInitialBackoff != 200*time.Millisecond {
		t.Fatalf("expected 200ms backoff, got %s", cfg.WorkflowInitialBackoff)
	}
	if cfg.WorkflowBackoffMultiplier != 2 {
		t.Fatalf("expected multiplier 2, got %v", cfg.WorkflowBackoffMultiplier)
	}
	if cfg.WorkflowMaxParallelism != 10 {
		t.Fatalf("expected parallelism 10, got %d", cfg.WorkflowMaxParallelism)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "localhost:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.WorkerPort != "8081" || cfg.WorkerConsumers != 4 {
		t.Fatalf("unexpected worker defaults %q/%d", cfg.WorkerPort, cfg.WorkerConsumers)
	}
}

func TestLoadRedisToggle(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "false")
	if Load().RedisEnabled {
		t.Fatal("expected redis disabled")
	}

	t.Setenv("REDIS_ENABLED", "maybe")
	if !Load().RedisEnabled {
		t.Fatal("expected default on unparsable value")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("STORAGE_INLINE_IMAGES", "true")
	t.Setenv("PUBLIC_BASE_URL", "https://recipes.example.com/")
	t.Setenv("WORKFLOW_BACKOFF_MULTIPLIER", "1.5")
	t.Setenv("LLM_TIMEOUT", "not-a-duration")

	cfg := Load()
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if !cfg.StorageInlineImages {
		t.Fatal("expected inline images enabled")
	}
	if cfg.PublicBaseURL != "https://recipes.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.PublicBaseURL)
	}
	if cfg.WorkflowBackoffMultiplier != 1.5 {
		t.Fatalf("expected multiplier 1.5, got %v", cfg.WorkflowBackoffMultiplier)
	}
	if cfg.LLMTimeout != 90*time.Second {
		t.Fatalf("expected default timeout on parse failure, got %s", cfg.LLMTimeout)
	}
}
