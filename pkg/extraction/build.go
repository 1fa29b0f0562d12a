package extraction

import (
	"fmt"

	"github.com/recipelens/platform/pkg/common/config"
	"github.com/recipelens/platform/pkg/common/logger"
	"github.com/recipelens/platform/pkg/llm"
	"github.com/recipelens/platform/pkg/recipe"
	"github.com/recipelens/platform/pkg/workflow"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const lockPrefix = "recipelens:lock:"

// Build wires the workflow the way both binaries run it. redisClient may be
// nil, in which case locking is per process.
func Build(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, images ImageResolver) (*Workflow, error) {
	journal := workflow.NewGormJournal(db)
	if err := journal.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migrating workflow checkpoints: %w", err)
	}

	prompt, err := llm.LoadPrompt(cfg.LLMPromptFile)
	if err != nil {
		return nil, fmt.Errorf("loading prompt: %w", err)
	}

	llmCfg := llm.Config{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModelName,
		Timeout: cfg.LLMTimeout,
	}
	if err := llmCfg.Validate(); err != nil {
		// Not fatal: every extraction will fail with this reason instead.
		logger.Log.WithError(err).Warn("model provider is not configured")
	}

	var locker workflow.Locker
	if redisClient != nil {
		locker = workflow.NewRedisLocker(redisClient, lockPrefix)
	} else {
		logger.Log.Warn("Redis disabled, extraction locks are local to this process")
		locker = workflow.NewMemoryLocker()
	}

	retry := workflow.RetryPolicy{
		MaxAttempts:    cfg.WorkflowMaxAttempts,
		InitialBackoff: cfg.WorkflowInitialBackoff,
		Multiplier:     cfg.WorkflowBackoffMultiplier,
	}

	engine := workflow.NewEngine(journal, cfg.WorkflowMaxParallelism)
	return NewWorkflow(engine, recipe.NewRepository(db), images, llm.NewClient(llmCfg, prompt), locker, cfg.LockTTL, retry), nil
}
