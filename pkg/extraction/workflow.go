// Package extraction drives one recipe from an uploaded image to a terminal
// success or failed state.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/recipelens/platform/pkg/common/logger"
	"github.com/recipelens/platform/pkg/observability/metrics"
	"github.com/recipelens/platform/pkg/recipe"
	"github.com/recipelens/platform/pkg/storage"
	"github.com/recipelens/platform/pkg/workflow"
	"github.com/sirupsen/logrus"
)

const (
	StepResolveInput   = "resolve-input"
	StepMarkInProgress = "mark-in-progress"
	StepInvokeModel    = "invoke-model"
	StepValidate       = "validate"
	StepPersistResult  = "persist-result"
)

// Model turns an image into the provider's raw structured output.
type Model interface {
	Extract(ctx context.Context, imageURL string) (string, error)
}

// ImageResolver maps a storage ref to a URL the model can load.
type ImageResolver interface {
	URL(ctx context.Context, ref string) (string, error)
}

// Store is the recipe persistence the workflow needs.
type Store interface {
	Get(ctx context.Context, id string) (*recipe.Recipe, error)
	Transition(ctx context.Context, id string, ext recipe.Extraction) (bool, error)
}

// Input is the checkpointed output of the resolve-input step.
type Input struct {
	ImageURL string `json:"image_url"`
}

// ModelOutput is the checkpointed outcome of the invoke-model step: the raw
// provider text, or the reason the call failed for good.
type ModelOutput struct {
	Raw     string `json:"raw,omitempty"`
	Failure string `json:"failure,omitempty"`
}

type Workflow struct {
	engine  *workflow.Engine
	recipes Store
	images  ImageResolver
	model   Model
	locker  workflow.Locker
	lockTTL time.Duration
	retry   workflow.RetryPolicy
}

func NewWorkflow(engine *workflow.Engine, recipes Store, images ImageResolver, model Model, locker workflow.Locker, lockTTL time.Duration, retry workflow.RetryPolicy) *Workflow {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &Workflow{
		engine:  engine,
		recipes: recipes,
		images:  images,
		model:   model,
		locker:  locker,
		lockTTL: lockTTL,
		retry:   retry,
	}
}

// Run executes (or resumes) the extraction instance for recipeID. It returns
// a *PreconditionError when the instance must not be retried, any other error
// when it should be, and nil once the recipe is terminal. An instance held by
// another worker yields an error wrapping workflow.ErrLocked.
func (w *Workflow) Run(ctx context.Context, recipeID string) error {
	log := logger.Log.WithField("recipe_id", recipeID)

	release, err := w.locker.Acquire(ctx, "extraction:"+recipeID, w.lockTTL)
	if errors.Is(err, workflow.ErrLocked) {
		// The holder may have died; the caller retries until it finishes or
		// the lock expires.
		log.Info("Extraction already running elsewhere")
		return fmt.Errorf("instance busy: %w", err)
	}
	if err != nil {
		return fmt.Errorf("acquiring extraction lock: %w", err)
	}
	defer release()

	rec, err := w.recipes.Get(ctx, recipeID)
	if errors.Is(err, recipe.ErrNotFound) {
		return w.abort(ctx, log, &PreconditionError{RecipeID: recipeID, Reason: reasonNotFound}, false)
	}
	if err != nil {
		return fmt.Errorf("loading recipe: %w", err)
	}
	if rec.Status.Terminal() {
		log.WithField("status", rec.Status).Info("Recipe already terminal, nothing to do")
		return nil
	}

	metrics.ExtractionStarted()
	run := w.engine.Instance(recipeID)

	input, err := workflow.Step(ctx, run, StepResolveInput, workflow.StepOptions{}, func(ctx context.Context) (Input, error) {
		return w.resolveInput(ctx, rec)
	})
	if err != nil {
		var pe *PreconditionError
		if errors.As(err, &pe) {
			return w.abort(ctx, log, pe, true)
		}
		return err
	}

	if _, err := workflow.Step(ctx, run, StepMarkInProgress, workflow.StepOptions{}, func(ctx context.Context) (bool, error) {
		applied, err := w.recipes.Transition(ctx, recipeID, recipe.InProgress())
		if err == nil && applied {
			log.WithField("step", StepMarkInProgress).Info("Recipe extraction in progress")
		}
		return applied, err
	}); err != nil {
		return err
	}

	ext, err := w.extract(ctx, run, log, input.ImageURL)
	if err != nil {
		return err
	}

	_, err = workflow.Step(ctx, run, StepPersistResult, workflow.StepOptions{}, func(ctx context.Context) (bool, error) {
		applied, err := w.recipes.Transition(ctx, recipeID, ext)
		if err != nil || !applied {
			return applied, err
		}
		entry := log.WithFields(logrus.Fields{"step": StepPersistResult, "status": ext.Status})
		if ext.Status == recipe.StatusSuccess {
			metrics.ExtractionSucceeded()
			entry.Info("Recipe extraction succeeded")
		} else {
			metrics.ExtractionFailed()
			entry.WithField("reason", ext.Reason).Warn("Recipe extraction failed")
		}
		return true, nil
	})
	return err
}

// extract runs the model and validation steps. An exhausted or permanent
// model error is checkpointed as the step's outcome and becomes a failed
// extraction; cancellation is returned as-is so the instance is resumed later.
func (w *Workflow) extract(ctx context.Context, run *workflow.Run, log *logrus.Entry, imageURL string) (recipe.Extraction, error) {
	attempt := 0
	out, err := workflow.StepWithFallback(ctx, run, StepInvokeModel, workflow.StepOptions{Retry: &w.retry, Limited: true},
		func(ctx context.Context) (ModelOutput, error) {
			attempt++
			metrics.ModelAttempt(attempt > 1)
			done := metrics.TrackModelCall()
			defer done()
			raw, err := w.model.Extract(ctx, imageURL)
			return ModelOutput{Raw: raw}, err
		},
		func(stepErr *workflow.StepError) ModelOutput {
			log.WithError(stepErr.Err).WithFields(logrus.Fields{
				"step":     StepInvokeModel,
				"attempts": stepErr.Attempts,
			}).Warn("Model call failed")
			return ModelOutput{Failure: modelFailureReason(stepErr)}
		})
	if err != nil {
		return recipe.Extraction{}, err
	}

	return workflow.Step(ctx, run, StepValidate, workflow.StepOptions{}, func(ctx context.Context) (recipe.Extraction, error) {
		if out.Failure != "" {
			return recipe.Failed(out.Failure), nil
		}
		return recipe.DecodeModelOutput(out.Raw), nil
	})
}

func (w *Workflow) resolveInput(ctx context.Context, rec *recipe.Recipe) (Input, error) {
	if rec.ImageRef == "" {
		return Input{}, workflow.Permanent(&PreconditionError{RecipeID: rec.ID, Reason: reasonNoImage})
	}
	url, err := w.images.URL(ctx, rec.ImageRef)
	if errors.Is(err, storage.ErrObjectNotFound) || (err == nil && url == "") {
		return Input{}, workflow.Permanent(&PreconditionError{RecipeID: rec.ID, Reason: reasonUnresolvable})
	}
	if err != nil {
		return Input{}, fmt.Errorf("resolving image: %w", err)
	}
	return Input{ImageURL: url}, nil
}

// abort records a precondition failure. When the row exists it is moved to
// failed first so clients observe a terminal state.
func (w *Workflow) abort(ctx context.Context, log *logrus.Entry, pe *PreconditionError, exists bool) error {
	log = log.WithField("reason", pe.Reason)
	if exists {
		applied, err := w.recipes.Transition(ctx, pe.RecipeID, recipe.Failed(pe.Reason))
		if err != nil && !errors.Is(err, recipe.ErrInvalidTransition) {
			return fmt.Errorf("recording precondition failure: %w", err)
		}
		if applied {
			metrics.ExtractionFailed()
		}
	}
	log.Error("Extraction aborted")
	return pe
}

func modelFailureReason(err *workflow.StepError) string {
	if err.Attempts > 1 {
		return fmt.Sprintf("model call failed after %d attempts: %v", err.Attempts, err.Err)
	}
	return fmt.Sprintf("model call failed: %v", err.Err)
}
