package extraction

import (
	"context"

	"github.com/recipelens/platform/pkg/common/logger"
	"github.com/recipelens/platform/pkg/common/models"
	"github.com/recipelens/platform/pkg/workflow"
)

// EventRequested is the event type that asks a worker to run an instance.
const EventRequested = "extraction.requested"

// HandleEvent runs the instance named by an extraction event. Returning an
// error leaves the message uncommitted so the instance is replayed; this
// includes an instance locked by another worker.
func (w *Workflow) HandleEvent(ctx context.Context, event models.Event) error {
	if event.Type != "" && event.Type != EventRequested {
		return nil
	}
	recipeID := event.StringField(workflow.InstanceIDKey)
	if recipeID == "" {
		logger.Log.WithField("event_id", event.ID).Warn("Extraction event without instance id, dropping")
		return nil
	}

	err := w.Run(ctx, recipeID)
	if IsPreconditionError(err) {
		return nil
	}
	return err
}
