package extraction

import "errors"

// PreconditionError aborts a workflow instance for good: retrying cannot
// help because the recipe or its image is unusable.
type PreconditionError struct {
	RecipeID string
	Reason   string
}

func (e *PreconditionError) Error() string {
	return "recipe " + e.RecipeID + ": " + e.Reason
}

func IsPreconditionError(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

const (
	reasonNotFound     = "recipe not found"
	reasonNoImage      = "recipe has no image"
	reasonUnresolvable = "unable to resolve image URL"
)
