package recipe

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid extraction transition")

// CanTransition reports whether an extraction may move from one status to
// another. Repeating the current status is allowed so replayed workflow steps
// are no-ops; nothing leaves a terminal status.
func CanTransition(from, to Status) bool {
	if from == to {
		return from.Valid()
	}
	switch from {
	case StatusPending:
		return to == StatusInProgress || to == StatusSuccess || to == StatusFailed
	case StatusInProgress:
		return to == StatusSuccess || to == StatusFailed
	}
	return false
}

// predecessors lists the statuses that may move to `to`, excluding `to` itself.
func predecessors(to Status) []string {
	var out []string
	for _, from := range []Status{StatusPending, StatusInProgress, StatusSuccess, StatusFailed} {
		if from != to && CanTransition(from, to) {
			out = append(out, string(from))
		}
	}
	return out
}

func transitionError(id string, from, to Status) error {
	return fmt.Errorf("recipe %s: %s -> %s: %w", id, from, to, ErrInvalidTransition)
}
