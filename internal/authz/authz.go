// Package authz decides whether a user may act on a record.
package authz

import (
	"fmt"

	"memory-map-backend/internal/models"
)

// Action is an operation attempted on an owned record
type Action int

const (
	ActionRead Action = iota
	ActionMutate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionMutate:
		return "mutate"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Authorize checks requesterID against the owner of a record.
// An empty ownerID means the record does not exist.
//
// Checks run in order: authentication, existence, ownership. The returned
// error wraps models.ErrUnauthenticated, models.ErrNotFound or models.ErrForbidden.
func Authorize(requesterID, ownerID string, action Action) error {
	if requesterID == "" {
		return models.ErrUnauthenticated
	}
	if ownerID == "" {
		return models.ErrNotFound
	}
	if requesterID != ownerID {
		return fmt.Errorf("%s denied: %w", action, models.ErrForbidden)
	}
	return nil
}
