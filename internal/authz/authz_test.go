package authz

import (
	"errors"
	"testing"

	"memory-map-backend/internal/models"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name      string
		requester string
		owner     string
		action    Action
		want      error
	}{
		{name: "owner may mutate", requester: "u1", owner: "u1", action: ActionMutate},
		{name: "owner may delete", requester: "u1", owner: "u1", action: ActionDelete},
		{name: "owner may read", requester: "u1", owner: "u1", action: ActionRead},
		{name: "stranger cannot mutate", requester: "u2", owner: "u1", action: ActionMutate, want: models.ErrForbidden},
		{name: "stranger cannot delete", requester: "u2", owner: "u1", action: ActionDelete, want: models.ErrForbidden},
		{name: "stranger cannot read", requester: "u2", owner: "u1", action: ActionRead, want: models.ErrForbidden},
		{name: "missing record", requester: "u1", owner: "", action: ActionDelete, want: models.ErrNotFound},
		{name: "anonymous before existence", requester: "", owner: "", action: ActionMutate, want: models.ErrUnauthenticated},
		{name: "anonymous on existing record", requester: "", owner: "u1", action: ActionRead, want: models.ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.requester, tt.owner, tt.action)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("expected allow, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
