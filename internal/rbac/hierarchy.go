// Package rbac manages permissions, roles and their inheritance graph, and
// resolves the effective roles of a tenant member.
package rbac

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/apperr"
	"github.com/kiranshivaraju/authgraph/internal/store"
	"github.com/kiranshivaraju/authgraph/pkg/models"
)

// MaxInheritanceDepth bounds every parent chain, counting the role itself.
const MaxInheritanceDepth = 10

// RoleFinder is the read the hierarchy checks need.
type RoleFinder interface {
	FindRoleByID(ctx context.Context, id uuid.UUID) (*models.Role, error)
}

func errDepthExceeded() error {
	return apperr.BadRequest("Role inheritance depth exceeds maximum limit of %d", MaxInheritanceDepth)
}

func findAncestor(ctx context.Context, finder RoleFinder, id uuid.UUID) (*models.Role, error) {
	role, err := finder.FindRoleByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Parent role %s not found", id)
	}
	return role, err
}

// CheckParentChainDepth validates the chain above a role that is about to be
// created with parentID as its parent.
func CheckParentChainDepth(ctx context.Context, finder RoleFinder, parentID uuid.UUID) error {
	depth := 1
	visited := make(map[uuid.UUID]struct{})

	for current := &parentID; current != nil; {
		id := *current
		depth++
		if depth > MaxInheritanceDepth {
			return errDepthExceeded()
		}
		if _, seen := visited[id]; seen {
			return apperr.BadRequest("Circular inheritance detected in existing role hierarchy")
		}
		visited[id] = struct{}{}

		role, err := findAncestor(ctx, finder, id)
		if err != nil {
			return err
		}
		current = role.ParentRoleID
	}
	return nil
}

// CheckCircularInheritance validates making newParentID the parent of the
// existing role roleID. Reaching roleID while walking up from newParentID
// means the change would close a cycle.
func CheckCircularInheritance(ctx context.Context, finder RoleFinder, roleID, newParentID uuid.UUID) error {
	if roleID == newParentID {
		return apperr.BadRequest("A role cannot be its own parent")
	}

	depth := 1
	visited := map[uuid.UUID]struct{}{roleID: {}}

	for current := &newParentID; current != nil; {
		id := *current
		if _, seen := visited[id]; seen {
			return apperr.BadRequest("Circular inheritance detected: this would create a cycle in the role hierarchy")
		}
		depth++
		if depth > MaxInheritanceDepth {
			return errDepthExceeded()
		}
		visited[id] = struct{}{}

		role, err := findAncestor(ctx, finder, id)
		if err != nil {
			return err
		}
		current = role.ParentRoleID
	}
	return nil
}
