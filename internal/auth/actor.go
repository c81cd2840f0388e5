// Package auth identifies the caller and answers capability questions about
// what the caller may do. Authentication itself is delegated to JWT bearer
// tokens issued elsewhere.
package auth

import (
	"context"
	"strings"

	"github.com/beesaferoot/rentals/internal/apperr"
	"github.com/beesaferoot/rentals/internal/models"
)

// Actor is an authenticated caller.
type Actor struct {
	UserID string
	Role   models.Role
}

// System is the actor used for automated changes such as cascades.
var System = Actor{UserID: "system", Role: models.RoleSystem}

// Is reports whether the actor acts in role.
func (a Actor) Is(role models.Role) bool {
	return a.Role == role
}

type actorKey struct{}

// WithActor returns a context carrying actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// FromContext returns the actor stored in ctx, if any.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// MustFromContext returns the actor in ctx or an Unauthenticated error.
func MustFromContext(ctx context.Context) (Actor, error) {
	a, ok := FromContext(ctx)
	if !ok || strings.TrimSpace(a.UserID) == "" {
		return Actor{}, apperr.New(apperr.CodeUnauthenticated, "authentication required")
	}
	return a, nil
}

// RequireRole fails with Forbidden unless the actor holds one of roles.
func RequireRole(a Actor, roles ...models.Role) error {
	for _, r := range roles {
		if a.Role == r {
			return nil
		}
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return apperr.WithMetadata(apperr.CodeForbidden,
		"requires role "+strings.Join(names, " or "),
		map[string]string{"role": string(a.Role)})
}

// RequireTenantOf checks that the actor is the tenant who submitted app.
func RequireTenantOf(a Actor, app *models.Application) error {
	if err := RequireRole(a, models.RoleTenant); err != nil {
		return err
	}
	if app.TenantID != a.UserID {
		return apperr.New(apperr.CodeForbidden, "only the applying tenant may do this")
	}
	return nil
}

// RequireLandlordOf checks that the actor owns listing.
func RequireLandlordOf(a Actor, listing *models.Listing) error {
	if err := RequireRole(a, models.RoleLandlord); err != nil {
		return err
	}
	if listing.LandlordID != a.UserID {
		return apperr.New(apperr.CodeForbidden, "only the listing's landlord may do this")
	}
	return nil
}

// RequireLandlordOrAdmin lets admins through and otherwise requires the
// listing's landlord.
func RequireLandlordOrAdmin(a Actor, listing *models.Listing) error {
	if a.Is(models.RoleAdmin) {
		return nil
	}
	return RequireLandlordOf(a, listing)
}

// PartyRole derives the role the actor plays in a lease: the tenant of
// record or the listing's landlord. Anyone else is forbidden.
func PartyRole(a Actor, app *models.Application, listing *models.Listing) (models.Role, error) {
	switch {
	case a.Is(models.RoleTenant) && app.TenantID == a.UserID:
		return models.RoleTenant, nil
	case a.Is(models.RoleLandlord) && listing.LandlordID == a.UserID:
		return models.RoleLandlord, nil
	}
	return "", apperr.New(apperr.CodeForbidden, "caller is not a party to this lease")
}
