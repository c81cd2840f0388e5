package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beesaferoot/rentals/internal/apperr"
	"github.com/beesaferoot/rentals/internal/models"
)

func testTokenConfig(now time.Time) TokenConfig {
	return TokenConfig{
		Secret: []byte("0123456789abcdef0123"),
		Issuer: "rentals-test",
		Now:    func() time.Time { return now },
	}
}

func TestActorContext(t *testing.T) {
	_, err := MustFromContext(context.Background())
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))

	ctx := WithActor(context.Background(), Actor{UserID: "u1", Role: models.RoleTenant})
	a, err := MustFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", a.UserID)
	assert.True(t, a.Is(models.RoleTenant))
}

func TestCapabilityChecks(t *testing.T) {
	tenant := Actor{UserID: "t1", Role: models.RoleTenant}
	otherTenant := Actor{UserID: "t2", Role: models.RoleTenant}
	landlord := Actor{UserID: "l1", Role: models.RoleLandlord}
	admin := Actor{UserID: "a1", Role: models.RoleAdmin}

	app := &models.Application{TenantID: "t1"}
	listing := &models.Listing{LandlordID: "l1"}

	assert.NoError(t, RequireRole(tenant, models.RoleTenant))
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(RequireRole(tenant, models.RoleLandlord, models.RoleAdmin)))

	assert.NoError(t, RequireTenantOf(tenant, app))
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(RequireTenantOf(otherTenant, app)))
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(RequireTenantOf(landlord, app)))

	assert.NoError(t, RequireLandlordOf(landlord, listing))
	assert.Error(t, RequireLandlordOf(Actor{UserID: "l2", Role: models.RoleLandlord}, listing))
	assert.Error(t, RequireLandlordOf(admin, listing))
	assert.NoError(t, RequireLandlordOrAdmin(admin, listing))
	assert.NoError(t, RequireLandlordOrAdmin(landlord, listing))
	assert.Error(t, RequireLandlordOrAdmin(tenant, listing))
}

func TestPartyRole(t *testing.T) {
	app := &models.Application{TenantID: "t1"}
	listing := &models.Listing{LandlordID: "l1"}

	role, err := PartyRole(Actor{UserID: "t1", Role: models.RoleTenant}, app, listing)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTenant, role)

	role, err = PartyRole(Actor{UserID: "l1", Role: models.RoleLandlord}, app, listing)
	require.NoError(t, err)
	assert.Equal(t, models.RoleLandlord, role)

	_, err = PartyRole(Actor{UserID: "t2", Role: models.RoleTenant}, app, listing)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	_, err = PartyRole(Actor{UserID: "a1", Role: models.RoleAdmin}, app, listing)
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	cfg := testTokenConfig(now)

	token, err := NewTokenIssuer(cfg).Issue(Actor{UserID: "l1", Role: models.RoleLandlord}, time.Hour)
	require.NoError(t, err)

	actor, err := NewTokenVerifier(cfg).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Actor{UserID: "l1", Role: models.RoleLandlord}, actor)
}

func TestVerifyRejects(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	cfg := testTokenConfig(now)
	issuer := NewTokenIssuer(cfg)

	expired, err := NewTokenIssuer(testTokenConfig(now.Add(-2*time.Hour))).
		Issue(Actor{UserID: "t1", Role: models.RoleTenant}, time.Hour)
	require.NoError(t, err)

	wrongIssuer := cfg
	wrongIssuer.Issuer = "someone-else"
	foreign, err := NewTokenIssuer(wrongIssuer).Issue(Actor{UserID: "t1", Role: models.RoleTenant}, time.Hour)
	require.NoError(t, err)

	wrongKey := cfg
	wrongKey.Secret = []byte("another-secret-value-xx")
	forged, err := NewTokenIssuer(wrongKey).Issue(Actor{UserID: "t1", Role: models.RoleTenant}, time.Hour)
	require.NoError(t, err)

	system, err := issuer.Issue(System, time.Hour)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "t1", Issuer: cfg.Issuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
		Role:             "tenant",
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	v := NewTokenVerifier(cfg)
	for name, token := range map[string]string{
		"empty":       "",
		"garbage":     "not-a-token",
		"expired":     expired,
		"issuer":      foreign,
		"signature":   forged,
		"system role": system,
		"alg none":    unsigned,
	} {
		_, err := v.Verify(token)
		assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err), name)
	}
}
