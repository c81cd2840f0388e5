package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/beesaferoot/rentals/internal/apperr"
	"github.com/beesaferoot/rentals/internal/models"
)

// claims is the token payload: subject is the user id.
type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// TokenConfig holds the shared HMAC secret and issuer.
type TokenConfig struct {
	Secret []byte
	Issuer string
	Now    func() time.Time
}

func (c TokenConfig) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// TokenVerifier turns bearer tokens into actors.
type TokenVerifier struct {
	cfg TokenConfig
}

// NewTokenVerifier returns a verifier for HS256 tokens signed with cfg.Secret.
func NewTokenVerifier(cfg TokenConfig) *TokenVerifier {
	return &TokenVerifier{cfg: cfg}
}

// Verify validates token and returns the actor it names.
func (v *TokenVerifier) Verify(token string) (Actor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Actor{}, apperr.New(apperr.CodeUnauthenticated, "bearer token is required")
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.cfg.now),
	)
	if err != nil {
		return Actor{}, mapJWTError(err)
	}

	role := models.Role(parsed.Role)
	if !role.Valid() || role == models.RoleSystem {
		return Actor{}, apperr.WithMetadata(apperr.CodeUnauthenticated,
			"token carries an unknown role", map[string]string{"role": parsed.Role})
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Actor{}, apperr.New(apperr.CodeUnauthenticated, "token subject is required")
	}
	return Actor{UserID: parsed.Subject, Role: role}, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperr.Wrap(apperr.CodeUnauthenticated, "token is expired", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperr.Wrap(apperr.CodeUnauthenticated, "token signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return apperr.Wrap(apperr.CodeUnauthenticated, "token issuer mismatch", err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return apperr.Wrap(apperr.CodeUnauthenticated, "token is malformed", err)
	default:
		return apperr.Wrap(apperr.CodeUnauthenticated, "token is invalid", err)
	}
}

// TokenIssuer signs tokens for development and tests.
type TokenIssuer struct {
	cfg TokenConfig
}

// NewTokenIssuer returns an issuer sharing cfg with the verifier.
func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	return &TokenIssuer{cfg: cfg}
}

// Issue signs a token for actor valid for ttl.
func (i *TokenIssuer) Issue(actor Actor, ttl time.Duration) (string, error) {
	if !actor.Role.Valid() {
		return "", fmt.Errorf("unknown role %q", actor.Role)
	}
	now := i.cfg.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(actor.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.cfg.Secret)
}
