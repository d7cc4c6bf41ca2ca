package tokencodec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/reelplatform/reelauth/internal/apperrors"
	"github.com/reelplatform/reelauth/internal/models"
)

const (
	defaultAccessTokenTTL = 10 * time.Minute
	defaultSigningMethod  = "HS256"

	// Distinct issuers keep the two token kinds from being swapped:
	// a refresh token never parses as an access token and vice versa
	accessIssuer  = "reelauth/access"
	refreshIssuer = "reelauth/refresh"
)

type AccessClaims struct {
	jwt.RegisteredClaims
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type RefreshTokenClaims struct {
	jwt.RegisteredClaims
	SessionID uuid.UUID `json:"sid"`
}

// RefreshClaims is what a verified refresh token binds together
type RefreshClaims struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// Codec with sensible defaults
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set then default is used
	Alg string

	// Access token lifetime (minutes scale, much shorter than a session)
	// If not set then default is used
	AccessTTL time.Duration
}

// Codec creates and parses signed time-boxed tokens.
// Stateless and CPU-only: the signing key is injected here once,
// there is no process-wide secret.
type Codec struct {
	key       []byte
	alg       jwt.SigningMethod
	accessTTL time.Duration
}

func New(cfg Config) (*Codec, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = defaultAccessTokenTTL
	}

	alg := jwt.GetSigningMethod(cfg.Alg)
	if alg == nil {
		return nil, fmt.Errorf("unknown signing method: %s", cfg.Alg)
	}

	return &Codec{
		key:       []byte(cfg.SecretKey),
		alg:       alg,
		accessTTL: cfg.AccessTTL,
	}, nil
}

// CreateAccessToken issues a short-lived stateless credential for the principal.
// Never stored server-side, downstream handlers check signature and expiry only.
func (c *Codec) CreateAccessToken(p models.Principal) (models.IssuedToken, error) {
	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(c.accessTTL)

	token := jwt.NewWithClaims(
		c.alg,
		AccessClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Issuer:    accessIssuer,
				Subject:   p.UserID.String(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			Username: p.Username,
			Roles:    p.Roles,
		},
	)

	signed, err := token.SignedString(c.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// CreateRefreshToken issues a refresh token bound to the session
func (c *Codec) CreateRefreshToken(sessionID uuid.UUID, userID uuid.UUID, expiresAt time.Time) (models.IssuedToken, error) {
	now := time.Now().Truncate(time.Second)

	token := jwt.NewWithClaims(
		c.alg,
		RefreshTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Issuer:    refreshIssuer,
				Subject:   userID.String(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			SessionID: sessionID,
		},
	)

	signed, err := token.SignedString(c.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// ParseRefreshToken verifies signature and expiry and recovers the claims.
// Malformed, tampered and expired tokens all fail with the same
// apperrors.ErrInvalidToken so the caller can't tell them apart.
func (c *Codec) ParseRefreshToken(raw string) (RefreshClaims, error) {
	claims := &RefreshTokenClaims{}

	_, err := jwt.ParseWithClaims(
		raw,
		claims,
		func(t *jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{c.alg.Alg()}),
		jwt.WithIssuer(refreshIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return RefreshClaims{}, apperrors.ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || claims.SessionID == uuid.Nil {
		return RefreshClaims{}, apperrors.ErrInvalidToken
	}

	return RefreshClaims{
		SessionID: claims.SessionID,
		UserID:    userID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ParseAccessToken verifies an access token and recovers the principal
func (c *Codec) ParseAccessToken(raw string) (models.Principal, error) {
	claims := &AccessClaims{}

	_, err := jwt.ParseWithClaims(
		raw,
		claims,
		func(t *jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{c.alg.Alg()}),
		jwt.WithIssuer(accessIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return models.Principal{}, apperrors.ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Principal{}, apperrors.ErrInvalidToken
	}

	return models.Principal{
		UserID:   userID,
		Username: claims.Username,
		Roles:    claims.Roles,
	}, nil
}
