package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"notification-relay/internal/models"
)

// Token verification failures. The distinction matters only for logging and
// the handshake response; none of these leak to other clients.
var (
	ErrMalformed        = errors.New("token is malformed")
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token is expired")
)

// Claims is the wire format issued by the backend: three base64url segments,
// HMAC-SHA256 over header.claims, with userId/userType plus iat and exp.
type Claims struct {
	UserID   string `json:"userId"`
	UserType string `json:"userType"`
	jwt.RegisteredClaims
}

// Verifier validates signed tokens against a shared symmetric secret.
// It holds no connection state and is safe for concurrent use.
type Verifier struct {
	secret []byte
	now    func() time.Time
	cache  *tokenCache
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		now:    time.Now,
		cache:  newTokenCache(1024),
	}
}

// Verify checks structure, signature and expiry, and returns the identity the
// token was issued for. A token whose exp equals the current second is
// already expired.
func (v *Verifier) Verify(tokenString string) (models.Identity, error) {
	if identity, ok := v.cache.get(tokenString, v.now()); ok {
		return identity, nil
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, v.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return models.Identity{}, mapTokenError(err)
	}
	if claims.UserID == "" || claims.UserType == "" {
		return models.Identity{}, ErrMalformed
	}

	identity := models.Identity{ID: claims.UserID, Kind: models.UserKind(claims.UserType)}
	if claims.ExpiresAt != nil {
		v.cache.put(tokenString, identity, claims.ExpiresAt.Time)
	}
	return identity, nil
}

// Sign issues a token for the given identity. The backend is the normal
// issuer; this exists for local development and tests.
func (v *Verifier) Sign(identity models.Identity, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		UserID:   identity.ID,
		UserType: string(identity.Kind),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return v.secret, nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	default:
		return ErrMalformed
	}
}
