// Package auth issues and verifies the tokens of the card API and guards
// the administrative operations.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"lunar-card/internal/apperr"
)

// Token roles.
const (
	RoleVisit = "visit"
	RoleAdmin = "admin"
)

const issuer = "lunar-card"

// Auth errors.
var (
	// ErrNoSecret is returned when no signing secret is configured.
	ErrNoSecret = errors.New("jwt secret is not configured")

	// ErrInvalidToken is returned for malformed, expired or forged tokens.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", apperr.ErrAuth)

	// ErrBadPassword is returned when the dashboard password does not match.
	ErrBadPassword = fmt.Errorf("%w: wrong dashboard password", apperr.ErrAuth)

	// ErrAdminDisabled is returned when no dashboard password hash is configured.
	ErrAdminDisabled = fmt.Errorf("%w: dashboard login is disabled", apperr.ErrPermission)

	// ErrNotAdmin is returned when a non-admin caller reaches an admin operation.
	ErrNotAdmin = fmt.Errorf("%w: administrator only", apperr.ErrPermission)
)

// Claims are the JWT claims of card tokens.
type Claims struct {
	Role    string `json:"role"`
	VisitID string `json:"visit_id,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies tokens with an HMAC secret.
type Issuer struct {
	secret    []byte
	lifetime  time.Duration
	adminHash string
	now       func() time.Time
}

// NewIssuer creates an Issuer. adminHash is the bcrypt hash of the dashboard
// password; an empty hash disables dashboard login.
func NewIssuer(secret string, lifetime time.Duration, adminHash string) (*Issuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	return &Issuer{
		secret:    []byte(secret),
		lifetime:  lifetime,
		adminHash: adminHash,
		now:       time.Now,
	}, nil
}

// IssueVisit returns a token bound to visitID.
func (i *Issuer) IssueVisit(visitID string) (string, error) {
	return i.sign(&Claims{Role: RoleVisit, VisitID: visitID}, visitID)
}

// LoginAdmin checks password against the dashboard hash and returns an admin token.
func (i *Issuer) LoginAdmin(password string) (string, error) {
	if i.adminHash == "" {
		return "", ErrAdminDisabled
	}
	if !CheckPassword(password, i.adminHash) {
		return "", ErrBadPassword
	}
	return i.sign(&Claims{Role: RoleAdmin}, RoleAdmin)
}

func (i *Issuer) sign(claims *Claims, subject string) (string, error) {
	now := i.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(i.lifetime)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    issuer,
		Subject:   subject,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Parse validates token and returns its claims.
func (i *Issuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type adminKey struct{}

// WithAdmin marks ctx as carrying an authenticated administrator.
func WithAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, adminKey{}, true)
}

// IsAdmin reports whether ctx carries an authenticated administrator.
func IsAdmin(ctx context.Context) bool {
	v, _ := ctx.Value(adminKey{}).(bool)
	return v
}

// RequireAdmin returns ErrNotAdmin unless ctx carries an administrator.
func RequireAdmin(ctx context.Context) error {
	if !IsAdmin(ctx) {
		return ErrNotAdmin
	}
	return nil
}
