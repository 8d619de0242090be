package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"shopmanager/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	AdminID     int64    `json:"admin_id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

func (m *TokenManager) Issue(admin domain.AdminUser) (string, time.Time, error) {
	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.ttl)
	claims := &Claims{
		AdminID:     admin.ID,
		Email:       admin.Email,
		Role:        string(admin.Role),
		Permissions: admin.Permissions.Strings(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", admin.ID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates a signed token and returns the actor it was issued for.
// Any failure is reported as domain.ErrUnauthorized.
func (m *TokenManager) Parse(raw string) (domain.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Actor{}, fmt.Errorf("%w: token expired", domain.ErrUnauthorized)
		}
		return domain.Actor{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}

	role, err := domain.ParseRole(claims.Role)
	if err != nil || claims.AdminID <= 0 {
		return domain.Actor{}, fmt.Errorf("%w: malformed claims", domain.ErrUnauthorized)
	}
	perms, err := domain.NewPermissions(claims.Permissions)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: malformed claims", domain.ErrUnauthorized)
	}
	return domain.Actor{
		AdminID:     claims.AdminID,
		Email:       claims.Email,
		Role:        role,
		Permissions: perms,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
