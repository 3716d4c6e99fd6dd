// Package auth выпускает и проверяет токены доступа и хэширует пароли.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"blog-backend/internal/domain"
)

const (
	issuer        = "blog-backend"
	revokedPrefix = "revoked:"
)

// Claims — полезная нагрузка токена доступа.
type Claims struct {
	UserID  int64 `json:"user_id"`
	IsStaff bool  `json:"is_staff"`
	jwt.RegisteredClaims
}

// TokenManager подписывает токены HS256 и реализует domain.IdentityResolver.
// С WithRevocations отозванные токены хранятся в кэше до истечения их срока.
type TokenManager struct {
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
	revoked domain.Cache
}

// Option настраивает TokenManager.
type Option func(*TokenManager)

// WithRevocations включает отзыв токенов через общий кэш.
func WithRevocations(cache domain.Cache) Option {
	return func(m *TokenManager) {
		m.revoked = cache
	}
}

var _ domain.IdentityResolver = (*TokenManager)(nil)

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(secret string, ttl time.Duration, opts ...Option) *TokenManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	m := &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue выпускает токен для пользователя.
func (m *TokenManager) Issue(user domain.User) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:  user.ID,
		IsStaff: user.IsStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprint(user.ID),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("подпись токена: %w", err)
	}
	return signed, nil
}

// Resolve проверяет подпись, срок и отзыв токена. Любая проблема даёт domain.ErrUnauthenticated.
// Если хранилище отзывов недоступно, токен не принимается.
func (m *TokenManager) Resolve(ctx context.Context, token string) (domain.Identity, error) {
	claims, err := m.parse(token)
	if err != nil {
		return domain.Identity{}, err
	}
	if m.revoked != nil && claims.ID != "" {
		_, err := m.revoked.Get(ctx, revokedPrefix+claims.ID)
		switch {
		case err == nil:
			return domain.Identity{}, domain.ErrUnauthenticated
		case !errors.Is(err, domain.ErrCacheMiss):
			return domain.Identity{}, errors.Join(domain.ErrUnauthenticated, err)
		}
	}
	return domain.Identity{UserID: claims.UserID, IsStaff: claims.IsStaff}, nil
}

// Revoke отзывает действующий токен до конца его срока.
func (m *TokenManager) Revoke(ctx context.Context, token string) error {
	if m.revoked == nil {
		return errors.New("отзыв токенов не настроен")
	}
	claims, err := m.parse(token)
	if err != nil {
		return err
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return domain.ErrUnauthenticated
	}
	ttl := claims.ExpiresAt.Sub(m.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := m.revoked.Set(ctx, revokedPrefix+claims.ID, []byte("1"), ttl); err != nil {
		return fmt.Errorf("отзыв токена: %w", err)
	}
	return nil
}

func (m *TokenManager) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, errors.Join(domain.ErrUnauthenticated, err)
	}
	if !parsed.Valid || claims.UserID <= 0 {
		return nil, domain.ErrUnauthenticated
	}
	return claims, nil
}
