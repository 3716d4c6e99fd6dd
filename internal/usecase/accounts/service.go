// Package accounts регистрирует пользователей и выдаёт токены доступа.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"blog-backend/internal/domain"
	"blog-backend/internal/infra/auth"
	"blog-backend/internal/infra/validate"
)

// TokenIssuer выпускает и отзывает токены доступа.
type TokenIssuer interface {
	Issue(user domain.User) (string, error)
	Revoke(ctx context.Context, token string) error
}

// Service — регистрация и вход.
type Service struct {
	users  domain.UserRepo
	tokens TokenIssuer
}

// NewService создаёт сервис учётных записей.
func NewService(users domain.UserRepo, tokens TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens}
}

// Register создаёт пользователя. Занятое имя или email дают domain.ErrUserExists.
func (s *Service) Register(ctx context.Context, in domain.Registration) (domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Struct(in); err != nil {
		return domain.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("хэширование пароля: %w", err)
	}
	user, err := s.users.CreateUser(ctx, domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return domain.User{}, err
		}
		return domain.User{}, fmt.Errorf("создание пользователя: %w", err)
	}
	return user, nil
}

// Login проверяет пароль и выпускает токен.
func (s *Service) Login(ctx context.Context, in domain.Credentials) (string, error) {
	if err := validate.Struct(in); err != nil {
		return "", err
	}
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(in.Username))
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("получение пользователя: %w", err)
	}
	if !user.IsActive {
		return "", domain.ErrInvalidCredentials
	}
	ok, err := auth.ComparePassword(in.Password, user.PasswordHash)
	if err != nil || !ok {
		return "", domain.ErrInvalidCredentials
	}
	return s.tokens.Issue(user)
}

// Logout отзывает текущий токен; повторное использование даёт domain.ErrUnauthenticated.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		return fmt.Errorf("выход: %w", err)
	}
	return nil
}
