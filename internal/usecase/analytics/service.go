// Package analytics отдаёт сводные показатели блога администраторам.
package analytics

import (
	"context"
	"fmt"

	"blog-backend/internal/domain"
)

// Service — сводная аналитика.
type Service struct {
	repo domain.AnalyticsRepo
}

// NewService создаёт сервис аналитики.
func NewService(repo domain.AnalyticsRepo) *Service {
	return &Service{repo: repo}
}

// Summary возвращает счётчики. Доступно только персоналу.
func (s *Service) Summary(ctx context.Context, requester domain.Identity) (domain.Analytics, error) {
	if !requester.IsStaff {
		return domain.Analytics{}, domain.ErrForbidden
	}
	a, err := s.repo.CountAnalytics(ctx)
	if err != nil {
		return domain.Analytics{}, fmt.Errorf("подсчёт аналитики: %w", err)
	}
	return a, nil
}
