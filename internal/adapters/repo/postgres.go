package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"blog-backend/internal/domain"
	"blog-backend/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.UserRepo         = (*Postgres)(nil)
	_ domain.PostRepo         = (*Postgres)(nil)
	_ domain.CommentRepo      = (*Postgres)(nil)
	_ domain.NotificationRepo = (*Postgres)(nil)
	_ domain.PreferenceRepo   = (*Postgres)(nil)
	_ domain.AnalyticsRepo    = (*Postgres)(nil)
)

const uniqueViolation = "23505"

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// storageErr приводит ошибку драйвера к доменной.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}

// conflictErr — как storageErr, но нарушение уникальности отдаёт доменную ошибку conflict.
func conflictErr(op string, err, conflict error) error {
	if isUniqueViolation(err) {
		return conflict
	}
	return storageErr(op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// CreateUser реализует domain.UserRepo.
func (p *Postgres) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO users (username, email, password_hash, is_staff)
VALUES ($1, $2, $3, $4)
RETURNING id, is_active, created_at
`, user.Username, user.Email, user.PasswordHash, user.IsStaff).Scan(&user.ID, &user.IsActive, &user.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_insert", "users", start, err)
	if err != nil {
		return domain.User{}, conflictErr("создание пользователя", err, domain.ErrUserExists)
	}
	userID := user.ID
	_ = p.saveBusinessMetric(ctx, domain.BusinessMetric{
		Event:    domain.BusinessMetricEventUserRegistered,
		UserID:   &userID,
		Metadata: map[string]any{"username": user.Username},
	})
	return user, nil
}

// GetUserByUsername реализует domain.UserRepo.
func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return p.getUser(ctx, "users_by_username", `WHERE username = $1`, username)
}

// GetUserByID реализует domain.UserRepo.
func (p *Postgres) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	return p.getUser(ctx, "users_by_id", `WHERE id = $1`, id)
}

func (p *Postgres) getUser(ctx context.Context, operation, where string, arg any) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var user domain.User
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, username, email, password_hash, is_staff, is_active, created_at
FROM users `+where, arg).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsStaff, &user.IsActive, &user.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", operation, "users", start, err)
	if err != nil {
		return domain.User{}, storageErr("получение пользователя", err)
	}
	return user, nil
}

// CountAnalytics реализует domain.AnalyticsRepo.
func (p *Postgres) CountAnalytics(ctx context.Context) (domain.Analytics, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var a domain.Analytics
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT
    (SELECT count(*) FROM users WHERE is_active),
    (SELECT count(*) FROM posts),
    (SELECT count(*) FROM comments),
    (SELECT count(*) FROM likes),
    (SELECT count(*) FROM post_views)
`).Scan(&a.ActiveUsers, &a.TotalPosts, &a.TotalComments, &a.TotalLikes, &a.TotalViews)
	metrics.ObserveNetworkRequest("postgres", "analytics", "analytics", start, err)
	if err != nil {
		return domain.Analytics{}, storageErr("подсчёт аналитики", err)
	}
	return a, nil
}
