package domain

import (
	"context"
	"time"
)

// BusinessMetric описывает бизнесовое событие, которое сохраняется для последующего анализа.
type BusinessMetric struct {
	Event      string
	UserID     *int64
	PostID     *int64
	Metadata   map[string]any
	OccurredAt time.Time
}

const (
	// BusinessMetricEventUserRegistered фиксирует регистрацию нового пользователя.
	BusinessMetricEventUserRegistered = "user_registered"
	// BusinessMetricEventPostPublished фиксирует публикацию поста.
	BusinessMetricEventPostPublished = "post_published"
	// BusinessMetricEventPostLiked фиксирует лайк.
	BusinessMetricEventPostLiked = "post_liked"
	// BusinessMetricEventCommentCreated фиксирует новый комментарий или ответ.
	BusinessMetricEventCommentCreated = "comment_created"
)

// BusinessMetricRepo сохраняет бизнесовые события.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}
