package posts

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"blog-backend/internal/domain"
	"blog-backend/internal/infra/validate"
)

// Service — операции с постами. Каждая запись инвалидирует кэш до возврата.
type Service struct {
	repo     domain.PostRepo
	cache    *Cache
	notifier domain.Notifier
	log      zerolog.Logger
}

// NewService создаёт сервис постов.
func NewService(repo domain.PostRepo, cache *Cache, notifier domain.Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, cache: cache, notifier: notifier, log: logger}
}

// Get возвращает пост через кэш.
func (s *Service) Get(ctx context.Context, id int64) (domain.Post, error) {
	return s.cache.GetPost(ctx, id)
}

// List возвращает все посты через кэш.
func (s *Service) List(ctx context.Context) ([]domain.Post, error) {
	return s.cache.ListPosts(ctx)
}

// Create публикует пост.
func (s *Service) Create(ctx context.Context, authorID int64, in domain.PostInput) (domain.Post, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Post{}, err
	}
	post, err := s.repo.CreatePost(ctx, authorID, in)
	if err != nil {
		return domain.Post{}, fmt.Errorf("создание поста: %w", err)
	}
	if err := s.cache.OnPostWritten(ctx, post.ID); err != nil {
		return domain.Post{}, err
	}
	return post, nil
}

// Update меняет пост. Править может только автор.
func (s *Service) Update(ctx context.Context, id, requesterID int64, in domain.PostInput) (domain.Post, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Post{}, err
	}
	if _, err := s.ownedPost(ctx, id, requesterID); err != nil {
		return domain.Post{}, err
	}
	post, err := s.repo.UpdatePost(ctx, id, in)
	if err != nil {
		return domain.Post{}, fmt.Errorf("обновление поста: %w", err)
	}
	if err := s.cache.OnPostWritten(ctx, id); err != nil {
		return domain.Post{}, err
	}
	return post, nil
}

// Delete удаляет пост. Удалять может только автор.
func (s *Service) Delete(ctx context.Context, id, requesterID int64) error {
	if _, err := s.ownedPost(ctx, id, requesterID); err != nil {
		return err
	}
	if err := s.repo.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("удаление поста: %w", err)
	}
	return s.cache.OnPostWritten(ctx, id)
}

// Like ставит лайк и уведомляет автора поста.
func (s *Service) Like(ctx context.Context, postID, userID int64) error {
	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("получение поста: %w", err)
	}
	if err := s.repo.AddLike(ctx, userID, postID); err != nil {
		return err
	}
	if err := s.cache.OnPostWritten(ctx, postID); err != nil {
		return err
	}
	if post.AuthorID != userID {
		s.notify(ctx, post.AuthorID, fmt.Sprintf("Your post %q received a new like.", post.Title))
	}
	return nil
}

// Unlike снимает лайк.
func (s *Service) Unlike(ctx context.Context, postID, userID int64) error {
	if err := s.repo.RemoveLike(ctx, userID, postID); err != nil {
		return err
	}
	return s.cache.OnPostWritten(ctx, postID)
}

// RecordView учитывает просмотр. Счётчик просмотров не входит в снимок, кэш не трогаем.
func (s *Service) RecordView(ctx context.Context, postID, userID int64) error {
	if err := s.repo.AddView(ctx, userID, postID); err != nil {
		return fmt.Errorf("сохранение просмотра: %w", err)
	}
	return nil
}

func (s *Service) ownedPost(ctx context.Context, id, requesterID int64) (domain.Post, error) {
	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return domain.Post{}, fmt.Errorf("получение поста: %w", err)
	}
	if post.AuthorID != requesterID {
		return domain.Post{}, domain.ErrForbidden
	}
	return post, nil
}

func (s *Service) notify(ctx context.Context, userID int64, message string) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, userID, message); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("posts: уведомление не создано")
	}
}
