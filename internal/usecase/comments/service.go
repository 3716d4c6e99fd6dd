// Package comments управляет комментариями и деревом ответов.
package comments

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"blog-backend/internal/domain"
	"blog-backend/internal/infra/validate"
)

// Service — операции с комментариями.
type Service struct {
	comments domain.CommentRepo
	posts    domain.PostRepo
	notifier domain.Notifier
	log      zerolog.Logger
}

// NewService создаёт сервис комментариев.
func NewService(comments domain.CommentRepo, posts domain.PostRepo, notifier domain.Notifier, logger zerolog.Logger) *Service {
	return &Service{comments: comments, posts: posts, notifier: notifier, log: logger}
}

// Create добавляет комментарий или ответ и уведомляет автора поста и автора родителя.
func (s *Service) Create(ctx context.Context, authorID int64, in domain.CommentInput) (domain.Comment, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Comment{}, err
	}
	post, err := s.posts.GetPost(ctx, in.PostID)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("получение поста: %w", err)
	}

	var parent *domain.Comment
	if in.ParentID != nil {
		p, err := s.comments.GetComment(ctx, *in.ParentID)
		if err != nil {
			return domain.Comment{}, fmt.Errorf("получение родителя: %w", err)
		}
		if p.PostID != in.PostID {
			return domain.Comment{}, fmt.Errorf("%w: parent belongs to another post", domain.ErrInvalidInput)
		}
		parent = &p
	}

	created, err := s.comments.CreateComment(ctx, domain.Comment{
		PostID:   in.PostID,
		AuthorID: authorID,
		ParentID: in.ParentID,
		Content:  in.Content,
	})
	if err != nil {
		return domain.Comment{}, fmt.Errorf("создание комментария: %w", err)
	}

	if post.AuthorID != authorID {
		s.notify(ctx, post.AuthorID, fmt.Sprintf("New comment on your post %q.", post.Title))
	}
	if parent != nil && parent.AuthorID != authorID && parent.AuthorID != post.AuthorID {
		s.notify(ctx, parent.AuthorID, fmt.Sprintf("New reply to your comment on %q.", post.Title))
	}
	return created, nil
}

// Get возвращает комментарий вместе с веткой ответов.
func (s *Service) Get(ctx context.Context, id int64) (*domain.CommentNode, error) {
	c, err := s.comments.GetComment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("получение комментария: %w", err)
	}
	all, err := s.comments.ListPostComments(ctx, c.PostID)
	if err != nil {
		return nil, fmt.Errorf("список комментариев: %w", err)
	}
	node, ok := subtree(BuildTree(all), id)
	if !ok {
		return &domain.CommentNode{Comment: c, Replies: []*domain.CommentNode{}}, nil
	}
	return node, nil
}

// ListForPost возвращает дерево комментариев поста.
func (s *Service) ListForPost(ctx context.Context, postID int64) ([]*domain.CommentNode, error) {
	if _, err := s.posts.GetPost(ctx, postID); err != nil {
		return nil, fmt.Errorf("получение поста: %w", err)
	}
	all, err := s.comments.ListPostComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("список комментариев: %w", err)
	}
	return BuildTree(all), nil
}

// Update меняет текст. Только автор.
func (s *Service) Update(ctx context.Context, id, requesterID int64, in domain.CommentUpdate) (domain.Comment, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Comment{}, err
	}
	if err := s.checkOwner(ctx, id, requesterID); err != nil {
		return domain.Comment{}, err
	}
	updated, err := s.comments.UpdateComment(ctx, id, in.Content)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("обновление комментария: %w", err)
	}
	return updated, nil
}

// Delete удаляет комментарий вместе с ответами. Только автор.
func (s *Service) Delete(ctx context.Context, id, requesterID int64) error {
	if err := s.checkOwner(ctx, id, requesterID); err != nil {
		return err
	}
	if err := s.comments.DeleteComment(ctx, id); err != nil {
		return fmt.Errorf("удаление комментария: %w", err)
	}
	return nil
}

func (s *Service) checkOwner(ctx context.Context, id, requesterID int64) error {
	c, err := s.comments.GetComment(ctx, id)
	if err != nil {
		return fmt.Errorf("получение комментария: %w", err)
	}
	if c.AuthorID != requesterID {
		return domain.ErrForbidden
	}
	return nil
}

func (s *Service) notify(ctx context.Context, userID int64, message string) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, userID, message); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("comments: уведомление не создано")
	}
}
