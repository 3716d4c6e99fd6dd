package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"

	"blog-backend/internal/domain"
	"blog-backend/internal/infra/metrics"
)

const postColumns = `p.id, p.title, p.content, p.author_id,
    (SELECT count(*) FROM likes l WHERE l.post_id = p.id) AS like_count,
    p.created_at, p.updated_at`

func scanPost(row pgx.Row) (domain.Post, error) {
	var post domain.Post
	err := row.Scan(&post.ID, &post.Title, &post.Content, &post.AuthorID, &post.LikeCount, &post.CreatedAt, &post.UpdatedAt)
	return post, err
}

// CreatePost реализует domain.PostRepo.
func (p *Postgres) CreatePost(ctx context.Context, authorID int64, in domain.PostInput) (domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	post := domain.Post{Title: in.Title, Content: in.Content, AuthorID: authorID}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO posts (title, content, author_id)
VALUES ($1, $2, $3)
RETURNING id, created_at, updated_at
`, in.Title, in.Content, authorID).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "posts_insert", "posts", start, err)
	if err != nil {
		return domain.Post{}, storageErr("создание поста", err)
	}
	_ = p.saveBusinessMetric(ctx, domain.BusinessMetric{
		Event:  domain.BusinessMetricEventPostPublished,
		UserID: &authorID,
		PostID: &post.ID,
	})
	return post, nil
}

// GetPost реализует domain.PostRepo.
func (p *Postgres) GetPost(ctx context.Context, id int64) (domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	post, err := scanPost(p.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts p WHERE p.id = $1`, id))
	metrics.ObserveNetworkRequest("postgres", "posts_get", "posts", start, err)
	if err != nil {
		return domain.Post{}, storageErr("получение поста", err)
	}
	return post, nil
}

// ListPosts реализует domain.PostRepo. Строки читаются целиком, от новых к старым.
func (p *Postgres) ListPosts(ctx context.Context) ([]domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+postColumns+` FROM posts p ORDER BY p.created_at DESC, p.id DESC`)
	metrics.ObserveNetworkRequest("postgres", "posts_list", "posts", start, err)
	if err != nil {
		return nil, storageErr("список постов", err)
	}
	defer rows.Close()

	posts := make([]domain.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, storageErr("чтение поста", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("список постов", err)
	}
	return posts, nil
}

// UpdatePost реализует domain.PostRepo.
func (p *Postgres) UpdatePost(ctx context.Context, id int64, in domain.PostInput) (domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	post, err := scanPost(p.pool.QueryRow(ctx, `
UPDATE posts p SET title = $2, content = $3, updated_at = now()
WHERE p.id = $1
RETURNING `+postColumns, id, in.Title, in.Content))
	metrics.ObserveNetworkRequest("postgres", "posts_update", "posts", start, err)
	if err != nil {
		return domain.Post{}, storageErr("обновление поста", err)
	}
	return post, nil
}

// DeletePost реализует domain.PostRepo.
func (p *Postgres) DeletePost(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	metrics.ObserveNetworkRequest("postgres", "posts_delete", "posts", start, err)
	if err != nil {
		return storageErr("удаление поста", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AddLike реализует domain.PostRepo.
func (p *Postgres) AddLike(ctx context.Context, userID, postID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `INSERT INTO likes (user_id, post_id) VALUES ($1, $2)`, userID, postID)
	metrics.ObserveNetworkRequest("postgres", "likes_insert", "likes", start, err)
	if err != nil {
		return conflictErr("сохранение лайка", err, domain.ErrAlreadyLiked)
	}
	_ = p.saveBusinessMetric(ctx, domain.BusinessMetric{
		Event:  domain.BusinessMetricEventPostLiked,
		UserID: &userID,
		PostID: &postID,
	})
	return nil
}

// RemoveLike реализует domain.PostRepo.
func (p *Postgres) RemoveLike(ctx context.Context, userID, postID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM likes WHERE user_id = $1 AND post_id = $2`, userID, postID)
	metrics.ObserveNetworkRequest("postgres", "likes_delete", "likes", start, err)
	if err != nil {
		return storageErr("удаление лайка", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotLiked
	}
	return nil
}

// AddView реализует domain.PostRepo.
func (p *Postgres) AddView(ctx context.Context, userID, postID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `INSERT INTO post_views (user_id, post_id) VALUES ($1, $2)`, userID, postID)
	metrics.ObserveNetworkRequest("postgres", "views_insert", "post_views", start, err)
	return storageErr("сохранение просмотра", err)
}

// CreateComment реализует domain.CommentRepo.
func (p *Postgres) CreateComment(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO comments (post_id, author_id, parent_id, content)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, updated_at
`, c.PostID, c.AuthorID, c.ParentID, c.Content).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "comments_insert", "comments", start, err)
	if err != nil {
		return domain.Comment{}, storageErr("создание комментария", err)
	}
	_ = p.saveBusinessMetric(ctx, domain.BusinessMetric{
		Event:    domain.BusinessMetricEventCommentCreated,
		UserID:   &c.AuthorID,
		PostID:   &c.PostID,
		Metadata: map[string]any{"reply": c.ParentID != nil},
	})
	return c, nil
}

const commentColumns = `id, post_id, author_id, parent_id, content, created_at, updated_at`

func scanComment(row pgx.Row) (domain.Comment, error) {
	var (
		c      domain.Comment
		parent sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &parent, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.Comment{}, err
	}
	if parent.Valid {
		id := parent.Int64
		c.ParentID = &id
	}
	return c, nil
}

// GetComment реализует domain.CommentRepo.
func (p *Postgres) GetComment(ctx context.Context, id int64) (domain.Comment, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	c, err := scanComment(p.pool.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	metrics.ObserveNetworkRequest("postgres", "comments_get", "comments", start, err)
	if err != nil {
		return domain.Comment{}, storageErr("получение комментария", err)
	}
	return c, nil
}

// ListPostComments реализует domain.CommentRepo.
func (p *Postgres) ListPostComments(ctx context.Context, postID int64) ([]domain.Comment, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+commentColumns+` FROM comments WHERE post_id = $1 ORDER BY created_at, id`, postID)
	metrics.ObserveNetworkRequest("postgres", "comments_list", "comments", start, err)
	if err != nil {
		return nil, storageErr("список комментариев", err)
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, storageErr("чтение комментария", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("список комментариев", err)
	}
	return comments, nil
}

// UpdateComment реализует domain.CommentRepo.
func (p *Postgres) UpdateComment(ctx context.Context, id int64, content string) (domain.Comment, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	c, err := scanComment(p.pool.QueryRow(ctx, `
UPDATE comments SET content = $2, updated_at = now()
WHERE id = $1
RETURNING `+commentColumns, id, content))
	metrics.ObserveNetworkRequest("postgres", "comments_update", "comments", start, err)
	if err != nil {
		return domain.Comment{}, storageErr("обновление комментария", err)
	}
	return c, nil
}

// DeleteComment реализует domain.CommentRepo. Ответы удаляются каскадно.
func (p *Postgres) DeleteComment(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	metrics.ObserveNetworkRequest("postgres", "comments_delete", "comments", start, err)
	if err != nil {
		return storageErr("удаление комментария", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
