package comments

import (
	"github.com/samber/lo"

	"blog-backend/internal/domain"
)

// BuildTree собирает плоский список в дерево ответов без рекурсии.
// Порядок корней и ответов повторяет порядок входа. Комментарий с
// отсутствующим родителем становится корнем.
func BuildTree(flat []domain.Comment) []*domain.CommentNode {
	nodes := lo.Map(flat, func(c domain.Comment, _ int) *domain.CommentNode {
		return &domain.CommentNode{Comment: c, Replies: []*domain.CommentNode{}}
	})
	byID := lo.KeyBy(nodes, func(n *domain.CommentNode) int64 { return n.ID })

	roots := make([]*domain.CommentNode, 0)
	for _, n := range nodes {
		if n.ParentID != nil {
			if parent, ok := byID[*n.ParentID]; ok && parent != n {
				parent.Replies = append(parent.Replies, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}

// subtree находит узел id в лесу обходом в ширину.
func subtree(roots []*domain.CommentNode, id int64) (*domain.CommentNode, bool) {
	queue := append([]*domain.CommentNode(nil), roots...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.ID == id {
			return n, true
		}
		queue = append(queue, n.Replies...)
	}
	return nil, false
}
