package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/samber/lo"

	"blog-backend/internal/domain"
)

const pageSize = 10

// Page — страница списка в формате {count, next, previous, results}.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// paginate режет уже материализованный список. Номер страницы вне диапазона даёт domain.ErrNotFound.
func paginate[T any](r *http.Request, items []T) (Page[T], error) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Page[T]{}, fmt.Errorf("%w: invalid page", domain.ErrNotFound)
		}
		page = n
	}
	// проверка до умножения: огромный номер переполнил бы смещение
	if page > 1 && page-1 >= (len(items)+pageSize-1)/pageSize {
		return Page[T]{}, fmt.Errorf("%w: invalid page", domain.ErrNotFound)
	}
	offset := (page - 1) * pageSize

	out := Page[T]{
		Count:   len(items),
		Results: lo.Subset(items, offset, pageSize),
	}
	if out.Results == nil {
		out.Results = []T{}
	}
	if offset+pageSize < len(items) {
		out.Next = lo.ToPtr(pageURL(r, page+1))
	}
	if page > 1 {
		out.Previous = lo.ToPtr(pageURL(r, page-1))
	}
	return out, nil
}

func pageURL(r *http.Request, page int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(page))
	return fmt.Sprintf("%s://%s%s?%s", scheme, r.Host, r.URL.Path, q.Encode())
}
