// Package validate проверяет входные структуры по тегам validate.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"blog-backend/internal/domain"
)

var instance = validator.New(validator.WithRequiredStructEnabled())

// Struct проверяет структуру. Ошибка оборачивает domain.ErrInvalidInput
// и перечисляет поля, не прошедшие проверку.
func Struct(v any) error {
	err := instance.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(msgs, ", "))
}
