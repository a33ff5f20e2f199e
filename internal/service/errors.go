// errors.go: ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/woredasystem/woreda1inspection/internal/domain/model"
)

var (
	// ErrNotFound: заявка, документ или объект не найдены.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict: заявка уже решена другим администратором.
	ErrConflict = errors.New("заявка уже решена")
	// ErrInvalidToken: токен доступа недействителен. Причина наружу не сообщается.
	ErrInvalidToken = errors.New("недействительный токен доступа")
	// ErrStoreUnavailable: хранилище заявок недоступно, вызывающий может повторить.
	ErrStoreUnavailable = errors.New("хранилище недоступно")
	// ErrObjectStoreUnavailable: объектное хранилище документов недоступно.
	ErrObjectStoreUnavailable = errors.New("объектное хранилище недоступно")
	// ErrValidation: ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
)

// AlreadyDecidedError: ответ проигравшему в гонке решений.
// Несёт фактический статус заявки; errors.Is(err, ErrConflict) == true.
type AlreadyDecidedError struct {
	RequestID string
	Current   model.Status
}

func (e *AlreadyDecidedError) Error() string {
	return fmt.Sprintf("заявка %s уже решена: %s", e.RequestID, e.Current)
}

func (e *AlreadyDecidedError) Unwrap() error {
	return ErrConflict
}

// storeUnavailable оборачивает ошибку хранилища в ErrStoreUnavailable.
func storeUnavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
