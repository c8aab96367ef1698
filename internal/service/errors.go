// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	apierrors "github.com/bigkaa/artwork-review/internal/api/errors"
)

// Error — ошибка операции с машиночитаемым кодом.
// Message предназначено для клиента и не содержит внутренних деталей,
// Err — исходная причина для логов.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError извлекает *Error из цепочки. Любая другая ошибка
// превращается в INTERNAL_ERROR.
func AsError(err error) *Error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return &Error{
		Code:    apierrors.CodeInternalError,
		Message: "Внутренняя ошибка сервера",
		Err:     err,
	}
}

func newError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

func errNotFound(id string) *Error {
	return newError(apierrors.CodeNotFound, fmt.Sprintf("Макет %s не найден", id), nil)
}

func errStoreWrite(cause error) *Error {
	return newError(apierrors.CodeStoreWriteError, "Не удалось сохранить данные, повторите попытку позже", cause)
}
