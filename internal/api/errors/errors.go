// Пакет errors — конструкторы стандартных ошибок API.
// Единый формат: {"success": false, "error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // конфликт имени со stdlib, импортируется как apierrors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок API.
const (
	CodeMissingInput    = "MISSING_INPUT"
	CodeValidationError = "VALIDATION_ERROR"
	CodeInvalidAction   = "INVALID_ACTION"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeStoreWriteError = "STORE_WRITE_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

// statusByCode — HTTP-статус для каждого кода ошибки.
var statusByCode = map[string]int{
	CodeMissingInput:    http.StatusBadRequest,
	CodeValidationError: http.StatusBadRequest,
	CodeInvalidAction:   http.StatusBadRequest,
	CodeNotFound:        http.StatusNotFound,
	CodeConflict:        http.StatusConflict,
	CodeFileTooLarge:    http.StatusRequestEntityTooLarge,
	CodeStoreWriteError: http.StatusInternalServerError,
	CodeInternalError:   http.StatusInternalServerError,
}

// StatusFor возвращает HTTP-статус для кода ошибки.
// Неизвестные коды соответствуют 500.
func StatusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Success: false,
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// WriteCode записывает ошибку со статусом, соответствующим коду.
func WriteCode(w http.ResponseWriter, code, message string) {
	WriteError(w, StatusFor(code), code, message)
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// FileTooLarge — 413 файл превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
