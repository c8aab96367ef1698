package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError_Body(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFound(rec, "Запись не найдена")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("ожидался статус 404, получен %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: %s", ct)
	}

	var body struct {
		Success *bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("ошибка декодирования: %v", err)
	}
	if body.Success == nil || *body.Success {
		t.Error("success должен присутствовать и быть false")
	}
	if body.Error.Code != CodeNotFound || body.Error.Message != "Запись не найдена" {
		t.Errorf("неожиданное тело: %+v", body.Error)
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[string]int{
		CodeMissingInput:    400,
		CodeValidationError: 400,
		CodeInvalidAction:   400,
		CodeNotFound:        404,
		CodeConflict:        409,
		CodeFileTooLarge:    413,
		CodeStoreWriteError: 500,
		CodeInternalError:   500,
		"SOMETHING_ELSE":    500,
	}
	for code, want := range tests {
		if got := StatusFor(code); got != want {
			t.Errorf("StatusFor(%s) = %d, ожидалось %d", code, got, want)
		}
	}
}

func TestWriteCode(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteCode(rec, CodeConflict, "Решение уже принято")
	if rec.Code != http.StatusConflict {
		t.Errorf("ожидался 409, получен %d", rec.Code)
	}
}
