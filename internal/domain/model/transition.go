// transition.go — матрица допустимых переходов статуса согласования.
//
// Основной жизненный цикл: pending → approved | amend.
// Повторное решение (approved ↔ amend) разрешено только при
// включённой политике resubmission.
package model

import (
	"fmt"
	"time"
)

// Коды ошибок перехода.
const (
	CodeInvalidAction = "INVALID_ACTION"
	CodeConflict      = "CONFLICT"
)

// validTransitions — переходы, разрешённые всегда.
var validTransitions = map[Status]map[Status]bool{
	StatusPending:  {StatusApproved: true, StatusAmend: true},
	StatusApproved: {},
	StatusAmend:    {},
}

// resubmitTransitions — переходы, разрешённые только при resubmission.
var resubmitTransitions = map[Status]map[Status]bool{
	StatusApproved: {StatusApproved: true, StatusAmend: true},
	StatusAmend:    {StatusApproved: true, StatusAmend: true},
}

// TransitionPolicy определяет, допустимо ли повторное решение
// по уже согласованному макету.
type TransitionPolicy struct {
	AllowResubmit bool
}

// TransitionError — ошибка перехода статуса.
type TransitionError struct {
	Code    string // INVALID_ACTION, CONFLICT
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsValidStatus проверяет, является ли значение допустимым статусом.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusAmend:
		return true
	default:
		return false
	}
}

// ParseAction преобразует действие клиента в целевой статус.
// Допустимые действия: approved, amend.
func ParseAction(action string) (Status, error) {
	switch Status(action) {
	case StatusApproved, StatusAmend:
		return Status(action), nil
	default:
		return "", &TransitionError{
			Code:    CodeInvalidAction,
			Message: fmt.Sprintf("недопустимое действие %q, допустимые: approved, amend", action),
		}
	}
}

// CanTransition проверяет допустимость перехода from → to.
func (p TransitionPolicy) CanTransition(from, to Status) bool {
	if validTransitions[from][to] {
		return true
	}
	return p.AllowResubmit && resubmitTransitions[from][to]
}

// Apply переводит запись в целевой статус с указанными notes.
// Запись не изменяется при ошибке.
func (p TransitionPolicy) Apply(rec *ArtworkRecord, target Status, notes string, now time.Time) error {
	if target == StatusPending || !IsValidStatus(target) {
		return &TransitionError{
			Code:    CodeInvalidAction,
			Message: fmt.Sprintf("недопустимый целевой статус %q", target),
		}
	}
	if !p.CanTransition(rec.Status, target) {
		return &TransitionError{
			Code:    CodeConflict,
			Message: fmt.Sprintf("решение по макету уже принято (%s), повторная отправка запрещена", rec.Status),
		}
	}

	rec.Status = target
	rec.Notes = notes
	rec.UpdatedAt = now
	decided := now
	rec.DecidedAt = &decided
	return nil
}
