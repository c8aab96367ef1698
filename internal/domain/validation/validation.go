// Пакет validation — конфигурируемые правила проверки входных данных.
// Набор правил перечислим: включённые правила задаются списком имён
// (AR_VALIDATION_RULES), проверки наличия обязательных полей
// выполняются всегда.
package validation

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
)

// Rule — имя правила валидации.
type Rule string

const (
	// RuleEmailFormat — адрес клиента должен быть корректным адресом RFC 5322
	RuleEmailFormat Rule = "email_format"
	// RuleAmendNotesRequired — для action=amend notes обязательны
	RuleAmendNotesRequired Rule = "amend_notes_required"
)

// knownRules — все поддерживаемые правила.
var knownRules = map[Rule]bool{
	RuleEmailFormat:        true,
	RuleAmendNotesRequired: true,
}

// Error — нарушение правила валидации.
type Error struct {
	Rule    Rule
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Rules — набор включённых правил.
type Rules struct {
	enabled map[Rule]bool
}

// New создаёт набор правил. Возвращает ошибку для неизвестных имён.
func New(rules ...Rule) (*Rules, error) {
	r := &Rules{enabled: make(map[Rule]bool, len(rules))}
	for _, rule := range rules {
		if !knownRules[rule] {
			return nil, fmt.Errorf("неизвестное правило валидации %q", rule)
		}
		r.enabled[rule] = true
	}
	return r, nil
}

// Parse разбирает список правил через запятую ("email_format,amend_notes_required").
// Пустая строка и "none" — ни одного правила.
func Parse(s string) (*Rules, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return New()
	}
	var rules []Rule
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		rules = append(rules, Rule(part))
	}
	return New(rules...)
}

// Enabled проверяет, включено ли правило.
func (r *Rules) Enabled(rule Rule) bool {
	if r == nil {
		return false
	}
	return r.enabled[rule]
}

// List возвращает включённые правила в стабильном порядке.
func (r *Rules) List() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.enabled))
	for rule := range r.enabled {
		out = append(out, string(rule))
	}
	sort.Strings(out)
	return out
}

// CheckEmail проверяет адрес клиента, если включено email_format.
func (r *Rules) CheckEmail(field, email string) error {
	if !r.Enabled(RuleEmailFormat) {
		return nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &Error{
			Rule:    RuleEmailFormat,
			Field:   field,
			Message: fmt.Sprintf("некорректный адрес электронной почты %q", email),
		}
	}
	return nil
}

// CheckAmendNotes проверяет наличие notes для запроса правок,
// если включено amend_notes_required.
func (r *Rules) CheckAmendNotes(isAmend bool, notes string) error {
	if !r.Enabled(RuleAmendNotesRequired) || !isAmend {
		return nil
	}
	if strings.TrimSpace(notes) == "" {
		return &Error{
			Rule:    RuleAmendNotesRequired,
			Field:   "notes",
			Message: "для запроса правок необходимо описать изменения",
		}
	}
	return nil
}
