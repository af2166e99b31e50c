package forms

import (
	"fmt"
	"regexp"
	"slices"
)

// Reason classifies a FieldError.
type Reason string

const (
	ReasonRequired      Reason = "required"
	ReasonInvalidEmail  Reason = "invalid_email"
	ReasonInvalidPhone  Reason = "invalid_phone"
	ReasonInvalidOption Reason = "invalid_option"
)

// MinPhoneDigits is the minimum digit count of a phone value once formatting is stripped.
const MinPhoneDigits = 8

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldError reports the first rule a field value broke.
type FieldError struct {
	Field  string
	Label  string
	Reason Reason
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("forms: field %q: %s", e.Label, e.Reason)
}

// UserMessage is the text shown next to the form; it always names the field label.
func (e *FieldError) UserMessage() string {
	switch e.Reason {
	case ReasonInvalidEmail:
		return fmt.Sprintf("O campo %s deve conter um e-mail válido.", e.Label)
	case ReasonInvalidPhone:
		return fmt.Sprintf("O campo %s deve conter um telefone válido.", e.Label)
	case ReasonInvalidOption:
		return fmt.Sprintf("Selecione uma opção válida para %s.", e.Label)
	}
	return fmt.Sprintf("Por favor, preencha o campo %s.", e.Label)
}

// IsEmail reports whether s matches the accepted e-mail grammar.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// PhoneDigits counts the digits of s, ignoring every other character.
func PhoneDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// Validate applies the per-type rule of field to value. It has no side effects.
func Validate(field FieldDefinition, value Value) error {
	label := field.Label
	if label == "" {
		label = field.Name
	}
	fail := func(r Reason) error {
		return &FieldError{Field: field.Name, Label: label, Reason: r}
	}

	if value.IsEmpty() {
		if field.Required {
			return fail(ReasonRequired)
		}
		return nil
	}

	switch field.Type {
	case FieldEmail:
		if !IsEmail(value.String()) {
			return fail(ReasonInvalidEmail)
		}
	case FieldTel:
		if PhoneDigits(value.String()) < MinPhoneDigits {
			return fail(ReasonInvalidPhone)
		}
	case FieldSelect:
		v := value.String()
		if !slices.ContainsFunc(field.Options, func(o Option) bool { return o.Value == v }) {
			return fail(ReasonInvalidOption)
		}
	}
	return nil
}
