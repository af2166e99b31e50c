// Package forms holds the contact-form configuration model: the field taxonomy,
// the persisted form collection, resolution of the form that applies to a page,
// and the render/value contract consumed by the submission pipeline.
package forms

import (
	"fmt"
	"strings"
)

// FieldType enumerates the input kinds a form field can take.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldTel      FieldType = "tel"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldEmail, FieldTel, FieldTextarea, FieldSelect, FieldCheckbox:
		return true
	}
	return false
}

// RequiresOptions is true only for select fields.
func (t FieldType) RequiresOptions() bool {
	return t == FieldSelect
}

// Option is one selectable choice.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldDefinition describes one input of a form. JSON names are camelCase because
// the blob is shared with the site front-end.
type FieldDefinition struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Placeholder string    `json:"placeholder,omitempty"`
	Options     []Option  `json:"options,omitempty"`
	Order       int       `json:"order"`
	IsDefault   bool      `json:"isDefault"`
	Disabled    bool      `json:"disabled"`
}

// Built-in field names. Every form may include them; they can be disabled but not removed.
const (
	FieldNameName     = "name"
	FieldNameEmail    = "email"
	FieldNamePhone    = "phone"
	FieldNameMessage  = "message"
	FieldNameIsUrgent = "isUrgent"
	FieldNameService  = "service"
)

// DefaultFields returns fresh copies of the five built-in fields.
func DefaultFields() []FieldDefinition {
	return []FieldDefinition{
		{ID: FieldNameName, Name: FieldNameName, Label: "Nome", Type: FieldText, Required: true, Placeholder: "Seu nome completo", Order: 0, IsDefault: true},
		{ID: FieldNamePhone, Name: FieldNamePhone, Label: "Telefone", Type: FieldTel, Required: true, Placeholder: "(00) 00000-0000", Order: 1, IsDefault: true},
		{ID: FieldNameEmail, Name: FieldNameEmail, Label: "E-mail", Type: FieldEmail, Required: true, Placeholder: "seu@email.com", Order: 2, IsDefault: true},
		{ID: FieldNameMessage, Name: FieldNameMessage, Label: "Mensagem", Type: FieldTextarea, Required: true, Placeholder: "Descreva brevemente seu caso", Order: 3, IsDefault: true},
		{ID: FieldNameIsUrgent, Name: FieldNameIsUrgent, Label: "Urgente", Type: FieldCheckbox, Order: 4, IsDefault: true},
	}
}

// defaultFieldType returns the fixed type of a built-in field.
func defaultFieldType(name string) (FieldType, bool) {
	for _, f := range DefaultFields() {
		if f.Name == name {
			return f.Type, true
		}
	}
	return "", false
}

// IsDefaultName reports whether name belongs to a built-in field.
func IsDefaultName(name string) bool {
	_, ok := defaultFieldType(name)
	return ok
}

// Check validates a single definition against its type contract.
func (f FieldDefinition) Check() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidField)
	}
	if !f.Type.Valid() {
		return fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidField, f.Name, f.Type)
	}
	if f.Type.RequiresOptions() && len(f.Options) == 0 {
		return fmt.Errorf("%w: select field %q needs options", ErrInvalidField, f.Name)
	}
	if f.IsDefault {
		if want, ok := defaultFieldType(f.Name); ok && want != f.Type {
			return fmt.Errorf("%w: %q must stay %q", ErrDefaultFieldType, f.Name, want)
		}
	}
	return nil
}

// CheckFields validates every definition and the per-form name uniqueness invariant.
func CheckFields(fields []FieldDefinition) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if err := f.Check(); err != nil {
			return err
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateFieldName, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// MergeDefaultFields appends any built-in field missing from fields. Existing
// built-ins keep their admin settings (label, order, disabled) but are marked default.
func MergeDefaultFields(fields []FieldDefinition) []FieldDefinition {
	out := make([]FieldDefinition, 0, len(fields)+5)
	present := make(map[string]bool, len(fields))
	for _, f := range fields {
		if IsDefaultName(f.Name) {
			f.IsDefault = true
		}
		present[f.Name] = true
		out = append(out, f)
	}
	for _, def := range DefaultFields() {
		if !present[def.Name] {
			out = append(out, def)
		}
	}
	return out
}
