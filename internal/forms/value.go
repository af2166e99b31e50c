package forms

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type valueKind uint8

const (
	kindNone valueKind = iota
	kindText
	kindBool
)

// Value is the tagged value stored for one field: either text or a boolean.
type Value struct {
	kind valueKind
	text string
	flag bool
}

// Text wraps a string value.
func Text(s string) Value { return Value{kind: kindText, text: s} }

// Bool wraps a boolean value.
func Bool(b bool) Value { return Value{kind: kindBool, flag: b} }

// IsBool reports whether v carries a boolean.
func (v Value) IsBool() bool { return v.kind == kindBool }

// Bool returns the boolean payload; text values are never true.
func (v Value) Bool() bool { return v.kind == kindBool && v.flag }

// String returns the text payload, or "true"/"false" for booleans.
func (v Value) String() string {
	if v.kind == kindBool {
		return strconv.FormatBool(v.flag)
	}
	return v.text
}

// IsEmpty treats the zero value, "" and false as empty.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case kindText:
		return strings.TrimSpace(v.text) == ""
	case kindBool:
		return !v.flag
	}
	return true
}

// Raw returns the untyped payload for serialization to external systems.
func (v Value) Raw() any {
	if v.kind == kindBool {
		return v.flag
	}
	return v.text
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Raw())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Text("")
	case bool:
		*v = Bool(t)
	case string:
		*v = Text(t)
	case float64:
		*v = Text(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		return fmt.Errorf("%w: %T", ErrInvalidValue, raw)
	}
	return nil
}

// ValueBag maps field names to their current values.
type ValueBag map[string]Value

// Clone returns an independent copy.
func (b ValueBag) Clone() ValueBag {
	out := make(ValueBag, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Raw flattens the bag into plain JSON-friendly values.
func (b ValueBag) Raw() map[string]any {
	out := make(map[string]any, len(b))
	for k, v := range b {
		out[k] = v.Raw()
	}
	return out
}

var fixedTextKeys = []string{FieldNameName, FieldNameEmail, FieldNamePhone, FieldNameMessage, FieldNameService}

// NewValueBag returns the empty defaults for the fixed keys and every custom field:
// checkboxes start false, everything else starts "".
func NewValueBag(fields []FieldDefinition) ValueBag {
	bag := make(ValueBag, len(fixedTextKeys)+1+len(fields))
	for _, k := range fixedTextKeys {
		bag[k] = Text("")
	}
	bag[FieldNameIsUrgent] = Bool(false)
	for _, f := range fields {
		if f.IsDefault {
			continue
		}
		if f.Type == FieldCheckbox {
			bag[f.Name] = Bool(false)
		} else {
			bag[f.Name] = Text("")
		}
	}
	return bag
}

// Coerce converts a loosely typed input into the Value shape the field expects.
func Coerce(field FieldDefinition, raw any) (Value, error) {
	if field.Type == FieldCheckbox {
		switch t := raw.(type) {
		case nil:
			return Bool(false), nil
		case bool:
			return Bool(t), nil
		case string:
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "true", "on", "1", "yes", "sim":
				return Bool(true), nil
			case "", "false", "off", "0", "no", "nao", "não":
				return Bool(false), nil
			}
		}
		return Value{}, fmt.Errorf("%w: %q expects a boolean", ErrInvalidValue, field.Name)
	}
	switch t := raw.(type) {
	case nil:
		return Text(""), nil
	case string:
		return Text(t), nil
	case float64:
		return Text(strconv.FormatFloat(t, 'f', -1, 64)), nil
	case int:
		return Text(strconv.Itoa(t)), nil
	case int64:
		return Text(strconv.FormatInt(t, 10)), nil
	case json.Number:
		return Text(t.String()), nil
	}
	return Value{}, fmt.Errorf("%w: %q expects text", ErrInvalidValue, field.Name)
}

// Split separates the fixed keys from admin-defined custom fields.
func (b ValueBag) Split() (fixed, custom ValueBag) {
	fixed, custom = ValueBag{}, ValueBag{}
	for k, v := range b {
		if k == FieldNameIsUrgent || slices.Contains(fixedTextKeys, k) {
			fixed[k] = v
		} else {
			custom[k] = v
		}
	}
	return fixed, custom
}
