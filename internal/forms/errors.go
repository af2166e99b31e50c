package forms

import "errors"

var (
	// ErrNotConfigured is returned by a Store when nothing has been persisted yet.
	ErrNotConfigured = errors.New("forms: configuration not stored")

	// ErrMalformedConfig is returned when a stored blob matches neither known shape.
	ErrMalformedConfig = errors.New("forms: malformed configuration")

	// ErrFormNotFound is returned when a form id does not exist in the collection.
	ErrFormNotFound = errors.New("forms: form not found")

	// ErrFormExists is returned when creating a form whose id is already taken.
	ErrFormExists = errors.New("forms: form already exists")

	// ErrDuplicateFieldName is returned when two fields of one form share a name.
	ErrDuplicateFieldName = errors.New("forms: duplicate field name")

	// ErrDefaultFieldType is returned when a built-in field is given another type.
	ErrDefaultFieldType = errors.New("forms: default field type cannot change")

	// ErrInvalidField is returned for a field definition that breaks its type contract.
	ErrInvalidField = errors.New("forms: invalid field definition")

	// ErrUnknownField is returned when updating a value for a field that is not rendered.
	ErrUnknownField = errors.New("forms: unknown field")

	// ErrInvalidValue is returned when a raw value cannot be coerced to the field type.
	ErrInvalidValue = errors.New("forms: invalid value for field type")
)
