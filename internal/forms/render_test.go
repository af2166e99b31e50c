package forms

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sectionKinds(p RenderPlan) []SectionKind {
	out := make([]SectionKind, 0, len(p.Sections))
	for _, s := range p.Sections {
		out = append(out, s.Kind)
	}
	return out
}

func fieldNames(fields []FieldDefinition) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Name)
	}
	return out
}

func TestPlanFixedMacroOrder(t *testing.T) {
	fields := DefaultFields()
	// Reordering built-ins never moves them across sections.
	fields[3].Order = -5
	fields = append(fields,
		FieldDefinition{ID: "cpf", Name: "cpf", Label: "CPF", Type: FieldText, Order: 20},
		FieldDefinition{ID: "city", Name: "city", Label: "Cidade", Type: FieldText, Order: 10},
	)
	cfg := &FormConfiguration{
		AllFields:      fields,
		ServiceOptions: []Option{{Value: "civil", Label: "Cível"}},
	}

	plan := Plan(cfg)
	assert.Equal(t, []SectionKind{
		SectionNamePhone, SectionEmail, SectionService, SectionCustom, SectionMessage, SectionUrgent,
	}, sectionKinds(plan))
	assert.Equal(t, []string{"name", "phone", "email", "service", "city", "cpf", "message", "isUrgent"}, fieldNames(plan.Fields()))
}

func TestPlanSkipsDisabledAndService(t *testing.T) {
	fields := DefaultFields()
	fields[4].Disabled = true
	plan := Plan(&FormConfiguration{AllFields: fields})

	assert.Equal(t, []SectionKind{SectionNamePhone, SectionEmail, SectionMessage}, sectionKinds(plan))
}

func TestFormUpdateAndReset(t *testing.T) {
	cfg := &FormConfiguration{AllFields: append(DefaultFields(),
		FieldDefinition{Name: "terms", Label: "Aceito", Type: FieldCheckbox, Order: 9},
		FieldDefinition{Name: "cpf", Label: "CPF", Type: FieldText, Order: 10},
	)}
	form := NewForm(cfg)

	require.NoError(t, form.UpdateField("terms", Text("on")))
	require.NoError(t, form.UpdateField("cpf", Text("123")))
	require.NoError(t, form.UpdateField("isUrgent", Bool(true)))
	assert.True(t, form.Values()["terms"].Bool())
	assert.Equal(t, ValueBag{"terms": Bool(true), "cpf": Text("123")}, form.CustomValues())

	err := form.UpdateField("service", Text("civil"))
	assert.ErrorIs(t, err, ErrUnknownField, "service is not rendered without options")

	form.Reset()
	values := form.Values()
	assert.True(t, values["terms"].IsBool())
	assert.False(t, values["terms"].Bool())
	assert.Equal(t, "", values["cpf"].String())
	assert.False(t, values["isUrgent"].Bool())
}

func TestFormValidateReportsFirstFailureInDisplayOrder(t *testing.T) {
	form := NewForm(nil)
	require.NoError(t, form.UpdateField("name", Text("Maria")))
	require.NoError(t, form.UpdateField("phone", Text("(11) 98765-4321")))
	require.NoError(t, form.UpdateField("message", Text("Preciso de ajuda")))

	err := form.Validate()
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "email", fe.Field)
	assert.Contains(t, fe.UserMessage(), "E-mail")

	require.NoError(t, form.UpdateField("email", Text("maria@example.com")))
	assert.NoError(t, form.Validate())
}
