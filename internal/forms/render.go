package forms

import (
	"fmt"
	"slices"
)

// SectionKind names one block of the fixed render sequence.
type SectionKind string

const (
	SectionNamePhone SectionKind = "name_phone"
	SectionEmail     SectionKind = "email"
	SectionService   SectionKind = "service"
	SectionCustom    SectionKind = "custom"
	SectionMessage   SectionKind = "message"
	SectionUrgent    SectionKind = "urgent"
)

// Section is a block of fields drawn with one layout.
type Section struct {
	Kind   SectionKind       `json:"kind"`
	Fields []FieldDefinition `json:"fields"`
}

// RenderPlan lists the sections of a form in display order.
type RenderPlan struct {
	Sections []Section `json:"sections"`
}

// Fields flattens the plan into display order.
func (p RenderPlan) Fields() []FieldDefinition {
	var out []FieldDefinition
	for _, s := range p.Sections {
		out = append(out, s.Fields...)
	}
	return out
}

// ActiveFields returns the enabled fields sorted by Order. Ties keep storage order.
func ActiveFields(cfg *FormConfiguration) []FieldDefinition {
	out := make([]FieldDefinition, 0, len(cfg.AllFields))
	for _, f := range cfg.AllFields {
		if !f.Disabled {
			out = append(out, f)
		}
	}
	slices.SortStableFunc(out, func(a, b FieldDefinition) int { return a.Order - b.Order })
	return out
}

// serviceField synthesizes the subject-matter selector from the form's service options.
func serviceField(cfg *FormConfiguration) FieldDefinition {
	return FieldDefinition{
		ID:        FieldNameService,
		Name:      FieldNameService,
		Label:     "Área de interesse",
		Type:      FieldSelect,
		Options:   slices.Clone(cfg.ServiceOptions),
		IsDefault: true,
	}
}

// Plan builds the render description. Default fields go to their purpose-built
// sections; custom fields are grouped between service and message. The macro order
// is fixed: name/phone, email, service, custom, message, urgent.
func Plan(cfg *FormConfiguration) RenderPlan {
	var namePhone, email, custom, message, urgent []FieldDefinition
	for _, f := range ActiveFields(cfg) {
		if !f.IsDefault {
			custom = append(custom, f)
			continue
		}
		switch f.Name {
		case FieldNameName, FieldNamePhone:
			namePhone = append(namePhone, f)
		case FieldNameEmail:
			email = append(email, f)
		case FieldNameMessage:
			message = append(message, f)
		case FieldNameIsUrgent:
			urgent = append(urgent, f)
		}
	}
	var service []FieldDefinition
	if len(cfg.ServiceOptions) > 0 {
		service = []FieldDefinition{serviceField(cfg)}
	}

	var plan RenderPlan
	add := func(kind SectionKind, fields []FieldDefinition) {
		if len(fields) > 0 {
			plan.Sections = append(plan.Sections, Section{Kind: kind, Fields: fields})
		}
	}
	add(SectionNamePhone, namePhone)
	add(SectionEmail, email)
	add(SectionService, service)
	add(SectionCustom, custom)
	add(SectionMessage, message)
	add(SectionUrgent, urgent)
	return plan
}

// Form binds a resolved configuration to its value bag.
type Form struct {
	config *FormConfiguration
	plan   RenderPlan
	fields map[string]FieldDefinition
	values ValueBag
}

// NewForm prepares an empty value bag for cfg.
func NewForm(cfg *FormConfiguration) *Form {
	if cfg == nil {
		cfg = FallbackConfiguration()
	}
	plan := Plan(cfg)
	fields := make(map[string]FieldDefinition)
	for _, f := range plan.Fields() {
		fields[f.Name] = f
	}
	return &Form{
		config: cfg,
		plan:   plan,
		fields: fields,
		values: NewValueBag(cfg.AllFields),
	}
}

// Config returns the bound configuration.
func (f *Form) Config() *FormConfiguration { return f.config }

// Plan returns the render plan.
func (f *Form) Plan() RenderPlan { return f.plan }

// UpdateField stores value for a rendered field, coercing it to the field type.
func (f *Form) UpdateField(name string, value Value) error {
	def, ok := f.fields[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	v, err := Coerce(def, value.Raw())
	if err != nil {
		return err
	}
	f.values[name] = v
	return nil
}

// Values returns a copy of the current bag.
func (f *Form) Values() ValueBag { return f.values.Clone() }

// CustomValues returns the values of admin-defined fields only.
func (f *Form) CustomValues() ValueBag {
	out := ValueBag{}
	for name, def := range f.fields {
		if !def.IsDefault {
			out[name] = f.values[name]
		}
	}
	return out
}

// Reset restores the empty defaults.
func (f *Form) Reset() { f.values = NewValueBag(f.config.AllFields) }

// Validate checks every rendered field in display order and returns the first failure.
func (f *Form) Validate() error {
	for _, def := range f.plan.Fields() {
		if err := Validate(def, f.values[def.Name]); err != nil {
			return err
		}
	}
	return nil
}
