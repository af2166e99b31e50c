package forms

import (
	"encoding/json"
	"fmt"
	"slices"
)

// LegacyFormID is the id given to a configuration migrated from the single-form shape.
const LegacyFormID = "default"

// FormTexts holds the fixed user-facing strings of a form.
type FormTexts struct {
	HeaderTitle    string `json:"headerTitle"`
	HeaderSubtitle string `json:"headerSubtitle"`
	SubmitLabel    string `json:"submitLabel"`
	SuccessMessage string `json:"successMessage"`
	ErrorMessage   string `json:"errorMessage"`
}

// DefaultTexts returns the generic copy used when a form leaves a text blank.
func DefaultTexts() FormTexts {
	return FormTexts{
		HeaderTitle:    "Fale com um advogado",
		HeaderSubtitle: "Preencha o formulário e retornaremos em breve.",
		SubmitLabel:    "Enviar mensagem",
		SuccessMessage: "Mensagem enviada com sucesso! Entraremos em contato em breve.",
		ErrorMessage:   "Não foi possível enviar sua mensagem. Tente novamente.",
	}
}

// withDefaults fills blank texts from DefaultTexts.
func (t FormTexts) withDefaults() FormTexts {
	d := DefaultTexts()
	if t.HeaderTitle == "" {
		t.HeaderTitle = d.HeaderTitle
	}
	if t.HeaderSubtitle == "" {
		t.HeaderSubtitle = d.HeaderSubtitle
	}
	if t.SubmitLabel == "" {
		t.SubmitLabel = d.SubmitLabel
	}
	if t.SuccessMessage == "" {
		t.SuccessMessage = d.SuccessMessage
	}
	if t.ErrorMessage == "" {
		t.ErrorMessage = d.ErrorMessage
	}
	return t
}

// FormConfiguration is one independently configurable contact form.
type FormConfiguration struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	WebhookURL     string            `json:"webhookUrl,omitempty"`
	RedirectURL    string            `json:"redirectUrl,omitempty"`
	ServiceOptions []Option          `json:"serviceOptions"`
	FormTexts      FormTexts         `json:"formTexts"`
	AllFields      []FieldDefinition `json:"allFields"`
	LinkedPages    []string          `json:"linkedPages"`
}

// Field looks up a definition by name.
func (c *FormConfiguration) Field(name string) (FieldDefinition, bool) {
	for _, f := range c.AllFields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// LinksPage reports whether pageID is bound to this form.
func (c *FormConfiguration) LinksPage(pageID string) bool {
	return slices.Contains(c.LinkedPages, pageID)
}

// Texts returns the form texts with blanks filled from the generic copy.
func (c *FormConfiguration) Texts() FormTexts {
	return c.FormTexts.withDefaults()
}

// Clone returns a deep copy.
func (c FormConfiguration) Clone() FormConfiguration {
	out := c
	out.ServiceOptions = slices.Clone(c.ServiceOptions)
	out.LinkedPages = slices.Clone(c.LinkedPages)
	out.AllFields = make([]FieldDefinition, len(c.AllFields))
	for i, f := range c.AllFields {
		f.Options = slices.Clone(f.Options)
		out.AllFields[i] = f
	}
	return out
}

// Check validates the form's field invariants.
func (c *FormConfiguration) Check() error {
	if err := CheckFields(c.AllFields); err != nil {
		return fmt.Errorf("form %q: %w", c.ID, err)
	}
	return nil
}

// FallbackConfiguration is used whenever nothing stored matches: the five
// built-in fields, generic texts, no webhook and no redirect.
func FallbackConfiguration() *FormConfiguration {
	return &FormConfiguration{
		ID:        "fallback",
		Name:      "Formulário de contato",
		FormTexts: DefaultTexts(),
		AllFields: DefaultFields(),
	}
}

// Collection is the persisted set of forms plus the global default.
type Collection struct {
	Forms         []FormConfiguration `json:"forms"`
	DefaultFormID string              `json:"defaultFormId"`
}

// Find returns the form with id.
func (c *Collection) Find(id string) (*FormConfiguration, bool) {
	if c == nil || id == "" {
		return nil, false
	}
	for i := range c.Forms {
		if c.Forms[i].ID == id {
			return &c.Forms[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy.
func (c *Collection) Clone() *Collection {
	if c == nil {
		return &Collection{}
	}
	out := &Collection{DefaultFormID: c.DefaultFormID, Forms: make([]FormConfiguration, len(c.Forms))}
	for i, f := range c.Forms {
		out.Forms[i] = f.Clone()
	}
	return out
}

// LinkedPageConflicts maps each page id bound to more than one form to the ids of
// those forms, in storage order. Resolution picks the first of them.
func (c *Collection) LinkedPageConflicts() map[string][]string {
	owners := map[string][]string{}
	for _, f := range c.Forms {
		for _, page := range f.LinkedPages {
			if !slices.Contains(owners[page], f.ID) {
				owners[page] = append(owners[page], f.ID)
			}
		}
	}
	conflicts := map[string][]string{}
	for page, ids := range owners {
		if len(ids) > 1 {
			conflicts[page] = ids
		}
	}
	return conflicts
}

func (c *Collection) normalize() {
	for i := range c.Forms {
		c.Forms[i].AllFields = MergeDefaultFields(c.Forms[i].AllFields)
	}
	if c.DefaultFormID == "" && len(c.Forms) > 0 {
		c.DefaultFormID = c.Forms[0].ID
	}
}

// Decode parses a stored blob, accepting both the collection shape and the legacy
// single-form shape (wrapped as one form with id LegacyFormID).
func Decode(data []byte) (*Collection, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}
	if probe == nil {
		return nil, ErrMalformedConfig
	}

	if _, ok := probe["forms"]; ok {
		var c Collection
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
		}
		c.normalize()
		return &c, nil
	}

	if !isLegacyShape(probe) {
		return nil, ErrMalformedConfig
	}
	var legacy FormConfiguration
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}
	legacy.ID = LegacyFormID
	if legacy.Name == "" {
		legacy.Name = "Formulário padrão"
	}
	c := &Collection{Forms: []FormConfiguration{legacy}, DefaultFormID: LegacyFormID}
	c.normalize()
	return c, nil
}

func isLegacyShape(probe map[string]json.RawMessage) bool {
	for _, key := range []string{"allFields", "formTexts", "serviceOptions", "webhookUrl", "redirectUrl"} {
		if _, ok := probe[key]; ok {
			return true
		}
	}
	return false
}

// Encode serializes the collection shape.
func Encode(c *Collection) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("forms: marshal collection: %w", err)
	}
	return data, nil
}
