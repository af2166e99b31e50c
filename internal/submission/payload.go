package submission

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/lexpoint/leadforms/internal/forms"
)

// Reserved payload keys; everything else is a fixed value-bag key.
const (
	keyCustomFields = "customFields"
	keyFormConfig   = "formConfig"
	keyAntiBot      = "antiBot"
	keyPage         = "page"
)

// FormRef identifies the submitting form and its delivery settings.
type FormRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	WebhookURL  string `json:"webhookUrl,omitempty"`
}

// AntiBot carries the signals the receiving side scores spam with.
type AntiBot struct {
	Honeypot  string `json:"hp"`
	ElapsedMs int64  `json:"elapsedMs"`
}

// PageContext describes where the form is embedded.
type PageContext struct {
	URL       string `json:"url,omitempty"`
	PageID    string `json:"pageId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	VisitorID string `json:"visitorId,omitempty"`
}

// Payload is the single unit sent to the submission endpoint. On the wire the
// fixed values are flattened next to customFields, formConfig and antiBot.
type Payload struct {
	Values       forms.ValueBag
	CustomFields forms.ValueBag
	Form         FormRef
	AntiBot      AntiBot
	Page         PageContext
}

func (p Payload) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Values)+4)
	for k, v := range p.Values {
		out[k] = v
	}
	custom := p.CustomFields
	if custom == nil {
		custom = forms.ValueBag{}
	}
	out[keyCustomFields] = custom
	out[keyFormConfig] = p.Form
	out[keyAntiBot] = p.AntiBot
	if p.Page != (PageContext{}) {
		out[keyPage] = p.Page
	}
	return json.Marshal(out)
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("submission: payload must be an object")
	}
	decoded := Payload{Values: forms.ValueBag{}, CustomFields: forms.ValueBag{}}
	for key, msg := range raw {
		var err error
		switch key {
		case keyCustomFields:
			err = json.Unmarshal(msg, &decoded.CustomFields)
		case keyFormConfig:
			err = json.Unmarshal(msg, &decoded.Form)
		case keyAntiBot:
			err = json.Unmarshal(msg, &decoded.AntiBot)
		case keyPage:
			err = json.Unmarshal(msg, &decoded.Page)
		default:
			var v forms.Value
			err = json.Unmarshal(msg, &v)
			decoded.Values[key] = v
		}
		if err != nil {
			return fmt.Errorf("submission: decode %q: %w", key, err)
		}
	}
	if decoded.CustomFields == nil {
		decoded.CustomFields = forms.ValueBag{}
	}
	*p = decoded
	return nil
}

// AllValues merges the fixed and custom values into one bag.
func (p Payload) AllValues() forms.ValueBag {
	out := p.Values.Clone()
	for k, v := range p.CustomFields {
		out[k] = v
	}
	return out
}

// Campaign holds the UTM parameters of the embedding page.
type Campaign struct {
	Source string
	Medium string
	Name   string
}

// CampaignFromURL reads utm_source, utm_medium and utm_campaign from a page URL.
func CampaignFromURL(pageURL string) Campaign {
	u, err := url.Parse(pageURL)
	if err != nil {
		return Campaign{}
	}
	q := u.Query()
	return Campaign{
		Source: q.Get("utm_source"),
		Medium: q.Get("utm_medium"),
		Name:   q.Get("utm_campaign"),
	}
}
