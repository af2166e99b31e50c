package forms

// Resolve selects the form for an embed context. Precedence is explicit id, then
// page binding (first form in storage order wins), then the global default, then
// the built-in fallback. It never returns nil.
func Resolve(c *Collection, formID, pageID string) *FormConfiguration {
	if c == nil {
		return FallbackConfiguration()
	}
	if formID != "" {
		if f, ok := c.Find(formID); ok {
			return f
		}
	}
	if pageID != "" {
		for i := range c.Forms {
			if c.Forms[i].LinksPage(pageID) {
				return &c.Forms[i]
			}
		}
	}
	if f, ok := c.Find(c.DefaultFormID); ok {
		return f
	}
	return FallbackConfiguration()
}
