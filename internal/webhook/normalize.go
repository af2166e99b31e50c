package webhook

// DefaultService is filled in by the heuristic when no service synonym is present.
const DefaultService = "Contato via Webhook"

type synonym struct {
	field    string
	keys     []string
	fallback string
}

// Synonyms are tried in order; the first truthy key wins.
var heuristics = []synonym{
	{field: "name", keys: []string{"name", "nome", "first_name"}},
	{field: "email", keys: []string{"email", "e_mail"}},
	{field: "phone", keys: []string{"phone", "telefone", "tel"}},
	{field: "message", keys: []string{"message", "mensagem", "msg"}},
	{field: "service", keys: []string{"service", "servico", "subject"}, fallback: DefaultService},
	{field: "company", keys: []string{"company", "empresa"}},
}

// Normalize turns an arbitrary inbound body into canonical lead data. With a
// mapping table only mapped, truthy values are kept. Without one the synonym
// heuristic runs and every other key is carried through verbatim.
func Normalize(body map[string]any, mappings []Mapping) map[string]any {
	if len(mappings) > 0 {
		return applyMappings(body, mappings)
	}
	return applyHeuristics(body)
}

func applyMappings(body map[string]any, mappings []Mapping) map[string]any {
	out := make(map[string]any, len(mappings))
	for _, m := range mappings {
		if v, ok := body[m.WebhookField]; ok && truthy(v) {
			out[m.SystemField] = v
		}
	}
	return out
}

func applyHeuristics(body map[string]any) map[string]any {
	out := make(map[string]any, len(body)+len(heuristics))
	consumed := make(map[string]bool, len(heuristics))
	for _, s := range heuristics {
		for _, key := range s.keys {
			if v, ok := body[key]; ok && truthy(v) {
				out[s.field] = v
				consumed[key] = true
				break
			}
		}
		if _, ok := out[s.field]; !ok && s.fallback != "" {
			out[s.field] = s.fallback
		}
	}
	for k, v := range body {
		if consumed[k] {
			continue
		}
		if _, ok := out[k]; ok {
			continue
		}
		out[k] = v
	}
	return out
}

// truthy follows the loose truthiness automation tools assume: nil, "", false
// and 0 count as absent.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	default:
		return true
	}
}
