package programs

import "encoding/json"

// ParseDependencies reads the dependencies field as a JSON list of package
// specifiers. String items are kept verbatim, other items are kept as their
// JSON text. Anything that is not a list, including malformed JSON, yields an
// empty list.
func ParseDependencies(raw string) []string {
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil || items == nil {
		return []string{}
	}
	deps := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			deps = append(deps, s)
			continue
		}
		b, err := json.Marshal(item)
		if err != nil {
			continue
		}
		deps = append(deps, string(b))
	}
	return deps
}
