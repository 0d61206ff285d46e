package insights

import (
	"strconv"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/goccy/go-json"
)

// Partial is the result extracted from one chunk: either a list of findings or,
// when the response could not be read as one, the raw text the model returned.
type Partial struct {
	items []string
	raw   string
	isRaw bool
}

// ListPartial wraps a parsed list of findings.
func ListPartial(items []string) Partial {
	return Partial{items: items}
}

// RawPartial wraps unparsed model text.
func RawPartial(text string) Partial {
	return Partial{raw: text, isRaw: true}
}

// IsRaw reports whether p carries raw text.
func (p Partial) IsRaw() bool { return p.isRaw }

// Items returns the list entries; nil for raw partials.
func (p Partial) Items() []string { return p.items }

// Raw returns the raw text; empty for list partials.
func (p Partial) Raw() string { return p.raw }

// MarshalJSON renders lists as arrays and raw text as a string.
func (p Partial) MarshalJSON() ([]byte, error) {
	if p.isRaw {
		return json.MarshalNoEscape(p.raw)
	}
	if p.items == nil {
		return []byte("[]"), nil
	}
	return json.MarshalNoEscape(p.items)
}

// Flatten returns the strings a partial contributes to the local merge.
func (p Partial) Flatten() []string {
	if p.isRaw {
		return []string{p.raw}
	}
	out := make([]string, 0, len(p.items))
	for _, it := range p.items {
		if it != "" {
			out = append(out, it)
		}
	}
	return out
}

// parsePartial reads the kind's field out of a chunk response. A response with
// no JSON object is kept as raw text, a missing field becomes an empty
// list, and a field that is not a list is kept as its own text.
func parsePartial(kind Kind, content string) Partial {
	obj, err := ai.ParseJSONResponse[map[string]json.RawMessage](content)
	if err != nil {
		return RawPartial(content)
	}
	field, ok := obj[string(kind)]
	if !ok {
		return ListPartial(nil)
	}
	if items, ok := decodeList(field); ok {
		return ListPartial(items)
	}
	var s string
	if err := json.Unmarshal(field, &s); err == nil {
		return RawPartial(s)
	}
	return RawPartial(string(field))
}

// decodeList parses a JSON array into display strings. Null entries are
// dropped. ok is false when field is not an array.
func decodeList(field json.RawMessage) ([]string, bool) {
	var values []any
	if err := json.Unmarshal(field, &values); err != nil {
		return nil, false
	}
	if values == nil {
		// literal null
		return nil, string(field) == "null"
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := itemText(v); s != "" {
			out = append(out, s)
		}
	}
	return out, true
}

// itemText renders one list entry as display text.
func itemText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.MarshalNoEscape(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
