package assist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// responseShape names which branch of the fallback order matched.
type responseShape int

const (
	shapeList responseShape = iota
	shapeSuggestionsField
	shapeResponsesField
	shapeObjectValues
	shapeScalar
)

func (s responseShape) String() string {
	switch s {
	case shapeList:
		return "list"
	case shapeSuggestionsField:
		return "suggestions field"
	case shapeResponsesField:
		return "responses field"
	case shapeObjectValues:
		return "object values"
	default:
		return "scalar"
	}
}

var errNoCandidates = errors.New("response has no candidates")

// ParseSuggestions turns a model reply into candidate strings. Precedence:
// a bare list, then a "suggestions" field, then a "responses" field, then
// every value of the object in document order, then a lone scalar wrapped
// as a one-element list.
func ParseSuggestions(raw string) ([]string, error) {
	_, out, err := decodeSuggestions(raw)
	return out, err
}

func decodeSuggestions(raw string) (responseShape, []string, error) {
	body := []byte(stripFence(raw))
	if !json.Valid(body) {
		return 0, nil, fmt.Errorf("response is not JSON")
	}
	body = bytes.TrimSpace(body)

	var (
		shape responseShape
		items []json.RawMessage
	)
	switch body[0] {
	case '[':
		shape = shapeList
		if err := json.Unmarshal(body, &items); err != nil {
			return 0, nil, err
		}
	case '{':
		fields, err := orderedFields(body)
		if err != nil {
			return 0, nil, err
		}
		shape, items = pickFields(fields)
	default:
		shape, items = shapeScalar, []json.RawMessage{body}
	}

	var out []string
	for _, it := range items {
		out = append(out, flatten(it)...)
	}
	if len(out) == 0 {
		return shape, nil, errNoCandidates
	}
	return shape, out, nil
}

type field struct {
	key   string
	value json.RawMessage
}

func pickFields(fields []field) (responseShape, []json.RawMessage) {
	for _, named := range []struct {
		key   string
		shape responseShape
	}{
		{"suggestions", shapeSuggestionsField},
		{"responses", shapeResponsesField},
	} {
		for _, f := range fields {
			if f.key == named.key && !isFalsy(f.value) {
				return named.shape, []json.RawMessage{f.value}
			}
		}
	}
	values := make([]json.RawMessage, 0, len(fields))
	for _, f := range fields {
		values = append(values, f.value)
	}
	return shapeObjectValues, values
}

// orderedFields reads a JSON object keeping key order, which a map loses.
func orderedFields(body []byte) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var fields []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		fields = append(fields, field{key: key, value: v})
	}
	return fields, nil
}

// flatten yields one string per scalar. Arrays contribute their elements;
// nested objects are kept as compact JSON text.
func flatten(v json.RawMessage) []string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || isNull(v) {
		return nil
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil
		}
		if s = strings.TrimSpace(s); s == "" {
			return nil
		}
		return []string{s}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(v, &items); err != nil {
			return nil
		}
		var out []string
		for _, it := range items {
			out = append(out, flatten(it)...)
		}
		return out
	case '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return nil
		}
		return []string{buf.String()}
	default:
		return []string{string(v)}
	}
}

func isNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}

// isFalsy reports null, false, zero and the empty string. A named field
// holding one of these yields to the next candidate field.
func isFalsy(v json.RawMessage) bool {
	switch t := string(bytes.TrimSpace(v)); t {
	case "null", "false", `""`:
		return true
	default:
		var n float64
		return json.Unmarshal([]byte(t), &n) == nil && n == 0
	}
}

// stripFence removes a surrounding ```json fence some models add even in
// JSON mode.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
