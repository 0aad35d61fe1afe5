package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type PayloadKind int

const (
	PayloadDelimited PayloadKind = iota
	PayloadJSON
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadJSON:
		return "json"
	default:
		return "delimited"
	}
}

// Payload is a TopTask queue body resolved once at the boundary: either a
// keyed JSON object from the survey form or the "~!~" fields of the mailer.
type Payload struct {
	Kind   PayloadKind
	Object map[string]any
	Fields []string
}

// DetectPayload tries JSON first and falls back to the delimited layout.
// Only a JSON object counts; a bare JSON string or number is delimited text.
func DetectPayload(s string) Payload {
	if obj, ok := decodeObject(s); ok {
		return Payload{Kind: PayloadJSON, Object: obj}
	}
	return Payload{Kind: PayloadDelimited, Fields: strings.Split(s, TopTaskDelimiter)}
}

func decodeObject(s string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return obj, true
}

// StringValue renders one JSON value as form text: strings verbatim, numbers
// and booleans in their JSON spelling, null as "", anything else as JSON.
func StringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return fmt.Sprint(t)
		}
		return strings.TrimRight(buf.String(), "\n")
	}
}

// pick returns the first key present in obj with a non-null value.
func pick(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return StringValue(v)
		}
	}
	return ""
}
