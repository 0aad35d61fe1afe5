// Package ingress turns web form posts and inbound e-mails into queue
// messages for the commit processors.
package ingress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"page-feedback/internal/feedback/parser"
)

var (
	ErrMissingFields = errors.New("ingress: missing required fields")
	ErrBadData       = errors.New("ingress: bad data")
	ErrBadBody       = errors.New("ingress: unparseable body")
)

// MissingFieldsError names the required form keys that were not submitted.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "Missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrMissingFields
}

// Form is a flat view of a submitted form, one value per key.
type Form map[string]string

// Has reports whether key was submitted, even empty.
func (f Form) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// ParseForm reads a JSON object when contentType says JSON and a URL-encoded
// form otherwise. Repeated form keys keep their first value.
func ParseForm(body []byte, contentType string) (Form, error) {
	if strings.Contains(strings.ToLower(contentType), "application/json") {
		obj, err := decodeJSONObject(body)
		if err != nil {
			return nil, err
		}
		form := make(Form, len(obj))
		for k, v := range obj {
			form[k] = parser.StringValue(v)
		}
		return form, nil
	}

	values, err := parseURLEncoded(body)
	if err != nil {
		return nil, err
	}
	form := make(Form, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			form[k] = vs[0]
		}
	}
	return form, nil
}

// parseURLEncoded splits a form body on "&" only, so a raw ";" stays part
// of its value. url.ParseQuery rejects such bodies outright.
func parseURLEncoded(body []byte) (url.Values, error) {
	values := url.Values{}
	for _, pair := range strings.Split(string(body), "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadBody, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadBody, err)
		}
		values.Add(key, value)
	}
	return values, nil
}

func decodeJSONObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBody, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrBadBody)
	}
	return obj, nil
}

// Submission reports what an ingress call did with its input.
type Submission struct {
	Queued    bool   `json:"queued"`
	MessageID string `json:"messageId,omitempty"`
}
