// Package parser turns queued feedback payloads into Problem and TopTask
// records. It holds the positional layouts, the task-slot precedence rules
// and the delimiter sanitizers shared with the ingress side.
package parser

import (
	"encoding/base64"
	"errors"
	"html"
	"strings"
	"unicode/utf8"
)

var ErrEmptyPayload = errors.New("parser: empty payload")

const (
	htmlWrapperOpen  = "<html><body><pre>"
	htmlWrapperClose = "</pre></body></html>"
)

// DecodeBody returns body base64-decoded when it is valid base64 carrying
// UTF-8 text, and body unchanged otherwise.
func DecodeBody(body string) string {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return body
	}
	raw, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil || !utf8.Valid(raw) {
		return body
	}
	return string(raw)
}

// Unescape resolves HTML entities (&amp;, &#39;, &eacute; ...).
func Unescape(s string) string {
	return html.UnescapeString(s)
}

// StripHTMLWrapper removes the <html><body><pre> envelope the survey mailer
// puts around its payload.
func StripHTMLWrapper(s string) string {
	s = strings.ReplaceAll(s, htmlWrapperOpen, "")
	return strings.ReplaceAll(s, htmlWrapperClose, "")
}

// DecodeProblemMessage applies the Problem queue decoding chain.
func DecodeProblemMessage(body string) string {
	return Unescape(DecodeBody(body))
}

// DecodeTopTaskMessage applies the TopTask queue decoding chain. The wrapper
// is stripped after unescaping so an entity-escaped envelope goes too.
func DecodeTopTaskMessage(body string) string {
	return strings.TrimSpace(StripHTMLWrapper(Unescape(DecodeBody(body))))
}

// DecodeTopTaskPayload runs the TopTask decoding chain and resolves the
// payload shape. A JSON object is recognised before entities are unescaped,
// then its string values are unescaped; delimited text is unescaped whole.
func DecodeTopTaskPayload(body string) Payload {
	raw := strings.TrimSpace(StripHTMLWrapper(DecodeBody(body)))
	if obj, ok := decodeObject(raw); ok {
		for k, v := range obj {
			if str, isString := v.(string); isString {
				obj[k] = Unescape(str)
			}
		}
		return Payload{Kind: PayloadJSON, Object: obj}
	}
	return DetectPayload(DecodeTopTaskMessage(body))
}
