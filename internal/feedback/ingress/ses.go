package ingress

import (
	"bytes"
	"encoding/json"

	"page-feedback/internal/feedback/parser"
)

const snsEventSource = "aws:sns"

type snsEnvelope struct {
	Records []struct {
		EventSource string `json:"EventSource"`
		Sns         struct {
			Message string `json:"Message"`
		} `json:"Sns"`
	} `json:"Records"`
}

type sesNotification struct {
	Content string `json:"content"`
}

// UnwrapEmail returns the raw MIME message carried by body. A body holding an
// SNS notification from SES inbound mail yields the content of its last SNS
// record; any other body is taken to be the raw message already. ok is false
// when an envelope carried no content.
func UnwrapEmail(body []byte) (raw []byte, ok bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false
	}
	if trimmed[0] != '{' {
		return body, true
	}

	var env snsEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Records == nil {
		return body, true
	}

	var content string
	for _, rec := range env.Records {
		if rec.EventSource != snsEventSource {
			continue
		}
		var n sesNotification
		if err := json.Unmarshal([]byte(rec.Sns.Message), &n); err != nil {
			continue
		}
		if n.Content != "" {
			content = n.Content
		}
	}
	if content == "" {
		return nil, false
	}
	// SES delivers base64 content when the receipt rule asks for it.
	return []byte(parser.DecodeBody(content)), true
}
