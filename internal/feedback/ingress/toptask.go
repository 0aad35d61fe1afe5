package ingress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"page-feedback/internal/feedback/parser"
	"page-feedback/internal/feedback/queue"
)

const keyDevice = "device"

type TopTaskNormalizer struct {
	Log   *zap.Logger
	Queue queue.Queue
}

func NewTopTaskNormalizer(log *zap.Logger, q queue.Queue) *TopTaskNormalizer {
	return &TopTaskNormalizer{Log: log, Queue: q}
}

// NormalizeForm re-serializes a survey form post as indented JSON. The device
// class is derived from the user agent when the form left it out.
func (n *TopTaskNormalizer) NormalizeForm(body []byte, contentType, userAgent string) (string, error) {
	survey, err := surveyObject(body, contentType)
	if err != nil {
		return "", err
	}
	if v, ok := survey[keyDevice]; !ok || parser.StringValue(v) == "" {
		survey[keyDevice] = ClassifyDevice(userAgent)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(survey); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadBody, err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// surveyObject keeps JSON values as they came; form values are all strings.
func surveyObject(body []byte, contentType string) (map[string]any, error) {
	if strings.Contains(strings.ToLower(contentType), "application/json") {
		return decodeJSONObject(body)
	}
	values, err := parseURLEncoded(body)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty form", ErrBadBody)
	}
	obj := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			obj[k] = vs[0]
		}
	}
	return obj, nil
}

func (n *TopTaskNormalizer) SubmitForm(ctx context.Context, body []byte, contentType, userAgent string) (Submission, error) {
	payload, err := n.NormalizeForm(body, contentType, userAgent)
	if err != nil {
		n.Log.Warn("Top task form rejected", zap.Error(err))
		return Submission{}, err
	}
	n.Log.Info("Trying to add to queue")
	return n.send(ctx, payload)
}

// SubmitEmail enqueues the first text/html part of a raw MIME message.
func (n *TopTaskNormalizer) SubmitEmail(ctx context.Context, raw []byte) (Submission, error) {
	text, err := FirstPart(raw, "text/html")
	if err != nil {
		n.Log.Warn("No text/html part in top task email", zap.Error(err))
		return Submission{}, nil
	}
	return n.SubmitText(ctx, text)
}

// SubmitText enqueues a mailer body as-is, semicolons widened unless it
// already uses the "~!~" delimiter.
func (n *TopTaskNormalizer) SubmitText(ctx context.Context, text string) (Submission, error) {
	if strings.TrimSpace(text) == "" {
		n.Log.Warn("No content to queue")
		return Submission{}, nil
	}
	return n.send(ctx, parser.WidenSemicolons(text))
}

func (n *TopTaskNormalizer) send(ctx context.Context, payload string) (Submission, error) {
	n.Log.Debug("TopTask Queue Item", zap.String("body", payload))
	id, err := n.Queue.Send(ctx, payload)
	if err != nil {
		return Submission{}, fmt.Errorf("enqueue toptask: %w", err)
	}
	n.Log.Info("Data queued successfully", zap.String("messageId", id))
	return Submission{Queued: true, MessageID: id}, nil
}
