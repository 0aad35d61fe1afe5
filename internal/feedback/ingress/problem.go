package ingress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"page-feedback/internal/feedback/parser"
	"page-feedback/internal/feedback/queue"
)

// Problem form keys.
const (
	keySubmissionPage = "submissionPage"
	keyPageTitle      = "pageTitle"
	keyInstitution    = "institutionopt"
	keyDetails        = "details"
	keyHelpful        = "helpful"
	keyLanguage       = "language"
	keyOppositeLang   = "oppositelang"
	keyTheme          = "themeopt"
	keySection        = "sectionopt"
	keyProblem        = "problem"
	keyContact        = "contact"
)

var requiredProblemKeys = []string{keySubmissionPage, keyPageTitle, keyInstitution, keyDetails, keyHelpful}

const servicesSegment = "/services/"

type ProblemNormalizer struct {
	Log   *zap.Logger
	Queue queue.Queue
	Now   func() time.Time
}

func NewProblemNormalizer(log *zap.Logger, q queue.Queue) *ProblemNormalizer {
	return &ProblemNormalizer{
		Log:   log,
		Queue: q,
		Now:   time.Now,
	}
}

// NormalizeForm builds the 15-field queue payload for a form post. ok is
// false when the post has no comment; such posts are accepted and dropped.
func (n *ProblemNormalizer) NormalizeForm(form Form, userAgent string) (payload string, ok bool, err error) {
	var missing []string
	for _, k := range requiredProblemKeys {
		if !form.Has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return "", false, &MissingFieldsError{Fields: missing}
	}

	now := n.now()
	device, browser := DetectDeviceAndBrowser(userAgent)

	page := parser.StripDelimiter(form[keySubmissionPage], " ")
	details := parser.StripDelimiter(form[keyDetails], "")
	title := parser.StripDelimiter(form[keyPageTitle], " ")

	theme := strings.ToLower(strings.TrimSpace(form[keyTheme]))
	if t := ThemeFromURL(page); t != "" {
		theme = t
	}

	if strings.TrimSpace(details) == "" {
		n.Log.Warn("Entry has no comment and will be disregarded.", zap.String("submissionPage", page))
		return "", false, nil
	}
	if title == "" || page == "" {
		return "", false, ErrBadData
	}

	fields := []string{
		now.Format("15:04"),
		now.Format("2006-01-02"),
		page,
		form[keyLanguage],
		form[keyOppositeLang],
		title,
		strings.ToUpper(strings.TrimSpace(form[keyInstitution])),
		theme,
		strings.ToLower(strings.TrimSpace(form[keySection])),
		form[keyProblem],
		details,
		form[keyHelpful],
		device,
		browser,
		form[keyContact],
	}
	// A semicolon left in any field would shift the positional layout.
	for i, f := range fields {
		fields[i] = parser.StripDelimiter(f, " ")
	}
	return strings.Join(fields, parser.ProblemDelimiter), true, nil
}

// SubmitForm normalizes a form post and enqueues it.
func (n *ProblemNormalizer) SubmitForm(ctx context.Context, form Form, userAgent string) (Submission, error) {
	payload, ok, err := n.NormalizeForm(form, userAgent)
	if err != nil {
		n.Log.Warn("Problem form rejected", zap.Error(err))
		return Submission{}, err
	}
	if !ok {
		return Submission{}, nil
	}
	n.Log.Info("Number of items in queueData",
		zap.Int("count", strings.Count(payload, parser.ProblemDelimiter)+1),
	)
	return n.send(ctx, payload)
}

// SubmitEmail enqueues the first text/plain part of a raw MIME message.
// A message without one is logged and dropped.
func (n *ProblemNormalizer) SubmitEmail(ctx context.Context, raw []byte) (Submission, error) {
	text, err := FirstPart(raw, "text/plain")
	if err != nil {
		n.Log.Warn("No text/plain part in problem email", zap.Error(err))
		return Submission{}, nil
	}
	return n.SubmitRaw(ctx, text)
}

// SubmitRaw enqueues an already delimited legacy payload after the
// positional semicolon sanitizing.
func (n *ProblemNormalizer) SubmitRaw(ctx context.Context, text string) (Submission, error) {
	if strings.TrimSpace(text) == "" {
		n.Log.Warn("No content to queue")
		return Submission{}, nil
	}
	return n.send(ctx, parser.SanitizeLegacyDelimited(text))
}

func (n *ProblemNormalizer) send(ctx context.Context, payload string) (Submission, error) {
	n.Log.Debug("Problem Queue Item", zap.String("body", payload))
	id, err := n.Queue.Send(ctx, payload)
	if err != nil {
		return Submission{}, fmt.Errorf("enqueue problem: %w", err)
	}
	n.Log.Info("Data queued successfully", zap.String("messageId", id))
	return Submission{Queued: true, MessageID: id}, nil
}

func (n *ProblemNormalizer) now() time.Time {
	if n.Now == nil {
		return time.Now().UTC()
	}
	return n.Now().UTC()
}

// ThemeFromURL returns the path segment right after "/services/", or "".
func ThemeFromURL(page string) string {
	_, after, found := strings.Cut(page, servicesSegment)
	if !found {
		return ""
	}
	theme, _, _ := strings.Cut(after, "/")
	return theme
}
