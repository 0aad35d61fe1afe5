package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"page-feedback/internal/feedback/model"
)

var ErrFieldCount = errors.New("parser: unexpected field count")

// ProblemField names one logical attribute of a Problem record.
type ProblemField int

const (
	FieldTimeStamp ProblemField = iota
	FieldDate
	FieldURL
	FieldLanguage
	FieldOppositeLang
	FieldTitle
	FieldInstitution
	FieldTheme
	FieldSection
	FieldProblem
	FieldProblemDetails
	FieldYesNo
	FieldDevice
	FieldBrowser
	FieldContact
)

// problemLayout maps logical fields to their position in one historical
// wire layout.
type problemLayout struct {
	width  int
	origin string
	index  map[ProblemField]int
}

// widgetAllFields is the 15-field layout produced by the web form.
var widgetAllFields = problemLayout{
	width:  15,
	origin: model.OriginWidgetAllFields,
	index: map[ProblemField]int{
		FieldTimeStamp:      0,
		FieldDate:           1,
		FieldURL:            2,
		FieldLanguage:       3,
		FieldOppositeLang:   4,
		FieldTitle:          5,
		FieldInstitution:    6,
		FieldTheme:          7,
		FieldSection:        8,
		FieldProblem:        9,
		FieldProblemDetails: 10,
		FieldYesNo:          11,
		FieldDevice:         12,
		FieldBrowser:        13,
		FieldContact:        14,
	},
}

// emailVersion is the 9-field layout of the old AEM mailer. Its date slot is
// ignored: records get the receive time instead.
var emailVersion = problemLayout{
	width:  9,
	origin: model.OriginEmailAEMOld,
	index: map[ProblemField]int{
		FieldInstitution:    1,
		FieldTheme:          2,
		FieldSection:        3,
		FieldTitle:          4,
		FieldURL:            5,
		FieldYesNo:          6,
		FieldProblem:        7,
		FieldProblemDetails: 8,
	},
}

// ProblemLayoutWidths lists the field counts a Problem payload may have.
func ProblemLayoutWidths() []int {
	return []int{widgetAllFields.width, emailVersion.width}
}

type ProblemParser struct {
	Log *zap.Logger
	Now func() time.Time
}

func NewProblemParser(log *zap.Logger) *ProblemParser {
	return &ProblemParser{
		Log: log,
		Now: time.Now,
	}
}

// Parse splits a decoded payload on ";" and builds a Problem from it.
func (pp *ProblemParser) Parse(payload string) (*model.Problem, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	return pp.ParseFields(strings.Split(payload, ProblemDelimiter))
}

// ParseFields dispatches purely on the number of fields: 15 is the widget
// layout, 9 the legacy email layout, anything else is rejected.
func (pp *ProblemParser) ParseFields(fields []string) (*model.Problem, error) {
	var (
		p   *model.Problem
		err error
	)
	switch len(fields) {
	case widgetAllFields.width:
		p, err = assign(widgetAllFields, fields)
	case emailVersion.width:
		p, err = assign(emailVersion, fields)
		if err == nil {
			normalizeLegacy(p, pp.now())
		}
	default:
		pp.Log.Warn("Unexpected problem data length", zap.Int("dataLength", len(fields)))
		return nil, fmt.Errorf("%w: %d", ErrFieldCount, len(fields))
	}
	if err != nil {
		pp.Log.Error("Error parsing problem data", zap.Error(err))
		return nil, err
	}

	resolveLanguage(p)
	return p, nil
}

func (pp *ProblemParser) now() time.Time {
	if pp.Now == nil {
		return time.Now().UTC()
	}
	return pp.Now().UTC()
}

func assign(layout problemLayout, fields []string) (*model.Problem, error) {
	p := model.NewProblem()
	for field, idx := range layout.index {
		if idx >= len(fields) {
			return nil, fmt.Errorf("%w: index %d out of range for %d fields", ErrFieldCount, idx, len(fields))
		}
		setProblemField(p, field, fields[idx])
	}
	p.DataOrigin = layout.origin
	return p, nil
}

func setProblemField(p *model.Problem, field ProblemField, v string) {
	switch field {
	case FieldTimeStamp:
		p.TimeStamp = v
	case FieldDate:
		p.ProblemDate = v
	case FieldURL:
		p.URL = v
	case FieldLanguage:
		p.Language = v
	case FieldOppositeLang:
		p.OppositeLang = v
	case FieldTitle:
		p.Title = v
	case FieldInstitution:
		p.Institution = v
	case FieldTheme:
		p.Theme = v
	case FieldSection:
		p.Section = v
	case FieldProblem:
		p.Problem = v
	case FieldProblemDetails:
		p.ProblemDetails = v
	case FieldYesNo:
		p.YesNo = v
	case FieldDevice:
		p.DeviceType = v
	case FieldBrowser:
		p.Browser = v
	case FieldContact:
		p.Contact = v
	}
}

func normalizeLegacy(p *model.Problem, now time.Time) {
	p.Institution = strings.ToUpper(strings.TrimSpace(p.Institution))
	p.Theme = strings.ToLower(strings.TrimSpace(p.Theme))
	p.Section = strings.ToLower(strings.TrimSpace(p.Section))
	p.ProblemDate = now.Format("2006-01-02")
	p.TimeStamp = now.Format("15:04")
}

var (
	englishURLTokens = []string{"/en/", "travel.gc.ca"}
	frenchURLTokens  = []string{"/fr/", "voyage.gc.ca"}
)

// resolveLanguage overrides the language from the page URL. Both checks
// run; French is evaluated last and wins when a URL matches both.
func resolveLanguage(p *model.Problem) {
	u := strings.ToLower(p.URL)
	if containsAny(u, englishURLTokens) {
		p.Language = "en"
	}
	if containsAny(u, frenchURLTokens) {
		p.Language = "fr"
	}
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// HasComment reports whether the record carries problem details worth keeping.
func HasComment(p *model.Problem) bool {
	return strings.TrimSpace(p.ProblemDetails) != ""
}
