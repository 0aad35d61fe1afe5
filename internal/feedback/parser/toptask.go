package parser

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"page-feedback/internal/feedback/model"
)

// Positions in the 24-field mailer layout. Task 2 has no theme-other slot of
// its own and shares task 1's.
const (
	ttDateTime = iota
	ttReferrer
	ttLanguage
	ttDevice
	ttScreener
	ttDept1
	ttTheme1
	ttThemeOther
	ttGrouping1
	ttTask1
	ttTaskOther1
	ttDept2
	ttTheme2
	ttGrouping2
	ttTask2
	ttTaskOther2
	ttSatisfaction
	ttEase
	ttCompletion
	ttImprove
	ttImproveComment
	ttWhyNot
	ttWhyNotComment
	ttSampling

	TopTaskWidth
)

const samplingParts = 7

// Keys of the survey form object. The form spells grouping "groupng".
var (
	keyDateTime       = []string{"dateTime", "timeStamp"}
	keyReferrer       = []string{"surveyReferrer"}
	keyLanguage       = []string{"language"}
	keyDevice         = []string{"device"}
	keyScreener       = []string{"screener"}
	keyThemeOther     = []string{"themeOther", "themeOther1"}
	keySatisfaction   = []string{"taskSatisfaction"}
	keyEase           = []string{"taskEase"}
	keyCompletion     = []string{"taskCompletion"}
	keyImprove        = []string{"taskImprove"}
	keyImproveComment = []string{"taskImproveComment"}
	keyWhyNot         = []string{"taskWhyNot"}
	keyWhyNotComment  = []string{"taskWhyNotComment"}
	keySampling       = []string{"taskSampling"}
)

// TaskSlot is one of the two mutually exclusive task groups of a response.
type TaskSlot struct {
	Dept       string
	Theme      string
	ThemeOther string
	Grouping   string
	Task       string
	TaskOther  string
}

// topTaskInput is the shape-independent view of one response before
// precedence and decomposition rules are applied.
type topTaskInput struct {
	DateTime       string
	Referrer       string
	Language       string
	Device         string
	Screener       string
	Task1          TaskSlot
	Task2          TaskSlot
	Satisfaction   string
	Ease           string
	Completion     string
	Improve        string
	ImproveComment string
	WhyNot         string
	WhyNotComment  string
	Sampling       string
}

type TopTaskParser struct {
	Log *zap.Logger
}

func NewTopTaskParser(log *zap.Logger) *TopTaskParser {
	return &TopTaskParser{Log: log}
}

// Parse resolves the payload shape and builds the record.
func (tp *TopTaskParser) Parse(decoded string) (*model.TopTask, PayloadKind, error) {
	if strings.TrimSpace(decoded) == "" {
		return nil, PayloadDelimited, ErrEmptyPayload
	}
	payload := DetectPayload(decoded)
	t, err := tp.ParsePayload(payload)
	return t, payload.Kind, err
}

// ParseMessage decodes a raw queue body and builds the record.
func (tp *TopTaskParser) ParseMessage(body string) (*model.TopTask, PayloadKind, error) {
	if DecodeTopTaskMessage(body) == "" {
		return nil, PayloadDelimited, ErrEmptyPayload
	}
	payload := DecodeTopTaskPayload(body)
	t, err := tp.ParsePayload(payload)
	return t, payload.Kind, err
}

func (tp *TopTaskParser) ParsePayload(payload Payload) (*model.TopTask, error) {
	var in topTaskInput
	switch payload.Kind {
	case PayloadJSON:
		in = inputFromObject(payload.Object)
	default:
		if len(payload.Fields) != TopTaskWidth {
			tp.Log.Warn("Unexpected toptask data length",
				zap.Int("expected", TopTaskWidth),
				zap.Int("dataLength", len(payload.Fields)),
			)
			return nil, fmt.Errorf("%w: %d", ErrFieldCount, len(payload.Fields))
		}
		in = inputFromFields(payload.Fields)
	}
	return tp.build(in), nil
}

func inputFromFields(f []string) topTaskInput {
	return topTaskInput{
		DateTime: f[ttDateTime],
		Referrer: f[ttReferrer],
		Language: f[ttLanguage],
		Device:   f[ttDevice],
		Screener: f[ttScreener],
		Task1: TaskSlot{
			Dept:       f[ttDept1],
			Theme:      f[ttTheme1],
			ThemeOther: f[ttThemeOther],
			Grouping:   f[ttGrouping1],
			Task:       f[ttTask1],
			TaskOther:  f[ttTaskOther1],
		},
		Task2: TaskSlot{
			Dept:       f[ttDept2],
			Theme:      f[ttTheme2],
			ThemeOther: f[ttThemeOther],
			Grouping:   f[ttGrouping2],
			Task:       f[ttTask2],
			TaskOther:  f[ttTaskOther2],
		},
		Satisfaction:   f[ttSatisfaction],
		Ease:           f[ttEase],
		Completion:     f[ttCompletion],
		Improve:        f[ttImprove],
		ImproveComment: f[ttImproveComment],
		WhyNot:         f[ttWhyNot],
		WhyNotComment:  f[ttWhyNotComment],
		Sampling:       f[ttSampling],
	}
}

func inputFromObject(obj map[string]any) topTaskInput {
	themeOther := pick(obj, keyThemeOther...)
	return topTaskInput{
		DateTime: pick(obj, keyDateTime...),
		Referrer: pick(obj, keyReferrer...),
		Language: pick(obj, keyLanguage...),
		Device:   pick(obj, keyDevice...),
		Screener: pick(obj, keyScreener...),
		Task1: TaskSlot{
			Dept:       pick(obj, "dept1"),
			Theme:      pick(obj, "theme1"),
			ThemeOther: themeOther,
			Grouping:   pick(obj, "groupng1", "grouping1"),
			Task:       pick(obj, "task1"),
			TaskOther:  pick(obj, "taskOther1"),
		},
		Task2: TaskSlot{
			Dept:       pick(obj, "dept2"),
			Theme:      pick(obj, "theme2"),
			ThemeOther: themeOther,
			Grouping:   pick(obj, "groupng2", "grouping2"),
			Task:       pick(obj, "task2"),
			TaskOther:  pick(obj, "taskOther2"),
		},
		Satisfaction:   pick(obj, keySatisfaction...),
		Ease:           pick(obj, keyEase...),
		Completion:     pick(obj, keyCompletion...),
		Improve:        pick(obj, keyImprove...),
		ImproveComment: pick(obj, keyImproveComment...),
		WhyNot:         pick(obj, keyWhyNot...),
		WhyNotComment:  pick(obj, keyWhyNotComment...),
		Sampling:       pick(obj, keySampling...),
	}
}

func (tp *TopTaskParser) build(in topTaskInput) *model.TopTask {
	t := model.NewTopTask()
	t.DateTime = in.DateTime
	t.TimeStamp = in.DateTime
	t.SurveyReferrer = in.Referrer
	t.Language = in.Language
	t.Device = in.Device
	t.Screener = in.Screener

	switch ApplyTaskSlots(t, in.Task1, in.Task2) {
	case 1:
		tp.Log.Info("Entry is Task 1", zap.String("themeOther", t.ThemeOther))
	case 2:
		tp.Log.Info("Entry is Task 2", zap.String("themeOther", t.ThemeOther))
	}

	t.TaskSatisfaction = in.Satisfaction
	t.TaskEase = in.Ease
	t.TaskCompletion = in.Completion
	t.TaskImprove = in.Improve
	t.TaskImproveComment = in.ImproveComment
	t.TaskWhyNot = in.WhyNot
	t.TaskWhyNotComment = in.WhyNotComment
	t.TaskSampling = in.Sampling
	ApplySampling(t, in.Sampling)

	if date, clock, ok := SplitTimestamp(in.DateTime); ok {
		t.DateTime = date
		t.TimeStamp = clock
	} else {
		tp.Log.Warn("Error parsing datetime, keeping raw value", zap.String("dateTime", in.DateTime))
	}
	return t
}

// IsSentinelEmpty reports whether a department value counts as absent.
func IsSentinelEmpty(v string) bool {
	return v == "" || v == " / "
}

// ApplyTaskSlots fills the canonical task fields and returns which slot won
// (0 when neither qualifies). Task 1 needs its own department and an absent
// task 2 department. Task 2 is checked independently afterwards, so when
// both departments are present task 2 overwrites task 1.
func ApplyTaskSlots(t *model.TopTask, one, two TaskSlot) int {
	winner := 0
	if !IsSentinelEmpty(one.Dept) && IsSentinelEmpty(two.Dept) {
		setSlot(t, one)
		winner = 1
	}
	if !IsSentinelEmpty(two.Dept) {
		setSlot(t, two)
		winner = 2
	}
	return winner
}

func setSlot(t *model.TopTask, s TaskSlot) {
	t.Dept = s.Dept
	t.Theme = s.Theme
	t.ThemeOther = s.ThemeOther
	t.Grouping = s.Grouping
	t.Task = s.Task
	t.TaskOther = s.TaskOther
}

// ApplySampling decomposes the ":"-joined sampling string. Anything other
// than exactly seven parts leaves every sampling sub-field empty.
func ApplySampling(t *model.TopTask, sampling string) {
	parts := strings.Split(sampling, ":")
	if len(parts) != samplingParts {
		parts = make([]string, samplingParts)
	}
	t.SamplingInvitation = parts[0]
	t.SamplingGC = parts[1]
	t.SamplingCanada = parts[2]
	t.SamplingTheme = parts[3]
	t.SamplingInstitution = parts[4]
	t.SamplingGrouping = parts[5]
	t.SamplingTask = parts[6]
}

// timestampLayouts cover ISO-8601 date-times with a "T" or space separator,
// minute or second precision (fractions are accepted after seconds) and an
// optional offset written as Z, +hh:mm, +hhmm or +hh.
var timestampLayouts = func() []string {
	var out []string
	for _, sep := range []string{"T", " "} {
		for _, clock := range []string{"15:04:05", "15:04"} {
			base := "2006-01-02" + sep + clock
			out = append(out, base+"Z07:00", base+"Z0700", base+"Z07", base)
		}
	}
	return append(out, "2006-01-02")
}()

// SplitTimestamp parses an ISO-8601 timestamp (a trailing Z means UTC) and
// returns its date and HH:MM parts in the timestamp's own offset.
func SplitTimestamp(raw string) (date, clock string, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", "", false
	}
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts.Format("2006-01-02"), ts.Format("15:04"), true
		}
	}
	return "", "", false
}
