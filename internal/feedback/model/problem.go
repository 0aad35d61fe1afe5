package model

// Data origin markers, fixed at parse time.
const (
	OriginWidgetAllFields = "POST-REQUEST-WIDGET_ALL_FIELDS"
	OriginEmailAEMOld     = "EMAIL-VERSION-AEM-(OLD)"
)

// FlagFalse is the initial value of every processing flag. Downstream batch
// jobs flip them; this service only writes them once.
const FlagFalse = "false"

// Problem is one reported page issue (collection: problem).
type Problem struct {
	TimeStamp      string `bson:"timeStamp" json:"timeStamp"`     // HH:MM
	ProblemDate    string `bson:"problemDate" json:"problemDate"` // YYYY-MM-DD
	URL            string `bson:"url" json:"url"`
	Language       string `bson:"language" json:"language"`
	OppositeLang   string `bson:"oppositeLang" json:"oppositeLang"`
	Title          string `bson:"title" json:"title"`
	Institution    string `bson:"institution" json:"institution"`
	Theme          string `bson:"theme" json:"theme"`
	Section        string `bson:"section" json:"section"`
	Problem        string `bson:"problem" json:"problem"`
	ProblemDetails string `bson:"problemDetails" json:"problemDetails"`
	YesNo          string `bson:"yesno" json:"yesno"`
	DeviceType     string `bson:"deviceType" json:"deviceType"`
	Browser        string `bson:"browser" json:"browser"`
	Contact        string `bson:"contact" json:"contact"`

	Processed             string `bson:"processed" json:"processed"`
	AirTableSync          string `bson:"airTableSync" json:"airTableSync"`
	PersonalInfoProcessed string `bson:"personalInfoProcessed" json:"personalInfoProcessed"`
	AutoTagProcessed      string `bson:"autoTagProcessed" json:"autoTagProcessed"`

	DataOrigin string   `bson:"dataOrigin" json:"dataOrigin"`
	Tags       []string `bson:"tags" json:"tags"`
}

// NewProblem returns a Problem with processing flags initialised and an
// empty (non-nil) tag list so the stored document carries [] rather than null.
func NewProblem() *Problem {
	return &Problem{
		Processed:             FlagFalse,
		AirTableSync:          FlagFalse,
		PersonalInfoProcessed: FlagFalse,
		AutoTagProcessed:      FlagFalse,
		Tags:                  []string{},
	}
}

// OriginalProblem is the archival snapshot of a Problem taken at commit time
// (collection: originalproblem). It is written once and never updated.
type OriginalProblem struct {
	TimeStamp      string `bson:"timeStamp" json:"timeStamp"`
	ProblemDate    string `bson:"problemDate" json:"problemDate"`
	URL            string `bson:"url" json:"url"`
	Language       string `bson:"language" json:"language"`
	OppositeLang   string `bson:"oppositeLang" json:"oppositeLang"`
	Title          string `bson:"title" json:"title"`
	Institution    string `bson:"institution" json:"institution"`
	Theme          string `bson:"theme" json:"theme"`
	Section        string `bson:"section" json:"section"`
	Problem        string `bson:"problem" json:"problem"`
	ProblemDetails string `bson:"problemDetails" json:"problemDetails"`
	YesNo          string `bson:"yesno" json:"yesno"`
	DeviceType     string `bson:"deviceType" json:"deviceType"`
	Browser        string `bson:"browser" json:"browser"`
	Contact        string `bson:"contact" json:"contact"`
	DataOrigin     string `bson:"dataOrigin" json:"dataOrigin"`
}

// Snapshot copies every reported field of p, leaving out the processing
// flags and tags.
func (p *Problem) Snapshot() OriginalProblem {
	return OriginalProblem{
		TimeStamp:      p.TimeStamp,
		ProblemDate:    p.ProblemDate,
		URL:            p.URL,
		Language:       p.Language,
		OppositeLang:   p.OppositeLang,
		Title:          p.Title,
		Institution:    p.Institution,
		Theme:          p.Theme,
		Section:        p.Section,
		Problem:        p.Problem,
		ProblemDetails: p.ProblemDetails,
		YesNo:          p.YesNo,
		DeviceType:     p.DeviceType,
		Browser:        p.Browser,
		Contact:        p.Contact,
		DataOrigin:     p.DataOrigin,
	}
}
