package model

// TopTask is one survey response (collection: toptasksurvey).
type TopTask struct {
	DateTime       string `bson:"dateTime" json:"dateTime"`   // YYYY-MM-DD once reformatted
	TimeStamp      string `bson:"timeStamp" json:"timeStamp"` // HH:MM once reformatted
	SurveyReferrer string `bson:"surveyReferrer" json:"surveyReferrer"`
	Language       string `bson:"language" json:"language"`
	Device         string `bson:"device" json:"device"`
	Screener       string `bson:"screener" json:"screener"`

	Dept       string `bson:"dept" json:"dept"`
	Theme      string `bson:"theme" json:"theme"`
	ThemeOther string `bson:"themeOther" json:"themeOther"`
	Grouping   string `bson:"grouping" json:"grouping"`
	Task       string `bson:"task" json:"task"`
	TaskOther  string `bson:"taskOther" json:"taskOther"`

	TaskSatisfaction   string `bson:"taskSatisfaction" json:"taskSatisfaction"`
	TaskEase           string `bson:"taskEase" json:"taskEase"`
	TaskCompletion     string `bson:"taskCompletion" json:"taskCompletion"`
	TaskImprove        string `bson:"taskImprove" json:"taskImprove"`
	TaskImproveComment string `bson:"taskImproveComment" json:"taskImproveComment"`
	TaskWhyNot         string `bson:"taskWhyNot" json:"taskWhyNot"`
	TaskWhyNotComment  string `bson:"taskWhyNotComment" json:"taskWhyNotComment"`

	TaskSampling        string `bson:"taskSampling" json:"taskSampling"`
	SamplingInvitation  string `bson:"samplingInvitation" json:"samplingInvitation"`
	SamplingGC          string `bson:"samplingGC" json:"samplingGC"`
	SamplingCanada      string `bson:"samplingCanada" json:"samplingCanada"`
	SamplingTheme       string `bson:"samplingTheme" json:"samplingTheme"`
	SamplingInstitution string `bson:"samplingInstitution" json:"samplingInstitution"`
	SamplingGrouping    string `bson:"samplingGrouping" json:"samplingGrouping"`
	SamplingTask        string `bson:"samplingTask" json:"samplingTask"`

	Processed             string `bson:"processed" json:"processed"`
	TopTaskAirTableSync   string `bson:"topTaskAirTableSync" json:"topTaskAirTableSync"`
	PersonalInfoProcessed string `bson:"personalInfoProcessed" json:"personalInfoProcessed"`
	AutoTagProcessed      string `bson:"autoTagProcessed" json:"autoTagProcessed"`
}

// NewTopTask returns a TopTask with processing flags initialised.
func NewTopTask() *TopTask {
	return &TopTask{
		Processed:             FlagFalse,
		TopTaskAirTableSync:   FlagFalse,
		PersonalInfoProcessed: FlagFalse,
		AutoTagProcessed:      FlagFalse,
	}
}
