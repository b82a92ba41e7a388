package application

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ptahub/core"
)

// Document types an applicant may upload. The workflow rules name the ones
// required before submission.
const (
	DocTypeResume     = "resume"
	DocTypeLetter     = "letter"
	DocTypeDiploma    = "diploma"
	DocTypeTranscript = "transcript"
)

// DefaultRubric lists the demo scoring criteria; every criterion must be
// scored before an application can be completed.
var DefaultRubric = []string{
	"lesson_planning",
	"subject_mastery",
	"delivery",
	"classroom_management",
	"communication",
}

type (
	// Document is the stored metadata of an uploaded file; content lives in
	// the file storage service under ObjectKey.
	Document struct {
		Name       string    `json:"name"`
		Type       string    `json:"type"`
		SizeBytes  int64     `json:"size_bytes"`
		ObjectKey  string    `json:"-"`
		UploadedAt time.Time `json:"uploaded_at"`
	}

	DemoSchedule struct {
		Date            time.Time `json:"date" validate:"required"`
		Time            string    `json:"time" validate:"required"`
		Location        string    `json:"location" validate:"required"`
		DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
		Notes           string    `json:"notes"`
	}

	CriterionScore struct {
		CriteriaID string  `json:"criteria_id" validate:"required"`
		Score      float64 `json:"score" validate:"gte=0,lte=100"`
		Weight     float64 `json:"weight" validate:"gte=0"`
	}

	Application struct {
		ID                    string           `json:"id"`
		ApplicantID           string           `json:"applicant_id"`
		Program               string           `json:"program"`
		SubjectSpecialization string           `json:"subject_specialization"`
		Status                Status           `json:"status"`
		AttemptNumber         int              `json:"attempt_number"`
		Documents             []Document       `json:"documents"`
		DemoSchedule          *DemoSchedule    `json:"demo_schedule,omitempty"`
		Scores                []CriterionScore `json:"scores,omitempty"`
		TotalScore            null.Float64     `json:"total_score,omitempty"`
		Result                Result           `json:"result,omitempty"`
		RejectionReason       null.String      `json:"rejection_reason,omitempty"`
		HRNotes               null.String      `json:"hr_notes,omitempty"`
		Feedback              null.String      `json:"feedback,omitempty"`
		CreatedAt             time.Time        `json:"created_at"` // UTC
		UpdatedAt             time.Time        `json:"updated_at"` // UTC
	}
)

// HasDocumentType reports whether at least one document of the given type was uploaded.
func (app *Application) HasDocumentType(docType string) bool {
	for _, doc := range app.Documents {
		if doc.Type == docType {
			return true
		}
	}
	return false
}

// GetDocument finds an uploaded document by name.
func (app *Application) GetDocument(name string) (Document, bool) {
	for _, doc := range app.Documents {
		if doc.Name == name {
			return doc, true
		}
	}
	return Document{}, false
}

// HasDemoSchedule reports whether a demo has been scheduled.
func (app *Application) HasDemoSchedule() bool {
	return app.DemoSchedule != nil
}

// NewApplication contains information needed to start a teaching application.
type NewApplication struct {
	Program               string `json:"program" validate:"required"`
	SubjectSpecialization string `json:"subject_specialization" validate:"required"`
}

func (na *NewApplication) Validate(validate *validator.Validate) error {
	na.Program = core.CleanString(na.Program)
	na.SubjectSpecialization = core.CleanString(na.SubjectSpecialization)
	return validate.Struct(na)
}

// TransitionPayload carries the side inputs a transition may require.
type TransitionPayload struct {
	Reason   string           `json:"reason"`
	HRNotes  string           `json:"hr_notes"`
	Scores   []CriterionScore `json:"scores" validate:"omitempty,dive"`
	Feedback string           `json:"feedback"`
}

func (tp *TransitionPayload) Validate(validate *validator.Validate) error {
	tp.Reason = core.CleanString(tp.Reason)
	tp.HRNotes = core.CleanString(tp.HRNotes)
	tp.Feedback = core.CleanString(tp.Feedback)
	return validate.Struct(tp)
}

type QueryFilter struct {
	Status      Status `query:"status"`
	Program     string `query:"program"`
	ApplicantID string `query:"user_id"`
	Search      string `query:"search"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Status == "" && qf.Program == "" && qf.ApplicantID == "" && qf.Search == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Program = core.CleanString(qf.Program)
}
