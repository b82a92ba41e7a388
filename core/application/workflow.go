package application

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ptahub/core"
)

const recordType = "application"

// Rules are the policy inputs of the workflow; they come from configuration
// so schools can tune them without a rebuild.
type Rules struct {
	PassingScore          float64
	RequiredDocumentTypes []string
	RubricCriteria        []string
}

func DefaultRules() Rules {
	return Rules{
		PassingScore:          75,
		RequiredDocumentTypes: []string{DocTypeResume, DocTypeLetter, DocTypeDiploma, DocTypeTranscript},
		RubricCriteria:        DefaultRubric,
	}
}

func RulesFromConfig(conf *core.Config) Rules {
	rules := DefaultRules()
	if conf.Workflow.PassingScore > 0 {
		rules.PassingScore = conf.Workflow.PassingScore
	}
	if len(conf.Workflow.RequiredApplicantDocs) > 0 {
		rules.RequiredDocumentTypes = conf.Workflow.RequiredApplicantDocs
	}
	return rules
}

// ValidateTransition decides whether the requested transition is permitted.
// It is a pure function: checks run in order (legal pair, actor permission,
// guard conditions) and the first failure is returned untouched.
func ValidateTransition(app Application, requested Status, actor Actor, payload TransitionPayload, rules Rules) error {
	if !app.Status.Valid() || !requested.Valid() {
		return &core.InvalidTransitionError{
			RecordType: recordType,
			Current:    string(app.Status),
			Requested:  string(requested),
		}
	}
	if !app.Status.CanTransitionTo(requested) {
		return &core.InvalidTransitionError{
			RecordType: recordType,
			Current:    string(app.Status),
			Requested:  string(requested),
		}
	}
	if !actorAllowed(app.Status, requested, actor) {
		return &core.UnauthorizedTransitionError{
			RecordType: recordType,
			Requested:  string(requested),
			Actor:      string(actor),
		}
	}

	switch requested {
	case StatusPending:
		// every required document type must be uploaded before submission
		for _, docType := range rules.RequiredDocumentTypes {
			if !app.HasDocumentType(docType) {
				return &core.MissingRequiredFieldError{Field: docType}
			}
		}
	case StatusRejected:
		if payload.Reason == "" {
			return &core.MissingRequiredFieldError{Field: "rejection_reason"}
		}
	case StatusCompleted:
		if !app.HasDemoSchedule() {
			return &core.MissingRequiredFieldError{Field: "demo_schedule"}
		}
		if len(payload.Scores) == 0 {
			return &core.MissingRequiredFieldError{Field: "scores"}
		}
		scored := make(map[string]bool, len(payload.Scores))
		for _, cs := range payload.Scores {
			scored[cs.CriteriaID] = true
		}
		for _, criterion := range rules.RubricCriteria {
			if !scored[criterion] {
				return &core.MissingRequiredFieldError{Field: criterion}
			}
		}
	}
	return nil
}

// ApplyTransition computes the record resulting from a validated transition.
// It is deterministic and idempotent for a fixed `now`; it never touches
// storage.
func ApplyTransition(app Application, requested Status, payload TransitionPayload, now time.Time, rules Rules) Application {
	app.Status = requested
	app.UpdatedAt = now.UTC()

	switch requested {
	case StatusApproved:
		if payload.HRNotes != "" {
			app.HRNotes = null.StringFrom(payload.HRNotes)
		}
		// demo schedule is attached later via SetDemoSchedule
	case StatusRejected:
		app.RejectionReason = null.StringFrom(payload.Reason)
		if payload.HRNotes != "" {
			app.HRNotes = null.StringFrom(payload.HRNotes)
		}
	case StatusCompleted:
		total := TotalScore(payload.Scores)
		app.Scores = payload.Scores
		app.TotalScore = null.Float64From(total)
		if total >= rules.PassingScore {
			app.Result = ResultPass
		} else {
			app.Result = ResultFail
		}
		if payload.Feedback != "" {
			app.Feedback = null.StringFrom(payload.Feedback)
		}
	}
	return app
}

// TotalScore computes the weighted mean of the given scores, rounded to 2
// decimal places. A zero weight counts as 1.
func TotalScore(scores []CriterionScore) float64 {
	var sum, weights float64
	for _, cs := range scores {
		w := cs.Weight
		if w == 0 {
			w = 1
		}
		sum += cs.Score * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return core.Round2(sum / weights)
}

// SetDemoSchedule attaches (or overwrites) the demo schedule. It is legal only
// while the application is APPROVED and does not alter the status.
func SetDemoSchedule(app Application, schedule DemoSchedule, now time.Time) (Application, error) {
	if app.Status != StatusApproved {
		return app, &core.InvalidTransitionError{
			RecordType: recordType,
			Current:    string(app.Status),
			Requested:  string(StatusApproved),
		}
	}
	sched := schedule
	app.DemoSchedule = &sched
	app.UpdatedAt = now.UTC()
	return app, nil
}

// StartNewAttempt derives a fresh DRAFT attempt from a terminal prior one.
func StartNewAttempt(prev Application, now time.Time) (Application, error) {
	if !prev.Status.IsTerminal() {
		return Application{}, ErrActiveAttempt
	}
	nowUTC := now.UTC()
	return Application{
		ApplicantID:           prev.ApplicantID,
		Program:               prev.Program,
		SubjectSpecialization: prev.SubjectSpecialization,
		Status:                StatusDraft,
		AttemptNumber:         prev.AttemptNumber + 1,
		CreatedAt:             nowUTC,
		UpdatedAt:             nowUTC,
	}, nil
}
