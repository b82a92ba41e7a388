package application

import (
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ptahub/core"
)

var allActors = []Actor{ActorAdmin, ActorHR, ActorParent, ActorApplicant}

func draftApp(docTypes ...string) Application {
	now := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	app := Application{
		ID:                    "app-01",
		ApplicantID:           "usr-01",
		Program:               "Primary",
		SubjectSpecialization: "Mathematics",
		Status:                StatusDraft,
		AttemptNumber:         1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	for _, dt := range docTypes {
		app.Documents = append(app.Documents, Document{Name: dt + ".pdf", Type: dt, SizeBytes: 1024, UploadedAt: now})
	}
	return app
}

func appInStatus(status Status, docTypes ...string) Application {
	app := draftApp(docTypes...)
	app.Status = status
	return app
}

func fullRubricScores(score float64) []CriterionScore {
	scores := make([]CriterionScore, 0, len(DefaultRubric))
	for _, criterion := range DefaultRubric {
		scores = append(scores, CriterionScore{CriteriaID: criterion, Score: score})
	}
	return scores
}

func TestValidateTransition_illegalPairs(t *testing.T) {
	rules := DefaultRules()
	legal := map[Status][]Status{
		StatusDraft:    {StatusPending},
		StatusPending:  {StatusApproved, StatusRejected},
		StatusApproved: {StatusCompleted},
	}
	isLegal := func(from, to Status) bool {
		for _, s := range legal[from] {
			if s == to {
				return true
			}
		}
		return false
	}

	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			if isLegal(from, to) {
				continue
			}
			for _, actor := range allActors {
				app := appInStatus(from)
				err := ValidateTransition(app, to, actor, TransitionPayload{}, rules)
				var invalid *core.InvalidTransitionError
				if !errors.As(err, &invalid) {
					t.Errorf("ValidateTransition(%s -> %s, %s) error = %v; want InvalidTransitionError", from, to, actor, err)
				}
			}
		}
	}
}

func TestValidateTransition_unauthorizedActors(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		name      string
		app       Application
		requested Status
		payload   TransitionPayload
		denied    []Actor
	}{
		{
			name:      "submit is applicant-only",
			app:       appInStatus(StatusDraft, DocTypeResume, DocTypeLetter, DocTypeDiploma, DocTypeTranscript),
			requested: StatusPending,
			denied:    []Actor{ActorAdmin, ActorHR, ActorParent},
		},
		{
			name:      "approve is HR/admin-only",
			app:       appInStatus(StatusPending),
			requested: StatusApproved,
			denied:    []Actor{ActorParent, ActorApplicant},
		},
		{
			name:      "reject is HR/admin-only",
			app:       appInStatus(StatusPending),
			requested: StatusRejected,
			payload:   TransitionPayload{Reason: "incomplete"},
			denied:    []Actor{ActorParent, ActorApplicant},
		},
		{
			name:      "score is HR/admin-only",
			app:       appInStatus(StatusApproved),
			requested: StatusCompleted,
			payload:   TransitionPayload{Scores: fullRubricScores(80)},
			denied:    []Actor{ActorParent, ActorApplicant},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, actor := range tt.denied {
				err := ValidateTransition(tt.app, tt.requested, actor, tt.payload, rules)
				var unauth *core.UnauthorizedTransitionError
				if !errors.As(err, &unauth) {
					t.Errorf("actor %s: error = %v; want UnauthorizedTransitionError", actor, err)
				}
			}
		})
	}
}

func TestValidateTransition_guards(t *testing.T) {
	rules := DefaultRules()
	demoSched := &DemoSchedule{Date: time.Now(), Time: "09:00", Location: "Room 2B", DurationMinutes: 45}

	withSchedule := func(app Application) Application {
		app.DemoSchedule = demoSched
		return app
	}

	tests := []struct {
		name         string
		app          Application
		requested    Status
		actor        Actor
		payload      TransitionPayload
		missingField string
	}{
		{
			name:         "submit without diploma",
			app:          appInStatus(StatusDraft, DocTypeResume, DocTypeLetter, DocTypeTranscript),
			requested:    StatusPending,
			actor:        ActorApplicant,
			missingField: DocTypeDiploma,
		},
		{
			name:         "submit without any document",
			app:          appInStatus(StatusDraft),
			requested:    StatusPending,
			actor:        ActorApplicant,
			missingField: DocTypeResume,
		},
		{
			name:      "submit with all documents",
			app:       appInStatus(StatusDraft, DocTypeResume, DocTypeLetter, DocTypeDiploma, DocTypeTranscript),
			requested: StatusPending,
			actor:     ActorApplicant,
		},
		{
			name:         "reject with empty reason",
			app:          appInStatus(StatusPending),
			requested:    StatusRejected,
			actor:        ActorHR,
			missingField: "rejection_reason",
		},
		{
			name:      "reject with reason",
			app:       appInStatus(StatusPending),
			requested: StatusRejected,
			actor:     ActorHR,
			payload:   TransitionPayload{Reason: "Incomplete transcript"},
		},
		{
			name:         "score without demo schedule",
			app:          appInStatus(StatusApproved),
			requested:    StatusCompleted,
			actor:        ActorHR,
			payload:      TransitionPayload{Scores: fullRubricScores(80)},
			missingField: "demo_schedule",
		},
		{
			name:         "score without scores",
			app:          withSchedule(appInStatus(StatusApproved)),
			requested:    StatusCompleted,
			actor:        ActorHR,
			missingField: "scores",
		},
		{
			name:      "score missing a rubric criterion",
			app:       withSchedule(appInStatus(StatusApproved)),
			requested: StatusCompleted,
			actor:     ActorHR,
			payload: TransitionPayload{Scores: []CriterionScore{
				{CriteriaID: "lesson_planning", Score: 80},
				{CriteriaID: "subject_mastery", Score: 70},
			}},
			missingField: "delivery",
		},
		{
			name:      "score with full rubric",
			app:       withSchedule(appInStatus(StatusApproved)),
			requested: StatusCompleted,
			actor:     ActorAdmin,
			payload:   TransitionPayload{Scores: fullRubricScores(90)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.app, tt.requested, tt.actor, tt.payload, rules)
			if tt.missingField == "" {
				if err != nil {
					t.Fatalf("ValidateTransition() error = %v; want nil", err)
				}
				return
			}
			var missing *core.MissingRequiredFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("ValidateTransition() error = %v; want MissingRequiredFieldError", err)
			}
			if missing.Field != tt.missingField {
				t.Errorf("missing field = %q; want %q", missing.Field, tt.missingField)
			}
		})
	}
}

func TestApplyTransition_sideEffects(t *testing.T) {
	rules := DefaultRules()
	now := time.Date(2024, time.March, 2, 9, 30, 0, 0, time.UTC)

	t.Run("reject stores reason verbatim", func(t *testing.T) {
		app := ApplyTransition(appInStatus(StatusPending), StatusRejected, TransitionPayload{Reason: "Incomplete transcript"}, now, rules)
		if app.Status != StatusRejected {
			t.Errorf("status = %s; want %s", app.Status, StatusRejected)
		}
		if got := app.RejectionReason.String; got != "Incomplete transcript" {
			t.Errorf("rejectionReason = %q; want %q", got, "Incomplete transcript")
		}
		if !app.UpdatedAt.Equal(now) {
			t.Errorf("updatedAt = %v; want %v", app.UpdatedAt, now)
		}
	})

	t.Run("approve leaves demo schedule unset", func(t *testing.T) {
		app := ApplyTransition(appInStatus(StatusPending), StatusApproved, TransitionPayload{}, now, rules)
		if app.Status != StatusApproved {
			t.Errorf("status = %s; want %s", app.Status, StatusApproved)
		}
		if app.HasDemoSchedule() {
			t.Error("demoSchedule should not be set on approval")
		}
	})

	t.Run("weighted mean and fail result", func(t *testing.T) {
		scores := []CriterionScore{
			{CriteriaID: "a", Score: 80, Weight: 1},
			{CriteriaID: "b", Score: 60, Weight: 3},
		}
		app := ApplyTransition(appInStatus(StatusApproved), StatusCompleted, TransitionPayload{Scores: scores}, now, rules)
		if got := app.TotalScore.Float64; got != 65.00 {
			t.Errorf("totalScore = %v; want 65.00", got)
		}
		if app.Result != ResultFail {
			t.Errorf("result = %s; want %s", app.Result, ResultFail)
		}
	})

	t.Run("pass at the boundary", func(t *testing.T) {
		app := ApplyTransition(appInStatus(StatusApproved), StatusCompleted, TransitionPayload{Scores: fullRubricScores(75)}, now, rules)
		if app.Result != ResultPass {
			t.Errorf("result = %s; want %s", app.Result, ResultPass)
		}
	})

	t.Run("idempotent for fixed now", func(t *testing.T) {
		payload := TransitionPayload{Scores: fullRubricScores(88), Feedback: "solid demo"}
		first := ApplyTransition(appInStatus(StatusApproved), StatusCompleted, payload, now, rules)
		second := ApplyTransition(appInStatus(StatusApproved), StatusCompleted, payload, now, rules)
		if first.TotalScore != second.TotalScore || first.Result != second.Result ||
			first.Status != second.Status || !first.UpdatedAt.Equal(second.UpdatedAt) {
			t.Errorf("ApplyTransition() not idempotent: %+v != %+v", first, second)
		}
	})
}

func TestTotalScore(t *testing.T) {
	tests := []struct {
		name   string
		scores []CriterionScore
		want   float64
	}{
		{name: "empty", want: 0},
		{name: "unweighted defaults to 1", scores: []CriterionScore{{CriteriaID: "a", Score: 80}, {CriteriaID: "b", Score: 70}}, want: 75},
		{name: "weighted", scores: []CriterionScore{{CriteriaID: "a", Score: 80, Weight: 1}, {CriteriaID: "b", Score: 60, Weight: 3}}, want: 65},
		{name: "rounding", scores: []CriterionScore{{CriteriaID: "a", Score: 80}, {CriteriaID: "b", Score: 70}, {CriteriaID: "c", Score: 75}}, want: 75},
		{name: "thirds round to 2dp", scores: []CriterionScore{{CriteriaID: "a", Score: 100}, {CriteriaID: "b", Score: 0}, {CriteriaID: "c", Score: 0}}, want: 33.33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TotalScore(tt.scores); got != tt.want {
				t.Errorf("TotalScore() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestSetDemoSchedule(t *testing.T) {
	now := time.Date(2024, time.March, 3, 8, 0, 0, 0, time.UTC)
	sched := DemoSchedule{Date: now.AddDate(0, 0, 7), Time: "10:00", Location: "Main Hall", DurationMinutes: 30}

	t.Run("legal while approved", func(t *testing.T) {
		app, err := SetDemoSchedule(appInStatus(StatusApproved), sched, now)
		if err != nil {
			t.Fatalf("SetDemoSchedule() error = %v", err)
		}
		if app.Status != StatusApproved {
			t.Errorf("status changed to %s", app.Status)
		}
		if !app.HasDemoSchedule() || app.DemoSchedule.Location != "Main Hall" {
			t.Errorf("demoSchedule not attached: %+v", app.DemoSchedule)
		}
	})

	t.Run("overwrites previous schedule", func(t *testing.T) {
		app, _ := SetDemoSchedule(appInStatus(StatusApproved), sched, now)
		updated := sched
		updated.Location = "Room 5"
		app, err := SetDemoSchedule(app, updated, now.Add(time.Hour))
		if err != nil {
			t.Fatalf("SetDemoSchedule() error = %v", err)
		}
		if app.DemoSchedule.Location != "Room 5" {
			t.Errorf("location = %q; want %q", app.DemoSchedule.Location, "Room 5")
		}
	})

	for _, status := range []Status{StatusDraft, StatusPending, StatusRejected, StatusCompleted} {
		t.Run("illegal while "+string(status), func(t *testing.T) {
			_, err := SetDemoSchedule(appInStatus(status), sched, now)
			var invalid *core.InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Errorf("error = %v; want InvalidTransitionError", err)
			}
		})
	}
}

func TestStartNewAttempt(t *testing.T) {
	now := time.Date(2024, time.April, 1, 12, 0, 0, 0, time.UTC)

	for _, status := range []Status{StatusRejected, StatusCompleted} {
		t.Run("from "+string(status), func(t *testing.T) {
			prev := appInStatus(status)
			prev.AttemptNumber = 2
			next, err := StartNewAttempt(prev, now)
			if err != nil {
				t.Fatalf("StartNewAttempt() error = %v", err)
			}
			if next.AttemptNumber != 3 {
				t.Errorf("attemptNumber = %d; want 3", next.AttemptNumber)
			}
			if next.Status != StatusDraft {
				t.Errorf("status = %s; want %s", next.Status, StatusDraft)
			}
		})
	}

	for _, status := range []Status{StatusDraft, StatusPending, StatusApproved} {
		t.Run("blocked from "+string(status), func(t *testing.T) {
			if _, err := StartNewAttempt(appInStatus(status), now); err != ErrActiveAttempt {
				t.Errorf("error = %v; want %v", err, ErrActiveAttempt)
			}
		})
	}
}
