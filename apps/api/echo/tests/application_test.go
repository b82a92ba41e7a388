package tests

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/trezcool/ptahub/core/application"
	"github.com/trezcool/ptahub/core/user"
	testutil "github.com/trezcool/ptahub/tests"
)

func Test_applicationApi_create(t *testing.T) {
	db.Reset()

	applicant := testutil.CreateUser(t, usrRepo, "App Licant", "applicant", "applicant@test.cd", "", []string{user.RoleApplicant}, true)
	token := getToken(t, applicant)

	t.Run("Auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/applications")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("Fields required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/applications", token, marchallObj(t, application.NewApplication{}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"program":                "this field is required",
				"subject_specialization": "this field is required",
			}),
		}, rec)
	})

	t.Run("Draft created", func(t *testing.T) {
		data := application.NewApplication{Program: "Primary Education", SubjectSpecialization: "Mathematics"}
		req, rec := newAuthRequest(http.MethodPost, "/v1/applications", token, marchallObj(t, data))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body: %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var created application.Application
		decodeBody(t, rec, &created)
		if created.Status != application.StatusDraft {
			t.Errorf("status = %v; want %v", created.Status, application.StatusDraft)
		}
		if created.AttemptNumber != 1 {
			t.Errorf("attemptNumber = %v; want 1", created.AttemptNumber)
		}
		if created.ApplicantID != applicant.ID {
			t.Errorf("applicantID = %v; want %v", created.ApplicantID, applicant.ID)
		}
	})

	t.Run("One active application at a time", func(t *testing.T) {
		data := application.NewApplication{Program: "Primary Education", SubjectSpecialization: "Physics"}
		req, rec := newAuthRequest(http.MethodPost, "/v1/applications", token, marchallObj(t, data))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "an active application already exists"}),
		}, rec)
	})
}

func Test_applicationApi_submit(t *testing.T) {
	db.Reset()

	applicant := testutil.CreateUser(t, usrRepo, "App Licant", "applicant", "applicant@test.cd", "", []string{user.RoleApplicant}, true)
	other := testutil.CreateUser(t, usrRepo, "Other Applicant", "other", "other@test.cd", "", []string{user.RoleApplicant}, true)
	hr := testutil.CreateUser(t, usrRepo, "H R", "hr", "hr@test.cd", "", []string{user.RoleHR}, true)

	incomplete := createApplication(t, applicant.ID, application.StatusDraft,
		application.DocTypeResume, application.DocTypeLetter)
	ready := createApplication(t, other.ID, application.StatusDraft,
		application.DocTypeResume, application.DocTypeLetter, application.DocTypeDiploma)

	submitPath := func(a application.Application) string { return "/v1/applications/" + a.ID + "/submit" }

	tests := []httpTest{
		{name: "Auth required", path: submitPath(ready), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Hidden from other applicants", path: submitPath(ready), token: getToken(t, applicant),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "Missing required document", path: submitPath(incomplete), token: getToken(t, applicant),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"diploma": "missing required field: diploma"}),
		},
		{
			name: "Reviewer may not submit", path: submitPath(ready), token: getToken(t, hr),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: `application: role "HR" may not request "PENDING"`}),
		},
		{name: "Submitted", path: submitPath(ready), token: getToken(t, other), wantCode: http.StatusOK},
		{
			name: "Already submitted", path: submitPath(ready), token: getToken(t, other),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: `application: illegal transition "PENDING" -> "PENDING"`}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, tt.token)
			app.ServeHTTP(rec, req)

			checkCodeAndData(t, tt, rec)
			if tt.name == "Submitted" {
				var submitted application.Application
				decodeBody(t, rec, &submitted)
				if submitted.Status != application.StatusPending {
					t.Errorf("status = %v; want %v", submitted.Status, application.StatusPending)
				}
			}
		})
	}
}

func Test_applicationApi_reviewFlow(t *testing.T) {
	db.Reset()

	applicant := testutil.CreateUser(t, usrRepo, "App Licant", "applicant", "applicant@test.cd", "", []string{user.RoleApplicant}, true)
	hr := testutil.CreateUser(t, usrRepo, "H R", "hr", "hr@test.cd", "", []string{user.RoleHR}, true)
	hrToken := getToken(t, hr)

	pending := createApplication(t, applicant.ID, application.StatusPending,
		application.DocTypeResume, application.DocTypeLetter, application.DocTypeDiploma)
	basePath := "/v1/applications/" + pending.ID

	fullScores := func(score float64) []application.CriterionScore {
		scores := make([]application.CriterionScore, 0, len(application.DefaultRubric))
		for _, criterion := range application.DefaultRubric {
			scores = append(scores, application.CriterionScore{CriteriaID: criterion, Score: score})
		}
		return scores
	}

	t.Run("Applicant may not approve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, basePath+"/approve", getToken(t, applicant))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
	})

	t.Run("Rejection needs a reason", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, basePath+"/reject", hrToken, marchallObj(t, application.TransitionPayload{}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"rejection_reason": "missing required field: rejection_reason"}),
		}, rec)
	})

	t.Run("Approved", func(t *testing.T) {
		data := application.TransitionPayload{HRNotes: "Strong profile"}
		req, rec := newAuthRequest(http.MethodPost, basePath+"/approve", hrToken, marchallObj(t, data))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var approved application.Application
		decodeBody(t, rec, &approved)
		if approved.Status != application.StatusApproved {
			t.Errorf("status = %v; want %v", approved.Status, application.StatusApproved)
		}
		if approved.HRNotes.String != "Strong profile" {
			t.Errorf("hrNotes = %q; want %q", approved.HRNotes.String, "Strong profile")
		}
	})

	t.Run("Scoring needs a demo schedule", func(t *testing.T) {
		data := application.TransitionPayload{Scores: fullScores(80)}
		req, rec := newAuthRequest(http.MethodPost, basePath+"/score", hrToken, marchallObj(t, data))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"demo_schedule": "missing required field: demo_schedule"}),
		}, rec)
	})

	t.Run("Demo scheduled", func(t *testing.T) {
		sched := application.DemoSchedule{
			Date:            pending.CreatedAt.AddDate(0, 0, 7),
			Time:            "10:00",
			Location:        "Room 4B",
			DurationMinutes: 45,
		}
		req, rec := newAuthRequest(http.MethodPost, basePath+"/demo-schedule", hrToken, marchallObj(t, sched))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var scheduled application.Application
		decodeBody(t, rec, &scheduled)
		if !scheduled.HasDemoSchedule() {
			t.Error("expected a demo schedule")
		}
		if scheduled.Status != application.StatusApproved {
			t.Errorf("status = %v; want %v", scheduled.Status, application.StatusApproved)
		}
	})

	t.Run("Every rubric criterion must be scored", func(t *testing.T) {
		data := application.TransitionPayload{Scores: fullScores(80)[:len(application.DefaultRubric)-1]}
		missing := application.DefaultRubric[len(application.DefaultRubric)-1]
		req, rec := newAuthRequest(http.MethodPost, basePath+"/score", hrToken, marchallObj(t, data))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{missing: "missing required field: " + missing}),
		}, rec)
	})

	t.Run("Completed with a passing score", func(t *testing.T) {
		data := application.TransitionPayload{Scores: fullScores(80), Feedback: "Solid demo"}
		req, rec := newAuthRequest(http.MethodPost, basePath+"/score", hrToken, marchallObj(t, data))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var completed application.Application
		decodeBody(t, rec, &completed)
		if completed.Status != application.StatusCompleted {
			t.Errorf("status = %v; want %v", completed.Status, application.StatusCompleted)
		}
		if completed.Result != application.ResultPass {
			t.Errorf("result = %v; want %v", completed.Result, application.ResultPass)
		}
		if completed.TotalScore.Float64 != 80 {
			t.Errorf("totalScore = %v; want 80", completed.TotalScore.Float64)
		}
	})

	t.Run("Terminal records admit no further transitions", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, basePath+"/approve", hrToken, marchallObj(t, application.TransitionPayload{}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: `application: illegal transition "COMPLETED" -> "APPROVED"`}),
		}, rec)
	})
}

func Test_applicationApi_reject(t *testing.T) {
	db.Reset()

	applicant := testutil.CreateUser(t, usrRepo, "App Licant", "applicant", "applicant@test.cd", "", []string{user.RoleApplicant}, true)
	hr := testutil.CreateUser(t, usrRepo, "H R", "hr", "hr@test.cd", "", []string{user.RoleHR}, true)

	pending := createApplication(t, applicant.ID, application.StatusPending,
		application.DocTypeResume, application.DocTypeLetter, application.DocTypeDiploma)

	data := application.TransitionPayload{Reason: "Incomplete transcript"}
	req, rec := newAuthRequest(http.MethodPost, "/v1/applications/"+pending.ID+"/reject", getToken(t, hr), marchallObj(t, data))
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v; want %v; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var rejected application.Application
	decodeBody(t, rec, &rejected)
	if rejected.Status != application.StatusRejected {
		t.Errorf("status = %v; want %v", rejected.Status, application.StatusRejected)
	}
	if rejected.RejectionReason.String != "Incomplete transcript" {
		t.Errorf("rejectionReason = %q; want %q", rejected.RejectionReason.String, "Incomplete transcript")
	}
}

func Test_applicationApi_idempotentTransitions(t *testing.T) {
	db.Reset()

	applicant := testutil.CreateUser(t, usrRepo, "App Licant", "applicant", "applicant@test.cd", "", []string{user.RoleApplicant}, true)
	hr := testutil.CreateUser(t, usrRepo, "H R", "hr", "hr@test.cd", "", []string{user.RoleHR}, true)

	draft := createApplication(t, applicant.ID, application.StatusDraft,
		application.DocTypeResume, application.DocTypeLetter, application.DocTypeDiploma)
	submitPath := "/v1/applications/" + draft.ID + "/submit"

	submit := func(idemKey string) *httptest.ResponseRecorder {
		req, rec := newAuthRequest(http.MethodPost, submitPath, getToken(t, applicant))
		if idemKey != "" {
			req.Header.Set("Idempotency-Key", idemKey)
		}
		app.ServeHTTP(rec, req)
		return rec
	}

	if rec := submit("key-1"); rec.Code != http.StatusOK {
		t.Fatalf("submit: code = %v; body: %s", rec.Code, rec.Body.String())
	}

	// the application moves on before the client retries
	req, rec := newAuthRequest(http.MethodPost, "/v1/applications/"+draft.ID+"/approve", getToken(t, hr),
		marchallObj(t, application.TransitionPayload{}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: code = %v; body: %s", rec.Code, rec.Body.String())
	}

	// replay with the same key returns the current state instead of a conflict
	rec = submit("key-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("replayed submit: code = %v; body: %s", rec.Code, rec.Body.String())
	}
	var replayed application.Application
	decodeBody(t, rec, &replayed)
	if replayed.Status != application.StatusApproved {
		t.Errorf("status = %v; want %v", replayed.Status, application.StatusApproved)
	}

	// a fresh key is a genuine new request and fails the transition table
	if rec := submit("key-2"); rec.Code != http.StatusConflict {
		t.Errorf("fresh key: code = %v; want %v", rec.Code, http.StatusConflict)
	}
}

func Test_applicationApi_documents(t *testing.T) {
	db.Reset()

	applicant := testutil.CreateUser(t, usrRepo, "App Licant", "applicant", "applicant@test.cd", "", []string{user.RoleApplicant}, true)
	token := getToken(t, applicant)

	draft := createApplication(t, applicant.ID, application.StatusDraft, application.DocTypeResume)
	basePath := "/v1/applications/" + draft.ID

	t.Run("Upload", func(t *testing.T) {
		body := new(bytes.Buffer)
		w := multipart.NewWriter(body)
		fw, err := w.CreateFormFile(application.DocTypeDiploma, "diploma.pdf")
		if err != nil {
			t.Fatalf("CreateFormFile(): %v", err)
		}
		if _, err = fw.Write([]byte("fake diploma content")); err != nil {
			t.Fatalf("writing form file: %v", err)
		}
		_ = w.Close()

		req := httptest.NewRequest(http.MethodPost, basePath+"/documents", body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var updated application.Application
		decodeBody(t, rec, &updated)
		if !updated.HasDocumentType(application.DocTypeDiploma) {
			t.Error("expected the diploma document to be attached")
		}
	})

	t.Run("Download", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, basePath+"/documents/diploma.pdf", token)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		if got := rec.Body.String(); got != "fake diploma content" {
			t.Errorf("content = %q; want %q", got, "fake diploma content")
		}
	})

	t.Run("Unknown document", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, basePath+"/documents/nope.pdf", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "document not found"}),
		}, rec)
	})
}

func Test_applicationApi_queryAndStats(t *testing.T) {
	db.Reset()

	applicant := testutil.CreateUser(t, usrRepo, "App Licant", "applicant", "applicant@test.cd", "", []string{user.RoleApplicant}, true)
	other := testutil.CreateUser(t, usrRepo, "Other Applicant", "other", "other@test.cd", "", []string{user.RoleApplicant}, true)
	hr := testutil.CreateUser(t, usrRepo, "H R", "hr", "hr@test.cd", "", []string{user.RoleHR}, true)

	mine := createApplication(t, applicant.ID, application.StatusPending, application.DocTypeResume)
	createApplication(t, other.ID, application.StatusDraft)

	t.Run("Query is reviewer-only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/applications", getToken(t, applicant))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
	})

	t.Run("Reviewer sees all", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/applications", getToken(t, hr))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body: %s", rec.Code, rec.Body.String())
		}
		var apps []application.Application
		decodeBody(t, rec, &apps)
		if len(apps) != 2 {
			t.Errorf("expected 2 applications; got %d", len(apps))
		}
	})

	t.Run("Filter by status", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/applications?status=PENDING", getToken(t, hr))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body: %s", rec.Code, rec.Body.String())
		}
		var apps []application.Application
		decodeBody(t, rec, &apps)
		if len(apps) != 1 || apps[0].ID != mine.ID {
			t.Errorf("expected only the pending application; got %s", rec.Body.String())
		}
	})

	t.Run("My applications", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/applications/my-applications", getToken(t, applicant))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body: %s", rec.Code, rec.Body.String())
		}
		var apps []application.Application
		decodeBody(t, rec, &apps)
		if len(apps) != 1 || apps[0].ID != mine.ID {
			t.Errorf("expected only own application; got %s", rec.Body.String())
		}
	})

	t.Run("My active application", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/applications/my-active-application", getToken(t, applicant))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body: %s", rec.Code, rec.Body.String())
		}
		var active application.Application
		decodeBody(t, rec, &active)
		if active.ID != mine.ID {
			t.Errorf("active application = %s; want %s", active.ID, mine.ID)
		}
	})

	t.Run("No active application", func(t *testing.T) {
		fresh := testutil.CreateUser(t, usrRepo, "Fresh", "fresh", "fresh@test.cd", "", []string{user.RoleApplicant}, true)
		req, rec := newAuthRequest(http.MethodGet, "/v1/applications/my-active-application", getToken(t, fresh))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "application not found"})}, rec)
	})

	t.Run("Stats", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/applications/stats", getToken(t, hr))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body: %s", rec.Code, rec.Body.String())
		}
		var stats application.Stats
		decodeBody(t, rec, &stats)
		if stats.Total != 2 {
			t.Errorf("total = %d; want 2", stats.Total)
		}
		if stats.StatusCounts[application.StatusPending] != 1 {
			t.Errorf("pending count = %d; want 1", stats.StatusCounts[application.StatusPending])
		}
	})

	t.Run("Detail has progress", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/applications/"+mine.ID, getToken(t, applicant))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body: %s", rec.Code, rec.Body.String())
		}
		var detail struct {
			application.Application
			ProgressPercentage float64 `json:"progress_percentage"`
		}
		decodeBody(t, rec, &detail)
		if detail.ProgressPercentage != 25 { // PENDING is the first of four stages
			t.Errorf("progressPercentage = %v; want 25", detail.ProgressPercentage)
		}
	})
}
