package application

import (
	"io"
	"net/mail"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ptahub/core"
	"github.com/trezcool/ptahub/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound         = errors.New("application not found")
	ErrActiveAttempt    = errors.New("an active application already exists")
	ErrDocumentNotFound = errors.New("document not found")

	// replayed idempotency keys are dropped after this long
	idemKeyTTL = time.Hour
)

type (
	Repository interface {
		CreateApplication(app Application) (Application, error)
		GetApplicationByID(id string) (Application, error)
		QueryAllApplications() ([]Application, error)
		QueryApplicationsByApplicant(applicantID string) ([]Application, error)
		// FilterApplications applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Program or SubjectSpecialization.
		FilterApplications(filter QueryFilter) ([]Application, error)
		UpdateApplication(app Application) (Application, error)
		DeleteApplicationsByID(ids ...string) error
	}

	// DocumentUpload is one incoming multipart file part.
	DocumentUpload struct {
		Name    string
		Type    string
		Content io.Reader
	}

	Service interface {
		Create(applicantID string, na NewApplication, uploads ...DocumentUpload) (Application, error)
		AttachDocument(id string, upload DocumentUpload) (Application, error)
		Submit(id string, actor Actor, idemKey string) (Application, error)
		Approve(id string, actor Actor, hrNotes, idemKey string) (Application, error)
		Reject(id string, actor Actor, reason, hrNotes, idemKey string) (Application, error)
		ScheduleDemo(id string, actor Actor, sched DemoSchedule) (Application, error)
		Score(id string, actor Actor, scores []CriterionScore, feedback, idemKey string) (Application, error)
		GetByID(id string) (Application, error)
		QueryAll() ([]Application, error)
		Filter(filter QueryFilter) ([]Application, error)
		QueryByApplicant(applicantID string) ([]Application, error)
		GetActiveByApplicant(applicantID string) (Application, error)
		OpenDocument(id, name string) (io.ReadCloser, Document, error)
		Stats() (Stats, error)
	}

	service struct {
		repo    Repository
		usrSvc  user.Service
		mailSvc core.EmailService
		files   core.FileStorage
		rules   Rules

		mu       sync.Mutex
		idemSeen map[string]time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, mailSvc core.EmailService, files core.FileStorage, conf *core.Config) Service {
	return &service{
		repo:     repo,
		usrSvc:   usrSvc,
		mailSvc:  mailSvc,
		files:    files,
		rules:    RulesFromConfig(conf),
		idemSeen: make(map[string]time.Time),
	}
}

func (svc *service) Create(applicantID string, na NewApplication, uploads ...DocumentUpload) (Application, error) {
	prior, err := svc.repo.QueryApplicationsByApplicant(applicantID)
	if err != nil {
		return Application{}, errors.Wrap(err, "querying prior attempts")
	}
	for _, app := range prior {
		if !app.Status.IsTerminal() {
			return Application{}, core.NewValidationError(ErrActiveAttempt)
		}
	}

	now := NowFunc().UTC()
	app := Application{
		ApplicantID:           applicantID,
		Program:               na.Program,
		SubjectSpecialization: na.SubjectSpecialization,
		Status:                StatusDraft,
		AttemptNumber:         len(prior) + 1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	for _, up := range uploads {
		doc, err := svc.saveUpload(up, now)
		if err != nil {
			return Application{}, err
		}
		app.Documents = append(app.Documents, doc)
	}
	return svc.repo.CreateApplication(app)
}

func (svc *service) AttachDocument(id string, upload DocumentUpload) (Application, error) {
	app, err := svc.repo.GetApplicationByID(id)
	if err != nil {
		return Application{}, err
	}
	if app.Status != StatusDraft {
		return Application{}, &core.InvalidTransitionError{
			RecordType: recordType,
			Current:    string(app.Status),
			Requested:  string(StatusDraft),
		}
	}

	now := NowFunc().UTC()
	doc, err := svc.saveUpload(upload, now)
	if err != nil {
		return Application{}, err
	}

	// a re-upload under the same name replaces the previous document
	for i, existing := range app.Documents {
		if existing.Name == doc.Name {
			_ = svc.files.Delete(existing.ObjectKey)
			app.Documents[i] = doc
			app.UpdatedAt = now
			return svc.repo.UpdateApplication(app)
		}
	}
	app.Documents = append(app.Documents, doc)
	app.UpdatedAt = now
	return svc.repo.UpdateApplication(app)
}

func (svc *service) saveUpload(up DocumentUpload, now time.Time) (Document, error) {
	key, size, err := svc.files.Save(up.Name, up.Content)
	if err != nil {
		return Document{}, errors.Wrap(err, "saving document "+up.Name)
	}
	return Document{
		Name:       up.Name,
		Type:       up.Type,
		SizeBytes:  size,
		ObjectKey:  key,
		UploadedAt: now,
	}, nil
}

func (svc *service) Submit(id string, actor Actor, idemKey string) (Application, error) {
	return svc.transition(id, StatusPending, actor, TransitionPayload{}, idemKey)
}

func (svc *service) Approve(id string, actor Actor, hrNotes, idemKey string) (Application, error) {
	return svc.transition(id, StatusApproved, actor, TransitionPayload{HRNotes: hrNotes}, idemKey)
}

func (svc *service) Reject(id string, actor Actor, reason, hrNotes, idemKey string) (Application, error) {
	return svc.transition(id, StatusRejected, actor, TransitionPayload{Reason: reason, HRNotes: hrNotes}, idemKey)
}

func (svc *service) Score(id string, actor Actor, scores []CriterionScore, feedback, idemKey string) (Application, error) {
	return svc.transition(id, StatusCompleted, actor, TransitionPayload{Scores: scores, Feedback: feedback}, idemKey)
}

func (svc *service) transition(id string, requested Status, actor Actor, payload TransitionPayload, idemKey string) (Application, error) {
	app, err := svc.repo.GetApplicationByID(id)
	if err != nil {
		return Application{}, err
	}
	if idemKey != "" && svc.seenIdemKey(id, idemKey) {
		// replay of an already-applied transition; return current state as-is
		return app, nil
	}
	if err = ValidateTransition(app, requested, actor, payload, svc.rules); err != nil {
		return Application{}, err
	}
	app = ApplyTransition(app, requested, payload, NowFunc(), svc.rules)
	if app, err = svc.repo.UpdateApplication(app); err != nil {
		return Application{}, err
	}
	if idemKey != "" {
		svc.rememberIdemKey(id, idemKey)
	}
	svc.notifyStatusChange(app)
	return app, nil
}

func (svc *service) ScheduleDemo(id string, actor Actor, sched DemoSchedule) (Application, error) {
	if actor != ActorHR && actor != ActorAdmin {
		return Application{}, &core.UnauthorizedTransitionError{
			RecordType: recordType,
			Requested:  string(StatusApproved),
			Actor:      string(actor),
		}
	}
	app, err := svc.repo.GetApplicationByID(id)
	if err != nil {
		return Application{}, err
	}
	if app, err = SetDemoSchedule(app, sched, NowFunc()); err != nil {
		return Application{}, err
	}
	if app, err = svc.repo.UpdateApplication(app); err != nil {
		return Application{}, err
	}
	svc.notifyDemoScheduled(app)
	return app, nil
}

func (svc *service) GetByID(id string) (Application, error) {
	return svc.repo.GetApplicationByID(id)
}

func (svc *service) QueryAll() ([]Application, error) {
	return svc.repo.QueryAllApplications()
}

func (svc *service) Filter(filter QueryFilter) ([]Application, error) {
	return svc.repo.FilterApplications(filter)
}

func (svc *service) QueryByApplicant(applicantID string) ([]Application, error) {
	return svc.repo.QueryApplicationsByApplicant(applicantID)
}

func (svc *service) GetActiveByApplicant(applicantID string) (Application, error) {
	apps, err := svc.repo.QueryApplicationsByApplicant(applicantID)
	if err != nil {
		return Application{}, err
	}
	for _, app := range apps {
		if !app.Status.IsTerminal() {
			return app, nil
		}
	}
	return Application{}, ErrNotFound
}

func (svc *service) OpenDocument(id, name string) (io.ReadCloser, Document, error) {
	app, err := svc.repo.GetApplicationByID(id)
	if err != nil {
		return nil, Document{}, err
	}
	doc, ok := app.GetDocument(name)
	if !ok {
		return nil, Document{}, ErrDocumentNotFound
	}
	rc, err := svc.files.Open(doc.ObjectKey)
	if err != nil {
		return nil, Document{}, errors.Wrap(err, "opening document "+name)
	}
	return rc, doc, nil
}

func (svc *service) Stats() (Stats, error) {
	apps, err := svc.repo.QueryAllApplications()
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(apps), nil
}

// Idempotency key memory

func (svc *service) seenIdemKey(id, key string) bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	_, ok := svc.idemSeen[id+"|"+key]
	return ok
}

func (svc *service) rememberIdemKey(id, key string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	now := NowFunc()
	for k, seen := range svc.idemSeen {
		if now.Sub(seen) > idemKeyTTL {
			delete(svc.idemSeen, k)
		}
	}
	svc.idemSeen[id+"|"+key] = now
}

// Notifications

func (svc *service) notifyStatusChange(app Application) {
	usr, err := svc.usrSvc.GetByID(app.ApplicantID)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Application Update",
		TemplateName: "application-status",
		TemplateData: app,
	})
}

func (svc *service) notifyDemoScheduled(app Application) {
	usr, err := svc.usrSvc.GetByID(app.ApplicantID)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Teaching Demo Scheduled",
		TemplateName: "demo-scheduled",
		TemplateData: app,
	})
}
