package sqlxrepos

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ptahub/core/application"
)

type applicationRepository struct {
	db *sqlx.DB
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *sqlx.DB) application.Repository {
	return &applicationRepository{db: db}
}

type applicationRow struct {
	ID                    string       `db:"id"`
	ApplicantID           string       `db:"applicant_id"`
	Program               string       `db:"program"`
	SubjectSpecialization string       `db:"subject_specialization"`
	Status                string       `db:"status"`
	AttemptNumber         int          `db:"attempt_number"`
	Documents             []byte       `db:"documents"`
	DemoSchedule          null.JSON    `db:"demo_schedule"`
	Scores                null.JSON    `db:"scores"`
	TotalScore            null.Float64 `db:"total_score"`
	Result                null.String  `db:"result"`
	RejectionReason       null.String  `db:"rejection_reason"`
	HRNotes               null.String  `db:"hr_notes"`
	Feedback              null.String  `db:"feedback"`
	CreatedAt             time.Time    `db:"created_at"`
	UpdatedAt             time.Time    `db:"updated_at"`
}

// docRow mirrors application.Document but persists ObjectKey, which the domain
// type hides from API responses.
type docRow struct {
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	SizeBytes  int64     `json:"size_bytes"`
	ObjectKey  string    `json:"object_key"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (r applicationRow) toDomain() (application.Application, error) {
	app := application.Application{
		ID:                    r.ID,
		ApplicantID:           r.ApplicantID,
		Program:               r.Program,
		SubjectSpecialization: r.SubjectSpecialization,
		Status:                application.Status(r.Status),
		AttemptNumber:         r.AttemptNumber,
		TotalScore:            r.TotalScore,
		Result:                application.Result(r.Result.String),
		RejectionReason:       r.RejectionReason,
		HRNotes:               r.HRNotes,
		Feedback:              r.Feedback,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}

	var docs []docRow
	if err := json.Unmarshal(r.Documents, &docs); err != nil {
		return application.Application{}, errors.Wrap(err, "decoding documents")
	}
	for _, doc := range docs {
		app.Documents = append(app.Documents, application.Document{
			Name:       doc.Name,
			Type:       doc.Type,
			SizeBytes:  doc.SizeBytes,
			ObjectKey:  doc.ObjectKey,
			UploadedAt: doc.UploadedAt,
		})
	}
	if r.DemoSchedule.Valid {
		var sched application.DemoSchedule
		if err := json.Unmarshal(r.DemoSchedule.JSON, &sched); err != nil {
			return application.Application{}, errors.Wrap(err, "decoding demo schedule")
		}
		app.DemoSchedule = &sched
	}
	if r.Scores.Valid {
		if err := json.Unmarshal(r.Scores.JSON, &app.Scores); err != nil {
			return application.Application{}, errors.Wrap(err, "decoding scores")
		}
	}
	return app, nil
}

func newApplicationRow(app application.Application) (applicationRow, error) {
	row := applicationRow{
		ID:                    app.ID,
		ApplicantID:           app.ApplicantID,
		Program:               app.Program,
		SubjectSpecialization: app.SubjectSpecialization,
		Status:                string(app.Status),
		AttemptNumber:         app.AttemptNumber,
		TotalScore:            app.TotalScore,
		RejectionReason:       app.RejectionReason,
		HRNotes:               app.HRNotes,
		Feedback:              app.Feedback,
		CreatedAt:             app.CreatedAt,
		UpdatedAt:             app.UpdatedAt,
	}
	if app.Result != "" {
		row.Result.SetValid(string(app.Result))
	}

	docs := make([]docRow, 0, len(app.Documents))
	for _, doc := range app.Documents {
		docs = append(docs, docRow{
			Name:       doc.Name,
			Type:       doc.Type,
			SizeBytes:  doc.SizeBytes,
			ObjectKey:  doc.ObjectKey,
			UploadedAt: doc.UploadedAt,
		})
	}
	var err error
	if row.Documents, err = json.Marshal(docs); err != nil {
		return applicationRow{}, errors.Wrap(err, "encoding documents")
	}
	if app.DemoSchedule != nil {
		data, err := json.Marshal(app.DemoSchedule)
		if err != nil {
			return applicationRow{}, errors.Wrap(err, "encoding demo schedule")
		}
		row.DemoSchedule.SetValid(data)
	}
	if app.Scores != nil {
		data, err := json.Marshal(app.Scores)
		if err != nil {
			return applicationRow{}, errors.Wrap(err, "encoding scores")
		}
		row.Scores.SetValid(data)
	}
	return row, nil
}

const applicationColumns = `id, applicant_id, program, subject_specialization, status, attempt_number,
documents, demo_schedule, scores, total_score, result, rejection_reason, hr_notes, feedback,
created_at, updated_at`

func (repo *applicationRepository) CreateApplication(app application.Application) (application.Application, error) {
	app.ID = uuid.New().String()
	row, err := newApplicationRow(app)
	if err != nil {
		return application.Application{}, err
	}
	_, err = repo.db.NamedExec(
		`INSERT INTO application (`+applicationColumns+`)
		 VALUES (:id, :applicant_id, :program, :subject_specialization, :status, :attempt_number,
		         :documents, :demo_schedule, :scores, :total_score, :result, :rejection_reason,
		         :hr_notes, :feedback, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return application.Application{}, errors.Wrap(err, "creating application")
	}
	return app, nil
}

func (repo *applicationRepository) GetApplicationByID(id string) (application.Application, error) {
	var row applicationRow
	if err := repo.db.Get(&row, `SELECT `+applicationColumns+` FROM application WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return application.Application{}, application.ErrNotFound
		}
		return application.Application{}, errors.Wrap(err, "getting application")
	}
	return row.toDomain()
}

func (repo *applicationRepository) QueryAllApplications() ([]application.Application, error) {
	return repo.selectApps(`SELECT ` + applicationColumns + ` FROM application ORDER BY created_at`)
}

func (repo *applicationRepository) QueryApplicationsByApplicant(applicantID string) ([]application.Application, error) {
	return repo.selectApps(
		`SELECT `+applicationColumns+` FROM application WHERE applicant_id = $1 ORDER BY attempt_number`,
		applicantID,
	)
}

func (repo *applicationRepository) FilterApplications(filter application.QueryFilter) ([]application.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM application WHERE 1=1`
	var args []interface{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Program != "" {
		query += ` AND program = ?`
		args = append(args, filter.Program)
	}
	if filter.ApplicantID != "" {
		query += ` AND applicant_id = ?`
		args = append(args, filter.ApplicantID)
	}
	if filter.Search != "" {
		query += ` AND (program ILIKE ? OR subject_specialization ILIKE ?)`
		kw := "%" + filter.Search + "%"
		args = append(args, kw, kw)
	}
	query += ` ORDER BY created_at`

	return repo.selectApps(repo.db.Rebind(query), args...)
}

func (repo *applicationRepository) selectApps(query string, args ...interface{}) ([]application.Application, error) {
	var rows []applicationRow
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	apps := make([]application.Application, 0, len(rows))
	for _, row := range rows {
		app, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func (repo *applicationRepository) UpdateApplication(app application.Application) (application.Application, error) {
	row, err := newApplicationRow(app)
	if err != nil {
		return application.Application{}, err
	}
	res, err := repo.db.NamedExec(
		`UPDATE application
		 SET program = :program, subject_specialization = :subject_specialization, status = :status,
		     attempt_number = :attempt_number, documents = :documents, demo_schedule = :demo_schedule,
		     scores = :scores, total_score = :total_score, result = :result,
		     rejection_reason = :rejection_reason, hr_notes = :hr_notes, feedback = :feedback,
		     updated_at = :updated_at
		 WHERE id = :id`,
		row,
	)
	if err != nil {
		return application.Application{}, errors.Wrap(err, "updating application")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return application.Application{}, application.ErrNotFound
	}
	return app, nil
}

func (repo *applicationRepository) DeleteApplicationsByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM application WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting applications")
	}
	return nil
}
