package sqlxrepos

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ptahub/core/attendance"
)

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

type meetingRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Date      time.Time `db:"date"`
	Location  string    `db:"location"`
	Agenda    string    `db:"agenda"`
	CreatedAt time.Time `db:"created_at"`
}

func (r meetingRow) toDomain() attendance.Meeting {
	return attendance.Meeting(r)
}

type recordRow struct {
	ID           string      `db:"id"`
	MeetingID    string      `db:"meeting_id"`
	ParentID     string      `db:"parent_id"`
	Status       string      `db:"status"`
	HasPenalty   bool        `db:"has_penalty"`
	ExcuseReason null.String `db:"excuse_reason"`
	Penalty      null.JSON   `db:"penalty"`
	CreatedAt    time.Time   `db:"created_at"`
}

func (r recordRow) toDomain() (attendance.Record, error) {
	rec := attendance.Record{
		ID:           r.ID,
		MeetingID:    r.MeetingID,
		ParentID:     r.ParentID,
		Status:       attendance.Status(r.Status),
		HasPenalty:   r.HasPenalty,
		ExcuseReason: r.ExcuseReason,
		CreatedAt:    r.CreatedAt,
	}
	if r.Penalty.Valid {
		var pen attendance.Penalty
		if err := json.Unmarshal(r.Penalty.JSON, &pen); err != nil {
			return attendance.Record{}, errors.Wrap(err, "decoding penalty")
		}
		rec.Penalty = &pen
	}
	return rec, nil
}

func newRecordRow(rec attendance.Record) (recordRow, error) {
	row := recordRow{
		ID:           rec.ID,
		MeetingID:    rec.MeetingID,
		ParentID:     rec.ParentID,
		Status:       string(rec.Status),
		HasPenalty:   rec.HasPenalty,
		ExcuseReason: rec.ExcuseReason,
		CreatedAt:    rec.CreatedAt,
	}
	if rec.Penalty != nil {
		data, err := json.Marshal(rec.Penalty)
		if err != nil {
			return recordRow{}, errors.Wrap(err, "encoding penalty")
		}
		row.Penalty.SetValid(data)
	}
	return row, nil
}

const (
	meetingColumns = `id, title, date, location, agenda, created_at`
	recordColumns  = `id, meeting_id, parent_id, status, has_penalty, excuse_reason, penalty, created_at`
)

func (repo *attendanceRepository) CreateMeeting(m attendance.Meeting) (attendance.Meeting, error) {
	m.ID = uuid.New().String()
	_, err := repo.db.NamedExec(
		`INSERT INTO meeting (`+meetingColumns+`)
		 VALUES (:id, :title, :date, :location, :agenda, :created_at)`,
		meetingRow(m),
	)
	if err != nil {
		return attendance.Meeting{}, errors.Wrap(err, "creating meeting")
	}
	return m, nil
}

func (repo *attendanceRepository) QueryAllMeetings() ([]attendance.Meeting, error) {
	var rows []meetingRow
	if err := repo.db.Select(&rows, `SELECT `+meetingColumns+` FROM meeting ORDER BY date`); err != nil {
		return nil, errors.Wrap(err, "querying meetings")
	}
	meetings := make([]attendance.Meeting, 0, len(rows))
	for _, row := range rows {
		meetings = append(meetings, row.toDomain())
	}
	return meetings, nil
}

func (repo *attendanceRepository) GetMeetingByID(id string) (attendance.Meeting, error) {
	var row meetingRow
	if err := repo.db.Get(&row, `SELECT `+meetingColumns+` FROM meeting WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return attendance.Meeting{}, attendance.ErrMeetingNotFound
		}
		return attendance.Meeting{}, errors.Wrap(err, "getting meeting")
	}
	return row.toDomain(), nil
}

func (repo *attendanceRepository) UpdateMeeting(m attendance.Meeting) (attendance.Meeting, error) {
	orig, err := repo.GetMeetingByID(m.ID)
	if err != nil {
		return attendance.Meeting{}, err
	}
	m.CreatedAt = orig.CreatedAt

	_, err = repo.db.NamedExec(
		`UPDATE meeting SET title = :title, date = :date, location = :location, agenda = :agenda
		 WHERE id = :id`,
		meetingRow(m),
	)
	if err != nil {
		return attendance.Meeting{}, errors.Wrap(err, "updating meeting")
	}
	return m, nil
}

func (repo *attendanceRepository) DeleteMeetingsByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM meeting WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting meetings")
	}
	return nil
}

func (repo *attendanceRepository) UpsertRecords(records []attendance.Record) ([]attendance.Record, error) {
	tx, err := repo.db.Beginx()
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}

	saved := make([]attendance.Record, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		row, err := newRecordRow(rec)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		// on conflict the row keeps its original id and created_at; return those
		rows, err := tx.NamedQuery(
			`INSERT INTO attendance_record (`+recordColumns+`)
			 VALUES (:id, :meeting_id, :parent_id, :status, :has_penalty, :excuse_reason, :penalty, :created_at)
			 ON CONFLICT (meeting_id, parent_id) DO UPDATE
			 SET status = EXCLUDED.status, has_penalty = EXCLUDED.has_penalty,
			     excuse_reason = EXCLUDED.excuse_reason, penalty = EXCLUDED.penalty
			 RETURNING id, created_at`,
			row,
		)
		if err != nil {
			_ = tx.Rollback()
			return nil, errors.Wrap(err, "upserting attendance record")
		}
		if rows.Next() {
			err = rows.Scan(&rec.ID, &rec.CreatedAt)
		}
		_ = rows.Close()
		if err != nil {
			_ = tx.Rollback()
			return nil, errors.Wrap(err, "scanning upserted attendance record")
		}
		saved = append(saved, rec)
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing attendance records")
	}
	return saved, nil
}

func (repo *attendanceRepository) GetRecord(meetingID, parentID string) (attendance.Record, error) {
	var row recordRow
	err := repo.db.Get(&row,
		`SELECT `+recordColumns+` FROM attendance_record WHERE meeting_id = $1 AND parent_id = $2`,
		meetingID, parentID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return attendance.Record{}, attendance.ErrRecordNotFound
		}
		return attendance.Record{}, errors.Wrap(err, "getting attendance record")
	}
	return row.toDomain()
}

func (repo *attendanceRepository) QueryRecordsByMeeting(meetingID string) ([]attendance.Record, error) {
	return repo.selectRecords(
		`SELECT `+recordColumns+` FROM attendance_record WHERE meeting_id = $1`, meetingID)
}

func (repo *attendanceRepository) QueryRecordsByParent(parentID string) ([]attendance.Record, error) {
	return repo.selectRecords(
		`SELECT `+recordColumns+` FROM attendance_record WHERE parent_id = $1`, parentID)
}

func (repo *attendanceRepository) selectRecords(query string, args ...interface{}) ([]attendance.Record, error) {
	var rows []recordRow
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
