package dummydb

import (
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/ptahub/core/attendance"
)

type attendanceRepository struct {
	meetings *meetingTable
	records  *recordTable
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{meetings: db.meeting, records: db.record}
}

func recordKey(meetingID, parentID string) string {
	return meetingID + "|" + parentID
}

func (repo *attendanceRepository) CreateMeeting(m attendance.Meeting) (attendance.Meeting, error) {
	repo.meetings.Lock()
	defer repo.meetings.Unlock()

	m.ID = uuid.New().String()
	repo.meetings.table[m.ID] = &m
	return m, nil
}

func (repo *attendanceRepository) QueryAllMeetings() ([]attendance.Meeting, error) {
	repo.meetings.RLock()
	defer repo.meetings.RUnlock()

	meetings := make([]attendance.Meeting, 0, len(repo.meetings.table))
	for _, m := range repo.meetings.table {
		meetings = append(meetings, *m)
	}
	sort.Slice(meetings, func(i, j int) bool { return meetings[i].Date.Before(meetings[j].Date) })
	return meetings, nil
}

func (repo *attendanceRepository) GetMeetingByID(id string) (attendance.Meeting, error) {
	repo.meetings.RLock()
	defer repo.meetings.RUnlock()

	if m, ok := repo.meetings.table[id]; ok {
		return *m, nil
	}
	return attendance.Meeting{}, attendance.ErrMeetingNotFound
}

func (repo *attendanceRepository) UpdateMeeting(m attendance.Meeting) (attendance.Meeting, error) {
	repo.meetings.Lock()
	defer repo.meetings.Unlock()

	orig, ok := repo.meetings.table[m.ID]
	if !ok {
		return attendance.Meeting{}, attendance.ErrMeetingNotFound
	}
	m.CreatedAt = orig.CreatedAt
	repo.meetings.table[m.ID] = &m
	return m, nil
}

func (repo *attendanceRepository) DeleteMeetingsByID(ids ...string) error {
	repo.meetings.Lock()
	repo.records.Lock()
	defer repo.meetings.Unlock()
	defer repo.records.Unlock()

	for _, id := range ids {
		delete(repo.meetings.table, id)
		for key, rec := range repo.records.table {
			if rec.MeetingID == id {
				delete(repo.records.table, key)
			}
		}
	}
	return nil
}

func (repo *attendanceRepository) UpsertRecords(records []attendance.Record) ([]attendance.Record, error) {
	repo.records.Lock()
	defer repo.records.Unlock()

	saved := make([]attendance.Record, 0, len(records))
	for _, rec := range records {
		key := recordKey(rec.MeetingID, rec.ParentID)
		// a correction keeps the original record's identity
		if orig, ok := repo.records.table[key]; ok {
			rec.ID = orig.ID
			rec.CreatedAt = orig.CreatedAt
		} else if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		rec := rec
		repo.records.table[key] = &rec
		saved = append(saved, rec)
	}
	return saved, nil
}

func (repo *attendanceRepository) GetRecord(meetingID, parentID string) (attendance.Record, error) {
	repo.records.RLock()
	defer repo.records.RUnlock()

	if rec, ok := repo.records.table[recordKey(meetingID, parentID)]; ok {
		return *rec, nil
	}
	return attendance.Record{}, attendance.ErrRecordNotFound
}

func (repo *attendanceRepository) QueryRecordsByMeeting(meetingID string) ([]attendance.Record, error) {
	repo.records.RLock()
	defer repo.records.RUnlock()

	var records []attendance.Record
	for _, rec := range repo.records.table {
		if rec.MeetingID == meetingID {
			records = append(records, *rec)
		}
	}
	return records, nil
}

func (repo *attendanceRepository) QueryRecordsByParent(parentID string) ([]attendance.Record, error) {
	repo.records.RLock()
	defer repo.records.RUnlock()

	var records []attendance.Record
	for _, rec := range repo.records.table {
		if rec.ParentID == parentID {
			records = append(records, *rec)
		}
	}
	return records, nil
}
