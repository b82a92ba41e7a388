package attendance

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ptahub/core"
)

type repoMock struct {
	meetings map[string]Meeting
	records  map[string]Record // key: meetingID|parentID
	nextID   int
}

var _ Repository = (*repoMock)(nil)

func newRepoMock() *repoMock {
	return &repoMock{meetings: make(map[string]Meeting), records: make(map[string]Record)}
}

func (r *repoMock) CreateMeeting(m Meeting) (Meeting, error) {
	r.nextID++
	m.ID = string(rune('a' + r.nextID))
	r.meetings[m.ID] = m
	return m, nil
}

func (r *repoMock) QueryAllMeetings() ([]Meeting, error) {
	all := make([]Meeting, 0, len(r.meetings))
	for _, m := range r.meetings {
		all = append(all, m)
	}
	return all, nil
}

func (r *repoMock) GetMeetingByID(id string) (Meeting, error) {
	if m, ok := r.meetings[id]; ok {
		return m, nil
	}
	return Meeting{}, ErrMeetingNotFound
}

func (r *repoMock) UpdateMeeting(m Meeting) (Meeting, error) {
	r.meetings[m.ID] = m
	return m, nil
}

func (r *repoMock) DeleteMeetingsByID(ids ...string) error {
	for _, id := range ids {
		delete(r.meetings, id)
	}
	return nil
}

func (r *repoMock) UpsertRecords(records []Record) ([]Record, error) {
	for i, rec := range records {
		if rec.ID == "" {
			r.nextID++
			rec.ID = string(rune('A' + r.nextID))
			records[i] = rec
		}
		r.records[rec.MeetingID+"|"+rec.ParentID] = rec
	}
	return records, nil
}

func (r *repoMock) GetRecord(meetingID, parentID string) (Record, error) {
	if rec, ok := r.records[meetingID+"|"+parentID]; ok {
		return rec, nil
	}
	return Record{}, ErrRecordNotFound
}

func (r *repoMock) QueryRecordsByMeeting(meetingID string) ([]Record, error) {
	var recs []Record
	for _, rec := range r.records {
		if rec.MeetingID == meetingID {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func (r *repoMock) QueryRecordsByParent(parentID string) ([]Record, error) {
	var recs []Record
	for _, rec := range r.records {
		if rec.ParentID == parentID {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func testConf() *core.Config {
	return &core.Config{
		Workflow: core.WorkflowConfig{
			PassingScore:    75,
			PenaltyAmount:   50,
			PenaltyDueDelta: 14 * 24 * time.Hour,
		},
	}
}

func newTestService(t *testing.T) (Service, *repoMock, Meeting) {
	t.Helper()
	repo := newRepoMock()
	svc := NewService(repo, testConf())
	meeting, err := svc.CreateMeeting(NewMeeting{Title: "Q1 General Assembly", Date: time.Now(), Location: "Main Hall"})
	require.NoError(t, err)
	return svc, repo, meeting
}

func TestHasPenalty(t *testing.T) {
	tests := []struct {
		name         string
		status       Status
		excuseReason string
		want         bool
	}{
		{name: "present", status: StatusPresent, want: false},
		{name: "absent", status: StatusAbsent, want: true},
		{name: "absent with reason still penalized", status: StatusAbsent, excuseReason: "traffic", want: true},
		{name: "excused with reason", status: StatusExcused, excuseReason: "medical", want: false},
		{name: "excused without reason", status: StatusExcused, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPenalty(tt.status, tt.excuseReason))
		})
	}
}

func TestService_Record(t *testing.T) {
	t.Run("unknown meeting", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Record("nope", []RecordEntry{{ParentID: "p1", Status: StatusPresent}})
		assert.Equal(t, ErrMeetingNotFound, errors.Cause(err))
	})

	t.Run("penalty created for absence", func(t *testing.T) {
		svc, _, meeting := newTestService(t)
		recs, err := svc.Record(meeting.ID, []RecordEntry{{ParentID: "p1", Status: StatusAbsent}})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.True(t, recs[0].HasPenalty)
		require.NotNil(t, recs[0].Penalty)
		assert.Equal(t, 50.0, recs[0].Penalty.Amount)
		assert.Equal(t, PenaltyPending, recs[0].Penalty.Status)
		assert.False(t, recs[0].Penalty.DueDate.IsZero())
	})

	t.Run("no penalty for excused with reason", func(t *testing.T) {
		svc, _, meeting := newTestService(t)
		recs, err := svc.Record(meeting.ID, []RecordEntry{{ParentID: "p1", Status: StatusExcused, ExcuseReason: "medical"}})
		require.NoError(t, err)
		assert.False(t, recs[0].HasPenalty)
		assert.Nil(t, recs[0].Penalty)
		assert.Equal(t, "medical", recs[0].ExcuseReason.String)
	})

	t.Run("re-recording overwrites and clears pending penalty", func(t *testing.T) {
		svc, repo, meeting := newTestService(t)
		recs, err := svc.Record(meeting.ID, []RecordEntry{{ParentID: "p1", Status: StatusAbsent}})
		require.NoError(t, err)
		firstID := recs[0].ID

		recs, err = svc.Record(meeting.ID, []RecordEntry{{ParentID: "p1", Status: StatusPresent}})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, firstID, recs[0].ID) // upsert, not a second record
		assert.False(t, recs[0].HasPenalty)
		assert.Nil(t, recs[0].Penalty)
		assert.Len(t, repo.records, 1)
	})

	t.Run("paid penalty survives correction", func(t *testing.T) {
		svc, repo, meeting := newTestService(t)
		_, err := svc.Record(meeting.ID, []RecordEntry{{ParentID: "p1", Status: StatusAbsent}})
		require.NoError(t, err)

		rec := repo.records[meeting.ID+"|p1"]
		rec.Penalty.Status = PenaltyPaid
		repo.records[meeting.ID+"|p1"] = rec

		recs, err := svc.Record(meeting.ID, []RecordEntry{{ParentID: "p1", Status: StatusPresent}})
		require.NoError(t, err)
		assert.False(t, recs[0].HasPenalty)
		require.NotNil(t, recs[0].Penalty)
		assert.Equal(t, PenaltyPaid, recs[0].Penalty.Status)
	})

	t.Run("re-penalizing keeps existing penalty", func(t *testing.T) {
		svc, _, meeting := newTestService(t)
		recs, err := svc.Record(meeting.ID, []RecordEntry{{ParentID: "p1", Status: StatusAbsent}})
		require.NoError(t, err)
		due := recs[0].Penalty.DueDate

		recs, err = svc.Record(meeting.ID, []RecordEntry{{ParentID: "p1", Status: StatusExcused}})
		require.NoError(t, err)
		assert.True(t, recs[0].HasPenalty)
		assert.Equal(t, due, recs[0].Penalty.DueDate)
	})

	t.Run("batch", func(t *testing.T) {
		svc, _, meeting := newTestService(t)
		recs, err := svc.Record(meeting.ID, []RecordEntry{
			{ParentID: "p1", Status: StatusPresent},
			{ParentID: "p2", Status: StatusAbsent},
			{ParentID: "p3", Status: StatusExcused, ExcuseReason: "travel"},
		})
		require.NoError(t, err)
		assert.Len(t, recs, 3)
	})
}

func TestService_ParentSummary(t *testing.T) {
	svc, _, m1 := newTestService(t)
	m2, err := svc.CreateMeeting(NewMeeting{Title: "Budget Review", Date: time.Now(), Location: "Room 2"})
	require.NoError(t, err)
	m3, err := svc.CreateMeeting(NewMeeting{Title: "Year-End", Date: time.Now(), Location: "Main Hall"})
	require.NoError(t, err)

	_, err = svc.Record(m1.ID, []RecordEntry{{ParentID: "p1", Status: StatusPresent}})
	require.NoError(t, err)
	_, err = svc.Record(m2.ID, []RecordEntry{{ParentID: "p1", Status: StatusAbsent}})
	require.NoError(t, err)
	_, err = svc.Record(m3.ID, []RecordEntry{{ParentID: "p1", Status: StatusPresent}})
	require.NoError(t, err)

	summary, err := svc.ParentSummary("p1")
	require.NoError(t, err)
	assert.Equal(t, Summary{
		TotalMeetings:  3,
		PresentCount:   2,
		AbsentCount:    1,
		AttendanceRate: 66.7,
	}, summary)

	t.Run("no meetings", func(t *testing.T) {
		svc := NewService(newRepoMock(), testConf())
		summary, err := svc.ParentSummary("p1")
		require.NoError(t, err)
		assert.Equal(t, Summary{}, summary)
	})
}

func TestService_QueryPenaltiesByParent(t *testing.T) {
	svc, _, m1 := newTestService(t)
	m2, err := svc.CreateMeeting(NewMeeting{Title: "Budget Review", Date: time.Now(), Location: "Room 2"})
	require.NoError(t, err)

	_, err = svc.Record(m1.ID, []RecordEntry{{ParentID: "p1", Status: StatusPresent}})
	require.NoError(t, err)
	_, err = svc.Record(m2.ID, []RecordEntry{{ParentID: "p1", Status: StatusAbsent}})
	require.NoError(t, err)

	recs, err := svc.QueryPenaltiesByParent("p1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, m2.ID, recs[0].MeetingID)
}
