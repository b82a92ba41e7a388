package attendance

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ptahub/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrMeetingNotFound = errors.New("meeting not found")
	ErrRecordNotFound  = errors.New("attendance record not found")
)

type (
	Repository interface {
		CreateMeeting(m Meeting) (Meeting, error)
		QueryAllMeetings() ([]Meeting, error)
		GetMeetingByID(id string) (Meeting, error)
		UpdateMeeting(m Meeting) (Meeting, error)
		DeleteMeetingsByID(ids ...string) error

		// UpsertRecords writes the whole batch or nothing.
		UpsertRecords(records []Record) ([]Record, error)
		GetRecord(meetingID, parentID string) (Record, error)
		QueryRecordsByMeeting(meetingID string) ([]Record, error)
		QueryRecordsByParent(parentID string) ([]Record, error)
	}

	Service interface {
		CreateMeeting(nm NewMeeting) (Meeting, error)
		QueryMeetings() ([]Meeting, error)
		GetMeeting(id string) (Meeting, error)
		UpdateMeeting(id string, um UpdateMeeting) (Meeting, error)
		DeleteMeetings(ids ...string) error

		// Record upserts the attendance sheet of a meeting; penalties are a
		// derived consequence of the policy, never set directly by callers.
		Record(meetingID string, entries []RecordEntry) ([]Record, error)
		QueryByMeeting(meetingID string) ([]Record, error)
		QueryByParent(parentID string) ([]Record, error)
		QueryPenaltiesByParent(parentID string) ([]Record, error)
		ParentSummary(parentID string) (Summary, error)
	}

	service struct {
		repo Repository
		conf *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, conf *core.Config) Service {
	return &service{repo: repo, conf: conf}
}

func (svc *service) CreateMeeting(nm NewMeeting) (Meeting, error) {
	return svc.repo.CreateMeeting(Meeting{
		Title:     nm.Title,
		Date:      nm.Date,
		Location:  nm.Location,
		Agenda:    nm.Agenda,
		CreatedAt: NowFunc().UTC(),
	})
}

func (svc *service) QueryMeetings() ([]Meeting, error) {
	return svc.repo.QueryAllMeetings()
}

func (svc *service) GetMeeting(id string) (Meeting, error) {
	return svc.repo.GetMeetingByID(id)
}

func (svc *service) UpdateMeeting(id string, um UpdateMeeting) (Meeting, error) {
	return svc.repo.UpdateMeeting(Meeting{
		ID:       id,
		Title:    um.Title,
		Date:     um.Date,
		Location: um.Location,
		Agenda:   um.Agenda,
	})
}

func (svc *service) DeleteMeetings(ids ...string) error {
	return svc.repo.DeleteMeetingsByID(ids...)
}

// HasPenalty is the attendance policy: an absence without excuse, or an excuse
// without a stated reason, earns a penalty.
func HasPenalty(status Status, excuseReason string) bool {
	return status == StatusAbsent || (status == StatusExcused && excuseReason == "")
}

func (svc *service) Record(meetingID string, entries []RecordEntry) ([]Record, error) {
	if _, err := svc.repo.GetMeetingByID(meetingID); err != nil {
		return nil, err
	}

	now := NowFunc().UTC()
	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		rec := Record{
			MeetingID: meetingID,
			ParentID:  entry.ParentID,
			Status:    entry.Status,
			CreatedAt: now,
		}
		if entry.ExcuseReason != "" {
			rec.ExcuseReason.SetValid(entry.ExcuseReason)
		}

		var prior *Penalty
		if existing, err := svc.repo.GetRecord(meetingID, entry.ParentID); err == nil {
			rec.ID = existing.ID
			rec.CreatedAt = existing.CreatedAt
			prior = existing.Penalty
		} else if errors.Cause(err) != ErrRecordNotFound {
			return nil, errors.Wrap(err, "looking up attendance record")
		}

		rec.HasPenalty = HasPenalty(entry.Status, entry.ExcuseReason)
		rec.Penalty = svc.nextPenalty(prior, rec.HasPenalty, now)
		records = append(records, rec)
	}
	return svc.repo.UpsertRecords(records)
}

// nextPenalty resolves the penalty sub-record across a re-recording:
// a fresh penalty is created when the flag turns on, a PENDING one is cleared
// when it turns off, and a PAID one is never retroactively waived.
func (svc *service) nextPenalty(prior *Penalty, hasPenalty bool, now time.Time) *Penalty {
	if hasPenalty {
		if prior != nil {
			p := *prior
			return &p
		}
		return &Penalty{
			Amount:  svc.conf.Workflow.PenaltyAmount,
			Status:  PenaltyPending,
			DueDate: now.Add(svc.conf.Workflow.PenaltyDueDelta),
		}
	}
	if prior != nil && prior.Status != PenaltyPending {
		p := *prior
		return &p
	}
	return nil
}

func (svc *service) QueryByMeeting(meetingID string) ([]Record, error) {
	return svc.repo.QueryRecordsByMeeting(meetingID)
}

func (svc *service) QueryByParent(parentID string) ([]Record, error) {
	return svc.repo.QueryRecordsByParent(parentID)
}

func (svc *service) QueryPenaltiesByParent(parentID string) ([]Record, error) {
	records, err := svc.repo.QueryRecordsByParent(parentID)
	if err != nil {
		return nil, err
	}
	withPenalty := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.Penalty != nil {
			withPenalty = append(withPenalty, rec)
		}
	}
	return withPenalty, nil
}

// AttendanceRate returns present / total as a percentage rounded to 1 decimal;
// 0 when there are no meetings.
func AttendanceRate(presentCount, totalMeetings int) float64 {
	if totalMeetings == 0 {
		return 0
	}
	return core.Round1(float64(presentCount) / float64(totalMeetings) * 100)
}

func (svc *service) ParentSummary(parentID string) (Summary, error) {
	meetings, err := svc.repo.QueryAllMeetings()
	if err != nil {
		return Summary{}, err
	}
	records, err := svc.repo.QueryRecordsByParent(parentID)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{TotalMeetings: len(meetings)}
	for _, rec := range records {
		switch rec.Status {
		case StatusPresent:
			summary.PresentCount++
		case StatusAbsent:
			summary.AbsentCount++
		case StatusExcused:
			summary.ExcusedCount++
		}
	}
	summary.AttendanceRate = AttendanceRate(summary.PresentCount, summary.TotalMeetings)
	return summary, nil
}
