package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ptahub/core"
)

// Status of a parent at a PTA meeting.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusAbsent  Status = "ABSENT"
	StatusExcused Status = "EXCUSED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusExcused:
		return true
	default:
		return false
	}
}

// PenaltyStatus of an absence penalty.
type PenaltyStatus string

const (
	PenaltyPending PenaltyStatus = "PENDING"
	PenaltyPaid    PenaltyStatus = "PAID"
	PenaltyWaived  PenaltyStatus = "WAIVED"
)

type (
	Meeting struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		Date      time.Time `json:"date"`
		Location  string    `json:"location"`
		Agenda    string    `json:"agenda"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	Penalty struct {
		Amount  float64       `json:"amount"`
		Status  PenaltyStatus `json:"status"`
		DueDate time.Time     `json:"due_date"`
	}

	// Record is one parent's attendance at one meeting; a single record
	// exists per (MeetingID, ParentID) pair and re-recording overwrites it.
	Record struct {
		ID           string      `json:"id"`
		MeetingID    string      `json:"meeting_id"`
		ParentID     string      `json:"parent_id"`
		Status       Status      `json:"status"`
		HasPenalty   bool        `json:"has_penalty"`
		ExcuseReason null.String `json:"excuse_reason,omitempty"`
		Penalty      *Penalty    `json:"penalty,omitempty"`
		CreatedAt    time.Time   `json:"created_at"` // UTC
	}
)

// NewMeeting contains information needed to schedule a PTA meeting.
type NewMeeting struct {
	Title    string    `json:"title" validate:"required"`
	Date     time.Time `json:"date" validate:"required"`
	Location string    `json:"location" validate:"required"`
	Agenda   string    `json:"agenda"`
}

func (nm *NewMeeting) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Location = core.CleanString(nm.Location)
	nm.Agenda = core.CleanString(nm.Agenda)
	return validate.Struct(nm)
}

// UpdateMeeting defines what may be modified on an existing Meeting.
type UpdateMeeting struct {
	Title    string    `json:"title"`
	Date     time.Time `json:"date"`
	Location string    `json:"location"`
	Agenda   string    `json:"agenda"`
}

func (um *UpdateMeeting) Validate(validate *validator.Validate, orig Meeting) error {
	if title := core.CleanString(um.Title); title != "" {
		um.Title = title
	} else {
		um.Title = orig.Title
	}
	if um.Date.IsZero() {
		um.Date = orig.Date
	}
	if loc := core.CleanString(um.Location); loc != "" {
		um.Location = loc
	} else {
		um.Location = orig.Location
	}
	if agenda := core.CleanString(um.Agenda); agenda != "" {
		um.Agenda = agenda
	}
	return validate.Struct(um)
}

// RecordEntry is one line of a batch attendance sheet.
type RecordEntry struct {
	ParentID     string `json:"parent_id" validate:"required"`
	Status       Status `json:"status" validate:"required,attendancestatus"`
	ExcuseReason string `json:"excuse_reason"`
}

// BatchEntries is the batch payload recorded for a whole meeting at once.
type BatchEntries struct {
	Entries []RecordEntry `json:"entries" validate:"required,min=1,dive"`
}

func (be *BatchEntries) Validate(validate *validator.Validate) error {
	for i := range be.Entries {
		be.Entries[i].ExcuseReason = core.CleanString(be.Entries[i].ExcuseReason)
	}
	return validate.Struct(be)
}

// Summary is a parent's attendance projection.
type Summary struct {
	TotalMeetings  int     `json:"total_meetings"`
	PresentCount   int     `json:"present_count"`
	AbsentCount    int     `json:"absent_count"`
	ExcusedCount   int     `json:"excused_count"`
	AttendanceRate float64 `json:"attendance_rate"` // percentage, 1 decimal
}
