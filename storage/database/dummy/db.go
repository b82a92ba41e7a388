package dummydb

import (
	"sync"

	"github.com/trezcool/ptahub/core/application"
	"github.com/trezcool/ptahub/core/attendance"
	"github.com/trezcool/ptahub/core/contribution"
	"github.com/trezcool/ptahub/core/user"
)

type (
	DB struct {
		user         *userTable
		application  *applicationTable
		meeting      *meetingTable
		record       *recordTable
		contribution *contributionTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	applicationTable struct {
		sync.RWMutex
		table map[string]*application.Application
	}

	meetingTable struct {
		sync.RWMutex
		table map[string]*attendance.Meeting
	}

	recordTable struct {
		sync.RWMutex
		table map[string]*attendance.Record // key: meetingID|parentID
	}

	contributionTable struct {
		sync.RWMutex
		table map[string]*contribution.Contribution
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		application:  &applicationTable{table: make(map[string]*application.Application)},
		meeting:      &meetingTable{table: make(map[string]*attendance.Meeting)},
		record:       &recordTable{table: make(map[string]*attendance.Record)},
		contribution: &contributionTable{table: make(map[string]*contribution.Contribution)},
	}
	return db, nil
}

// Reset clears all tables; used between tests.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.application.Lock()
	db.application.table = make(map[string]*application.Application)
	db.application.Unlock()

	db.meeting.Lock()
	db.meeting.table = make(map[string]*attendance.Meeting)
	db.meeting.Unlock()

	db.record.Lock()
	db.record.table = make(map[string]*attendance.Record)
	db.record.Unlock()

	db.contribution.Lock()
	db.contribution.table = make(map[string]*contribution.Contribution)
	db.contribution.Unlock()
}
