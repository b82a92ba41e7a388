package application

// Status is the lifecycle state of a teaching Application. The set is closed;
// anything else is rejected at the boundary.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCompleted Status = "COMPLETED"
)

// AllStatuses returns all valid status values.
func AllStatuses() []Status {
	return []Status{StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusCompleted}
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are defined from s.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// Result is the derived pass/fail outcome of a scored application.
type Result string

const (
	ResultPass Result = "PASS"
	ResultFail Result = "FAIL"
)

// Actor is the permission class of the user requesting a transition.
type Actor string

const (
	ActorAdmin     Actor = "ADMIN"
	ActorHR        Actor = "HR"
	ActorParent    Actor = "PARENT"
	ActorApplicant Actor = "APPLICANT"
)

func (a Actor) Valid() bool {
	switch a {
	case ActorAdmin, ActorHR, ActorParent, ActorApplicant:
		return true
	default:
		return false
	}
}

// transitions is the legal transition table; pairs absent here are illegal for
// every actor.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusPending},
	StatusPending:   {StatusApproved, StatusRejected},
	StatusApproved:  {StatusCompleted},
	StatusRejected:  {},
	StatusCompleted: {},
}

// transitionActors maps each legal transition to the actors allowed to request it.
var transitionActors = map[Status]map[Status][]Actor{
	StatusDraft: {
		StatusPending: {ActorApplicant},
	},
	StatusPending: {
		StatusApproved: {ActorHR, ActorAdmin},
		StatusRejected: {ActorHR, ActorAdmin},
	},
	StatusApproved: {
		StatusCompleted: {ActorHR, ActorAdmin},
	},
}

// CanTransitionTo returns true if the status can transition to the target status.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func actorAllowed(current, requested Status, actor Actor) bool {
	for _, a := range transitionActors[current][requested] {
		if a == actor {
			return true
		}
	}
	return false
}
