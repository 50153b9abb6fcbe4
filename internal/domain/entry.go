package domain

import "time"

// Kind distinguishes the two entry variants sharing one lifecycle shape.
type Kind string

const (
	KindVisitor  Kind = "visitor"
	KindDelivery Kind = "delivery"
)

// Status is the lifecycle state of an entry record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"
	StatusArrived    Status = "arrived"
	StatusCollected  Status = "collected"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCheckedOut, StatusCollected, StatusCancelled:
		return true
	}
	return false
}

// Event is a lifecycle transition request.
type Event string

const (
	EventCheckIn  Event = "check_in"
	EventCheckOut Event = "check_out"
	EventArrive   Event = "arrive"
	EventCollect  Event = "collect"
	EventCancel   Event = "cancel"
)

// transitions holds the legal state machine per kind. Delivery collect is
// accepted from both pending and arrived: recording arrival is optional in
// practice when the courier hands over at the gate. Cancel is legal up to
// the point of admission.
var transitions = map[Kind]map[Status]map[Event]Status{
	KindVisitor: {
		StatusPending: {
			EventCheckIn: StatusCheckedIn,
			EventCancel:  StatusCancelled,
		},
		StatusCheckedIn: {
			EventCheckOut: StatusCheckedOut,
		},
	},
	KindDelivery: {
		StatusPending: {
			EventArrive:  StatusArrived,
			EventCollect: StatusCollected,
			EventCancel:  StatusCancelled,
		},
		StatusArrived: {
			EventCollect: StatusCollected,
			EventCancel:  StatusCancelled,
		},
	},
}

// Transition applies event to the current status and returns the new
// status, or IllegalTransitionError. Illegal events are rejected, never
// coerced.
func Transition(kind Kind, from Status, event Event) (Status, error) {
	if next, ok := transitions[kind][from][event]; ok {
		return next, nil
	}
	return "", IllegalTransitionError{Kind: kind, From: from, Event: event}
}

// DestinationStatus returns the status event produces for kind. The
// destination is the same from every legal source state, which is what
// lets repositories issue a single conditional update.
func DestinationStatus(kind Kind, event Event) (Status, bool) {
	for _, events := range transitions[kind] {
		if next, ok := events[event]; ok {
			return next, true
		}
	}
	return "", false
}

// SourceStatuses returns the set of statuses from which event is legal.
// Repositories use it as the guard of conditional status updates.
func SourceStatuses(kind Kind, event Event) []Status {
	var sources []Status
	for from, events := range transitions[kind] {
		if _, ok := events[event]; ok {
			sources = append(sources, from)
		}
	}
	return sources
}

// EntryRecord is the durable record of a visitor or delivery's expected
// and actual entry lifecycle. The relational store owns the authoritative
// status; the credential cache is only a disposable index.
type EntryRecord struct {
	ID           string `json:"id"`
	Kind         Kind   `json:"kind"`
	CommunityID  string `json:"communityID"`
	PropertyID   string `json:"propertyID"`
	RegisteredBy string `json:"registeredBy"`
	Status       Status `json:"status"`

	VisitorName     string `json:"visitorName,omitempty"`
	VisitorPhone    string `json:"visitorPhone,omitempty"`
	VisitorICPass   string `json:"visitorICPassport,omitempty"`
	VehiclePlate    string `json:"vehiclePlate,omitempty"`
	Purpose         string `json:"purpose,omitempty"`
	DeliveryService string `json:"deliveryService,omitempty"`
	Notes           string `json:"notes,omitempty"`

	ExpectedArrival   time.Time  `json:"expectedArrival"`
	ExpectedDeparture *time.Time `json:"expectedDeparture,omitempty"`
	ActualArrival     *time.Time `json:"actualArrival,omitempty"`
	ActualDeparture   *time.Time `json:"actualDeparture,omitempty"`

	// Code is the live credential's public code. It stays on the row
	// after terminal transitions for audit; the cache entry is what
	// gets deleted.
	Code          string    `json:"code,omitempty"`
	CodeExpiresAt time.Time `json:"codeExpiresAt"`

	ActedBy *string    `json:"actedBy,omitempty"`
	ActedAt *time.Time `json:"actedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// EntryFilter narrows entry listings. Zero values mean "no filter";
// RegisteredBy scopes results to one resident's own records.
type EntryFilter struct {
	CommunityID  string
	RegisteredBy string
	Status       string
	Date         *time.Time
	PropertyID   string
	Page         int
	Limit        int
}

// Credential is the cached payload behind a public code. The signed token
// stays server-side; only Code is ever shown to a human.
type Credential struct {
	Code        string `json:"code"`
	Token       string `json:"token"`
	SubjectID   string `json:"subjectID"`
	CommunityID string `json:"communityID"`
	Kind        Kind   `json:"kind"`
}

// DecisionCode classifies the outcome of validating a credential.
type DecisionCode string

const (
	DecisionAdmissible      DecisionCode = "admissible"
	DecisionNotFound        DecisionCode = "credential_not_found"
	DecisionExpired         DecisionCode = "credential_expired"
	DecisionInvalid         DecisionCode = "credential_invalid"
	DecisionAlreadyAdmitted DecisionCode = "already_admitted"
)

// Decision is the answer to "is this credential admissible right now".
// Record carries the entry snapshot when one was resolved.
type Decision struct {
	Code   DecisionCode
	Record *EntryRecord
}

// Admissible reports whether the guard may proceed to consume.
func (d Decision) Admissible() bool {
	return d.Code == DecisionAdmissible
}
