package domain

import "time"

// GateEvent is published on each successful lifecycle transition so guard
// dashboards can follow gate activity in real time.
type GateEvent struct {
	Type        Event     `json:"type"`
	Kind        Kind      `json:"kind"`
	CommunityID string    `json:"communityID"`
	RecordID    string    `json:"recordID"`
	Status      Status    `json:"status"`
	ActorID     string    `json:"actorID"`
	At          time.Time `json:"at"`
}
