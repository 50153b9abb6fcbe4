package usecase

import (
	"context"
	"time"

	"github.com/amirfarid/guardpost/internal/domain"
)

// EntryRepository defines durable storage for entry records. Apply must
// perform a conditional update: the transition happens only if the row is
// still in a legal source state, so that of two concurrent guards exactly
// one wins.
type EntryRepository interface {
	Create(ctx context.Context, rec domain.EntryRecord) error
	Get(ctx context.Context, kind domain.Kind, id, communityID string) (domain.EntryRecord, error)
	GetByCode(ctx context.Context, kind domain.Kind, code, communityID string) (domain.EntryRecord, error)
	List(ctx context.Context, kind domain.Kind, filter domain.EntryFilter) ([]domain.EntryRecord, int64, error)
	Apply(ctx context.Context, kind domain.Kind, id, communityID string, event domain.Event, actorID string, at time.Time) (domain.EntryRecord, error)
	HasLivePasscode(ctx context.Context, communityID, passcode string, now time.Time) (bool, error)
}

// PropertyRepository defines lookup of community properties.
type PropertyRepository interface {
	Get(ctx context.Context, id, communityID string) (domain.Property, error)
}

// UserRepository defines persistence/lookup for accounts.
type UserRepository interface {
	Get(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}

// GatePublisher broadcasts lifecycle transitions to listening guard
// dashboards.
type GatePublisher interface {
	Publish(ctx context.Context, event domain.GateEvent) error
}
