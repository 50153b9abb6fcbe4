package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/amirfarid/guardpost/internal/domain"
	"github.com/amirfarid/guardpost/internal/service"
	"github.com/amirfarid/guardpost/token"
)

type mockEntryRepo struct {
	mu        sync.Mutex
	records   map[string]domain.EntryRecord
	createErr error
}

func newMockEntryRepo() *mockEntryRepo {
	return &mockEntryRepo{records: map[string]domain.EntryRecord{}}
}

func (m *mockEntryRepo) Create(ctx context.Context, rec domain.EntryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *mockEntryRepo) Get(ctx context.Context, kind domain.Kind, id, communityID string) (domain.EntryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.Kind != kind || rec.CommunityID != communityID {
		return domain.EntryRecord{}, domain.NotFoundError{Resource: string(kind)}
	}
	return rec, nil
}

func (m *mockEntryRepo) GetByCode(ctx context.Context, kind domain.Kind, code, communityID string) (domain.EntryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.Kind == kind && rec.Code == code && rec.CommunityID == communityID {
			return rec, nil
		}
	}
	return domain.EntryRecord{}, domain.NotFoundError{Resource: string(kind)}
}

func (m *mockEntryRepo) List(ctx context.Context, kind domain.Kind, filter domain.EntryFilter) ([]domain.EntryRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EntryRecord
	for _, rec := range m.records {
		if rec.Kind != kind || rec.CommunityID != filter.CommunityID {
			continue
		}
		if filter.RegisteredBy != "" && rec.RegisteredBy != filter.RegisteredBy {
			continue
		}
		if filter.Status != "" && string(rec.Status) != filter.Status {
			continue
		}
		out = append(out, rec)
	}
	return out, int64(len(out)), nil
}

func (m *mockEntryRepo) Apply(ctx context.Context, kind domain.Kind, id, communityID string, event domain.Event, actorID string, at time.Time) (domain.EntryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.Kind != kind || rec.CommunityID != communityID {
		return domain.EntryRecord{}, domain.NotFoundError{Resource: string(kind)}
	}
	next, err := domain.Transition(rec.Kind, rec.Status, event)
	if err != nil {
		if dest, ok := domain.DestinationStatus(rec.Kind, event); ok && rec.Status == dest {
			return domain.EntryRecord{}, domain.AlreadyAdmittedError{Status: rec.Status}
		}
		return domain.EntryRecord{}, domain.IllegalTransitionError{Kind: rec.Kind, From: rec.Status, Event: event}
	}
	rec.Status = next
	rec.ActedBy = &actorID
	rec.ActedAt = &at
	m.records[id] = rec
	return rec, nil
}

func (m *mockEntryRepo) HasLivePasscode(ctx context.Context, communityID, passcode string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.Kind != domain.KindDelivery || rec.CommunityID != communityID || rec.Code != passcode {
			continue
		}
		if rec.CodeExpiresAt.After(now) && !rec.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

type mockPropertyRepo struct {
	properties map[string]domain.Property
}

func (m *mockPropertyRepo) Get(ctx context.Context, id, communityID string) (domain.Property, error) {
	prop, ok := m.properties[id]
	if !ok || prop.CommunityID != communityID {
		return domain.Property{}, domain.NotFoundError{Resource: "property"}
	}
	return prop, nil
}

type mockUserRepo struct {
	users map[string]domain.User
}

func (m *mockUserRepo) Get(ctx context.Context, id string) (domain.User, error) {
	user, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return domain.User{}, domain.NotFoundError{Resource: "user"}
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.GateEvent
}

func (m *mockPublisher) Publish(ctx context.Context, event domain.GateEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

type mockCache struct {
	mu      sync.Mutex
	entries map[string]domain.Credential
}

func newMockCache() *mockCache {
	return &mockCache{entries: map[string]domain.Credential{}}
}

func (m *mockCache) Put(ctx context.Context, cred domain.Credential, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[cred.Code]; ok {
		return service.ErrCodeExists
	}
	m.entries[cred.Code] = cred
	return nil
}

func (m *mockCache) Get(ctx context.Context, code string) (domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.entries[code]
	if !ok {
		return domain.Credential{}, domain.ErrCredentialNotFound
	}
	return cred, nil
}

func (m *mockCache) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, code)
	return nil
}

// entryStoreAdapter lets the credential service read through the same
// in-memory records the repository mutates.
type entryStoreAdapter struct {
	repo *mockEntryRepo
}

func (a entryStoreAdapter) Get(ctx context.Context, kind domain.Kind, id, communityID string) (domain.EntryRecord, error) {
	return a.repo.Get(ctx, kind, id, communityID)
}

func testClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestCredentialService(repo *mockEntryRepo, cache *mockCache, now time.Time) *service.CredentialService {
	codec := token.NewCodec("test-secret", testClock(now))
	return service.NewCredentialService(codec, cache, entryStoreAdapter{repo: repo}, testClock(now))
}
