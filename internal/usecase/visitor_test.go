package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirfarid/guardpost/internal/domain"
)

func newVisitorFixture(now time.Time) (*VisitorUsecase, *mockEntryRepo, *mockCache, *mockPublisher) {
	repo := newMockEntryRepo()
	cache := newMockCache()
	publisher := &mockPublisher{}
	properties := &mockPropertyRepo{properties: map[string]domain.Property{
		"prop1": {ID: "prop1", CommunityID: "com1", UnitNumber: "A-12-3"},
	}}
	creds := newTestCredentialService(repo, cache, now)
	uc := NewVisitorUsecase(repo, properties, creds, publisher, 24*time.Hour, testClock(now))
	return uc, repo, cache, publisher
}

func registerVisitor(t *testing.T, uc *VisitorUsecase, now time.Time) domain.EntryRecord {
	t.Helper()
	rec, err := uc.Register(context.Background(), VisitorRegisterInput{
		CommunityID:     "com1",
		RegisteredBy:    "res1",
		PropertyID:      "prop1",
		VisitorName:     "Aisyah Rahman",
		VisitorPhone:    "+60123456789",
		Purpose:         "family visit",
		ExpectedArrival: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return rec
}

func TestVisitorRegisterIssuesCredential(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	uc, repo, cache, _ := newVisitorFixture(now)

	rec := registerVisitor(t, uc, now)

	if rec.Status != domain.StatusPending {
		t.Fatalf("expected pending got %s", rec.Status)
	}
	if !strings.HasPrefix(rec.Code, "VIS-") {
		t.Fatalf("unexpected code format %q", rec.Code)
	}
	want := now.Add(time.Hour).Add(24 * time.Hour)
	if !rec.CodeExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v got %v", want, rec.CodeExpiresAt)
	}
	if _, ok := cache.entries[rec.Code]; !ok {
		t.Fatalf("credential not cached")
	}
	if _, ok := repo.records[rec.ID]; !ok {
		t.Fatalf("record not persisted")
	}
}

func TestVisitorRegisterHonoursExpectedDeparture(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	uc, _, _, _ := newVisitorFixture(now)

	departure := now.Add(3 * time.Hour)
	rec, err := uc.Register(context.Background(), VisitorRegisterInput{
		CommunityID:       "com1",
		RegisteredBy:      "res1",
		PropertyID:        "prop1",
		VisitorName:       "Aisyah Rahman",
		ExpectedArrival:   now.Add(time.Hour),
		ExpectedDeparture: &departure,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if !rec.CodeExpiresAt.Equal(departure) {
		t.Fatalf("expected expiry at departure %v got %v", departure, rec.CodeExpiresAt)
	}
}

func TestVisitorRegisterUnknownProperty(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	uc, _, _, _ := newVisitorFixture(now)

	_, err := uc.Register(context.Background(), VisitorRegisterInput{
		CommunityID:     "com1",
		RegisteredBy:    "res1",
		PropertyID:      "nope",
		VisitorName:     "Aisyah Rahman",
		ExpectedArrival: now.Add(time.Hour),
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVisitorRegisterPastWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	uc, _, _, _ := newVisitorFixture(now)

	departure := now.Add(-time.Hour)
	_, err := uc.Register(context.Background(), VisitorRegisterInput{
		CommunityID:       "com1",
		RegisteredBy:      "res1",
		PropertyID:        "prop1",
		VisitorName:       "Aisyah Rahman",
		ExpectedArrival:   now.Add(-2 * time.Hour),
		ExpectedDeparture: &departure,
	})
	if err == nil {
		t.Fatalf("expected error for past window")
	}
}

func TestVisitorRegisterReleasesCodeOnCreateFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	uc, repo, cache, _ := newVisitorFixture(now)
	repo.createErr = errors.New("insert failed")

	_, err := uc.Register(context.Background(), VisitorRegisterInput{
		CommunityID:     "com1",
		RegisteredBy:    "res1",
		PropertyID:      "prop1",
		VisitorName:     "Aisyah Rahman",
		ExpectedArrival: now.Add(time.Hour),
	})
	if err == nil {
		t.Fatalf("expected create failure")
	}
	if len(cache.entries) != 0 {
		t.Fatalf("reserved code was not released")
	}
}

func TestVisitorCheckInConsumesCredential(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	uc, _, cache, publisher := newVisitorFixture(now)
	rec := registerVisitor(t, uc, now)

	decision, err := uc.Validate(context.Background(), rec.Code, "com1")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if decision.Code != domain.DecisionAdmissible {
		t.Fatalf("expected admissible got %s", decision.Code)
	}

	updated, err := uc.CheckIn(context.Background(), rec.ID, "com1", "guard1")
	if err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	if updated.Status != domain.StatusCheckedIn {
		t.Fatalf("expected checked_in got %s", updated.Status)
	}
	if _, ok := cache.entries[rec.Code]; ok {
		t.Fatalf("credential still cached after check-in")
	}
	if len(publisher.events) != 1 || publisher.events[0].Type != domain.EventCheckIn {
		t.Fatalf("expected one check_in event, got %v", publisher.events)
	}

	// the same code scanned again must read as not in the cache
	decision, err = uc.Validate(context.Background(), rec.Code, "com1")
	if err != nil {
		t.Fatalf("revalidate failed: %v", err)
	}
	if decision.Code != domain.DecisionNotFound {
		t.Fatalf("consumed code must read not found, got %s", decision.Code)
	}
}

func TestVisitorCheckInTwiceIsAlreadyAdmitted(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	uc, _, _, _ := newVisitorFixture(now)
	rec := registerVisitor(t, uc, now)

	if _, err := uc.CheckIn(context.Background(), rec.ID, "com1", "guard1"); err != nil {
		t.Fatalf("first check-in failed: %v", err)
	}
	_, err := uc.CheckIn(context.Background(), rec.ID, "com1", "guard2")
	if !errors.Is(err, domain.ErrAlreadyAdmitted) {
		t.Fatalf("expected already admitted, got %v", err)
	}
}

func TestVisitorConcurrentCheckInSingleWinner(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	uc, _, _, _ := newVisitorFixture(now)
	rec := registerVisitor(t, uc, now)

	const guards = 8
	var wg sync.WaitGroup
	errs := make([]error, guards)
	for i := 0; i < guards; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = uc.CheckIn(context.Background(), rec.ID, "com1", "guard")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		if !errors.Is(err, domain.ErrAlreadyAdmitted) {
			t.Fatalf("loser got unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestVisitorCheckOut(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	uc, _, _, _ := newVisitorFixture(now)
	rec := registerVisitor(t, uc, now)

	if _, err := uc.CheckOut(context.Background(), rec.ID, "com1", "guard1"); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("check-out before check-in must be rejected, got %v", err)
	}

	if _, err := uc.CheckIn(context.Background(), rec.ID, "com1", "guard1"); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	updated, err := uc.CheckOut(context.Background(), rec.ID, "com1", "guard1")
	if err != nil {
		t.Fatalf("check-out failed: %v", err)
	}
	if updated.Status != domain.StatusCheckedOut {
		t.Fatalf("expected checked_out got %s", updated.Status)
	}
}

func TestVisitorCancelOwnership(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	uc, _, cache, _ := newVisitorFixture(now)
	rec := registerVisitor(t, uc, now)

	if _, err := uc.Cancel(context.Background(), rec.ID, "com1", "res2", domain.RoleResident); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for other resident, got %v", err)
	}

	updated, err := uc.Cancel(context.Background(), rec.ID, "com1", "res1", domain.RoleResident)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if updated.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled got %s", updated.Status)
	}
	if _, ok := cache.entries[rec.Code]; ok {
		t.Fatalf("credential still cached after cancel")
	}
}

func TestVisitorCancelAfterCheckInRejected(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	uc, _, _, _ := newVisitorFixture(now)
	rec := registerVisitor(t, uc, now)

	if _, err := uc.CheckIn(context.Background(), rec.ID, "com1", "guard1"); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	if _, err := uc.Cancel(context.Background(), rec.ID, "com1", "res1", domain.RoleResident); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("cancel after check-in must be rejected, got %v", err)
	}
}

func TestVisitorGetScopedToOwnerForResidents(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	uc, _, _, _ := newVisitorFixture(now)
	rec := registerVisitor(t, uc, now)

	if _, err := uc.Get(context.Background(), rec.ID, "com1", "res2", domain.RoleResident); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := uc.Get(context.Background(), rec.ID, "com1", "guard1", domain.RoleGuard); err != nil {
		t.Fatalf("guard read failed: %v", err)
	}
	if _, err := uc.Get(context.Background(), rec.ID, "com2", "res1", domain.RoleResident); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-community read must be not found, got %v", err)
	}
}
