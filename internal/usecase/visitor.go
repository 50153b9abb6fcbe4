package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amirfarid/guardpost/internal/domain"
	"github.com/amirfarid/guardpost/internal/service"
	"github.com/amirfarid/guardpost/token"
)

// codeAttempts bounds credential code regeneration on cache collisions.
const codeAttempts = 8

// VisitorRegisterInput is the validated input for registering an expected
// visitor.
type VisitorRegisterInput struct {
	CommunityID       string
	RegisteredBy      string
	PropertyID        string
	VisitorName       string
	VisitorPhone      string
	VisitorICPass     string
	VehiclePlate      string
	Purpose           string
	ExpectedArrival   time.Time
	ExpectedDeparture *time.Time
}

type VisitorUsecase struct {
	repo       EntryRepository
	properties PropertyRepository
	creds      *service.CredentialService
	signal     GatePublisher
	expiry     time.Duration
	now        func() time.Time
}

func NewVisitorUsecase(
	repo EntryRepository,
	properties PropertyRepository,
	creds *service.CredentialService,
	signal GatePublisher,
	expiry time.Duration,
	now func() time.Time,
) *VisitorUsecase {
	if now == nil {
		now = time.Now
	}
	return &VisitorUsecase{
		repo:       repo,
		properties: properties,
		creds:      creds,
		signal:     signal,
		expiry:     expiry,
		now:        now,
	}
}

// Register creates a pending entry record and issues its QR credential.
// The credential expires at the expected departure when given, otherwise
// a fixed window after the expected arrival.
func (uc *VisitorUsecase) Register(ctx context.Context, input VisitorRegisterInput) (domain.EntryRecord, error) {
	if _, err := uc.properties.Get(ctx, input.PropertyID, input.CommunityID); err != nil {
		return domain.EntryRecord{}, err
	}

	expiresAt := input.ExpectedArrival.Add(uc.expiry)
	if input.ExpectedDeparture != nil {
		expiresAt = *input.ExpectedDeparture
	}
	if !expiresAt.After(uc.now()) {
		return domain.EntryRecord{}, fmt.Errorf("visitor window ends in the past")
	}

	id := uuid.NewString()

	var code string
	for attempt := 0; attempt < codeAttempts; attempt++ {
		candidate, err := token.NewVisitorCode()
		if err != nil {
			return domain.EntryRecord{}, err
		}
		err = uc.creds.Issue(ctx, domain.KindVisitor, candidate, id, input.CommunityID, expiresAt)
		if errors.Is(err, service.ErrCodeExists) {
			continue
		}
		if err != nil {
			return domain.EntryRecord{}, err
		}
		code = candidate
		break
	}
	if code == "" {
		return domain.EntryRecord{}, fmt.Errorf("could not allocate a unique visitor code")
	}

	rec := domain.EntryRecord{
		ID:                id,
		Kind:              domain.KindVisitor,
		CommunityID:       input.CommunityID,
		PropertyID:        input.PropertyID,
		RegisteredBy:      input.RegisteredBy,
		Status:            domain.StatusPending,
		VisitorName:       input.VisitorName,
		VisitorPhone:      input.VisitorPhone,
		VisitorICPass:     input.VisitorICPass,
		VehiclePlate:      input.VehiclePlate,
		Purpose:           input.Purpose,
		ExpectedArrival:   input.ExpectedArrival,
		ExpectedDeparture: input.ExpectedDeparture,
		Code:              code,
		CodeExpiresAt:     expiresAt,
	}

	if err := uc.repo.Create(ctx, rec); err != nil {
		// release the reserved code so a retried registration can reuse it
		if ierr := uc.creds.Invalidate(ctx, code); ierr != nil {
			slog.WarnContext(ctx, "Failed to release credential after create failure",
				slog.String("error", ierr.Error()),
				slog.String("module", "visitor"),
			)
		}
		return domain.EntryRecord{}, err
	}

	return rec, nil
}

// Validate answers whether the QR code admits its visitor for check-in
// right now. Read-only; re-scanning is safe.
func (uc *VisitorUsecase) Validate(ctx context.Context, code, communityID string) (domain.Decision, error) {
	return uc.creds.Validate(ctx, code, communityID, domain.EventCheckIn)
}

// CheckIn consumes the visitor's credential. The durable transition goes
// first; the cache deletion follows so a crash in between leaves a stale
// cache entry that revalidation rejects against the durable status.
func (uc *VisitorUsecase) CheckIn(ctx context.Context, id, communityID, guardID string) (domain.EntryRecord, error) {
	rec, err := uc.repo.Apply(ctx, domain.KindVisitor, id, communityID, domain.EventCheckIn, guardID, uc.now())
	if err != nil {
		return domain.EntryRecord{}, err
	}
	uc.invalidate(ctx, rec.Code)
	uc.publish(ctx, domain.EventCheckIn, rec, guardID)
	return rec, nil
}

func (uc *VisitorUsecase) CheckOut(ctx context.Context, id, communityID, guardID string) (domain.EntryRecord, error) {
	rec, err := uc.repo.Apply(ctx, domain.KindVisitor, id, communityID, domain.EventCheckOut, guardID, uc.now())
	if err != nil {
		return domain.EntryRecord{}, err
	}
	uc.publish(ctx, domain.EventCheckOut, rec, guardID)
	return rec, nil
}

// Cancel voids a pending visit. Residents may only cancel their own
// registrations; guards and admins may cancel any in their community.
func (uc *VisitorUsecase) Cancel(ctx context.Context, id, communityID, actorID, actorRole string) (domain.EntryRecord, error) {
	current, err := uc.repo.Get(ctx, domain.KindVisitor, id, communityID)
	if err != nil {
		return domain.EntryRecord{}, err
	}
	if actorRole == domain.RoleResident && current.RegisteredBy != actorID {
		return domain.EntryRecord{}, domain.ErrForbidden
	}

	rec, err := uc.repo.Apply(ctx, domain.KindVisitor, id, communityID, domain.EventCancel, actorID, uc.now())
	if err != nil {
		return domain.EntryRecord{}, err
	}
	uc.invalidate(ctx, rec.Code)
	uc.publish(ctx, domain.EventCancel, rec, actorID)
	return rec, nil
}

func (uc *VisitorUsecase) List(ctx context.Context, filter domain.EntryFilter) ([]domain.EntryRecord, int64, error) {
	return uc.repo.List(ctx, domain.KindVisitor, filter)
}

func (uc *VisitorUsecase) Get(ctx context.Context, id, communityID, requesterID, requesterRole string) (domain.EntryRecord, error) {
	rec, err := uc.repo.Get(ctx, domain.KindVisitor, id, communityID)
	if err != nil {
		return domain.EntryRecord{}, err
	}
	if requesterRole == domain.RoleResident && rec.RegisteredBy != requesterID {
		return domain.EntryRecord{}, domain.ErrForbidden
	}
	return rec, nil
}

func (uc *VisitorUsecase) invalidate(ctx context.Context, code string) {
	if err := uc.creds.Invalidate(ctx, code); err != nil {
		slog.WarnContext(ctx, "Credential cache deletion failed",
			slog.String("error", err.Error()),
			slog.String("module", "visitor"),
		)
	}
}

func (uc *VisitorUsecase) publish(ctx context.Context, event domain.Event, rec domain.EntryRecord, actorID string) {
	if uc.signal == nil {
		return
	}
	err := uc.signal.Publish(ctx, domain.GateEvent{
		Type:        event,
		Kind:        domain.KindVisitor,
		CommunityID: rec.CommunityID,
		RecordID:    rec.ID,
		Status:      rec.Status,
		ActorID:     actorID,
		At:          uc.now(),
	})
	if err != nil {
		slog.WarnContext(ctx, "Gate event publish failed",
			slog.String("error", err.Error()),
			slog.String("module", "visitor"),
		)
	}
}
