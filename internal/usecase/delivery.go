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

// DeliveryRegisterInput is the validated input for announcing a delivery.
type DeliveryRegisterInput struct {
	CommunityID      string
	RegisteredBy     string
	DeliveryService  string
	VehiclePlate     string
	Notes            string
	EstimatedArrival time.Time
}

type DeliveryUsecase struct {
	repo   EntryRepository
	users  UserRepository
	creds  *service.CredentialService
	signal GatePublisher
	expiry time.Duration
	now    func() time.Time
}

func NewDeliveryUsecase(
	repo EntryRepository,
	users UserRepository,
	creds *service.CredentialService,
	signal GatePublisher,
	expiry time.Duration,
	now func() time.Time,
) *DeliveryUsecase {
	if now == nil {
		now = time.Now
	}
	return &DeliveryUsecase{
		repo:   repo,
		users:  users,
		creds:  creds,
		signal: signal,
		expiry: expiry,
		now:    now,
	}
}

// Register creates a pending delivery and issues its passcode. The
// 6-digit space is small, so the passcode must be free both in the cache
// (global live uniqueness) and among the community's live deliveries.
func (uc *DeliveryUsecase) Register(ctx context.Context, input DeliveryRegisterInput) (domain.EntryRecord, error) {
	user, err := uc.users.Get(ctx, input.RegisteredBy)
	if err != nil {
		return domain.EntryRecord{}, err
	}
	if user.PropertyID == nil || *user.PropertyID == "" {
		return domain.EntryRecord{}, domain.NotFoundError{Resource: "assigned property"}
	}

	now := uc.now()
	expiresAt := now.Add(uc.expiry)
	id := uuid.NewString()

	var code string
	for attempt := 0; attempt < codeAttempts; attempt++ {
		candidate, err := token.NewDeliveryPasscode()
		if err != nil {
			return domain.EntryRecord{}, err
		}
		taken, err := uc.repo.HasLivePasscode(ctx, input.CommunityID, candidate, now)
		if err != nil {
			return domain.EntryRecord{}, err
		}
		if taken {
			continue
		}
		err = uc.creds.Issue(ctx, domain.KindDelivery, candidate, id, input.CommunityID, expiresAt)
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
		return domain.EntryRecord{}, fmt.Errorf("could not allocate a unique passcode")
	}

	rec := domain.EntryRecord{
		ID:              id,
		Kind:            domain.KindDelivery,
		CommunityID:     input.CommunityID,
		PropertyID:      *user.PropertyID,
		RegisteredBy:    input.RegisteredBy,
		Status:          domain.StatusPending,
		DeliveryService: input.DeliveryService,
		VehiclePlate:    input.VehiclePlate,
		Notes:           input.Notes,
		ExpectedArrival: input.EstimatedArrival,
		Code:            code,
		CodeExpiresAt:   expiresAt,
	}

	if err := uc.repo.Create(ctx, rec); err != nil {
		if ierr := uc.creds.Invalidate(ctx, code); ierr != nil {
			slog.WarnContext(ctx, "Failed to release passcode after create failure",
				slog.String("error", ierr.Error()),
				slog.String("module", "delivery"),
			)
		}
		return domain.EntryRecord{}, err
	}

	return rec, nil
}

// Validate answers whether the passcode admits its delivery for
// collection right now.
func (uc *DeliveryUsecase) Validate(ctx context.Context, passcode, communityID string) (domain.Decision, error) {
	return uc.creds.Validate(ctx, passcode, communityID, domain.EventCollect)
}

// MarkArrived records the courier at the gate. The passcode stays live:
// collection is the consuming event.
func (uc *DeliveryUsecase) MarkArrived(ctx context.Context, id, communityID, guardID string) (domain.EntryRecord, error) {
	rec, err := uc.repo.Apply(ctx, domain.KindDelivery, id, communityID, domain.EventArrive, guardID, uc.now())
	if err != nil {
		return domain.EntryRecord{}, err
	}
	uc.publish(ctx, domain.EventArrive, rec, guardID)
	return rec, nil
}

// MarkCollected consumes the passcode: durable transition first, then
// cache deletion, so a duplicate entry of the same passcode afterwards
// reads "not found".
func (uc *DeliveryUsecase) MarkCollected(ctx context.Context, id, communityID, guardID string) (domain.EntryRecord, error) {
	rec, err := uc.repo.Apply(ctx, domain.KindDelivery, id, communityID, domain.EventCollect, guardID, uc.now())
	if err != nil {
		return domain.EntryRecord{}, err
	}
	uc.invalidate(ctx, rec.Code)
	uc.publish(ctx, domain.EventCollect, rec, guardID)
	return rec, nil
}

// Cancel voids a delivery that has not been collected. Only the resident
// who registered it may cancel.
func (uc *DeliveryUsecase) Cancel(ctx context.Context, id, communityID, actorID string) (domain.EntryRecord, error) {
	current, err := uc.repo.Get(ctx, domain.KindDelivery, id, communityID)
	if err != nil {
		return domain.EntryRecord{}, err
	}
	if current.RegisteredBy != actorID {
		return domain.EntryRecord{}, domain.ErrForbidden
	}

	rec, err := uc.repo.Apply(ctx, domain.KindDelivery, id, communityID, domain.EventCancel, actorID, uc.now())
	if err != nil {
		return domain.EntryRecord{}, err
	}
	uc.invalidate(ctx, rec.Code)
	uc.publish(ctx, domain.EventCancel, rec, actorID)
	return rec, nil
}

func (uc *DeliveryUsecase) List(ctx context.Context, filter domain.EntryFilter) ([]domain.EntryRecord, int64, error) {
	return uc.repo.List(ctx, domain.KindDelivery, filter)
}

func (uc *DeliveryUsecase) invalidate(ctx context.Context, code string) {
	if err := uc.creds.Invalidate(ctx, code); err != nil {
		slog.WarnContext(ctx, "Credential cache deletion failed",
			slog.String("error", err.Error()),
			slog.String("module", "delivery"),
		)
	}
}

func (uc *DeliveryUsecase) publish(ctx context.Context, event domain.Event, rec domain.EntryRecord, actorID string) {
	if uc.signal == nil {
		return
	}
	err := uc.signal.Publish(ctx, domain.GateEvent{
		Type:        event,
		Kind:        domain.KindDelivery,
		CommunityID: rec.CommunityID,
		RecordID:    rec.ID,
		Status:      rec.Status,
		ActorID:     actorID,
		At:          uc.now(),
	})
	if err != nil {
		slog.WarnContext(ctx, "Gate event publish failed",
			slog.String("error", err.Error()),
			slog.String("module", "delivery"),
		)
	}
}
