package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/amirfarid/guardpost/internal/domain"
	"github.com/amirfarid/guardpost/internal/infrastructure/database/models"
)

type EntryRepository struct {
	db *gorm.DB
}

func NewEntryRepository(db *gorm.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) Create(ctx context.Context, rec domain.EntryRecord) error {
	var err error
	switch rec.Kind {
	case domain.KindVisitor:
		err = r.db.WithContext(ctx).Create(visitorFromDomain(rec)).Error
	case domain.KindDelivery:
		err = r.db.WithContext(ctx).Create(deliveryFromDomain(rec)).Error
	default:
		return fmt.Errorf("unknown entry kind %q", rec.Kind)
	}
	if err != nil {
		return domain.StoreUnavailableError{Op: "entry create", Err: err}
	}
	return nil
}

func (r *EntryRepository) Get(ctx context.Context, kind domain.Kind, id, communityID string) (domain.EntryRecord, error) {
	return r.getWhere(ctx, kind, "id = ? AND community_id = ?", id, communityID)
}

func (r *EntryRepository) GetByCode(ctx context.Context, kind domain.Kind, code, communityID string) (domain.EntryRecord, error) {
	switch kind {
	case domain.KindVisitor:
		return r.getWhere(ctx, kind, "qr_code = ? AND community_id = ?", code, communityID)
	case domain.KindDelivery:
		return r.getWhere(ctx, kind, "passcode = ? AND community_id = ?", code, communityID)
	}
	return domain.EntryRecord{}, fmt.Errorf("unknown entry kind %q", kind)
}

func (r *EntryRepository) getWhere(ctx context.Context, kind domain.Kind, query string, args ...any) (domain.EntryRecord, error) {
	switch kind {
	case domain.KindVisitor:
		var m models.Visitor
		err := r.db.WithContext(ctx).Where(query, args...).Take(&m).Error
		if err == gorm.ErrRecordNotFound {
			return domain.EntryRecord{}, domain.NotFoundError{Resource: "visitor"}
		}
		if err != nil {
			return domain.EntryRecord{}, domain.StoreUnavailableError{Op: "visitor fetch", Err: err}
		}
		return visitorToDomain(m), nil
	case domain.KindDelivery:
		var m models.Delivery
		err := r.db.WithContext(ctx).Where(query, args...).Take(&m).Error
		if err == gorm.ErrRecordNotFound {
			return domain.EntryRecord{}, domain.NotFoundError{Resource: "delivery"}
		}
		if err != nil {
			return domain.EntryRecord{}, domain.StoreUnavailableError{Op: "delivery fetch", Err: err}
		}
		return deliveryToDomain(m), nil
	}
	return domain.EntryRecord{}, fmt.Errorf("unknown entry kind %q", kind)
}

func (r *EntryRepository) List(ctx context.Context, kind domain.Kind, filter domain.EntryFilter) ([]domain.EntryRecord, int64, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	build := func(tx *gorm.DB, arrivalColumn string) *gorm.DB {
		tx = tx.Where("community_id = ?", filter.CommunityID)
		if filter.RegisteredBy != "" {
			tx = tx.Where("registered_by = ?", filter.RegisteredBy)
		}
		if filter.Status != "" {
			tx = tx.Where("status = ?", filter.Status)
		}
		if filter.PropertyID != "" {
			tx = tx.Where("property_id = ?", filter.PropertyID)
		}
		if filter.Date != nil {
			day := filter.Date.Truncate(24 * time.Hour)
			tx = tx.Where(arrivalColumn+" >= ? AND "+arrivalColumn+" < ?", day, day.Add(24*time.Hour))
		}
		return tx
	}

	switch kind {
	case domain.KindVisitor:
		var rows []models.Visitor
		var total int64
		tx := build(r.db.WithContext(ctx).Model(&models.Visitor{}), "expected_arrival")
		if err := tx.Count(&total).Error; err != nil {
			return nil, 0, domain.StoreUnavailableError{Op: "visitor count", Err: err}
		}
		if err := tx.Order("expected_arrival DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
			return nil, 0, domain.StoreUnavailableError{Op: "visitor list", Err: err}
		}
		records := make([]domain.EntryRecord, 0, len(rows))
		for _, m := range rows {
			records = append(records, visitorToDomain(m))
		}
		return records, total, nil
	case domain.KindDelivery:
		var rows []models.Delivery
		var total int64
		tx := build(r.db.WithContext(ctx).Model(&models.Delivery{}), "estimated_arrival")
		if err := tx.Count(&total).Error; err != nil {
			return nil, 0, domain.StoreUnavailableError{Op: "delivery count", Err: err}
		}
		if err := tx.Order("estimated_arrival DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
			return nil, 0, domain.StoreUnavailableError{Op: "delivery list", Err: err}
		}
		records := make([]domain.EntryRecord, 0, len(rows))
		for _, m := range rows {
			records = append(records, deliveryToDomain(m))
		}
		return records, total, nil
	}
	return nil, 0, fmt.Errorf("unknown entry kind %q", kind)
}

// Apply performs the guarded status transition. The UPDATE only matches
// rows still in a legal source state, so of two concurrent guards exactly
// one gets RowsAffected == 1; the loser is classified by re-reading.
func (r *EntryRepository) Apply(ctx context.Context, kind domain.Kind, id, communityID string, event domain.Event, actorID string, at time.Time) (domain.EntryRecord, error) {
	destination, ok := domain.DestinationStatus(kind, event)
	if !ok {
		return domain.EntryRecord{}, domain.IllegalTransitionError{Kind: kind, Event: event}
	}
	sources := domain.SourceStatuses(kind, event)

	updates := map[string]any{
		"status":   string(destination),
		"acted_at": at,
	}
	switch {
	case kind == domain.KindVisitor && event == domain.EventCheckIn:
		updates["actual_arrival"] = at
		updates["checked_in_by"] = actorID
	case kind == domain.KindVisitor && event == domain.EventCheckOut:
		updates["actual_departure"] = at
		updates["checked_out_by"] = actorID
	case kind == domain.KindDelivery && event == domain.EventArrive:
		updates["actual_arrival"] = at
		updates["checked_in_by"] = actorID
	case kind == domain.KindDelivery && event == domain.EventCollect:
		updates["collected_at"] = at
		updates["checked_in_by"] = actorID
		// force-expire the passcode so it can never be reused even if
		// the cache deletion that follows is lost to a crash
		updates["passcode_expires_at"] = at
	case event == domain.EventCancel:
		updates["cancelled_by"] = actorID
	}

	var model any
	switch kind {
	case domain.KindVisitor:
		model = &models.Visitor{}
	case domain.KindDelivery:
		model = &models.Delivery{}
	default:
		return domain.EntryRecord{}, fmt.Errorf("unknown entry kind %q", kind)
	}

	res := r.db.WithContext(ctx).Model(model).
		Where("id = ? AND community_id = ? AND status IN ?", id, communityID, statusStrings(sources)).
		Updates(updates)
	if res.Error != nil {
		return domain.EntryRecord{}, domain.StoreUnavailableError{Op: "entry transition", Err: res.Error}
	}

	if res.RowsAffected == 0 {
		current, err := r.Get(ctx, kind, id, communityID)
		if err != nil {
			return domain.EntryRecord{}, err
		}
		if current.Status == destination {
			return domain.EntryRecord{}, domain.AlreadyAdmittedError{Status: current.Status}
		}
		return domain.EntryRecord{}, domain.IllegalTransitionError{Kind: kind, From: current.Status, Event: event}
	}

	return r.Get(ctx, kind, id, communityID)
}

func (r *EntryRepository) HasLivePasscode(ctx context.Context, communityID, passcode string, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Delivery{}).
		Where("community_id = ? AND passcode = ? AND passcode_expires_at > ? AND status IN ?",
			communityID, passcode, now,
			[]string{string(domain.StatusPending), string(domain.StatusArrived)}).
		Count(&count).Error
	if err != nil {
		return false, domain.StoreUnavailableError{Op: "passcode lookup", Err: err}
	}
	return count > 0, nil
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func visitorFromDomain(rec domain.EntryRecord) *models.Visitor {
	return &models.Visitor{
		ID:                rec.ID,
		CommunityID:       rec.CommunityID,
		PropertyID:        rec.PropertyID,
		RegisteredBy:      rec.RegisteredBy,
		VisitorName:       rec.VisitorName,
		VisitorPhone:      rec.VisitorPhone,
		VisitorICPass:     rec.VisitorICPass,
		VehiclePlate:      rec.VehiclePlate,
		Purpose:           rec.Purpose,
		ExpectedArrival:   rec.ExpectedArrival,
		ExpectedDeparture: rec.ExpectedDeparture,
		Status:            string(rec.Status),
		QRCode:            rec.Code,
		QRExpiresAt:       rec.CodeExpiresAt,
	}
}

func visitorToDomain(m models.Visitor) domain.EntryRecord {
	rec := domain.EntryRecord{
		ID:                m.ID,
		Kind:              domain.KindVisitor,
		CommunityID:       m.CommunityID,
		PropertyID:        m.PropertyID,
		RegisteredBy:      m.RegisteredBy,
		Status:            domain.Status(m.Status),
		VisitorName:       m.VisitorName,
		VisitorPhone:      m.VisitorPhone,
		VisitorICPass:     m.VisitorICPass,
		VehiclePlate:      m.VehiclePlate,
		Purpose:           m.Purpose,
		ExpectedArrival:   m.ExpectedArrival,
		ExpectedDeparture: m.ExpectedDeparture,
		ActualArrival:     m.ActualArrival,
		ActualDeparture:   m.ActualDeparture,
		Code:              m.QRCode,
		CodeExpiresAt:     m.QRExpiresAt,
		ActedAt:           m.ActedAt,
		CreatedAt:         m.CDate,
	}
	switch rec.Status {
	case domain.StatusCancelled:
		rec.ActedBy = m.CancelledBy
	case domain.StatusCheckedOut:
		rec.ActedBy = m.CheckedOutBy
	default:
		rec.ActedBy = m.CheckedInBy
	}
	return rec
}

func deliveryFromDomain(rec domain.EntryRecord) *models.Delivery {
	return &models.Delivery{
		ID:                rec.ID,
		CommunityID:       rec.CommunityID,
		PropertyID:        rec.PropertyID,
		RegisteredBy:      rec.RegisteredBy,
		DeliveryService:   rec.DeliveryService,
		VehiclePlate:      rec.VehiclePlate,
		Notes:             rec.Notes,
		EstimatedArrival:  rec.ExpectedArrival,
		Status:            string(rec.Status),
		Passcode:          rec.Code,
		PasscodeExpiresAt: rec.CodeExpiresAt,
	}
}

func deliveryToDomain(m models.Delivery) domain.EntryRecord {
	rec := domain.EntryRecord{
		ID:              m.ID,
		Kind:            domain.KindDelivery,
		CommunityID:     m.CommunityID,
		PropertyID:      m.PropertyID,
		RegisteredBy:    m.RegisteredBy,
		Status:          domain.Status(m.Status),
		DeliveryService: m.DeliveryService,
		VehiclePlate:    m.VehiclePlate,
		Notes:           m.Notes,
		ExpectedArrival: m.EstimatedArrival,
		ActualArrival:   m.ActualArrival,
		ActualDeparture: m.CollectedAt,
		Code:            m.Passcode,
		CodeExpiresAt:   m.PasscodeExpiresAt,
		ActedAt:         m.ActedAt,
		CreatedAt:       m.CDate,
	}
	if rec.Status == domain.StatusCancelled {
		rec.ActedBy = m.CancelledBy
	} else {
		rec.ActedBy = m.CheckedInBy
	}
	return rec
}
