package service

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/amirfarid/guardpost/internal/domain"
	"github.com/amirfarid/guardpost/token"
)

var tracer = otel.Tracer("credential")

// ErrCodeExists reports that a public code is already live in the cache.
// Callers regenerate and retry; for visitor codes the space is large
// enough that this practically never fires.
var ErrCodeExists = errors.New("public code already in use")

// CredentialCache is the ephemeral existence oracle for live credentials.
// Absence after TTL expiry is load-bearing, but never the sole proof of
// validity: the signature check runs on every hit.
type CredentialCache interface {
	Put(ctx context.Context, cred domain.Credential, ttl time.Duration) error
	Get(ctx context.Context, code string) (domain.Credential, error)
	Delete(ctx context.Context, code string) error
}

// EntryStore is the read side of the durable store needed for validation.
type EntryStore interface {
	Get(ctx context.Context, kind domain.Kind, id, communityID string) (domain.EntryRecord, error)
}

// CredentialService issues, validates and invalidates time-bounded access
// credentials. Steps are read-only and idempotent; consumption is the
// caller's follow-up through the entry repository.
type CredentialService struct {
	codec *token.Codec
	cache CredentialCache
	store EntryStore
	now   func() time.Time
}

func NewCredentialService(
	codec *token.Codec,
	cache CredentialCache,
	store EntryStore,
	now func() time.Time,
) *CredentialService {
	if now == nil {
		now = time.Now
	}
	return &CredentialService{
		codec: codec,
		cache: cache,
		store: store,
		now:   now,
	}
}

// Issue signs a token for the subject and registers the public code in
// the cache with the credential's remaining lifetime as TTL. Issuing an
// already-expired credential fails.
func (s *CredentialService) Issue(ctx context.Context, kind domain.Kind, code, subjectID, communityID string, expiresAt time.Time) error {
	ctx, span := tracer.Start(ctx, "Credential.Service.Issue")
	defer span.End()

	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		err := pkgerrors.Errorf("cannot issue credential expiring at %s", expiresAt.UTC().Format(time.RFC3339))
		span.RecordError(err)
		return err
	}

	signed, err := s.codec.Issue(subjectID, communityID, expiresAt)
	if err != nil {
		span.RecordError(pkgerrors.Wrap(err, "token issue failed"))
		return err
	}

	cred := domain.Credential{
		Code:        code,
		Token:       signed,
		SubjectID:   subjectID,
		CommunityID: communityID,
		Kind:        kind,
	}

	if err := s.cache.Put(ctx, cred, ttl); err != nil {
		span.RecordError(pkgerrors.Wrap(err, "cache put failed"))
		return err
	}

	return nil
}

// Validate answers "is this credential admissible right now" for the
// intended event. Checks short-circuit on first failure, in order: cache
// existence, signature and embedded expiry, durable record (scoped by
// community, cross-tenant never leaks), status gate, and a second
// wall-clock check against the stored expiry.
func (s *CredentialService) Validate(ctx context.Context, code, communityID string, intended domain.Event) (domain.Decision, error) {
	ctx, span := tracer.Start(ctx, "Credential.Service.Validate")
	defer span.End()

	cred, err := s.cache.Get(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return domain.Decision{Code: domain.DecisionNotFound}, nil
		}
		span.RecordError(pkgerrors.Wrap(err, "cache get failed"))
		return domain.Decision{}, domain.StoreUnavailableError{Op: "cache get", Err: err}
	}

	claims, err := s.codec.Verify(cred.Token)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			return domain.Decision{Code: domain.DecisionExpired}, nil
		default:
			return domain.Decision{Code: domain.DecisionInvalid}, nil
		}
	}

	// The cached payload is untrusted bookkeeping; the verified claims
	// are authoritative for subject and tenant.
	if claims.CommunityID != communityID {
		return domain.Decision{Code: domain.DecisionNotFound}, nil
	}

	record, err := s.store.Get(ctx, cred.Kind, claims.SubjectID, communityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Decision{Code: domain.DecisionNotFound}, nil
		}
		span.RecordError(pkgerrors.Wrap(err, "entry lookup failed"))
		return domain.Decision{}, err
	}

	if decision, ok := gateStatus(record, intended); !ok {
		decision.Record = &record
		return decision, nil
	}

	now := s.now()
	if !record.CodeExpiresAt.IsZero() && !record.CodeExpiresAt.After(now) {
		return domain.Decision{Code: domain.DecisionExpired, Record: &record}, nil
	}
	if !claims.ExpiresAt.After(now) {
		return domain.Decision{Code: domain.DecisionExpired, Record: &record}, nil
	}

	return domain.Decision{Code: domain.DecisionAdmissible, Record: &record}, nil
}

// Invalidate removes the public code from the cache. Idempotent, so it is
// safe to retry after the durable transition has already succeeded.
func (s *CredentialService) Invalidate(ctx context.Context, code string) error {
	ctx, span := tracer.Start(ctx, "Credential.Service.Invalidate")
	defer span.End()

	if code == "" {
		return nil
	}
	if err := s.cache.Delete(ctx, code); err != nil {
		span.RecordError(pkgerrors.Wrap(err, "cache delete failed"))
		return domain.StoreUnavailableError{Op: "cache delete", Err: err}
	}
	return nil
}

// gateStatus checks the record's status against the intended event. A
// record already holding the event's destination reads as AlreadyAdmitted
// so a guard UI can explain a double scan; every other ineligible status
// reads as not found, fail-closed.
func gateStatus(record domain.EntryRecord, intended domain.Event) (domain.Decision, bool) {
	destination, ok := domain.DestinationStatus(record.Kind, intended)
	if !ok {
		return domain.Decision{Code: domain.DecisionNotFound}, false
	}
	if record.Status == destination {
		return domain.Decision{Code: domain.DecisionAlreadyAdmitted}, false
	}
	for _, source := range domain.SourceStatuses(record.Kind, intended) {
		if record.Status == source {
			return domain.Decision{}, true
		}
	}
	return domain.Decision{Code: domain.DecisionNotFound}, false
}
