package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// ErrForbidden rejects an operation on a record the requester does not
// own and has no role-based right to touch.
var ErrForbidden = fmt.Errorf("forbidden")

// CredentialError is a terminal, user-facing credential outcome. None of
// these are retryable: re-scanning a tampered or expired code cannot
// succeed.
type CredentialError struct {
	Code DecisionCode
}

func (e CredentialError) Error() string {
	return string(e.Code)
}

func (e CredentialError) Is(target error) bool {
	t, ok := target.(CredentialError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrCredentialNotFound = CredentialError{Code: DecisionNotFound}
	ErrCredentialExpired  = CredentialError{Code: DecisionExpired}
	ErrCredentialInvalid  = CredentialError{Code: DecisionInvalid}
)

// IllegalTransitionError rejects a lifecycle event that is not legal from
// the entry's current status.
type IllegalTransitionError struct {
	Kind  Kind
	From  Status
	Event Event
}

func (e IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s cannot %s from status %s", e.Kind, e.Event, e.From)
}

func (e IllegalTransitionError) Is(target error) bool {
	_, ok := target.(IllegalTransitionError)
	if ok {
		return true
	}
	_, ok = target.(*IllegalTransitionError)
	return ok
}

// ErrIllegalTransition is the sentinel for errors.Is matching.
var ErrIllegalTransition = IllegalTransitionError{}

// AlreadyAdmittedError reports that the entry already holds the state the
// event would produce. Distinct from IllegalTransitionError so a guard UI
// can explain a double scan.
type AlreadyAdmittedError struct {
	Status Status
}

func (e AlreadyAdmittedError) Error() string {
	return fmt.Sprintf("already admitted: status is %s", e.Status)
}

func (e AlreadyAdmittedError) Is(target error) bool {
	_, ok := target.(AlreadyAdmittedError)
	if ok {
		return true
	}
	_, ok = target.(*AlreadyAdmittedError)
	return ok
}

// ErrAlreadyAdmitted is the sentinel for errors.Is matching.
var ErrAlreadyAdmitted = AlreadyAdmittedError{}

// StoreUnavailableError wraps a collaborator I/O failure. It is the only
// error kind a caller may retry.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e StoreUnavailableError) Unwrap() error { return e.Err }

func (e StoreUnavailableError) Is(target error) bool {
	_, ok := target.(StoreUnavailableError)
	if ok {
		return true
	}
	_, ok = target.(*StoreUnavailableError)
	return ok
}

// ErrStoreUnavailable is the sentinel for errors.Is matching.
var ErrStoreUnavailable = StoreUnavailableError{}
