package inventory

import "errors"

var (
	// Validation failures: malformed input or unknown entity ids.
	ErrValidation          = errors.New("validation failed")
	ErrItemNotFound        = errors.New("item not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrRequestNotFound     = errors.New("request not found")
	ErrAlertNotFound       = errors.New("alert not found")

	// ErrInsufficientStock is a business rejection, not a fault: the
	// requested deduction or hold exceeds what is available.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidStateTransition is returned when an operation is attempted
	// from a lifecycle state that does not allow it.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	ErrNotAuthorized = errors.New("not authorized")

	// ErrAlertExists is returned by stores when inserting an alert for an
	// item that already has a non-resolved one. The monitor treats it as a
	// lost race and reconciles against the existing row.
	ErrAlertExists = errors.New("active alert already exists")

	// ErrStaleItem signals an optimistic-lock conflict on an item's stock
	// fields. Callers inside this package retry; it never escapes a ledger
	// or reservation operation directly.
	ErrStaleItem = errors.New("stale item version")

	// ErrStoreUnavailable wraps persistence failures. The whole operation is
	// retryable by the caller; state checks reject duplicates on replay.
	ErrStoreUnavailable = errors.New("store unavailable")
)
