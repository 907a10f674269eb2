package reconcile

import (
	"errors"
	"fmt"
)

// ErrAccountNotFound is returned by ApplyPending when neither the customer id
// nor the email resolves to an internal account.
var ErrAccountNotFound = errors.New("no matching account")

// errDuplicateInTx signals that the audit unique index rejected the append
// inside the locked transaction: a racing delivery of the same event already
// committed. The transaction rolls back and the event reports Duplicate.
var errDuplicateInTx = errors.New("audit append hit duplicate event id")

// MalformedEventError wraps a payload rejected before reaching any state.
type MalformedEventError struct {
	EventID string
	Err     error
}

func (e *MalformedEventError) Error() string {
	if e.EventID != "" {
		return fmt.Sprintf("malformed processor event %s: %v", e.EventID, e.Err)
	}
	return fmt.Sprintf("malformed processor event: %v", e.Err)
}

func (e *MalformedEventError) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether err is a payload-validation failure, which the
// webhook layer should answer with a non-retryable status.
func IsMalformed(err error) bool {
	var m *MalformedEventError
	return errors.As(err, &m)
}
