package reconcile

import (
	"strings"

	"github.com/paywise/tiersync/internal/pkg/entitlements"
)

// EventClass groups processor event types by how reconciliation treats them.
type EventClass int

const (
	ClassUnknown EventClass = iota
	ClassSubscriptionChange
	ClassCancellation
	ClassInvoicePaid
	ClassInvoiceFailed
	ClassCustomerCreated
)

// ClassifyEvent maps a processor event type to its reconciliation class.
func ClassifyEvent(eventType string) EventClass {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return ClassSubscriptionChange
	case EventSubscriptionDeleted:
		return ClassCancellation
	case EventInvoicePaymentSucceeded:
		return ClassInvoicePaid
	case EventInvoicePaymentFailed:
		return ClassInvoiceFailed
	case EventCustomerCreated:
		return ClassCustomerCreated
	default:
		return ClassUnknown
	}
}

// Action is the typed outcome of the decision table.
type Action int

const (
	// ActionIgnore drops the event with no state change.
	ActionIgnore Action = iota
	// ActionApply writes the account's tier/subscription columns and audits.
	ActionApply
	// ActionStage records a pending update for a not-yet-existing account.
	ActionStage
	// ActionRecordOnly appends an audit entry without touching the tier.
	ActionRecordOnly
	// ActionSkipAdmin audits the attempt but leaves an admin account untouched.
	ActionSkipAdmin
	// ActionLink attaches the processor customer id to an existing account.
	ActionLink
)

// Decide is the engine's decision table: event class × account-found ×
// current tier → action. Keeping the branching in one place means every
// handler shares identical admin-protection and staging rules.
func Decide(class EventClass, accountFound bool, currentTier entitlements.Tier) Action {
	switch class {
	case ClassSubscriptionChange:
		if !accountFound {
			return ActionStage
		}
		if !entitlements.IsManaged(currentTier) {
			return ActionSkipAdmin
		}
		return ActionApply

	case ClassCancellation:
		// A cancellation for an unknown account needs no future action.
		if !accountFound {
			return ActionIgnore
		}
		if !entitlements.IsManaged(currentTier) {
			return ActionSkipAdmin
		}
		return ActionApply

	case ClassInvoicePaid, ClassInvoiceFailed:
		if !accountFound {
			return ActionIgnore
		}
		return ActionRecordOnly

	case ClassCustomerCreated:
		if !accountFound {
			return ActionIgnore
		}
		return ActionLink

	default:
		return ActionIgnore
	}
}
