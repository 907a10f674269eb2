package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Processor event types handled by the engine.
const (
	EventSubscriptionCreated     = "customer.subscription.created"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
	EventCustomerCreated         = "customer.created"
)

// RecurringPrice describes a price's billing cadence.
type RecurringPrice struct {
	Interval string `json:"interval"`
}

// PriceInfo is one price line of a subscription.
type PriceInfo struct {
	ID         string         `json:"id"`
	ProductID  string         `json:"productId"`
	UnitAmount int64          `json:"unitAmount"`
	Currency   string         `json:"currency"`
	Recurring  RecurringPrice `json:"recurring"`
}

// SubscriptionItem wraps a price line.
type SubscriptionItem struct {
	Price PriceInfo `json:"price"`
}

// SubscriptionInfo is the subscription portion of a processor event.
type SubscriptionInfo struct {
	ID                 string             `json:"id" validate:"required"`
	Status             string             `json:"status" validate:"required"`
	CurrentPeriodStart *time.Time         `json:"currentPeriodStart"`
	CurrentPeriodEnd   *time.Time         `json:"currentPeriodEnd"`
	Items              []SubscriptionItem `json:"items"`
}

// InvoiceInfo is the invoice portion of a processor event.
type InvoiceInfo struct {
	SubscriptionID string `json:"subscriptionId"`
	CustomerID     string `json:"customerId"`
	AmountDue      int64  `json:"amountDue"`
	Currency       string `json:"currency"`
}

// ProcessorEvent is the typed, already-authenticated payload delivered by the
// payment processor's webhook layer. EventID is the processor-supplied
// idempotency key; it may be empty for synthetic or replayed deliveries.
type ProcessorEvent struct {
	EventType     string            `json:"eventType" validate:"required"`
	EventID       string            `json:"eventId"`
	CustomerID    string            `json:"customerId" validate:"required"`
	CustomerEmail string            `json:"customerEmail" validate:"omitempty,email"`
	Subscription  *SubscriptionInfo `json:"subscription,omitempty"`
	Invoice       *InvoiceInfo      `json:"invoice,omitempty"`
}

// Validate rejects malformed payloads before any state is touched.
func (e *ProcessorEvent) Validate(v *validator.Validate) error {
	if err := v.Struct(e); err != nil {
		return err
	}

	switch ClassifyEvent(e.EventType) {
	case ClassSubscriptionChange, ClassCancellation:
		if e.Subscription == nil {
			return fmt.Errorf("event %s requires a subscription payload", e.EventType)
		}
		if err := v.Struct(e.Subscription); err != nil {
			return err
		}
	case ClassInvoicePaid, ClassInvoiceFailed:
		if e.Invoice == nil {
			return fmt.Errorf("event %s requires an invoice payload", e.EventType)
		}
	case ClassCustomerCreated:
		// Email may legitimately be absent; linkage is skipped without it.
	case ClassUnknown:
		// Unknown types pass validation and are ignored during classification.
	}
	return nil
}

// PrimaryPrice returns the subscription's first price line, or nil.
func (e *ProcessorEvent) PrimaryPrice() *PriceInfo {
	if e.Subscription == nil || len(e.Subscription.Items) == 0 {
		return nil
	}
	return &e.Subscription.Items[0].Price
}

// PrimaryInterval returns the recurring interval of the primary price line,
// or "" when the subscription has no priced items.
func (e *ProcessorEvent) PrimaryInterval() string {
	if p := e.PrimaryPrice(); p != nil {
		return strings.ToLower(strings.TrimSpace(p.Recurring.Interval))
	}
	return ""
}
