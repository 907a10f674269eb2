package models

import "time"

// Change reasons recorded on tier audit records.
const (
	ChangeReasonProcessorEvent = "processor_event"
	ChangeReasonManualAdmin    = "manual_admin"
	ChangeReasonUpgrade        = "upgrade"
	ChangeReasonDowngrade      = "downgrade"
	ChangeReasonCancellation   = "cancellation"
	ChangeReasonRenewal        = "renewal"
	ChangeReasonPaymentFailed  = "payment_failed"
	ChangeReasonTrialEnded     = "trial_ended"
	ChangeReasonRefund         = "refund"
)

// TierAuditRecord is the append-only ledger of tier transitions. Records are
// never updated or deleted; a correction is a new record. The unique index on
// processor_event_id is the idempotency guarantee for webhook redelivery.
type TierAuditRecord struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	AccountID               uint       `gorm:"not null;index" json:"account_id"`
	ProcessorCustomerID     string     `gorm:"type:varchar(191);not null;index" json:"processor_customer_id"`
	ProcessorSubscriptionID *string    `gorm:"type:varchar(191)" json:"processor_subscription_id,omitempty"`
	ProcessorEventID        *string    `gorm:"type:varchar(191);uniqueIndex:ux_tier_audit_records_event" json:"processor_event_id,omitempty"`
	PreviousTier            string     `gorm:"type:varchar(50);not null" json:"previous_tier"`
	NewTier                 string     `gorm:"type:varchar(50);not null" json:"new_tier"`
	SubscriptionStatus      *string    `gorm:"type:varchar(32)" json:"subscription_status,omitempty"`
	ChangeReason            string     `gorm:"type:varchar(32);not null;index" json:"change_reason"`
	Amount                  *int64     `json:"amount,omitempty"`
	Currency                *string    `gorm:"type:varchar(8)" json:"currency,omitempty"`
	PeriodStart             *time.Time `gorm:"type:timestamp;default:null" json:"period_start,omitempty"`
	PeriodEnd               *time.Time `gorm:"type:timestamp;default:null" json:"period_end,omitempty"`
	MetadataJSON            string     `gorm:"type:text" json:"metadata_json"`
	CreatedAt               time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
