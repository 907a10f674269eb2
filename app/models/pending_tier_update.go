package models

import "time"

// PendingTierUpdate stages a tier change that arrived before the matching
// account existed. TargetEmail is either a case-folded real email or the
// synthetic processor_customer_<id> key when no email is known yet. Entries
// become invisible to normal queries once past ExpiresAt; a background sweep
// may physically delete processed-and-expired rows.
type PendingTierUpdate struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	TargetEmail             string     `gorm:"type:varchar(220);not null;index" json:"target_email"`
	ProcessorCustomerID     *string    `gorm:"type:varchar(191);index" json:"processor_customer_id,omitempty"`
	PendingTier             string     `gorm:"type:varchar(50);not null" json:"pending_tier"`
	ProcessorSubscriptionID *string    `gorm:"type:varchar(191)" json:"processor_subscription_id,omitempty"`
	SubscriptionStatus      *string    `gorm:"type:varchar(32)" json:"subscription_status,omitempty"`
	SubscriptionEndDate     *time.Time `gorm:"type:timestamp;default:null" json:"subscription_end_date,omitempty"`
	SourceEventType         string     `gorm:"type:varchar(100);not null" json:"source_event_type"`
	ProcessorEventID        *string    `gorm:"type:varchar(191);uniqueIndex:ux_pending_tier_updates_event" json:"processor_event_id,omitempty"`
	PriceID                 *string    `gorm:"type:varchar(191)" json:"price_id,omitempty"`
	ProductID               *string    `gorm:"type:varchar(191)" json:"product_id,omitempty"`
	CheckoutSessionID       *string    `gorm:"type:varchar(191)" json:"checkout_session_id,omitempty"`
	Amount                  *int64     `json:"amount,omitempty"`
	Currency                *string    `gorm:"type:varchar(8)" json:"currency,omitempty"`
	ExpiresAt               time.Time  `gorm:"type:timestamp;not null;index" json:"expires_at"`
	IsProcessed             bool       `gorm:"not null;default:false;index" json:"is_processed"`
	ProcessedAt             *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt               time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
