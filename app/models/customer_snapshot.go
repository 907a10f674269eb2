package models

import "time"

// CustomerSnapshot caches the last known processor-side state for a customer,
// independent of whether an internal account exists yet. It is a read-optimized
// cache and never authoritative for granting access; only Account.Tier is.
type CustomerSnapshot struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	ProcessorCustomerID string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"processor_customer_id"`
	Email               string     `gorm:"type:varchar(200);index" json:"email"`
	MetadataJSON        string     `gorm:"type:text" json:"metadata_json"`
	ProcessorCreatedAt  *time.Time `gorm:"type:timestamp;default:null" json:"processor_created_at,omitempty"`

	// Denormalized last-known subscription state.
	SubscriptionID        *string    `gorm:"type:varchar(191)" json:"subscription_id,omitempty"`
	SubscriptionStatus    *string    `gorm:"type:varchar(32)" json:"subscription_status,omitempty"`
	SubscriptionTier      *string    `gorm:"type:varchar(50)" json:"subscription_tier,omitempty"`
	CurrentPeriodStart    *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd      *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	PriceID               *string    `gorm:"type:varchar(191)" json:"price_id,omitempty"`
	ProductID             *string    `gorm:"type:varchar(191)" json:"product_id,omitempty"`
	Amount                *int64     `json:"amount,omitempty"`
	Currency              *string    `gorm:"type:varchar(8)" json:"currency,omitempty"`
	SubscriptionUpdatedAt *time.Time `gorm:"type:timestamp;default:null" json:"subscription_updated_at,omitempty"`

	SubscriptionSynced bool       `gorm:"not null;default:false;index" json:"subscription_synced"`
	LastSyncAttempt    *time.Time `gorm:"type:timestamp;default:null" json:"last_sync_attempt,omitempty"`
	SyncErrorsJSON     string     `gorm:"type:text" json:"sync_errors_json"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
