package models

import "time"

// Subscription status values as reported by the payment processor.
const (
	SubscriptionStatusActive            = "active"
	SubscriptionStatusCanceled          = "canceled"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusUnpaid            = "unpaid"
	SubscriptionStatusTrialing          = "trialing"
	SubscriptionStatusIncomplete        = "incomplete"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
)

const (
	BillingIntervalMonth   = "month"
	BillingIntervalYear    = "year"
	BillingIntervalUnknown = "unknown"
)

// Account is the internal user account whose entitlement tier is kept in sync
// with the payment processor. The tier and subscription columns are mutated
// exclusively through the reconciliation engine's locked write path.
type Account struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	Name                    string     `gorm:"type:varchar(150)" json:"name"`
	Email                   string     `gorm:"uniqueIndex;type:varchar(200)" json:"email"`
	Tier                    string     `gorm:"type:varchar(50);not null;default:'free';index" json:"tier"`
	ProcessorCustomerID     *string    `gorm:"type:varchar(191);uniqueIndex" json:"processor_customer_id,omitempty"`
	ProcessorSubscriptionID *string    `gorm:"type:varchar(191);index" json:"processor_subscription_id,omitempty"`
	SubscriptionStatus      *string    `gorm:"type:varchar(32)" json:"subscription_status,omitempty"`
	SubscriptionEndDate     *time.Time `gorm:"type:timestamp;default:null" json:"subscription_end_date,omitempty"`
	LastPaymentAt           *time.Time `gorm:"type:timestamp;default:null" json:"last_payment_at,omitempty"`
	CreatedAt               time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
