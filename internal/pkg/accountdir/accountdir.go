// Package accountdir is the reconciliation engine's view of the internal
// account store. The engine never touches account rows directly; every tier
// write goes through WithAccountLock, which serializes concurrent events for
// the same account and makes the account update plus audit append one
// transactional unit.
package accountdir

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/paywise/tiersync/app/models"
	"github.com/paywise/tiersync/internal/pkg/auditlog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Update carries the account columns a reconciliation step may set. Nil
// fields are left untouched.
type Update struct {
	Tier                    *string
	ProcessorCustomerID     *string
	ProcessorSubscriptionID *string
	SubscriptionStatus      *string
	SubscriptionEndDate     *time.Time
	LastPaymentAt           *time.Time
}

// Tx is the handle passed to a WithAccountLock callback. Account() returns
// the row as read under the lock; UpdateAccount and AppendAudit take effect
// only if the callback returns nil.
type Tx interface {
	Account() *models.Account
	UpdateAccount(u Update) error
	AppendAudit(rec *models.TierAuditRecord) (auditlog.AppendResult, error)
}

// Directory locates and mutates internal accounts. Find methods return
// (nil, nil) when no account matches.
type Directory interface {
	FindByProcessorCustomerID(ctx context.Context, customerID string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	WithAccountLock(ctx context.Context, accountID uint, fn func(tx Tx) error) error
}

type gormDirectory struct {
	db *gorm.DB
}

// NewDirectory creates an account directory backed by GORM.
func NewDirectory(db *gorm.DB) Directory {
	return &gormDirectory{db: db}
}

func (d *gormDirectory) FindByProcessorCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	cid := strings.TrimSpace(customerID)
	if cid == "" {
		return nil, errors.New("processor customer id is required")
	}
	var acct models.Account
	err := d.db.WithContext(ctx).Where("processor_customer_id = ?", cid).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (d *gormDirectory) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return nil, errors.New("email is required")
	}
	var acct models.Account
	err := d.db.WithContext(ctx).Where("LOWER(email) = ?", e).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// WithAccountLock runs fn inside a transaction holding a row-level lock on
// the account. The row is re-read under the lock, so fn always sees current
// state; a stale-read-then-write race is not possible. Any error from fn
// rolls back both the account update and the audit append.
func (d *gormDirectory) WithAccountLock(ctx context.Context, accountID uint, fn func(tx Tx) error) error {
	if accountID == 0 {
		return errors.New("account id is required")
	}
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acct models.Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&acct, accountID).Error; err != nil {
			return err
		}
		return fn(&gormTx{db: tx, acct: &acct})
	})
}

type gormTx struct {
	db   *gorm.DB
	acct *models.Account
}

func (t *gormTx) Account() *models.Account {
	return t.acct
}

func (t *gormTx) UpdateAccount(u Update) error {
	updates := map[string]interface{}{}
	if u.Tier != nil {
		updates["tier"] = *u.Tier
		t.acct.Tier = *u.Tier
	}
	if u.ProcessorCustomerID != nil {
		updates["processor_customer_id"] = *u.ProcessorCustomerID
		t.acct.ProcessorCustomerID = u.ProcessorCustomerID
	}
	if u.ProcessorSubscriptionID != nil {
		updates["processor_subscription_id"] = *u.ProcessorSubscriptionID
		t.acct.ProcessorSubscriptionID = u.ProcessorSubscriptionID
	}
	if u.SubscriptionStatus != nil {
		updates["subscription_status"] = *u.SubscriptionStatus
		t.acct.SubscriptionStatus = u.SubscriptionStatus
	}
	if u.SubscriptionEndDate != nil {
		updates["subscription_end_date"] = u.SubscriptionEndDate
		t.acct.SubscriptionEndDate = u.SubscriptionEndDate
	}
	if u.LastPaymentAt != nil {
		updates["last_payment_at"] = u.LastPaymentAt
		t.acct.LastPaymentAt = u.LastPaymentAt
	}
	if len(updates) == 0 {
		return nil
	}
	return t.db.Model(&models.Account{}).Where("id = ?", t.acct.ID).Updates(updates).Error
}

func (t *gormTx) AppendAudit(rec *models.TierAuditRecord) (auditlog.AppendResult, error) {
	return auditlog.InsertIfAbsent(t.db, rec)
}
