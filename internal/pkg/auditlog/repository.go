package auditlog

import (
	"time"

	"github.com/paywise/tiersync/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppendResult distinguishes a stored record from an idempotent no-op.
type AppendResult int

const (
	AppendStored AppendResult = iota
	AppendDuplicate
)

// ReasonDailyStat is one row of the analytics aggregation: counts and summed
// amounts per change reason per day.
type ReasonDailyStat struct {
	Day          string `gorm:"column:day" json:"day"`
	ChangeReason string `gorm:"column:change_reason" json:"change_reason"`
	Count        int64  `gorm:"column:count" json:"count"`
	AmountTotal  int64  `gorm:"column:amount_total" json:"amount_total"`
}

// Repository provides DB operations used by the audit log service.
type Repository interface {
	Insert(rec *models.TierAuditRecord) (AppendResult, error)
	HasEvent(eventID string) (bool, error)
	ListByAccount(accountID uint, limit int) ([]models.TierAuditRecord, error)
	AggregateByReason(start, end time.Time) ([]ReasonDailyStat, error)
}

// InsertIfAbsent persists rec unless a record with the same processor event id
// already exists. The uniqueness check is enforced by the storage layer's
// unique index, not by a check-then-insert, so racing deliveries of the same
// event cannot both store a record. Safe to call inside a larger transaction.
func InsertIfAbsent(db *gorm.DB, rec *models.TierAuditRecord) (AppendResult, error) {
	if rec.ProcessorEventID != nil && *rec.ProcessorEventID == "" {
		rec.ProcessorEventID = nil
	}
	if rec.ProcessorEventID == nil {
		if err := db.Create(rec).Error; err != nil {
			return AppendStored, err
		}
		return AppendStored, nil
	}

	tx := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "processor_event_id"}},
		DoNothing: true,
	}).Create(rec)
	if tx.Error != nil {
		return AppendStored, tx.Error
	}
	if tx.RowsAffected == 0 {
		return AppendDuplicate, nil
	}
	return AppendStored, nil
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an audit log repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Insert(rec *models.TierAuditRecord) (AppendResult, error) {
	return InsertIfAbsent(r.db, rec)
}

func (r *gormRepository) HasEvent(eventID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.TierAuditRecord{}).
		Where("processor_event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormRepository) ListByAccount(accountID uint, limit int) ([]models.TierAuditRecord, error) {
	var recs []models.TierAuditRecord
	q := r.db.Where("account_id = ?", accountID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}

func (r *gormRepository) AggregateByReason(start, end time.Time) ([]ReasonDailyStat, error) {
	var stats []ReasonDailyStat
	err := r.db.Model(&models.TierAuditRecord{}).
		Select("DATE(created_at) AS day, change_reason, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount_total").
		Where("created_at >= ? AND created_at < ?", start, end).
		Group("DATE(created_at), change_reason").
		Order("day ASC, change_reason ASC").
		Scan(&stats).Error
	return stats, err
}
