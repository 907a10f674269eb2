package pendingstore

import (
	"time"

	"github.com/paywise/tiersync/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the pending update store.
type Repository interface {
	InsertIfAbsent(pu *models.PendingTierUpdate) (bool, error)
	FindByEmailKeys(keys []string, now time.Time) ([]models.PendingTierUpdate, error)
	FindByCustomerID(customerID string, now time.Time) ([]models.PendingTierUpdate, error)
	MarkProcessed(id uint, at time.Time) (bool, error)
	DeleteProcessedExpired(now time.Time) (int64, error)
	ListUnprocessed(limit int) ([]models.PendingTierUpdate, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a pending update repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) InsertIfAbsent(pu *models.PendingTierUpdate) (bool, error) {
	if pu.ProcessorEventID == nil || *pu.ProcessorEventID == "" {
		pu.ProcessorEventID = nil
		if err := r.db.Create(pu).Error; err != nil {
			return false, err
		}
		return true, nil
	}

	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "processor_event_id"}},
		DoNothing: true,
	}).Create(pu)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) FindByEmailKeys(keys []string, now time.Time) ([]models.PendingTierUpdate, error) {
	var updates []models.PendingTierUpdate
	err := r.db.
		Where("target_email IN ?", keys).
		Where("is_processed = ? AND expires_at > ?", false, now).
		Order("created_at DESC, id DESC").
		Find(&updates).Error
	return updates, err
}

func (r *gormRepository) FindByCustomerID(customerID string, now time.Time) ([]models.PendingTierUpdate, error) {
	var updates []models.PendingTierUpdate
	err := r.db.
		Where("processor_customer_id = ?", customerID).
		Where("is_processed = ? AND expires_at > ?", false, now).
		Order("created_at DESC, id DESC").
		Find(&updates).Error
	return updates, err
}

func (r *gormRepository) MarkProcessed(id uint, at time.Time) (bool, error) {
	tx := r.db.Model(&models.PendingTierUpdate{}).
		Where("id = ? AND is_processed = ?", id, false).
		Updates(map[string]interface{}{
			"is_processed": true,
			"processed_at": &at,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) DeleteProcessedExpired(now time.Time) (int64, error) {
	tx := r.db.
		Where("is_processed = ? AND expires_at <= ?", true, now).
		Delete(&models.PendingTierUpdate{})
	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) ListUnprocessed(limit int) ([]models.PendingTierUpdate, error) {
	var updates []models.PendingTierUpdate
	q := r.db.Where("is_processed = ?", false).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&updates).Error
	return updates, err
}
