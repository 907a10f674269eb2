package customerdir

import (
	"errors"

	"github.com/paywise/tiersync/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the customer directory.
type Repository interface {
	Upsert(cs *models.CustomerSnapshot) error
	FindByCustomerID(customerID string) (*models.CustomerSnapshot, error)
	FindByEmail(email string) (*models.CustomerSnapshot, error)
	Save(cs *models.CustomerSnapshot) error
	ListUnsynced(limit int) ([]models.CustomerSnapshot, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a customer directory repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Upsert(cs *models.CustomerSnapshot) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "processor_customer_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"email",
			"metadata_json",
			"processor_created_at",
			"updated_at",
		}),
	}).Create(cs).Error; err != nil {
		return err
	}

	// Ensure ID and denormalized columns are populated after upsert.
	return r.db.Where("processor_customer_id = ?", cs.ProcessorCustomerID).First(cs).Error
}

func (r *gormRepository) FindByCustomerID(customerID string) (*models.CustomerSnapshot, error) {
	var cs models.CustomerSnapshot
	err := r.db.Where("processor_customer_id = ?", customerID).First(&cs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

func (r *gormRepository) FindByEmail(email string) (*models.CustomerSnapshot, error) {
	var cs models.CustomerSnapshot
	err := r.db.Where("email = ?", email).Order("updated_at DESC").First(&cs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

func (r *gormRepository) Save(cs *models.CustomerSnapshot) error {
	return r.db.Save(cs).Error
}

func (r *gormRepository) ListUnsynced(limit int) ([]models.CustomerSnapshot, error) {
	var snapshots []models.CustomerSnapshot
	q := r.db.Where("subscription_synced = ?", false).Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&snapshots).Error
	return snapshots, err
}
