package pendingstore

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/paywise/tiersync/app/models"
	"gorm.io/gorm"
)

// DefaultExpiryHorizon bounds how long a staged update stays applicable.
const DefaultExpiryHorizon = 30 * 24 * time.Hour

// Service is the staging area for tier changes that could not be applied
// because no matching account existed at event time. Expiry is enforced at
// read time by timestamp comparison; correctness never depends on the
// physical sweep running.
type Service struct {
	repo    Repository
	horizon time.Duration
}

// NewService creates a pending update store from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, horizon: DefaultExpiryHorizon}
}

// NewServiceFromDB creates a pending update store from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Stage persists a pending update. Idempotent on the processor event id:
// staging a duplicate is a no-op and returns false. The target email is
// normalized through NormalizeEmailKey before storage.
func (s *Service) Stage(ctx context.Context, pu *models.PendingTierUpdate) (bool, error) {
	_ = ctx
	if pu == nil {
		return false, errors.New("pending update is required")
	}
	pu.TargetEmail = NormalizeEmailKey(pu.TargetEmail)
	if pu.TargetEmail == "" {
		return false, errors.New("target email is required")
	}
	if pu.PendingTier == "" {
		return false, errors.New("pending tier is required")
	}
	if pu.ExpiresAt.IsZero() {
		pu.ExpiresAt = time.Now().Add(s.horizon)
	}
	return s.repo.InsertIfAbsent(pu)
}

// FindPendingForEmail returns unprocessed, unexpired updates matching the
// email, newest-first. A synthetic processor_customer_<id> input matches
// exactly; a real email matches case-insensitively and also matches the
// synthetic form built from the email itself.
func (s *Service) FindPendingForEmail(ctx context.Context, email string) ([]models.PendingTierUpdate, error) {
	_ = ctx
	keys := matchKeysForEmail(email)
	if len(keys) == 0 {
		return nil, nil
	}
	return s.repo.FindByEmailKeys(keys, time.Now())
}

// FindPendingForCustomer returns unprocessed, unexpired updates for the exact
// processor customer id, newest-first.
func (s *Service) FindPendingForCustomer(ctx context.Context, customerID string) ([]models.PendingTierUpdate, error) {
	_ = ctx
	if customerID == "" {
		return nil, nil
	}
	return s.repo.FindByCustomerID(customerID, time.Now())
}

// MarkProcessed consumes a pending update. Idempotent: marking an already
// processed entry is a no-op.
func (s *Service) MarkProcessed(ctx context.Context, id uint) error {
	_ = ctx
	if id == 0 {
		return errors.New("pending update id is required")
	}
	updated, err := s.repo.MarkProcessed(id, time.Now())
	if err != nil {
		return err
	}
	if !updated {
		log.Debugf("[PendingStore] mark processed was a no-op for update %d", id)
	}
	return nil
}

// Sweep physically deletes processed-and-expired rows. Storage hygiene only.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	_ = ctx
	return s.repo.DeleteProcessedExpired(time.Now())
}

// ListUnprocessed returns unprocessed updates newest-first, including expired
// ones, for admin diagnostics.
func (s *Service) ListUnprocessed(ctx context.Context, limit int) ([]models.PendingTierUpdate, error) {
	_ = ctx
	return s.repo.ListUnprocessed(limit)
}
