package auditlog

import (
	"context"
	"errors"
	"time"

	"github.com/paywise/tiersync/app/models"
	"gorm.io/gorm"
)

// Service is the append-only ledger of tier transitions. Appends are
// idempotent on the processor event id; the service performs no retries
// itself, retrying an append is always safe for the caller.
type Service struct {
	repo Repository
}

// NewService creates an audit log service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates an audit log service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Append persists the record, or reports Duplicate without storing anything
// when a record with the same processor event id already exists.
func (s *Service) Append(ctx context.Context, rec *models.TierAuditRecord) (AppendResult, error) {
	_ = ctx
	if rec == nil {
		return AppendStored, errors.New("audit record is required")
	}
	return s.repo.Insert(rec)
}

// HasEvent reports whether an audit record with the given processor event id
// already exists. Used as the fast dedup check before reconciliation.
func (s *Service) HasEvent(ctx context.Context, eventID string) (bool, error) {
	_ = ctx
	if eventID == "" {
		return false, nil
	}
	return s.repo.HasEvent(eventID)
}

// HistoryFor returns the account's audit records newest-first.
func (s *Service) HistoryFor(ctx context.Context, accountID uint, limit int) ([]models.TierAuditRecord, error) {
	_ = ctx
	if accountID == 0 {
		return nil, errors.New("account_id is required")
	}
	return s.repo.ListByAccount(accountID, limit)
}

// Analytics aggregates counts and summed amounts grouped by change reason and
// day. Reporting only; not part of the consistency-critical path.
func (s *Service) Analytics(ctx context.Context, start, end time.Time) ([]ReasonDailyStat, error) {
	_ = ctx
	if !end.After(start) {
		return nil, errors.New("end must be after start")
	}
	return s.repo.AggregateByReason(start, end)
}
