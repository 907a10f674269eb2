package customerdir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paywise/tiersync/app/models"
	"gorm.io/gorm"
)

// maxSyncErrors bounds the per-customer error ring buffer.
const maxSyncErrors = 5

// SyncError is one entry in a snapshot's recent-error ring buffer.
type SyncError struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// SubscriptionState is the denormalized subscription view folded into a
// customer snapshot.
type SubscriptionState struct {
	SubscriptionID string
	Status         string
	Tier           string
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	PriceID        string
	ProductID      string
	Amount         *int64
	Currency       string
}

// Service is a durable cache of processor-customer state, kept independent of
// whether an internal account exists yet. It is reconciled opportunistically
// and never treated as authoritative for granting access.
type Service struct {
	repo Repository
}

// NewService creates a customer directory from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a customer directory from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// UpsertCustomer creates or refreshes the identity part of a snapshot.
func (s *Service) UpsertCustomer(ctx context.Context, customerID, email, metadataJSON string, createdAt *time.Time) (*models.CustomerSnapshot, error) {
	_ = ctx
	cid := strings.TrimSpace(customerID)
	if cid == "" {
		return nil, errors.New("processor customer id is required")
	}

	cs := &models.CustomerSnapshot{
		ProcessorCustomerID: cid,
		Email:               strings.ToLower(strings.TrimSpace(email)),
		MetadataJSON:        metadataJSON,
		ProcessorCreatedAt:  createdAt,
	}
	if err := s.repo.Upsert(cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// FindByCustomerID returns the snapshot for the customer, or nil when unknown.
func (s *Service) FindByCustomerID(ctx context.Context, customerID string) (*models.CustomerSnapshot, error) {
	_ = ctx
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.New("processor customer id is required")
	}
	return s.repo.FindByCustomerID(strings.TrimSpace(customerID))
}

// FindByEmail returns the most recently updated snapshot for the email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.CustomerSnapshot, error) {
	_ = ctx
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return nil, errors.New("email is required")
	}
	return s.repo.FindByEmail(e)
}

// RecordSubscriptionState upserts the snapshot and folds in subscription state
// that has NOT been applied to an account yet (synced=false), so unmatched
// processor state stays visible to diagnostics and the bulk resync.
func (s *Service) RecordSubscriptionState(ctx context.Context, customerID, email string, state SubscriptionState) error {
	cs, err := s.UpsertCustomer(ctx, customerID, email, "", nil)
	if err != nil {
		return err
	}

	now := time.Now()
	applyState(cs, state, now)
	cs.SubscriptionSynced = false
	return s.repo.Save(cs)
}

// ApplyPendingUpdate folds a successfully applied pending update into the
// snapshot, marks it synced and records the sync attempt.
func (s *Service) ApplyPendingUpdate(ctx context.Context, customerID string, pu *models.PendingTierUpdate) error {
	_ = ctx
	if pu == nil {
		return errors.New("pending update is required")
	}
	cs, err := s.repo.FindByCustomerID(strings.TrimSpace(customerID))
	if err != nil {
		return err
	}
	if cs == nil {
		return fmt.Errorf("no customer snapshot for %s", customerID)
	}

	now := time.Now()
	state := SubscriptionState{
		Tier:      pu.PendingTier,
		Amount:    pu.Amount,
		PeriodEnd: pu.SubscriptionEndDate,
	}
	if pu.ProcessorSubscriptionID != nil {
		state.SubscriptionID = *pu.ProcessorSubscriptionID
	}
	if pu.SubscriptionStatus != nil {
		state.Status = *pu.SubscriptionStatus
	}
	if pu.PriceID != nil {
		state.PriceID = *pu.PriceID
	}
	if pu.ProductID != nil {
		state.ProductID = *pu.ProductID
	}
	if pu.Currency != nil {
		state.Currency = *pu.Currency
	}
	applyState(cs, state, now)
	cs.SubscriptionSynced = true
	cs.LastSyncAttempt = &now
	return s.repo.Save(cs)
}

// LogSyncError appends to the snapshot's error ring buffer, keeping only the
// five most recent entries, and records the sync attempt.
func (s *Service) LogSyncError(ctx context.Context, customerID, message string) error {
	_ = ctx
	cs, err := s.repo.FindByCustomerID(strings.TrimSpace(customerID))
	if err != nil {
		return err
	}
	if cs == nil {
		return fmt.Errorf("no customer snapshot for %s", customerID)
	}

	var ring []SyncError
	if cs.SyncErrorsJSON != "" {
		// A corrupt buffer is dropped rather than blocking the write.
		_ = json.Unmarshal([]byte(cs.SyncErrorsJSON), &ring)
	}
	now := time.Now()
	ring = append(ring, SyncError{Message: message, At: now})
	if len(ring) > maxSyncErrors {
		ring = ring[len(ring)-maxSyncErrors:]
	}
	buf, err := json.Marshal(ring)
	if err != nil {
		return err
	}
	cs.SyncErrorsJSON = string(buf)
	cs.LastSyncAttempt = &now
	return s.repo.Save(cs)
}

// ListUnsynced returns snapshots whose subscription state has not been folded
// into an account yet, oldest-first.
func (s *Service) ListUnsynced(ctx context.Context, limit int) ([]models.CustomerSnapshot, error) {
	_ = ctx
	return s.repo.ListUnsynced(limit)
}

func applyState(cs *models.CustomerSnapshot, state SubscriptionState, now time.Time) {
	if state.SubscriptionID != "" {
		cs.SubscriptionID = &state.SubscriptionID
	}
	if state.Status != "" {
		status := strings.ToLower(strings.TrimSpace(state.Status))
		cs.SubscriptionStatus = &status
	}
	if state.Tier != "" {
		cs.SubscriptionTier = &state.Tier
	}
	if state.PeriodStart != nil {
		cs.CurrentPeriodStart = state.PeriodStart
	}
	if state.PeriodEnd != nil {
		cs.CurrentPeriodEnd = state.PeriodEnd
	}
	if state.PriceID != "" {
		cs.PriceID = &state.PriceID
	}
	if state.ProductID != "" {
		cs.ProductID = &state.ProductID
	}
	if state.Amount != nil {
		cs.Amount = state.Amount
	}
	if state.Currency != "" {
		currency := strings.ToLower(state.Currency)
		cs.Currency = &currency
	}
	cs.SubscriptionUpdatedAt = &now
}
