package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/paywise/tiersync/app/models"
	"github.com/paywise/tiersync/internal/pkg/accountdir"
	"github.com/paywise/tiersync/internal/pkg/auditlog"
	"github.com/paywise/tiersync/internal/pkg/customerdir"
	"github.com/paywise/tiersync/internal/pkg/entitlements"
	"github.com/paywise/tiersync/internal/pkg/pendingstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memState backs all fakes with one shared in-memory store so the engine's
// cross-service flows (stage then apply, audit dedup inside the lock) behave
// like they do against a real database.
type memState struct {
	accounts      map[uint]*models.Account
	audits        []*models.TierAuditRecord
	auditEventIDs map[string]bool
	pendings      []*models.PendingTierUpdate
	pendingEvents map[string]bool
	snapshots     map[string]*models.CustomerSnapshot
	nextID        uint
	revoked       []uint
}

func newMemState() *memState {
	return &memState{
		accounts:      make(map[uint]*models.Account),
		auditEventIDs: make(map[string]bool),
		pendingEvents: make(map[string]bool),
		snapshots:     make(map[string]*models.CustomerSnapshot),
	}
}

func (s *memState) id() uint {
	s.nextID++
	return s.nextID
}

func (s *memState) addAccount(acct models.Account) *models.Account {
	if acct.ID == 0 {
		acct.ID = s.id()
	}
	if acct.Tier == "" {
		acct.Tier = string(entitlements.TierFree)
	}
	stored := acct
	s.accounts[stored.ID] = &stored
	return &stored
}

func (s *memState) storeAudit(rec *models.TierAuditRecord) {
	rec.ID = s.id()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.audits = append(s.audits, rec)
	if rec.ProcessorEventID != nil && *rec.ProcessorEventID != "" {
		s.auditEventIDs[*rec.ProcessorEventID] = true
	}
}

// memDirectory implements accountdir.Directory with commit-or-discard
// transaction semantics: buffered writes take effect only when the callback
// returns nil.
type memDirectory struct {
	s *memState
}

func (d *memDirectory) FindByProcessorCustomerID(_ context.Context, customerID string) (*models.Account, error) {
	for _, acct := range d.s.accounts {
		if acct.ProcessorCustomerID != nil && *acct.ProcessorCustomerID == customerID {
			cp := *acct
			return &cp, nil
		}
	}
	return nil, nil
}

func (d *memDirectory) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	for _, acct := range d.s.accounts {
		if strings.ToLower(acct.Email) == e {
			cp := *acct
			return &cp, nil
		}
	}
	return nil, nil
}

func (d *memDirectory) WithAccountLock(_ context.Context, accountID uint, fn func(tx accountdir.Tx) error) error {
	stored, ok := d.s.accounts[accountID]
	if !ok {
		return errors.New("account row not found")
	}
	cp := *stored
	tx := &memTx{s: d.s, acct: &cp}
	if err := fn(tx); err != nil {
		return err
	}
	*stored = cp
	for _, rec := range tx.audits {
		d.s.storeAudit(rec)
	}
	return nil
}

type memTx struct {
	s      *memState
	acct   *models.Account
	audits []*models.TierAuditRecord
}

func (t *memTx) Account() *models.Account { return t.acct }

func (t *memTx) UpdateAccount(u accountdir.Update) error {
	if u.Tier != nil {
		t.acct.Tier = *u.Tier
	}
	if u.ProcessorCustomerID != nil {
		t.acct.ProcessorCustomerID = u.ProcessorCustomerID
	}
	if u.ProcessorSubscriptionID != nil {
		t.acct.ProcessorSubscriptionID = u.ProcessorSubscriptionID
	}
	if u.SubscriptionStatus != nil {
		t.acct.SubscriptionStatus = u.SubscriptionStatus
	}
	if u.SubscriptionEndDate != nil {
		t.acct.SubscriptionEndDate = u.SubscriptionEndDate
	}
	if u.LastPaymentAt != nil {
		t.acct.LastPaymentAt = u.LastPaymentAt
	}
	return nil
}

func (t *memTx) AppendAudit(rec *models.TierAuditRecord) (auditlog.AppendResult, error) {
	if rec.ProcessorEventID != nil && *rec.ProcessorEventID != "" && t.s.auditEventIDs[*rec.ProcessorEventID] {
		return auditlog.AppendDuplicate, nil
	}
	t.audits = append(t.audits, rec)
	return auditlog.AppendStored, nil
}

type memAuditRepo struct {
	s *memState
}

func (r *memAuditRepo) Insert(rec *models.TierAuditRecord) (auditlog.AppendResult, error) {
	if rec.ProcessorEventID != nil && *rec.ProcessorEventID != "" && r.s.auditEventIDs[*rec.ProcessorEventID] {
		return auditlog.AppendDuplicate, nil
	}
	r.s.storeAudit(rec)
	return auditlog.AppendStored, nil
}

func (r *memAuditRepo) HasEvent(eventID string) (bool, error) {
	return r.s.auditEventIDs[eventID], nil
}

func (r *memAuditRepo) ListByAccount(accountID uint, limit int) ([]models.TierAuditRecord, error) {
	var recs []models.TierAuditRecord
	for i := len(r.s.audits) - 1; i >= 0; i-- {
		if r.s.audits[i].AccountID == accountID {
			recs = append(recs, *r.s.audits[i])
			if limit > 0 && len(recs) == limit {
				break
			}
		}
	}
	return recs, nil
}

func (r *memAuditRepo) AggregateByReason(start, end time.Time) ([]auditlog.ReasonDailyStat, error) {
	byKey := map[string]*auditlog.ReasonDailyStat{}
	var order []string
	for _, rec := range r.s.audits {
		if rec.CreatedAt.Before(start) || !rec.CreatedAt.Before(end) {
			continue
		}
		day := rec.CreatedAt.Format("2006-01-02")
		key := day + "|" + rec.ChangeReason
		stat, ok := byKey[key]
		if !ok {
			stat = &auditlog.ReasonDailyStat{Day: day, ChangeReason: rec.ChangeReason}
			byKey[key] = stat
			order = append(order, key)
		}
		stat.Count++
		if rec.Amount != nil {
			stat.AmountTotal += *rec.Amount
		}
	}
	stats := make([]auditlog.ReasonDailyStat, 0, len(order))
	for _, key := range order {
		stats = append(stats, *byKey[key])
	}
	return stats, nil
}

type memPendingRepo struct {
	s *memState
}

func (r *memPendingRepo) InsertIfAbsent(pu *models.PendingTierUpdate) (bool, error) {
	if pu.ProcessorEventID != nil && *pu.ProcessorEventID != "" {
		if r.s.pendingEvents[*pu.ProcessorEventID] {
			return false, nil
		}
		r.s.pendingEvents[*pu.ProcessorEventID] = true
	}
	pu.ID = r.s.id()
	if pu.CreatedAt.IsZero() {
		pu.CreatedAt = time.Now()
	}
	cp := *pu
	r.s.pendings = append(r.s.pendings, &cp)
	return true, nil
}

func (r *memPendingRepo) FindByEmailKeys(keys []string, now time.Time) ([]models.PendingTierUpdate, error) {
	keySet := map[string]bool{}
	for _, k := range keys {
		keySet[k] = true
	}
	var out []models.PendingTierUpdate
	for i := len(r.s.pendings) - 1; i >= 0; i-- {
		pu := r.s.pendings[i]
		if keySet[pu.TargetEmail] && !pu.IsProcessed && pu.ExpiresAt.After(now) {
			out = append(out, *pu)
		}
	}
	return out, nil
}

func (r *memPendingRepo) FindByCustomerID(customerID string, now time.Time) ([]models.PendingTierUpdate, error) {
	var out []models.PendingTierUpdate
	for i := len(r.s.pendings) - 1; i >= 0; i-- {
		pu := r.s.pendings[i]
		if pu.ProcessorCustomerID != nil && *pu.ProcessorCustomerID == customerID &&
			!pu.IsProcessed && pu.ExpiresAt.After(now) {
			out = append(out, *pu)
		}
	}
	return out, nil
}

func (r *memPendingRepo) MarkProcessed(id uint, at time.Time) (bool, error) {
	for _, pu := range r.s.pendings {
		if pu.ID == id && !pu.IsProcessed {
			pu.IsProcessed = true
			pu.ProcessedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (r *memPendingRepo) DeleteProcessedExpired(now time.Time) (int64, error) {
	var kept []*models.PendingTierUpdate
	var deleted int64
	for _, pu := range r.s.pendings {
		if pu.IsProcessed && !pu.ExpiresAt.After(now) {
			deleted++
			continue
		}
		kept = append(kept, pu)
	}
	r.s.pendings = kept
	return deleted, nil
}

func (r *memPendingRepo) ListUnprocessed(limit int) ([]models.PendingTierUpdate, error) {
	var out []models.PendingTierUpdate
	for i := len(r.s.pendings) - 1; i >= 0; i-- {
		if !r.s.pendings[i].IsProcessed {
			out = append(out, *r.s.pendings[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type memCustomerRepo struct {
	s *memState
}

func (r *memCustomerRepo) Upsert(cs *models.CustomerSnapshot) error {
	if existing, ok := r.s.snapshots[cs.ProcessorCustomerID]; ok {
		existing.Email = cs.Email
		existing.MetadataJSON = cs.MetadataJSON
		existing.ProcessorCreatedAt = cs.ProcessorCreatedAt
		*cs = *existing
		return nil
	}
	cs.ID = r.s.id()
	cp := *cs
	r.s.snapshots[cs.ProcessorCustomerID] = &cp
	return nil
}

func (r *memCustomerRepo) FindByCustomerID(customerID string) (*models.CustomerSnapshot, error) {
	if cs, ok := r.s.snapshots[customerID]; ok {
		cp := *cs
		return &cp, nil
	}
	return nil, nil
}

func (r *memCustomerRepo) FindByEmail(email string) (*models.CustomerSnapshot, error) {
	for _, cs := range r.s.snapshots {
		if cs.Email == email {
			cp := *cs
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memCustomerRepo) Save(cs *models.CustomerSnapshot) error {
	cp := *cs
	r.s.snapshots[cs.ProcessorCustomerID] = &cp
	return nil
}

func (r *memCustomerRepo) ListUnsynced(limit int) ([]models.CustomerSnapshot, error) {
	var out []models.CustomerSnapshot
	for _, cs := range r.s.snapshots {
		if !cs.SubscriptionSynced {
			out = append(out, *cs)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type memRevoker struct {
	s *memState
}

func (r *memRevoker) Revoke(_ context.Context, accountID uint) error {
	r.s.revoked = append(r.s.revoked, accountID)
	return nil
}

func newTestEngine() (*Engine, *memState) {
	s := newMemState()
	eng := New(
		&memDirectory{s: s},
		auditlog.NewService(&memAuditRepo{s: s}),
		pendingstore.NewService(&memPendingRepo{s: s}),
		customerdir.NewService(&memCustomerRepo{s: s}),
		&memRevoker{s: s},
	)
	return eng, s
}

func subscriptionEvent(eventID, customerID, email, status, interval string) *ProcessorEvent {
	return &ProcessorEvent{
		EventType:     EventSubscriptionUpdated,
		EventID:       eventID,
		CustomerID:    customerID,
		CustomerEmail: email,
		Subscription: &SubscriptionInfo{
			ID:     "sub_1",
			Status: status,
			Items: []SubscriptionItem{
				{Price: PriceInfo{
					ID:         "price_1",
					ProductID:  "prod_1",
					UnitAmount: 999,
					Currency:   "EUR",
					Recurring:  RecurringPrice{Interval: interval},
				}},
			},
		},
	}
}

func TestProcessEventAppliesSubscriptionChange(t *testing.T) {
	eng, s := newTestEngine()
	cid := "cus_100"
	acct := s.addAccount(models.Account{Email: "anna@example.com", ProcessorCustomerID: &cid})

	outcome, err := eng.ProcessEvent(context.Background(), subscriptionEvent("evt_1", cid, "anna@example.com", "active", "month"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	stored := s.accounts[acct.ID]
	assert.Equal(t, string(entitlements.TierPremium), stored.Tier)
	require.NotNil(t, stored.SubscriptionStatus)
	assert.Equal(t, models.SubscriptionStatusActive, *stored.SubscriptionStatus)

	require.Len(t, s.audits, 1)
	rec := s.audits[0]
	assert.Equal(t, models.ChangeReasonProcessorEvent, rec.ChangeReason)
	assert.Equal(t, string(entitlements.TierFree), rec.PreviousTier)
	assert.Equal(t, string(entitlements.TierPremium), rec.NewTier)
	require.NotNil(t, rec.Amount)
	assert.Equal(t, int64(999), *rec.Amount)
}

func TestProcessEventDuplicateDeliveryIsNoOp(t *testing.T) {
	eng, s := newTestEngine()
	cid := "cus_100"
	acct := s.addAccount(models.Account{Email: "anna@example.com", ProcessorCustomerID: &cid})

	evt := subscriptionEvent("evt_1", cid, "anna@example.com", "active", "year")
	outcome, err := eng.ProcessEvent(context.Background(), evt)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	outcome, err = eng.ProcessEvent(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	assert.Len(t, s.audits, 1)
	assert.Equal(t, string(entitlements.TierPremiumMax), s.accounts[acct.ID].Tier)
}

func TestProcessEventLastDeliveryWins(t *testing.T) {
	eng, s := newTestEngine()
	cid := "cus_100"
	acct := s.addAccount(models.Account{Email: "anna@example.com", ProcessorCustomerID: &cid})

	outcome, err := eng.ProcessEvent(context.Background(), subscriptionEvent("evt_1", cid, "anna@example.com", "active", "year"))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	outcome, err = eng.ProcessEvent(context.Background(), subscriptionEvent("evt_2", cid, "anna@example.com", "active", "month"))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	assert.Equal(t, string(entitlements.TierPremium), s.accounts[acct.ID].Tier)
	assert.Len(t, s.audits, 2)
}

func TestProcessEventStagesUnknownCustomer(t *testing.T) {
	eng, s := newTestEngine()

	evt := subscriptionEvent("evt_1", "cus_404", "new@example.com", "active", "month")
	outcome, err := eng.ProcessEvent(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStaged, outcome)

	require.Len(t, s.pendings, 1)
	pu := s.pendings[0]
	assert.Equal(t, "new@example.com", pu.TargetEmail)
	assert.Equal(t, string(entitlements.TierPremium), pu.PendingTier)
	assert.False(t, pu.IsProcessed)
	assert.True(t, pu.ExpiresAt.After(time.Now()))

	cs := s.snapshots["cus_404"]
	require.NotNil(t, cs)
	assert.False(t, cs.SubscriptionSynced)
	require.NotNil(t, cs.SubscriptionTier)
	assert.Equal(t, string(entitlements.TierPremium), *cs.SubscriptionTier)

	// Replaying the same delivery must not stage twice.
	outcome, err = eng.ProcessEvent(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Len(t, s.pendings, 1)
}

func TestProcessEventStagesUnderSyntheticKeyWithoutEmail(t *testing.T) {
	eng, s := newTestEngine()

	evt := subscriptionEvent("evt_1", "cus_404", "", "active", "month")
	outcome, err := eng.ProcessEvent(context.Background(), evt)
	require.NoError(t, err)
	require.Equal(t, OutcomeStaged, outcome)

	require.Len(t, s.pendings, 1)
	assert.Equal(t, pendingstore.SyntheticKey("cus_404"), s.pendings[0].TargetEmail)
}

func TestApplyPendingMatchesByEmail(t *testing.T) {
	eng, s := newTestEngine()

	evt := subscriptionEvent("evt_1", "cus_404", "New@Example.com", "active", "year")
	outcome, err := eng.ProcessEvent(context.Background(), evt)
	require.NoError(t, err)
	require.Equal(t, OutcomeStaged, outcome)

	acct := s.addAccount(models.Account{Email: "new@example.com"})

	res, err := eng.ApplyPending(context.Background(), "new@example.com", "")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, entitlements.TierFree, res.PreviousTier)
	assert.Equal(t, entitlements.TierPremiumMax, res.NewTier)
	assert.True(t, res.RequiresReauth)

	stored := s.accounts[acct.ID]
	assert.Equal(t, string(entitlements.TierPremiumMax), stored.Tier)
	require.NotNil(t, stored.ProcessorCustomerID)
	assert.Equal(t, "cus_404", *stored.ProcessorCustomerID)

	assert.True(t, s.pendings[0].IsProcessed)
	assert.Equal(t, []uint{acct.ID}, s.revoked)

	cs := s.snapshots["cus_404"]
	require.NotNil(t, cs)
	assert.True(t, cs.SubscriptionSynced)

	// A second hook invocation finds nothing left to apply.
	res, err = eng.ApplyPending(context.Background(), "new@example.com", "")
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Len(t, s.audits, 1)

	// And a webhook redelivery of the original event is a duplicate now.
	outcome, err = eng.ProcessEvent(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
}

func TestApplyPendingPrefersCustomerIDMatch(t *testing.T) {
	eng, s := newTestEngine()

	outcome, err := eng.ProcessEvent(context.Background(), subscriptionEvent("evt_1", "cus_404", "", "active", "month"))
	require.NoError(t, err)
	require.Equal(t, OutcomeStaged, outcome)

	acct := s.addAccount(models.Account{Email: "anna@example.com"})

	res, err := eng.ApplyPending(context.Background(), "anna@example.com", "cus_404")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, string(entitlements.TierPremium), s.accounts[acct.ID].Tier)
}

func TestApplyPendingIgnoresExpiredEntries(t *testing.T) {
	eng, s := newTestEngine()
	cid := "cus_404"
	evtID := "evt_old"
	s.pendings = append(s.pendings, &models.PendingTierUpdate{
		ID:                  s.id(),
		TargetEmail:         "new@example.com",
		ProcessorCustomerID: &cid,
		PendingTier:         string(entitlements.TierPremium),
		SourceEventType:     EventSubscriptionCreated,
		ProcessorEventID:    &evtID,
		ExpiresAt:           time.Now().Add(-time.Hour),
		CreatedAt:           time.Now().Add(-31 * 24 * time.Hour),
	})
	acct := s.addAccount(models.Account{Email: "new@example.com"})

	res, err := eng.ApplyPending(context.Background(), "new@example.com", "")
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, string(entitlements.TierFree), s.accounts[acct.ID].Tier)
	assert.Empty(t, s.audits)
}

func TestApplyPendingUsesNewestEntry(t *testing.T) {
	eng, s := newTestEngine()

	outcome, err := eng.ProcessEvent(context.Background(), subscriptionEvent("evt_1", "cus_404", "new@example.com", "active", "month"))
	require.NoError(t, err)
	require.Equal(t, OutcomeStaged, outcome)
	outcome, err = eng.ProcessEvent(context.Background(), subscriptionEvent("evt_2", "cus_404", "new@example.com", "active", "year"))
	require.NoError(t, err)
	require.Equal(t, OutcomeStaged, outcome)

	acct := s.addAccount(models.Account{Email: "new@example.com"})

	res, err := eng.ApplyPending(context.Background(), "new@example.com", "")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, entitlements.TierPremiumMax, res.NewTier)
	assert.Equal(t, string(entitlements.TierPremiumMax), s.accounts[acct.ID].Tier)
}

func TestApplyPendingNoAccount(t *testing.T) {
	eng, _ := newTestEngine()
	_, err := eng.ApplyPending(context.Background(), "nobody@example.com", "")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAdminTierIsNeverOverwritten(t *testing.T) {
	eng, s := newTestEngine()
	cid := "cus_9"
	acct := s.addAccount(models.Account{
		Email:               "root@example.com",
		Tier:                string(entitlements.TierAdmin),
		ProcessorCustomerID: &cid,
	})

	outcome, err := eng.ProcessEvent(context.Background(), subscriptionEvent("evt_1", cid, "root@example.com", "active", "month"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedAdmin, outcome)
	assert.Equal(t, string(entitlements.TierAdmin), s.accounts[acct.ID].Tier)

	require.Len(t, s.audits, 1)
	rec := s.audits[0]
	assert.Equal(t, string(entitlements.TierAdmin), rec.PreviousTier)
	assert.Equal(t, string(entitlements.TierAdmin), rec.NewTier)
	assert.Contains(t, rec.MetadataJSON, "attempted_tier")

	// Cancellation may not downgrade an admin either.
	del := &ProcessorEvent{
		EventType:    EventSubscriptionDeleted,
		EventID:      "evt_2",
		CustomerID:   cid,
		Subscription: &SubscriptionInfo{ID: "sub_1", Status: models.SubscriptionStatusCanceled},
	}
	outcome, err = eng.ProcessEvent(context.Background(), del)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedAdmin, outcome)
	assert.Equal(t, string(entitlements.TierAdmin), s.accounts[acct.ID].Tier)
}

func TestCancellationForcesBaseTier(t *testing.T) {
	eng, s := newTestEngine()
	cid := "cus_100"
	endDate := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	acct := s.addAccount(models.Account{
		Email:               "anna@example.com",
		Tier:                string(entitlements.TierPremiumMax),
		ProcessorCustomerID: &cid,
	})

	evt := &ProcessorEvent{
		EventType:  EventSubscriptionDeleted,
		EventID:    "evt_1",
		CustomerID: cid,
		Subscription: &SubscriptionInfo{
			ID:               "sub_1",
			Status:           models.SubscriptionStatusCanceled,
			CurrentPeriodEnd: &endDate,
		},
	}
	outcome, err := eng.ProcessEvent(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	stored := s.accounts[acct.ID]
	assert.Equal(t, string(entitlements.TierFree), stored.Tier)
	require.NotNil(t, stored.SubscriptionStatus)
	assert.Equal(t, models.SubscriptionStatusCanceled, *stored.SubscriptionStatus)
	require.NotNil(t, stored.SubscriptionEndDate)
	assert.True(t, stored.SubscriptionEndDate.Equal(endDate))

	require.Len(t, s.audits, 1)
	assert.Equal(t, models.ChangeReasonCancellation, s.audits[0].ChangeReason)
}

func TestCancellationForUnknownCustomerIsIgnored(t *testing.T) {
	eng, s := newTestEngine()
	evt := &ProcessorEvent{
		EventType:    EventSubscriptionDeleted,
		EventID:      "evt_1",
		CustomerID:   "cus_404",
		Subscription: &SubscriptionInfo{ID: "sub_1", Status: models.SubscriptionStatusCanceled},
	}
	outcome, err := eng.ProcessEvent(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Empty(t, s.pendings)
	assert.Empty(t, s.audits)
}

func TestInvoiceOutcomesAreRecordedWithoutTierChange(t *testing.T) {
	eng, s := newTestEngine()
	cid := "cus_100"
	acct := s.addAccount(models.Account{
		Email:               "anna@example.com",
		Tier:                string(entitlements.TierPremium),
		ProcessorCustomerID: &cid,
	})

	paid := &ProcessorEvent{
		EventType:  EventInvoicePaymentSucceeded,
		EventID:    "evt_1",
		CustomerID: cid,
		Invoice:    &InvoiceInfo{SubscriptionID: "sub_1", CustomerID: cid, AmountDue: 999, Currency: "EUR"},
	}
	outcome, err := eng.ProcessEvent(context.Background(), paid)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, outcome)
	assert.NotNil(t, s.accounts[acct.ID].LastPaymentAt)

	failed := &ProcessorEvent{
		EventType:  EventInvoicePaymentFailed,
		EventID:    "evt_2",
		CustomerID: cid,
		Invoice:    &InvoiceInfo{SubscriptionID: "sub_1", CustomerID: cid, AmountDue: 999, Currency: "EUR"},
	}
	outcome, err = eng.ProcessEvent(context.Background(), failed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, outcome)

	assert.Equal(t, string(entitlements.TierPremium), s.accounts[acct.ID].Tier)
	require.Len(t, s.audits, 2)
	assert.Equal(t, models.ChangeReasonRenewal, s.audits[0].ChangeReason)
	assert.Equal(t, models.ChangeReasonPaymentFailed, s.audits[1].ChangeReason)
	assert.Equal(t, s.audits[1].PreviousTier, s.audits[1].NewTier)
}

func TestCustomerCreatedLinksAccountByEmail(t *testing.T) {
	eng, s := newTestEngine()
	acct := s.addAccount(models.Account{Email: "anna@example.com"})

	evt := &ProcessorEvent{
		EventType:     EventCustomerCreated,
		EventID:       "evt_1",
		CustomerID:    "cus_100",
		CustomerEmail: "anna@example.com",
	}
	outcome, err := eng.ProcessEvent(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLinked, outcome)

	stored := s.accounts[acct.ID]
	require.NotNil(t, stored.ProcessorCustomerID)
	assert.Equal(t, "cus_100", *stored.ProcessorCustomerID)
	assert.NotNil(t, s.snapshots["cus_100"])

	// An already-linked account is left alone.
	evt2 := &ProcessorEvent{
		EventType:     EventCustomerCreated,
		EventID:       "evt_2",
		CustomerID:    "cus_200",
		CustomerEmail: "anna@example.com",
	}
	outcome, err = eng.ProcessEvent(context.Background(), evt2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Equal(t, "cus_100", *s.accounts[acct.ID].ProcessorCustomerID)
}

func TestMalformedEventsAreRejected(t *testing.T) {
	eng, s := newTestEngine()

	tests := []struct {
		name string
		evt  *ProcessorEvent
	}{
		{"missing customer id", &ProcessorEvent{EventType: EventCustomerCreated, EventID: "evt_1"}},
		{"missing event type", &ProcessorEvent{EventID: "evt_2", CustomerID: "cus_1"}},
		{"subscription change without payload", &ProcessorEvent{EventType: EventSubscriptionUpdated, EventID: "evt_3", CustomerID: "cus_1"}},
		{"invoice event without payload", &ProcessorEvent{EventType: EventInvoicePaymentFailed, EventID: "evt_4", CustomerID: "cus_1"}},
		{"invalid email", &ProcessorEvent{EventType: EventCustomerCreated, EventID: "evt_5", CustomerID: "cus_1", CustomerEmail: "not-an-email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := eng.ProcessEvent(context.Background(), tt.evt)
			assert.Equal(t, OutcomeRejected, outcome)
			assert.True(t, IsMalformed(err))
		})
	}
	assert.Empty(t, s.audits)
	assert.Empty(t, s.pendings)
}

func TestUnknownEventTypesAreIgnored(t *testing.T) {
	eng, s := newTestEngine()
	evt := &ProcessorEvent{EventType: "charge.refunded", EventID: "evt_1", CustomerID: "cus_1"}
	outcome, err := eng.ProcessEvent(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Empty(t, s.audits)
}

func TestOverrideTierWritesManualAuditEntry(t *testing.T) {
	eng, s := newTestEngine()
	acct := s.addAccount(models.Account{Email: "anna@example.com", Tier: string(entitlements.TierPremium)})

	err := eng.OverrideTier(context.Background(), acct.ID, entitlements.TierAdmin, "support escalation")
	require.NoError(t, err)

	assert.Equal(t, string(entitlements.TierAdmin), s.accounts[acct.ID].Tier)
	require.Len(t, s.audits, 1)
	rec := s.audits[0]
	assert.Equal(t, models.ChangeReasonManualAdmin, rec.ChangeReason)
	assert.Equal(t, string(entitlements.TierPremium), rec.PreviousTier)
	assert.Equal(t, string(entitlements.TierAdmin), rec.NewTier)
	assert.Contains(t, rec.MetadataJSON, "support escalation")
}

func TestResyncUnsyncedAppliesStagedUpdates(t *testing.T) {
	eng, s := newTestEngine()

	outcome, err := eng.ProcessEvent(context.Background(), subscriptionEvent("evt_1", "cus_404", "new@example.com", "active", "month"))
	require.NoError(t, err)
	require.Equal(t, OutcomeStaged, outcome)

	acct := s.addAccount(models.Account{Email: "new@example.com"})

	applied, err := eng.ResyncUnsynced(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, string(entitlements.TierPremium), s.accounts[acct.ID].Tier)
	assert.True(t, s.snapshots["cus_404"].SubscriptionSynced)
}
