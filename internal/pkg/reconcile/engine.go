package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/paywise/tiersync/app/models"
	"github.com/paywise/tiersync/internal/pkg/accountdir"
	"github.com/paywise/tiersync/internal/pkg/auditlog"
	"github.com/paywise/tiersync/internal/pkg/customerdir"
	"github.com/paywise/tiersync/internal/pkg/entitlements"
	"github.com/paywise/tiersync/internal/pkg/pendingstore"
	"github.com/paywise/tiersync/internal/pkg/session"
)

// Outcome reports what a reconciliation attempt did, so callers can log
// duplicates and staged events without treating them as failures.
type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeStaged       Outcome = "staged"
	OutcomeRecorded     Outcome = "recorded"
	OutcomeSkippedAdmin Outcome = "skipped_admin"
	OutcomeLinked       Outcome = "linked"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeRejected     Outcome = "rejected"
	OutcomeFailed       Outcome = "failed"
)

// ApplyPendingResult is the outbound signal of the apply-pending hook. When
// RequiresReauth is set, the account's tier changed underneath an existing
// identity and the caller must force a token refresh or logout.
type ApplyPendingResult struct {
	Applied         bool              `json:"applied"`
	PendingUpdateID uint              `json:"pending_update_id,omitempty"`
	PreviousTier    entitlements.Tier `json:"previous_tier"`
	NewTier         entitlements.Tier `json:"new_tier"`
	RequiresReauth  bool              `json:"requires_reauth"`
}

// Engine orchestrates reconciliation: validate and deduplicate an incoming
// event, resolve the target tier, locate the account, apply now or stage for
// later, and write the audit record.
type Engine struct {
	accounts  accountdir.Directory
	audit     *auditlog.Service
	pending   *pendingstore.Service
	customers *customerdir.Service
	revoker   session.Revoker
	validate  *validator.Validate
}

// New creates a reconciliation engine. revoker may be nil when no session
// layer is attached (tests, offline resync tooling).
func New(
	accounts accountdir.Directory,
	audit *auditlog.Service,
	pending *pendingstore.Service,
	customers *customerdir.Service,
	revoker session.Revoker,
) *Engine {
	return &Engine{
		accounts:  accounts,
		audit:     audit,
		pending:   pending,
		customers: customers,
		revoker:   revoker,
		validate:  validator.New(),
	}
}

// ProcessEvent runs the decision procedure for one inbound processor event.
// A storage failure inside the locked transaction fails the whole event; the
// webhook layer answers with a retryable status and redelivery is safe
// because of the event-id dedup.
func (e *Engine) ProcessEvent(ctx context.Context, evt *ProcessorEvent) (Outcome, error) {
	if evt == nil {
		return OutcomeRejected, &MalformedEventError{Err: errors.New("event is nil")}
	}
	if err := evt.Validate(e.validate); err != nil {
		log.Warnf("[Reconcile] rejecting malformed event %q (type %s): %v", evt.EventID, evt.EventType, err)
		return OutcomeRejected, &MalformedEventError{EventID: evt.EventID, Err: err}
	}

	if evt.EventID != "" {
		seen, err := e.audit.HasEvent(ctx, evt.EventID)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("dedup check for event %s: %w", evt.EventID, err)
		}
		if seen {
			log.Infof("[Reconcile] event %s already applied, skipping", evt.EventID)
			return OutcomeDuplicate, nil
		}
	}

	switch ClassifyEvent(evt.EventType) {
	case ClassSubscriptionChange:
		return e.reconcileTierChange(ctx, evt)
	case ClassCancellation:
		return e.reconcileCancellation(ctx, evt)
	case ClassInvoicePaid:
		return e.recordInvoiceOutcome(ctx, evt, true)
	case ClassInvoiceFailed:
		return e.recordInvoiceOutcome(ctx, evt, false)
	case ClassCustomerCreated:
		return e.linkCustomer(ctx, evt)
	default:
		log.Debugf("[Reconcile] ignoring unsupported event type %q", evt.EventType)
		return OutcomeIgnored, nil
	}
}

// reconcileTierChange applies a subscription create/update to the matching
// account, or stages it when no account exists yet.
func (e *Engine) reconcileTierChange(ctx context.Context, evt *ProcessorEvent) (Outcome, error) {
	sub := evt.Subscription
	tier := entitlements.ResolveTier(sub.Status, evt.PrimaryInterval())

	acct, err := e.accounts.FindByProcessorCustomerID(ctx, evt.CustomerID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("account lookup for customer %s: %w", evt.CustomerID, err)
	}
	if Decide(ClassSubscriptionChange, acct != nil, entitlements.TierFree) == ActionStage {
		return e.stageForLater(ctx, evt, tier)
	}

	outcome := OutcomeApplied
	err = e.accounts.WithAccountLock(ctx, acct.ID, func(tx accountdir.Tx) error {
		current := tx.Account()
		prev := entitlements.Normalize(current.Tier)
		rec := e.newAuditRecord(current.ID, evt, models.ChangeReasonProcessorEvent)
		rec.PreviousTier = string(prev)

		if Decide(ClassSubscriptionChange, true, prev) == ActionSkipAdmin {
			rec.NewTier = string(prev)
			rec.MetadataJSON = marshalMetadata(map[string]interface{}{
				"attempted_tier":  string(tier),
				"admin_protected": true,
			})
			outcome = OutcomeSkippedAdmin
			return appendOrDuplicate(tx, rec)
		}

		status := strings.ToLower(strings.TrimSpace(sub.Status))
		if err := tx.UpdateAccount(accountdir.Update{
			Tier:                    strPtr(string(tier)),
			ProcessorSubscriptionID: strPtr(sub.ID),
			SubscriptionStatus:      strPtr(status),
			SubscriptionEndDate:     sub.CurrentPeriodEnd,
		}); err != nil {
			return err
		}
		rec.NewTier = string(tier)
		return appendOrDuplicate(tx, rec)
	})
	if errors.Is(err, errDuplicateInTx) {
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return OutcomeFailed, fmt.Errorf("apply tier change for customer %s: %w", evt.CustomerID, err)
	}
	return outcome, nil
}

// reconcileCancellation forces the base tier. Cancellation always wins over
// any concurrently staged upgrade because it is applied directly under the
// account lock while staged updates wait for the apply-pending hook.
func (e *Engine) reconcileCancellation(ctx context.Context, evt *ProcessorEvent) (Outcome, error) {
	acct, err := e.accounts.FindByProcessorCustomerID(ctx, evt.CustomerID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("account lookup for customer %s: %w", evt.CustomerID, err)
	}
	if Decide(ClassCancellation, acct != nil, entitlements.TierFree) == ActionIgnore {
		log.Infof("[Reconcile] cancellation for unknown customer %s, nothing to do", evt.CustomerID)
		return OutcomeIgnored, nil
	}

	outcome := OutcomeApplied
	err = e.accounts.WithAccountLock(ctx, acct.ID, func(tx accountdir.Tx) error {
		current := tx.Account()
		prev := entitlements.Normalize(current.Tier)
		rec := e.newAuditRecord(current.ID, evt, models.ChangeReasonCancellation)
		rec.PreviousTier = string(prev)

		if Decide(ClassCancellation, true, prev) == ActionSkipAdmin {
			rec.NewTier = string(prev)
			rec.MetadataJSON = marshalMetadata(map[string]interface{}{
				"attempted_tier":  string(entitlements.TierFree),
				"admin_protected": true,
			})
			outcome = OutcomeSkippedAdmin
			return appendOrDuplicate(tx, rec)
		}

		endDate := time.Now()
		if evt.Subscription != nil && evt.Subscription.CurrentPeriodEnd != nil {
			endDate = *evt.Subscription.CurrentPeriodEnd
		}
		if err := tx.UpdateAccount(accountdir.Update{
			Tier:                strPtr(string(entitlements.TierFree)),
			SubscriptionStatus:  strPtr(models.SubscriptionStatusCanceled),
			SubscriptionEndDate: &endDate,
		}); err != nil {
			return err
		}
		rec.NewTier = string(entitlements.TierFree)
		canceled := models.SubscriptionStatusCanceled
		rec.SubscriptionStatus = &canceled
		return appendOrDuplicate(tx, rec)
	})
	if errors.Is(err, errDuplicateInTx) {
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return OutcomeFailed, fmt.Errorf("apply cancellation for customer %s: %w", evt.CustomerID, err)
	}
	return outcome, nil
}

// recordInvoiceOutcome writes a non-tier-changing audit entry for invoice
// events. Payment failure deliberately leaves the tier alone; grace-period
// policy is a business decision made outside this engine.
func (e *Engine) recordInvoiceOutcome(ctx context.Context, evt *ProcessorEvent, succeeded bool) (Outcome, error) {
	acct, err := e.accounts.FindByProcessorCustomerID(ctx, evt.CustomerID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("account lookup for customer %s: %w", evt.CustomerID, err)
	}
	class := ClassInvoiceFailed
	if succeeded {
		class = ClassInvoicePaid
	}
	if Decide(class, acct != nil, entitlements.TierFree) == ActionIgnore {
		log.Infof("[Reconcile] invoice event for unknown customer %s, nothing to record", evt.CustomerID)
		return OutcomeIgnored, nil
	}

	reason := models.ChangeReasonPaymentFailed
	if succeeded {
		reason = models.ChangeReasonRenewal
	}

	err = e.accounts.WithAccountLock(ctx, acct.ID, func(tx accountdir.Tx) error {
		current := tx.Account()
		tier := entitlements.Normalize(current.Tier)
		rec := e.newAuditRecord(current.ID, evt, reason)
		rec.PreviousTier = string(tier)
		rec.NewTier = string(tier)
		if evt.Invoice != nil {
			rec.Amount = int64Ptr(evt.Invoice.AmountDue)
			rec.Currency = strPtr(strings.ToLower(evt.Invoice.Currency))
			if evt.Invoice.SubscriptionID != "" {
				rec.ProcessorSubscriptionID = strPtr(evt.Invoice.SubscriptionID)
			}
		}
		if succeeded {
			now := time.Now()
			if err := tx.UpdateAccount(accountdir.Update{LastPaymentAt: &now}); err != nil {
				return err
			}
		}
		return appendOrDuplicate(tx, rec)
	})
	if errors.Is(err, errDuplicateInTx) {
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return OutcomeFailed, fmt.Errorf("record invoice outcome for customer %s: %w", evt.CustomerID, err)
	}
	return OutcomeRecorded, nil
}

// linkCustomer opportunistically attaches the processor customer id to an
// account that matches by email and has no processor linkage yet.
func (e *Engine) linkCustomer(ctx context.Context, evt *ProcessorEvent) (Outcome, error) {
	if _, err := e.customers.UpsertCustomer(ctx, evt.CustomerID, evt.CustomerEmail, "", nil); err != nil {
		log.Errorf("[Reconcile] customer directory upsert failed for %s: %v", evt.CustomerID, err)
	}

	email := strings.TrimSpace(evt.CustomerEmail)
	if email == "" {
		return OutcomeIgnored, nil
	}
	acct, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("account lookup by email: %w", err)
	}
	found := acct != nil && acct.ProcessorCustomerID == nil
	if Decide(ClassCustomerCreated, found, entitlements.TierFree) == ActionIgnore {
		return OutcomeIgnored, nil
	}

	err = e.accounts.WithAccountLock(ctx, acct.ID, func(tx accountdir.Tx) error {
		// Re-check under the lock; another path may have linked meanwhile.
		if tx.Account().ProcessorCustomerID != nil {
			return nil
		}
		return tx.UpdateAccount(accountdir.Update{ProcessorCustomerID: strPtr(evt.CustomerID)})
	})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("link customer %s: %w", evt.CustomerID, err)
	}
	return OutcomeLinked, nil
}

// stageForLater persists a pending update for a customer with no matching
// account and refreshes the directory snapshot so the unmatched state stays
// visible to diagnostics. The pending update is written first: losing the
// directory cache update is tolerable, losing the pending update is not.
func (e *Engine) stageForLater(ctx context.Context, evt *ProcessorEvent, tier entitlements.Tier) (Outcome, error) {
	sub := evt.Subscription
	status := strings.ToLower(strings.TrimSpace(sub.Status))

	pu := &models.PendingTierUpdate{
		TargetEmail:         targetEmailForEvent(evt),
		ProcessorCustomerID: strPtr(evt.CustomerID),
		PendingTier:         string(tier),
		SubscriptionStatus:  strPtr(status),
		SubscriptionEndDate: sub.CurrentPeriodEnd,
		SourceEventType:     evt.EventType,
	}
	if sub.ID != "" {
		pu.ProcessorSubscriptionID = strPtr(sub.ID)
	}
	if evt.EventID != "" {
		pu.ProcessorEventID = strPtr(evt.EventID)
	}
	if price := evt.PrimaryPrice(); price != nil {
		if price.ID != "" {
			pu.PriceID = strPtr(price.ID)
		}
		if price.ProductID != "" {
			pu.ProductID = strPtr(price.ProductID)
		}
		if price.UnitAmount != 0 {
			pu.Amount = int64Ptr(price.UnitAmount)
		}
		if price.Currency != "" {
			pu.Currency = strPtr(strings.ToLower(price.Currency))
		}
	}

	created, err := e.pending.Stage(ctx, pu)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("stage pending update for customer %s: %w", evt.CustomerID, err)
	}

	state := customerdir.SubscriptionState{
		SubscriptionID: sub.ID,
		Status:         status,
		Tier:           string(tier),
		PeriodStart:    sub.CurrentPeriodStart,
		PeriodEnd:      sub.CurrentPeriodEnd,
	}
	if price := evt.PrimaryPrice(); price != nil {
		state.PriceID = price.ID
		state.ProductID = price.ProductID
		state.Currency = price.Currency
		if price.UnitAmount != 0 {
			state.Amount = int64Ptr(price.UnitAmount)
		}
	}
	if dirErr := e.customers.RecordSubscriptionState(ctx, evt.CustomerID, evt.CustomerEmail, state); dirErr != nil {
		log.Errorf("[Reconcile] customer directory update failed for %s: %v", evt.CustomerID, dirErr)
	}

	if !created {
		log.Infof("[Reconcile] event %s already staged, skipping", evt.EventID)
		return OutcomeDuplicate, nil
	}
	log.Infof("[Reconcile] staged pending %s update for customer %s", tier, evt.CustomerID)
	return OutcomeStaged, nil
}

// ApplyPending is the hook invoked when an account is created or
// authenticates. It searches staged updates by processor customer id first
// (the stronger identity), then by email, applies the newest match under the
// account lock and consumes it.
func (e *Engine) ApplyPending(ctx context.Context, email, customerID string) (*ApplyPendingResult, error) {
	var acct *models.Account
	var err error
	if strings.TrimSpace(customerID) != "" {
		acct, err = e.accounts.FindByProcessorCustomerID(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("account lookup for customer %s: %w", customerID, err)
		}
	}
	if acct == nil && strings.TrimSpace(email) != "" {
		acct, err = e.accounts.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("account lookup by email: %w", err)
		}
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}

	cid := strings.TrimSpace(customerID)
	if cid == "" && acct.ProcessorCustomerID != nil {
		cid = *acct.ProcessorCustomerID
	}

	var candidates []models.PendingTierUpdate
	if cid != "" {
		candidates, err = e.pending.FindPendingForCustomer(ctx, cid)
		if err != nil {
			return nil, fmt.Errorf("pending lookup for customer %s: %w", cid, err)
		}
	}
	if len(candidates) == 0 {
		candidates, err = e.pending.FindPendingForEmail(ctx, acct.Email)
		if err != nil {
			return nil, fmt.Errorf("pending lookup for email: %w", err)
		}
	}
	if len(candidates) == 0 {
		return &ApplyPendingResult{
			Applied:      false,
			PreviousTier: entitlements.Normalize(acct.Tier),
			NewTier:      entitlements.Normalize(acct.Tier),
		}, nil
	}

	// Candidates are newest-first; only the newest unapplied one is used.
	pu := candidates[0]
	newTier := entitlements.Normalize(pu.PendingTier)
	result := &ApplyPendingResult{PendingUpdateID: pu.ID, NewTier: newTier}

	err = e.accounts.WithAccountLock(ctx, acct.ID, func(tx accountdir.Tx) error {
		current := tx.Account()
		prev := entitlements.Normalize(current.Tier)
		result.PreviousTier = prev

		rec := &models.TierAuditRecord{
			AccountID:        current.ID,
			ProcessorEventID: pu.ProcessorEventID,
			PreviousTier:     string(prev),
			ChangeReason:     models.ChangeReasonProcessorEvent,
			Amount:           pu.Amount,
			Currency:         pu.Currency,
			MetadataJSON: marshalMetadata(map[string]interface{}{
				"pending_update_id": pu.ID,
				"source_event_type": pu.SourceEventType,
			}),
		}
		if pu.ProcessorCustomerID != nil {
			rec.ProcessorCustomerID = *pu.ProcessorCustomerID
		}
		rec.ProcessorSubscriptionID = pu.ProcessorSubscriptionID
		rec.SubscriptionStatus = pu.SubscriptionStatus

		if !entitlements.IsManaged(prev) {
			rec.NewTier = string(prev)
			rec.MetadataJSON = marshalMetadata(map[string]interface{}{
				"pending_update_id": pu.ID,
				"attempted_tier":    string(newTier),
				"admin_protected":   true,
			})
			result.NewTier = prev
			return appendOrDuplicate(tx, rec)
		}

		upd := accountdir.Update{
			Tier:                    strPtr(string(newTier)),
			ProcessorSubscriptionID: pu.ProcessorSubscriptionID,
			SubscriptionStatus:      pu.SubscriptionStatus,
			SubscriptionEndDate:     pu.SubscriptionEndDate,
		}
		// First successful match also establishes the processor linkage.
		if current.ProcessorCustomerID == nil && pu.ProcessorCustomerID != nil {
			upd.ProcessorCustomerID = pu.ProcessorCustomerID
		}
		if err := tx.UpdateAccount(upd); err != nil {
			return err
		}
		rec.NewTier = string(newTier)
		result.Applied = true
		return appendOrDuplicate(tx, rec)
	})
	if errors.Is(err, errDuplicateInTx) {
		// A racing path already applied this update; consuming it is safe.
		if mpErr := e.pending.MarkProcessed(ctx, pu.ID); mpErr != nil {
			log.Errorf("[Reconcile] mark processed failed for pending update %d: %v", pu.ID, mpErr)
		}
		return &ApplyPendingResult{
			Applied:      false,
			PreviousTier: entitlements.Normalize(acct.Tier),
			NewTier:      entitlements.Normalize(acct.Tier),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("apply pending update %d: %w", pu.ID, err)
	}

	if mpErr := e.pending.MarkProcessed(ctx, pu.ID); mpErr != nil {
		// The audit event id blocks re-application even if this write is lost.
		log.Errorf("[Reconcile] mark processed failed for pending update %d: %v", pu.ID, mpErr)
	}
	if cid == "" && pu.ProcessorCustomerID != nil {
		cid = *pu.ProcessorCustomerID
	}
	if cid != "" {
		if dirErr := e.customers.ApplyPendingUpdate(ctx, cid, &pu); dirErr != nil {
			log.Warnf("[Reconcile] customer directory sync failed for %s: %v", cid, dirErr)
		}
	}

	result.RequiresReauth = result.Applied && result.PreviousTier != result.NewTier
	if result.RequiresReauth && e.revoker != nil {
		if revErr := e.revoker.Revoke(ctx, acct.ID); revErr != nil {
			log.Errorf("[Reconcile] session revocation failed for account %d: %v", acct.ID, revErr)
		}
	}
	return result, nil
}

// ResyncUnsynced re-attempts apply-pending for every customer snapshot whose
// subscription state has not been folded into an account yet. Admin bulk
// operation; individual failures are logged on the snapshot and skipped.
func (e *Engine) ResyncUnsynced(ctx context.Context, limit int) (int, error) {
	snapshots, err := e.customers.ListUnsynced(ctx, limit)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, cs := range snapshots {
		res, err := e.ApplyPending(ctx, cs.Email, cs.ProcessorCustomerID)
		if errors.Is(err, ErrAccountNotFound) {
			continue
		}
		if err != nil {
			log.Errorf("[Reconcile] resync failed for customer %s: %v", cs.ProcessorCustomerID, err)
			if logErr := e.customers.LogSyncError(ctx, cs.ProcessorCustomerID, err.Error()); logErr != nil {
				log.Errorf("[Reconcile] recording sync error failed for %s: %v", cs.ProcessorCustomerID, logErr)
			}
			continue
		}
		if res.Applied {
			applied++
		}
	}
	return applied, nil
}

// OverrideTier is the manual-admin path. It may assign or clear the admin
// tier; every override is audited with reason manual_admin.
func (e *Engine) OverrideTier(ctx context.Context, accountID uint, newTier entitlements.Tier, note string) error {
	if accountID == 0 {
		return errors.New("account id is required")
	}
	tier := entitlements.Normalize(string(newTier))

	return e.accounts.WithAccountLock(ctx, accountID, func(tx accountdir.Tx) error {
		current := tx.Account()
		prev := entitlements.Normalize(current.Tier)
		if err := tx.UpdateAccount(accountdir.Update{Tier: strPtr(string(tier))}); err != nil {
			return err
		}
		rec := &models.TierAuditRecord{
			AccountID:    current.ID,
			PreviousTier: string(prev),
			NewTier:      string(tier),
			ChangeReason: models.ChangeReasonManualAdmin,
			MetadataJSON: marshalMetadata(map[string]interface{}{"note": note}),
		}
		if current.ProcessorCustomerID != nil {
			rec.ProcessorCustomerID = *current.ProcessorCustomerID
		}
		_, err := tx.AppendAudit(rec)
		return err
	})
}

// newAuditRecord fills the event-derived fields shared by every handler.
func (e *Engine) newAuditRecord(accountID uint, evt *ProcessorEvent, reason string) *models.TierAuditRecord {
	rec := &models.TierAuditRecord{
		AccountID:           accountID,
		ProcessorCustomerID: evt.CustomerID,
		ChangeReason:        reason,
	}
	if evt.EventID != "" {
		rec.ProcessorEventID = strPtr(evt.EventID)
	}
	if sub := evt.Subscription; sub != nil {
		if sub.ID != "" {
			rec.ProcessorSubscriptionID = strPtr(sub.ID)
		}
		status := strings.ToLower(strings.TrimSpace(sub.Status))
		if status != "" {
			rec.SubscriptionStatus = &status
		}
		rec.PeriodStart = sub.CurrentPeriodStart
		rec.PeriodEnd = sub.CurrentPeriodEnd
	}
	if price := evt.PrimaryPrice(); price != nil {
		if price.UnitAmount != 0 {
			rec.Amount = int64Ptr(price.UnitAmount)
		}
		if price.Currency != "" {
			rec.Currency = strPtr(strings.ToLower(price.Currency))
		}
	}
	return rec
}

// targetEmailForEvent picks the staging identity: the customer's real email
// when the event carries one, otherwise the synthetic placeholder key.
func targetEmailForEvent(evt *ProcessorEvent) string {
	if email := strings.TrimSpace(evt.CustomerEmail); email != "" {
		return pendingstore.NormalizeEmailKey(email)
	}
	return pendingstore.SyntheticKey(evt.CustomerID)
}

func appendOrDuplicate(tx accountdir.Tx, rec *models.TierAuditRecord) error {
	res, err := tx.AppendAudit(rec)
	if err != nil {
		return err
	}
	if res == auditlog.AppendDuplicate {
		return errDuplicateInTx
	}
	return nil
}

func marshalMetadata(meta map[string]interface{}) string {
	buf, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(buf)
}

func strPtr(s string) *string {
	return &s
}

func int64Ptr(v int64) *int64 {
	return &v
}
