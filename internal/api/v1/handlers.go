package apiv1

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/paywise/tiersync/internal/pkg/auditlog"
	"github.com/paywise/tiersync/internal/pkg/customerdir"
	"github.com/paywise/tiersync/internal/pkg/entitlements"
	"github.com/paywise/tiersync/internal/pkg/env"
	"github.com/paywise/tiersync/internal/pkg/pendingstore"
	"github.com/paywise/tiersync/internal/pkg/reconcile"
	"github.com/paywise/tiersync/internal/pkg/webhooksig"
)

const defaultListLimit = 50

// APIServer holds the services behind the v1 endpoints.
type APIServer struct {
	engine    *reconcile.Engine
	audit     *auditlog.Service
	pending   *pendingstore.Service
	customers *customerdir.Service
}

// NewAPIServer creates a new API server instance.
func NewAPIServer(
	engine *reconcile.Engine,
	audit *auditlog.Service,
	pending *pendingstore.Service,
	customers *customerdir.Service,
) *APIServer {
	return &APIServer{
		engine:    engine,
		audit:     audit,
		pending:   pending,
		customers: customers,
	}
}

// PostProcessorWebhook receives a signed event from the payment processor.
// Retryable failures answer 500 so the processor redelivers; redelivery is
// safe because events deduplicate on their id.
func (s *APIServer) PostProcessorWebhook(c *fiber.Ctx) error {
	secret := env.GetEnv("WEBHOOK_SECRET", "")
	if secret != "" {
		header := c.Get("X-Processor-Signature")
		if err := webhooksig.Verify(c.Body(), header, secret); err != nil {
			log.Warnf("[API] Rejecting webhook with bad signature: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid_signature",
			})
		}
	} else if !env.IsDev() {
		log.Error("[API] WEBHOOK_SECRET is not configured, refusing webhook")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "webhook_not_configured",
		})
	}

	var evt reconcile.ProcessorEvent
	if err := c.BodyParser(&evt); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad_request", "message": "invalid JSON payload",
		})
	}

	outcome, err := s.engine.ProcessEvent(c.Context(), &evt)
	if err != nil {
		if reconcile.IsMalformed(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "malformed_event", "outcome": outcome,
			})
		}
		log.Errorf("[API] Event %s failed: %v", evt.EventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "processing_failed", "outcome": outcome,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"outcome": outcome})
}

// PostAccountActivated is the hook the account service calls after an account
// is created or logs in. It applies the newest matching staged tier update and
// tells the caller whether existing sessions must re-authenticate.
func (s *APIServer) PostAccountActivated(c *fiber.Ctx) error {
	var req struct {
		Email               string `json:"email"`
		ProcessorCustomerID string `json:"processorCustomerId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad_request", "message": "invalid JSON payload",
		})
	}
	if req.Email == "" && req.ProcessorCustomerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad_request", "message": "email or processorCustomerId is required",
		})
	}

	res, err := s.engine.ApplyPending(c.Context(), req.Email, req.ProcessorCustomerID)
	if errors.Is(err, reconcile.ErrAccountNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account_not_found"})
	}
	if err != nil {
		log.Errorf("[API] Apply pending failed for %s: %v", req.Email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "apply_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

// GetPendingUpdates lists unconsumed staged tier updates, newest-first.
func (s *APIServer) GetPendingUpdates(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	updates, err := s.pending.ListUnprocessed(c.Context(), limit)
	if err != nil {
		log.Errorf("[API] Listing pending updates failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"pending_updates": updates})
}

// GetCustomerSnapshot returns the cached processor-side state for a customer.
func (s *APIServer) GetCustomerSnapshot(c *fiber.Ctx) error {
	customerID := c.Params("customerId")
	cs, err := s.customers.FindByCustomerID(c.Context(), customerID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request"})
	}
	if cs == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "customer_not_found"})
	}
	return c.Status(fiber.StatusOK).JSON(cs)
}

// PostResync re-attempts apply-pending for unsynced customer snapshots.
func (s *APIServer) PostResync(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	applied, err := s.engine.ResyncUnsynced(c.Context(), limit)
	if err != nil {
		log.Errorf("[API] Resync failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "resync_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"applied": applied})
}

// PostSweep physically deletes processed-and-expired pending updates.
func (s *APIServer) PostSweep(c *fiber.Ctx) error {
	deleted, err := s.pending.Sweep(c.Context())
	if err != nil {
		log.Errorf("[API] Sweep failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sweep_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"deleted": deleted})
}

// PostTierOverride manually sets an account's tier, including assigning or
// clearing the admin tier. Every override lands in the audit ledger.
func (s *APIServer) PostTierOverride(c *fiber.Ctx) error {
	accountID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || accountID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad_request", "message": "invalid account id",
		})
	}

	var req struct {
		Tier string `json:"tier"`
		Note string `json:"note"`
	}
	if err := c.BodyParser(&req); err != nil || req.Tier == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad_request", "message": "tier is required",
		})
	}

	tier := entitlements.Normalize(req.Tier)
	if err := s.engine.OverrideTier(c.Context(), uint(accountID), tier, req.Note); err != nil {
		log.Errorf("[API] Tier override failed for account %d: %v", accountID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "override_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"tier": tier})
}

// GetAccountAudit returns an account's tier transition history, newest-first.
func (s *APIServer) GetAccountAudit(c *fiber.Ctx) error {
	accountID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || accountID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad_request", "message": "invalid account id",
		})
	}
	limit := c.QueryInt("limit", defaultListLimit)

	recs, err := s.audit.HistoryFor(c.Context(), uint(accountID), limit)
	if err != nil {
		log.Errorf("[API] Audit history failed for account %d: %v", accountID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "history_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"records": recs})
}

// GetAuditAnalytics aggregates audit records by change reason and day.
// Defaults to the trailing 30 days when no range is given.
func (s *APIServer) GetAuditAnalytics(c *fiber.Ctx) error {
	end := time.Now()
	start := end.AddDate(0, 0, -30)
	if raw := c.Query("start"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "bad_request", "message": "start must be YYYY-MM-DD",
			})
		}
		start = t
	}
	if raw := c.Query("end"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "bad_request", "message": "end must be YYYY-MM-DD",
			})
		}
		end = t.AddDate(0, 0, 1)
	}

	stats, err := s.audit.Analytics(c.Context(), start, end)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"stats": stats})
}

// RegisterHandlers wires the v1 endpoints. The admin group is expected to
// carry auth middleware installed by the router.
func RegisterHandlers(v1 fiber.Router, admin fiber.Router, s *APIServer) {
	v1.Post("/webhooks/processor", s.PostProcessorWebhook)
	v1.Post("/accounts/activated", s.PostAccountActivated)

	admin.Get("/pending-updates", s.GetPendingUpdates)
	admin.Get("/customers/:customerId", s.GetCustomerSnapshot)
	admin.Post("/resync", s.PostResync)
	admin.Post("/sweep", s.PostSweep)
	admin.Post("/accounts/:id/tier", s.PostTierOverride)
	admin.Get("/accounts/:id/audit", s.GetAccountAudit)
	admin.Get("/audit/analytics", s.GetAuditAnalytics)
}
