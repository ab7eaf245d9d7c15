package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/subhamasthu/sankalp-bot/internal/pkg/jobqueue"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/ledger"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/security"
)

// AdminAuth guards the operator endpoints with the bearer token configured
// via ADMIN_API_TOKEN_HASH.
func AdminAuth(c *fiber.Ctx) error {
	token := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if err := security.VerifyAdminToken(token); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid admin token"})
	}
	return c.Next()
}

type settleRequest struct {
	PeriodStart string `json:"period_start"` // YYYY-MM-DD
	PeriodEnd   string `json:"period_end"`   // YYYY-MM-DD
}

// HandleSettleBatch aggregates unbatched ledger entries for the given
// period (defaults to the previous seven full days) into a new batch.
func HandleSettleBatch(c *fiber.Ctx) error {
	var req settleRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
		}
	}

	periodStart, periodEnd, err := resolveSettlementPeriod(req, time.Now())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	batch, err := ledgerSvc.SettlePeriod(periodStart, periodEnd)
	if err != nil {
		if errors.Is(err, ledger.ErrEmptyPeriod) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "empty_period", "message": "No unbatched ledger entries in period"})
		}
		log.Errorf("[Admin] Settlement failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Settlement failed"})
	}

	return c.JSON(fiber.Map{
		"batch_id":                batch.BatchID,
		"period_start":            batch.PeriodStart.Format("2006-01-02"),
		"period_end":              batch.PeriodEnd.Format("2006-01-02"),
		"total_seva_amount_cents": batch.TotalSevaAmountCents,
		"transfer_status":         batch.TransferStatus,
	})
}

// resolveSettlementPeriod fills in the default settlement window (the seven
// full days before today) for fields the request leaves empty.
func resolveSettlementPeriod(req settleRequest, now time.Time) (time.Time, time.Time, error) {
	today := now.Truncate(24 * time.Hour)
	periodStart := today.AddDate(0, 0, -7)
	periodEnd := today.AddDate(0, 0, -1)

	var err error
	if req.PeriodStart != "" {
		if periodStart, err = time.Parse("2006-01-02", req.PeriodStart); err != nil {
			return time.Time{}, time.Time{}, errors.New("period_start must be YYYY-MM-DD")
		}
	}
	if req.PeriodEnd != "" {
		if periodEnd, err = time.Parse("2006-01-02", req.PeriodEnd); err != nil {
			return time.Time{}, time.Time{}, errors.New("period_end must be YYYY-MM-DD")
		}
	}
	if periodEnd.Before(periodStart) {
		return time.Time{}, time.Time{}, errors.New("period_end before period_start")
	}
	return periodStart, periodEnd, nil
}

type transferRequest struct {
	Reference string `json:"reference"`
}

// HandleMarkBatchTransferred records the external funds-transfer reference
// for a pending batch.
func HandleMarkBatchTransferred(c *fiber.Ctx) error {
	batchID := c.Params("batch_id")

	var req transferRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Reference) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "reference is required"})
	}

	if err := ledgerSvc.MarkTransferred(batchID, req.Reference); err != nil {
		if errors.Is(err, ledger.ErrBatchNotPending) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "not_pending", "message": "Batch is not pending transfer"})
		}
		log.Errorf("[Admin] Mark transferred failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Update failed"})
	}

	return c.JSON(fiber.Map{"batch_id": batchID, "transfer_status": "TRANSFERRED"})
}

// HandleListBatches returns recent settlement batches, newest first.
func HandleListBatches(c *fiber.Ctx) error {
	batches, err := ledgerSvc.ListBatches(c.QueryInt("limit", 50))
	if err != nil {
		log.Errorf("[Admin] List batches failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load batches"})
	}

	out := make([]fiber.Map, 0, len(batches))
	for _, b := range batches {
		out = append(out, fiber.Map{
			"batch_id":                b.BatchID,
			"period_start":            b.PeriodStart.Format("2006-01-02"),
			"period_end":              b.PeriodEnd.Format("2006-01-02"),
			"total_seva_amount_cents": b.TotalSevaAmountCents,
			"transfer_status":         b.TransferStatus,
			"transfer_reference":      b.TransferReference,
		})
	}
	return c.JSON(fiber.Map{"batches": out})
}

// HandleRunEligibilityScan triggers one eligibility scan outside the ticker
// cadence.
func HandleRunEligibilityScan(c *fiber.Ctx) error {
	if err := jobqueue.GetManager().RunEligibilityScanOnce(); err != nil {
		log.Errorf("[Admin] Eligibility scan failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Scan failed"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleQueueStats reports background queue depth and outcome counters.
func HandleQueueStats(c *fiber.Ctx) error {
	queue := jobqueue.GetManager().GetQueue()

	stats, err := queue.GetJobStats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load stats"})
	}
	pending, _ := queue.GetQueueSize(c.Context())
	processing, _ := queue.GetProcessingSize(c.Context())

	return c.JSON(fiber.Map{
		"pending":    pending,
		"processing": processing,
		"stats":      stats,
	})
}
