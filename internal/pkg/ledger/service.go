package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/subhamasthu/sankalp-bot/app/models"
	"gorm.io/gorm"
)

// ErrEmptyPeriod is returned by SettlePeriod when no unbatched ledger
// entries fall inside the requested window.
var ErrEmptyPeriod = errors.New("ledger: no unbatched entries in period")

// ErrBatchNotPending is returned by MarkTransferred when the batch has
// already been settled.
var ErrBatchNotPending = errors.New("ledger: batch is not pending transfer")

// Service owns the seva ledger: fee-split entries per paid sankalp and their
// periodic aggregation into transfer batches.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// EntryFor builds the ledger row for a paid sankalp using the fixed split.
func EntryFor(s *models.Sankalp) *models.SevaLedger {
	fee, seva := Split(s.AmountCents)
	return &models.SevaLedger{
		SankalpID:        s.ID,
		PlatformFeeCents: fee,
		SevaAmountCents:  seva,
	}
}

// BatchIDFor derives the deterministic batch identifier for a period.
func BatchIDFor(periodStart, periodEnd time.Time) string {
	return fmt.Sprintf("SEVA-%s-%s", periodStart.Format("20060102"), periodEnd.Format("20060102"))
}

// SettlePeriod assigns every unbatched ledger entry dated within
// [periodStart, periodEnd] to a single new batch and records the seva sum.
// Entries already assigned to a batch are never picked up again, so
// re-running settlement over an overlapping period is safe. The batch row
// and the entry assignments commit atomically.
func (s *Service) SettlePeriod(periodStart, periodEnd time.Time) (*models.SevaBatch, error) {
	batchID := BatchIDFor(periodStart, periodEnd)
	batch := &models.SevaBatch{
		BatchID:        batchID,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		TransferStatus: models.BatchTransferPending,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var total struct {
			Sum   int64
			Count int64
		}
		row := tx.Model(&models.SevaLedger{}).
			Select("COALESCE(SUM(seva_amount_cents), 0) AS sum, COUNT(*) AS count").
			Where("batch_id = '' AND created_at >= ? AND created_at < ?", periodStart, periodEnd.AddDate(0, 0, 1)).
			Scan(&total)
		if row.Error != nil {
			return row.Error
		}
		if total.Count == 0 {
			return ErrEmptyPeriod
		}

		batch.TotalSevaAmountCents = total.Sum
		if err := tx.Create(batch).Error; err != nil {
			return err
		}

		return tx.Model(&models.SevaLedger{}).
			Where("batch_id = '' AND created_at >= ? AND created_at < ?", periodStart, periodEnd.AddDate(0, 0, 1)).
			Update("batch_id", batchID).Error
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[Ledger] Settled batch %s: %d cents seva", batchID, batch.TotalSevaAmountCents)
	return batch, nil
}

// ListBatches returns settlement batches newest first.
func (s *Service) ListBatches(limit int) ([]models.SevaBatch, error) {
	if limit <= 0 {
		limit = 50
	}
	var batches []models.SevaBatch
	err := s.db.Order("created_at DESC").Limit(limit).Find(&batches).Error
	return batches, err
}

// MarkTransferred records the external funds-transfer reference for a
// pending batch. Batch membership stays frozen; only the transfer status
// moves.
func (s *Service) MarkTransferred(batchID, transferReference string) error {
	result := s.db.Model(&models.SevaBatch{}).
		Where("batch_id = ? AND transfer_status = ?", batchID, models.BatchTransferPending).
		Updates(map[string]interface{}{
			"transfer_status":    models.BatchTransferTransferred,
			"transfer_reference": transferReference,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBatchNotPending
	}
	log.Infof("[Ledger] Batch %s marked transferred (ref %s)", batchID, transferReference)
	return nil
}
