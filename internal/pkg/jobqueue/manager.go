package jobqueue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/subhamasthu/sankalp-bot/app/models"
	"github.com/subhamasthu/sankalp-bot/app/repository"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/eligibility"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/env"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/fsm"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/ledger"
)

// scanPageSize bounds each eligibility scan page so periodic jobs never hold
// the full user set at once.
const scanPageSize = 200

// Manager manages the global job queue and the periodic background tasks:
// the eligibility scan (daily blessings, weekly prompts, cooldown release)
// and batch settlement.
type Manager struct {
	queue            *Queue
	machine          *fsm.Machine
	ledgerSvc        *ledger.Service
	users            repository.UserRepository
	promptTicker     *time.Ticker
	settlementTicker *time.Ticker
	stopCh           chan struct{}
	wg               sync.WaitGroup
	mu               sync.Mutex
	running          bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// InitManager builds the global manager (singleton). Must run before
// GetManager.
func InitManager(deps *Dependencies, machine *fsm.Machine, ledgerSvc *ledger.Service) *Manager {
	managerOnce.Do(func() {
		workerCount := 3
		if v, err := strconv.Atoi(env.GetEnv("JOB_QUEUE_WORKERS", "3")); err == nil && v > 0 {
			workerCount = v
		}

		globalManager = &Manager{
			queue:     NewQueue(workerCount, deps),
			machine:   machine,
			ledgerSvc: ledgerSvc,
			users:     deps.Repos.User,
			stopCh:    make(chan struct{}),
		}
	})
	return globalManager
}

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	if globalManager == nil {
		panic("Job queue manager not initialized. Call InitManager first.")
	}
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	promptInterval := 60 * time.Minute
	if v, err := strconv.Atoi(env.GetEnv("PROMPT_SCAN_INTERVAL_MINUTES", "60")); err == nil && v > 0 {
		promptInterval = time.Duration(v) * time.Minute
	}
	m.promptTicker = time.NewTicker(promptInterval)
	m.wg.Add(1)
	go m.promptWorker()

	settlementInterval := 24 * time.Hour
	if v, err := strconv.Atoi(env.GetEnv("SETTLEMENT_INTERVAL_HOURS", "24")); err == nil && v > 0 {
		settlementInterval = time.Duration(v) * time.Hour
	}
	m.settlementTicker = time.NewTicker(settlementInterval)
	m.wg.Add(1)
	go m.settlementWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.promptTicker != nil {
		m.promptTicker.Stop()
	}
	if m.settlementTicker != nil {
		m.settlementTicker.Stop()
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// promptWorker periodically runs the eligibility scan over passive users.
func (m *Manager) promptWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Prompt worker stopping")
			return
		case <-m.promptTicker.C:
			if err := m.RunEligibilityScanOnce(); err != nil {
				log.Errorf("[JobQueue Manager] Eligibility scan error: %v", err)
			}
		}
	}
}

// settlementWorker periodically aggregates unbatched ledger entries.
func (m *Manager) settlementWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Settlement worker stopping")
			return
		case <-m.settlementTicker.C:
			if err := m.RunSettlementOnce(); err != nil {
				log.Errorf("[JobQueue Manager] Settlement error: %v", err)
			}
		}
	}
}

// RunEligibilityScanOnce walks released, passive, and parked users in
// bounded pages and dispatches due prompts. Exposed for the admin trigger.
func (m *Manager) RunEligibilityScanOnce() error {
	ctx := context.Background()
	now := time.Now()

	// Cooldown release first, so freshly released users rejoin the daily
	// cycle on the same scan.
	if err := m.scanState(models.StateCooldown, func(u *models.User) error {
		if !eligibility.CooldownReleased(u, now) {
			return nil
		}
		return m.machine.ReleaseCooldown(ctx, u)
	}); err != nil {
		return err
	}

	for _, state := range []string{models.StateOnboarded, models.StateDailyPassive} {
		if err := m.scanState(state, func(u *models.User) error {
			if eligibility.WeeklyPromptDue(u, now) {
				return m.machine.SendWeeklyPrompt(ctx, u)
			}
			if eligibility.DailyPromptDue(u, now) {
				return m.machine.SendDailyBlessing(ctx, u)
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// RunSettlementOnce batches the previous seven full days of unbatched
// ledger entries. An empty period is not an error.
func (m *Manager) RunSettlementOnce() error {
	today := time.Now().Truncate(24 * time.Hour)
	periodStart := today.AddDate(0, 0, -7)
	periodEnd := today.AddDate(0, 0, -1)

	_, err := m.ledgerSvc.SettlePeriod(periodStart, periodEnd)
	if err == ledger.ErrEmptyPeriod {
		log.Debug("[JobQueue Manager] No unbatched ledger entries to settle")
		return nil
	}
	return err
}

func (m *Manager) scanState(state string, fn func(u *models.User) error) error {
	var afterID uint
	for {
		page, err := m.users.ListInState(state, afterID, scanPageSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		for i := range page {
			if err := fn(&page[i]); err != nil {
				log.Errorf("[JobQueue Manager] Scan error for user %d: %v", page[i].ID, err)
			}
		}
		afterID = page[len(page)-1].ID
		if len(page) < scanPageSize {
			return nil
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
