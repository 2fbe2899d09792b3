// Package worker exports stored expenses to the configured spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"weekspend/internal/amqp"
	"weekspend/internal/core"
	"weekspend/internal/log"
	"weekspend/internal/ports"
	"weekspend/internal/sheets"
)

// Store is what the worker needs from a backend.
type Store interface {
	ports.ExpenseStore
	ports.SyncStore
}

// ExportWorker appends expenses to the exporter and records the outcome on
// each expense's export state.
type ExportWorker struct {
	store     Store
	exporter  sheets.ExpenseExporter
	batchSize int
	// minAge keeps the periodic sweep away from rows whose queue message
	// is probably still in flight.
	minAge time.Duration
	now    func() time.Time
	logger *log.Logger

	// mu serializes the pending check and the append so the queue consumer
	// and the sweep cannot both export one expense.
	mu sync.Mutex
}

func NewExportWorker(store Store, exporter sheets.ExpenseExporter, batchSize int, minAge time.Duration, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ExportWorker{
		store:     store,
		exporter:  exporter,
		batchSize: batchSize,
		minAge:    minAge,
		now:       time.Now,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleExportMessage exports the expense named by msg. Returning an error
// requeues the message. Expenses deleted since publishing, or already
// exported by a sweep, are dropped.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.ExpenseExportMessage) error {
	w.logger.InfoContext(ctx, "Processing export message",
		log.FieldExpenseID, msg.ID,
		log.FieldUserID, msg.UserID,
		"version", msg.Version)

	e, err := w.store.GetExpense(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			w.logger.WarnContext(ctx, "Expense no longer exists, dropping export", log.FieldExpenseID, msg.ID)
			return nil
		}
		return fmt.Errorf("get expense: %w", err)
	}

	return w.export(ctx, e)
}

// export appends e unless it has left the pending state.
func (w *ExportWorker) export(ctx context.Context, e core.Expense) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	status, err := w.store.SyncStatus(ctx, e.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get sync status: %w", err)
	}
	if status != core.SyncPending {
		w.logger.InfoContext(ctx, "Expense already exported, skipping",
			log.FieldExpenseID, e.ID,
			"sync_status", string(status))
		return nil
	}

	ref, err := w.exporter.Append(ctx, e)
	if err != nil {
		if errors.Is(err, core.ErrInvalidDate) || errors.Is(err, core.ErrEmptyDescription) || errors.Is(err, core.ErrInvalidAmount) {
			if merr := w.store.MarkSyncError(ctx, e.ID); merr != nil {
				w.logger.ErrorContext(ctx, "Failed to mark export error", log.FieldExpenseID, e.ID, log.FieldError, merr)
			}
			w.logger.ErrorContext(ctx, "Expense cannot be exported", log.FieldExpenseID, e.ID, log.FieldError, err)
			return nil
		}
		return fmt.Errorf("append expense %d: %w", e.ID, err)
	}

	if err := w.store.MarkSynced(ctx, e.ID); err != nil {
		// The row is already in the sheet.
		w.logger.WarnContext(ctx, "Failed to mark expense as synced", log.FieldExpenseID, e.ID, log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Exported expense",
		log.FieldExpenseID, e.ID,
		log.FieldUserID, e.UserID,
		log.FieldSheetsRef, ref)
	return nil
}

// ProcessPending exports up to limit pending expenses older than minAge and
// returns how many were exported.
func (w *ExportWorker) ProcessPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.PendingExports(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending exports: %w", err)
	}

	cutoff := w.now().Add(-w.minAge)
	exported, failed := 0, 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return exported, ctx.Err()
		}
		if p.CreatedAt.After(cutoff) {
			continue
		}

		e, err := w.store.GetExpense(ctx, p.ID)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to load pending expense", log.FieldExpenseID, p.ID, log.FieldError, err)
			failed++
			continue
		}
		if err := w.export(ctx, e); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export pending expense", log.FieldExpenseID, p.ID, log.FieldError, err)
			failed++
			continue
		}
		exported++
	}

	if exported > 0 || failed > 0 {
		w.logger.InfoContext(ctx, "Pending export pass completed",
			"total", len(pending),
			"exported", exported,
			"failed", failed)
	}
	return exported, nil
}

// StartupCatchUp runs one larger pending pass regardless of row age, to
// recover rows whose messages were lost while the worker was down.
func (w *ExportWorker) StartupCatchUp(ctx context.Context) error {
	minAge := w.minAge
	w.minAge = 0
	defer func() { w.minAge = minAge }()

	n, err := w.ProcessPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup catch-up: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup catch-up completed", "exported", n)
	return nil
}

// RunPeriodic sweeps pending expenses every interval until ctx is done.
func (w *ExportWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx, w.batchSize); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.ErrorContext(ctx, "Periodic export failed", log.FieldError, err)
			}
		}
	}
}
