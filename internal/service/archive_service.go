package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/settlement/internal/domain"
)

const archiveLockKey = "archive:orders"

// ArchiveService exports each completed month of orders to cold storage.
// A distributed lock keeps concurrent instances from exporting the same
// month twice.
type ArchiveService struct {
	archiver domain.Archiver
	locks    domain.LockManager
	lockTTL  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewArchiveService creates an ArchiveService.
func NewArchiveService(archiver domain.Archiver, locks domain.LockManager, lockTTL time.Duration, logger *slog.Logger) *ArchiveService {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &ArchiveService{
		archiver: archiver,
		locks:    locks,
		lockTTL:  lockTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// RunOnce archives the calendar month before the current one. Returns the
// number of exported orders; zero when another instance holds the lock or
// the month already exists.
func (s *ArchiveService) RunOnce(ctx context.Context) (int64, error) {
	unlock, err := s.locks.Acquire(ctx, archiveLockKey, s.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.InfoContext(ctx, "archive_service: another instance is archiving")
			return 0, nil
		}
		return 0, fmt.Errorf("archive_service: acquire lock: %w", err)
	}
	defer unlock()

	now := s.now().UTC()
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)

	n, err := s.archiver.ArchiveOrders(ctx, month)
	if err != nil {
		return 0, fmt.Errorf("archive_service: archive %s: %w", month.Format("2006-01"), err)
	}
	s.logger.InfoContext(ctx, "archive_service: orders archived",
		slog.String("month", month.Format("2006-01")),
		slog.Int64("count", n),
	)
	return n, nil
}

// Run calls RunOnce every interval until ctx is cancelled.
func (s *ArchiveService) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.ErrorContext(ctx, "archive_service: run failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
