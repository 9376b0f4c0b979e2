package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Akitash/opentogethertube/internal/core/domain"
	"github.com/Akitash/opentogethertube/internal/core/ports"
	"github.com/Akitash/opentogethertube/pkg/backup"
	"github.com/Akitash/opentogethertube/pkg/utils"
)

// RoomLister is the subset of RoomManager a Scheduler needs: the names of
// every room currently loaded on this node.
type RoomLister interface {
	ListLoaded() []domain.RoomName
}

// Scheduler periodically snapshots every loaded room's synced state to
// backup storage. Purely best-effort: a failed snapshot round is logged
// and skipped, never surfaced as an error to request processing.
type Scheduler struct {
	backupService *backup.BackupService
	rooms         RoomLister
	bus           ports.MessageBus
	interval      time.Duration
	retentionDays int
	logger        *zap.SugaredLogger
	stopChan      chan struct{}
}

// Config contains scheduler configuration
type Config struct {
	Interval      time.Duration
	RetentionDays int
}

// NewScheduler creates a new backup scheduler
func NewScheduler(
	backupService *backup.BackupService,
	rooms RoomLister,
	bus ports.MessageBus,
	cfg Config,
	logger *zap.SugaredLogger,
) *Scheduler {
	return &Scheduler{
		backupService: backupService,
		rooms:         rooms,
		bus:           bus,
		interval:      cfg.Interval,
		retentionDays: cfg.RetentionDays,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

// Start starts the backup scheduler
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runBackup(ctx)

	for {
		select {
		case <-ticker.C:
			s.runBackup(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the backup scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

func (s *Scheduler) runBackup(ctx context.Context) {
	s.logger.Info("starting scheduled room snapshot backup")

	backupData, err := s.collectData(ctx)
	if err != nil {
		s.logger.Errorw("failed to collect backup data", "error", err)
		return
	}

	backupName, err := s.backupService.CreateBackup(ctx, backupData)
	if err != nil {
		s.logger.Errorw("failed to create backup", "error", err)
		return
	}

	s.logger.Infow("backup created successfully", "backup_name", backupName, "room_count", len(backupData.Rooms))

	if err := s.cleanupOldBackups(ctx); err != nil {
		s.logger.Warnw("failed to cleanup old backups", "error", err)
	}
}

// collectData reads every loaded room's last-synced snapshot out of the
// bus's snapshot key. Rooms that have never synced yet (no dirty fields
// flushed since load) are simply skipped for this round.
func (s *Scheduler) collectData(ctx context.Context) (*backup.BackupData, error) {
	data := &backup.BackupData{
		Rooms:    make(map[string]json.RawMessage),
		Metadata: make(map[string]interface{}),
	}

	for _, name := range s.rooms.ListLoaded() {
		raw, found, err := s.bus.Get(ctx, snapshotKeyForRoom(name))
		if err != nil {
			s.logger.Warnw("failed to read room snapshot for backup", "room", string(name), "error", err)
			continue
		}
		if !found {
			continue
		}
		data.Rooms[string(name)] = json.RawMessage(raw)
	}

	data.Metadata["room_count"] = len(data.Rooms)
	data.Metadata["backup_type"] = "scheduled"

	return data, nil
}

func snapshotKeyForRoom(name domain.RoomName) string {
	return "room-sync:" + string(name)
}

// cleanupOldBackups removes backups older than retention period
func (s *Scheduler) cleanupOldBackups(ctx context.Context) error {
	backups, err := s.backupService.ListBackups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	retention := time.Duration(s.retentionDays) * 24 * time.Hour

	for _, backupName := range backups {
		if len(backupName) < 22 {
			continue
		}

		timestampStr := backupName[7:22] // "backup-" + "20060102-150405"
		timestamp, err := time.Parse("20060102-150405", timestampStr)
		if err != nil {
			s.logger.Warnw("failed to parse backup timestamp", "backup_name", backupName, "error", err)
			continue
		}

		if utils.IsExpired(timestamp, retention) {
			if err := s.backupService.DeleteBackup(ctx, backupName); err != nil {
				s.logger.Warnw("failed to delete old backup", "backup_name", backupName, "error", err)
				continue
			}
			s.logger.Infow("deleted old backup", "backup_name", backupName, "age", utils.FormatDuration(utils.Since(timestamp)))
		}
	}

	return nil
}
