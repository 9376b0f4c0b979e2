package backup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Akitash/opentogethertube/internal/core/ports"
	"github.com/Akitash/opentogethertube/pkg/backup"
)

// RestoreService pushes a prior backup's room snapshots back onto the
// bus's snapshot keys, so the next time RoomManager.GetRoom takes a
// cache-miss for one of those rooms it warm-starts from the restored
// content instead of loading empty. It never constructs a Room directly
// — restore is always "make the seed available", not "force a reload".
type RestoreService struct {
	backupService *backup.BackupService
	bus           ports.MessageBus
	logger        *zap.SugaredLogger
}

func NewRestoreService(backupService *backup.BackupService, bus ports.MessageBus, logger *zap.SugaredLogger) *RestoreService {
	return &RestoreService{backupService: backupService, bus: bus, logger: logger}
}

// RestoreOptions contains restore options
type RestoreOptions struct {
	OverwriteExisting bool
}

func DefaultRestoreOptions() RestoreOptions {
	return RestoreOptions{OverwriteExisting: false}
}

// RestoreFromBackup restores every room in the named backup.
func (rs *RestoreService) RestoreFromBackup(ctx context.Context, backupName string, options RestoreOptions) error {
	rs.logger.Infow("starting restore", "backup_name", backupName, "options", options)

	backupData, err := rs.backupService.RestoreBackup(ctx, backupName)
	if err != nil {
		return fmt.Errorf("failed to load backup: %w", err)
	}
	if backupData.Version == "" {
		return fmt.Errorf("invalid backup: missing version")
	}

	for roomName, snapshot := range backupData.Rooms {
		key := "room-sync:" + roomName
		if !options.OverwriteExisting {
			if _, found, err := rs.bus.Get(ctx, key); err == nil && found {
				rs.logger.Debugw("skipping room with existing snapshot", "room", roomName)
				continue
			}
		}
		if err := rs.bus.Set(ctx, key, snapshot); err != nil {
			return fmt.Errorf("failed to restore room %s: %w", roomName, err)
		}
		rs.logger.Debugw("restored room snapshot", "room", roomName)
	}

	rs.logger.Infow("restore completed successfully", "backup_name", backupName, "room_count", len(backupData.Rooms))
	return nil
}

// FindBackupByTime finds the closest backup at or before targetTime, for
// point-in-time recovery.
func (rs *RestoreService) FindBackupByTime(ctx context.Context, targetTime time.Time) (string, error) {
	backups, err := rs.backupService.ListBackups(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list backups: %w", err)
	}

	var closestBackup string
	var closestTime time.Time
	var found bool

	for _, name := range backups {
		if len(name) < 22 {
			continue
		}
		timestampStr := name[7:22]
		timestamp, err := time.Parse("20060102-150405", timestampStr)
		if err != nil {
			continue
		}
		if timestamp.Before(targetTime) || timestamp.Equal(targetTime) {
			if !found || timestamp.After(closestTime) {
				closestBackup, closestTime, found = name, timestamp, true
			}
		}
	}

	if !found {
		return "", fmt.Errorf("no backup found before or at target time: %v", targetTime)
	}
	return closestBackup, nil
}
