package backup

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	memorybus "github.com/Akitash/opentogethertube/internal/infrastructure/bus/memory"
	"github.com/Akitash/opentogethertube/pkg/backup"
)

func seedBackup(t *testing.T, svc *backup.BackupService, rooms map[string][]byte) string {
	t.Helper()
	data := &backup.BackupData{Rooms: map[string]json.RawMessage{}}
	for name, raw := range rooms {
		data.Rooms[name] = json.RawMessage(raw)
	}
	name, err := svc.CreateBackup(context.Background(), data)
	require.NoError(t, err)
	return name
}

func TestRestoreService_RestoreFromBackupWritesSnapshotKeys(t *testing.T) {
	storage, err := backup.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	backupService := backup.NewBackupService(storage, "1")
	bus := memorybus.NewBus()

	name := seedBackup(t, backupService, map[string][]byte{
		"alpha": []byte(`{"name":"alpha","title":"Alpha"}`),
	})

	restoreSvc := NewRestoreService(backupService, bus, zap.NewNop().Sugar())
	err = restoreSvc.RestoreFromBackup(context.Background(), name, DefaultRestoreOptions())
	require.NoError(t, err)

	val, found, err := bus.Get(context.Background(), "room-sync:alpha")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"name":"alpha","title":"Alpha"}`, string(val))
}

func TestRestoreService_DoesNotOverwriteExistingByDefault(t *testing.T) {
	storage, err := backup.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	backupService := backup.NewBackupService(storage, "1")
	bus := memorybus.NewBus()

	require.NoError(t, bus.Set(context.Background(), "room-sync:alpha", []byte(`{"title":"Live"}`)))

	name := seedBackup(t, backupService, map[string][]byte{
		"alpha": []byte(`{"title":"Backed Up"}`),
	})

	restoreSvc := NewRestoreService(backupService, bus, zap.NewNop().Sugar())
	require.NoError(t, restoreSvc.RestoreFromBackup(context.Background(), name, DefaultRestoreOptions()))

	val, _, _ := bus.Get(context.Background(), "room-sync:alpha")
	assert.JSONEq(t, `{"title":"Live"}`, string(val))
}

func TestRestoreService_OverwriteExisting(t *testing.T) {
	storage, err := backup.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	backupService := backup.NewBackupService(storage, "1")
	bus := memorybus.NewBus()

	require.NoError(t, bus.Set(context.Background(), "room-sync:alpha", []byte(`{"title":"Live"}`)))

	name := seedBackup(t, backupService, map[string][]byte{
		"alpha": []byte(`{"title":"Backed Up"}`),
	})

	restoreSvc := NewRestoreService(backupService, bus, zap.NewNop().Sugar())
	require.NoError(t, restoreSvc.RestoreFromBackup(context.Background(), name, RestoreOptions{OverwriteExisting: true}))

	val, _, _ := bus.Get(context.Background(), "room-sync:alpha")
	assert.JSONEq(t, `{"title":"Backed Up"}`, string(val))
}
