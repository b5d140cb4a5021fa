package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/enviroflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T, opts RedisOptions) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	opts.URL = fmt.Sprintf("redis://%s", mr.Addr())

	store, err := NewRedisStore(context.Background(), slog.Default(), opts)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store, mr
}

func TestStatic_Snapshot(t *testing.T) {
	provider := NewStatic(
		&models.ControllerCapabilities{ControllerID: "c1", Status: models.ControllerStatusOnline},
		&models.ControllerCapabilities{ControllerID: "c2", Status: models.ControllerStatusOffline},
	)

	snapshot, err := provider.Snapshot(context.Background(), []string{"c2", "missing"})
	require.NoError(t, err)
	assert.Len(t, snapshot, 1)
	assert.Equal(t, models.ControllerStatusOffline, snapshot["c2"].Status)

	all, err := provider.Snapshot(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFile_Snapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capabilities.yaml")
	content := `controllers:
  - controller_id: c1
    name: Tent A
    status: online
    sensors:
      - type: temperature
        port: 1
    devices:
      - port: 1
        is_online: true
        device_type: fan
      - port: 2
        is_online: false
  - controller_id: c2
    status: offline
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	provider := NewFile(path)

	snapshot, err := provider.Snapshot(context.Background(), []string{"c1"})
	require.NoError(t, err)
	require.Contains(t, snapshot, "c1")

	tent := snapshot["c1"]
	assert.Equal(t, "Tent A", tent.Name)
	assert.Equal(t, models.ControllerStatusOnline, tent.Status)
	assert.Equal(t, []models.SensorCapability{{Type: "temperature", Port: 1}}, tent.Sensors)
	require.Len(t, tent.Devices, 2)
	assert.True(t, tent.Devices[0].IsOnline)
	assert.False(t, tent.Devices[1].IsOnline)
	assert.NotContains(t, snapshot, "c2")
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("controllers: [\n"), 0o600))

	_, err = LoadFile(invalid)
	assert.Error(t, err)

	anonymous := filepath.Join(dir, "anonymous.yaml")
	require.NoError(t, os.WriteFile(anonymous, []byte("controllers:\n  - status: online\n"), 0o600))

	_, err = LoadFile(anonymous)
	assert.ErrorContains(t, err, "no controller_id")
}

func TestRedisStore_PublishAndSnapshot(t *testing.T) {
	store, _ := setupRedisStore(t, RedisOptions{})
	ctx := context.Background()

	err := store.Publish(ctx, &models.ControllerCapabilities{
		ControllerID: "c1",
		Status:       models.ControllerStatusOnline,
		Sensors:      []models.SensorCapability{{Type: "humidity", Port: 1}},
		Devices:      []models.DeviceCapability{{Port: 3, IsOnline: true}},
	})
	require.NoError(t, err)

	snapshot, err := store.Snapshot(ctx, []string{"c1", "c9"})
	require.NoError(t, err)

	require.Len(t, snapshot, 1)
	assert.Equal(t, models.ControllerStatusOnline, snapshot["c1"].Status)
	assert.Equal(t, 3, snapshot["c1"].Devices[0].Port)
	assert.False(t, snapshot["c1"].CapturedAt.IsZero())
}

func TestRedisStore_StaleEntriesReportOffline(t *testing.T) {
	store, _ := setupRedisStore(t, RedisOptions{MaxAge: time.Minute})
	ctx := context.Background()

	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Publish(ctx, &models.ControllerCapabilities{
		ControllerID: "fresh",
		Status:       models.ControllerStatusOnline,
		CapturedAt:   now.Add(-30 * time.Second),
	}))
	require.NoError(t, store.Publish(ctx, &models.ControllerCapabilities{
		ControllerID: "stale",
		Status:       models.ControllerStatusOnline,
		CapturedAt:   now.Add(-5 * time.Minute),
	}))

	snapshot, err := store.Snapshot(ctx, []string{"fresh", "stale"})
	require.NoError(t, err)

	assert.Equal(t, models.ControllerStatusOnline, snapshot["fresh"].Status)
	assert.Equal(t, models.ControllerStatusOffline, snapshot["stale"].Status)
}

func TestRedisStore_SkipsUndecodableEntries(t *testing.T) {
	store, mr := setupRedisStore(t, RedisOptions{KeyPrefix: "caps:"})

	require.NoError(t, mr.Set("caps:broken", "{not json"))

	valid, err := json.Marshal(models.ControllerCapabilities{Status: models.ControllerStatusOffline})
	require.NoError(t, err)
	require.NoError(t, mr.Set("caps:c2", string(valid)))

	snapshot, err := store.Snapshot(context.Background(), []string{"broken", "c2"})
	require.NoError(t, err)

	assert.NotContains(t, snapshot, "broken")
	require.Contains(t, snapshot, "c2")
	assert.Equal(t, "c2", snapshot["c2"].ControllerID)
}

func TestRedisStore_PublishRejectsInvalidEntries(t *testing.T) {
	store, _ := setupRedisStore(t, RedisOptions{})
	ctx := context.Background()

	assert.Error(t, store.Publish(ctx, &models.ControllerCapabilities{Status: models.ControllerStatusOnline}))
	assert.Error(t, store.Publish(ctx, &models.ControllerCapabilities{ControllerID: "c1", Status: "rebooting"}))
}

func TestRedisStore_PublishHonoursTTL(t *testing.T) {
	store, mr := setupRedisStore(t, RedisOptions{TTL: time.Minute})

	require.NoError(t, store.Publish(context.Background(), &models.ControllerCapabilities{
		ControllerID: "c1",
		Status:       models.ControllerStatusOnline,
	}))

	assert.Equal(t, time.Minute, mr.TTL(DefaultKeyPrefix+"c1"))

	mr.FastForward(2 * time.Minute)

	snapshot, err := store.Snapshot(context.Background(), []string{"c1"})
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}
