package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeTaskFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestLoadParsesTupleExport(t *testing.T) {
	body := []byte(`[
  {"Name": "tuple-1", "Size": 400, "MIPS": 300, "RAM": 256, "BW": 20, "Storage": 1.5,
   "CreationTime": 0.0, "DataType": "Multimedia", "DeviceType": "Camera",
   "GeoLocation": {"latitude": 1.29, "longitude": 103.85}},
  {"Size": 100, "MIPS": 80, "RAM": 64, "BW": 5, "CreationTime": 1.5,
   "DataType": "SmallTextData", "DeviceType": "Sensor"}
]`)
	// Exports from Windows tooling lead with a BOM
	path := writeTaskFile(t, append([]byte{0xef, 0xbb, 0xbf}, body...))

	tasks, err := NewSource(path, zap.NewNop()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	first := tasks[0]
	assert.Equal(t, "tuple-1", first.ID)
	assert.Equal(t, 400.0, first.SizeMI)
	assert.Equal(t, 300.0, first.Required.MIPS)
	assert.Equal(t, 256.0, first.Required.MemoryMB)
	assert.Equal(t, 20.0, first.Required.BandwidthMbps)
	assert.Equal(t, 1.5, first.Required.StorageGB)
	require.NotNil(t, first.Location)
	assert.InDelta(t, 1.29, first.Location.Lat, 1e-9)
	assert.InDelta(t, 103.85, first.Location.Lon, 1e-9)

	second := tasks[1]
	assert.Equal(t, "task-1", second.ID) // record carries no Name
	assert.Nil(t, second.Location)
	assert.Equal(t, 100.0, second.Required.StorageGB) // staged payload stands in for Storage
	assert.True(t, second.CreatedAt.After(first.CreatedAt))
	assert.InDelta(t, 1.5, second.CreatedAt.Sub(first.CreatedAt).Seconds(), 0.001)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewSource(filepath.Join(t.TempDir(), "absent.json"), zap.NewNop()).Load(context.Background())
	assert.Error(t, err)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeTaskFile(t, []byte(`{"not": "an array"`))

	_, err := NewSource(path, zap.NewNop()).Load(context.Background())
	assert.Error(t, err)
}
