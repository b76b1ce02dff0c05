// Package jsonfile loads offload requests from a tuple export file: a JSON
// array of task records with Size/MIPS/RAM/BW requirements and an optional
// GeoLocation per record.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/fogsched/fogsched/internal/core/domain"
)

type source struct {
	path string
	log  *zap.Logger
}

// NewSource creates a file backed task source. It implements
// port.TaskSource.
func NewSource(path string, log *zap.Logger) *source {
	return &source{
		path: path,
		log:  log,
	}
}

// taskRecord is the on disk shape of one task
type taskRecord struct {
	Name         string   `json:"Name"`
	Size         float64  `json:"Size"`
	MIPS         float64  `json:"MIPS"`
	RAM          float64  `json:"RAM"`
	BW           float64  `json:"BW"`
	Storage      *float64 `json:"Storage"`
	CreationTime float64  `json:"CreationTime"`
	DataType     string   `json:"DataType"`
	DeviceType   string   `json:"DeviceType"`
	GeoLocation  *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"GeoLocation"`
}

// Load reads and decodes the whole file. CreationTime values are offsets in
// seconds; they are rebased onto the load instant so creation order is
// preserved for the dispatcher.
func (s *source) Load(ctx context.Context) ([]*domain.Task, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	// Windows exports tend to carry a UTF-8 BOM
	data = bytes.TrimPrefix(data, []byte{0xef, 0xbb, 0xbf})

	var records []taskRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode task file %s: %w", s.path, err)
	}

	base := time.Now()
	tasks := make([]*domain.Task, 0, len(records))
	for i, rec := range records {
		tasks = append(tasks, rec.toTask(i, base))
	}

	s.log.Info("Loaded tasks from file",
		zap.String("path", s.path),
		zap.Int("count", len(tasks)))
	return tasks, nil
}

func (rec taskRecord) toTask(i int, base time.Time) *domain.Task {
	id := rec.Name
	if id == "" {
		id = fmt.Sprintf("task-%d", i)
	}

	// Tuple exports without an explicit Storage stage the whole payload
	storage := rec.Size
	if rec.Storage != nil {
		storage = *rec.Storage
	}

	t := &domain.Task{
		ID:     id,
		Name:   id,
		SizeMI: rec.Size,
		Required: domain.Resources{
			MIPS:          rec.MIPS,
			MemoryMB:      rec.RAM,
			BandwidthMbps: rec.BW,
			StorageGB:     storage,
		},
		DataType:   rec.DataType,
		DeviceType: rec.DeviceType,
		CreatedAt:  base.Add(time.Duration(rec.CreationTime * float64(time.Second))),
	}
	if rec.GeoLocation != nil {
		t.Location = &domain.Location{
			Lat: rec.GeoLocation.Latitude,
			Lon: rec.GeoLocation.Longitude,
		}
	}
	return t
}
