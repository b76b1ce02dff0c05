package domain

import (
	"math"
	"time"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusQueued    TaskStatus = "QUEUED"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
)

// Resources is the four dimensional requirement/capacity vector shared by
// tasks and nodes. Admission compares all four dimensions at once.
type Resources struct {
	MIPS          float64 `json:"mips"`           // Compute rate in million instructions per second
	MemoryMB      float64 `json:"memory_mb"`      // Memory in MB
	BandwidthMbps float64 `json:"bandwidth_mbps"` // Network bandwidth in Mbps
	StorageGB     float64 `json:"storage_gb"`     // Disk in GB
}

// Covers reports whether every dimension of r is at least the matching
// dimension of req.
func (r Resources) Covers(req Resources) bool {
	return r.MIPS >= req.MIPS &&
		r.MemoryMB >= req.MemoryMB &&
		r.BandwidthMbps >= req.BandwidthMbps &&
		r.StorageGB >= req.StorageGB
}

// Add returns r with every dimension of delta added.
func (r Resources) Add(delta Resources) Resources {
	return Resources{
		MIPS:          r.MIPS + delta.MIPS,
		MemoryMB:      r.MemoryMB + delta.MemoryMB,
		BandwidthMbps: r.BandwidthMbps + delta.BandwidthMbps,
		StorageGB:     r.StorageGB + delta.StorageGB,
	}
}

// Sub returns r with every dimension of delta subtracted.
func (r Resources) Sub(delta Resources) Resources {
	return Resources{
		MIPS:          r.MIPS - delta.MIPS,
		MemoryMB:      r.MemoryMB - delta.MemoryMB,
		BandwidthMbps: r.BandwidthMbps - delta.BandwidthMbps,
		StorageGB:     r.StorageGB - delta.StorageGB,
	}
}

// Location is a point on the globe in decimal degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both coordinates are finite and inside the usual
// geographic range. Callers substitute a configured default for invalid
// locations instead of failing.
func (l Location) Valid() bool {
	if math.IsNaN(l.Lat) || math.IsInf(l.Lat, 0) || math.IsNaN(l.Lon) || math.IsInf(l.Lon, 0) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lon >= -180 && l.Lon <= 180
}

// Task represents a unit of offloadable work arriving from an edge device.
type Task struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SizeMI     float64   `json:"size_mi"` // Workload size in million instructions
	Required   Resources `json:"required"`
	Location   *Location `json:"location,omitempty"`    // Origin device position, nil when unknown
	DataType   string    `json:"data_type,omitempty"`   // Opaque workload tag (Bulk, Video, ...)
	DeviceType string    `json:"device_type,omitempty"` // Opaque source tag (Sensor, Tablet, ...)
	CreatedAt  time.Time `json:"created_at"`

	// Timing fields. The scheduler is the only writer; everything above is
	// immutable once the task has been handed over.
	EnqueuedAt  time.Time `json:"enqueued_at,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}
