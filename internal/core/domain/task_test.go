package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourcesCovers(t *testing.T) {
	capacity := Resources{MIPS: 1000, MemoryMB: 512, BandwidthMbps: 100, StorageGB: 50}

	tests := []struct {
		name     string
		req      Resources
		expected bool
	}{
		{"all dimensions fit", Resources{MIPS: 500, MemoryMB: 256, BandwidthMbps: 50, StorageGB: 25}, true},
		{"exact fit", capacity, true},
		{"zero request", Resources{}, true},
		{"compute too big", Resources{MIPS: 1001}, false},
		{"memory too big", Resources{MemoryMB: 513}, false},
		{"bandwidth too big", Resources{BandwidthMbps: 101}, false},
		{"storage too big", Resources{StorageGB: 51}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, capacity.Covers(tt.req))
		})
	}
}

func TestResourcesAddSubRoundTrip(t *testing.T) {
	capacity := Resources{MIPS: 1000, MemoryMB: 512, BandwidthMbps: 100, StorageGB: 50}
	req := Resources{MIPS: 400, MemoryMB: 128, BandwidthMbps: 30, StorageGB: 10}

	assert.Equal(t, capacity, capacity.Sub(req).Add(req))
	assert.Equal(t, Resources{MIPS: 600, MemoryMB: 384, BandwidthMbps: 70, StorageGB: 40}, capacity.Sub(req))
}

func TestLocationValid(t *testing.T) {
	tests := []struct {
		name     string
		loc      Location
		expected bool
	}{
		{"zero value", Location{}, true},
		{"singapore", Location{Lat: 1.3521, Lon: 103.8198}, true},
		{"boundary values", Location{Lat: -90, Lon: 180}, true},
		{"latitude too big", Location{Lat: 90.1, Lon: 0}, false},
		{"longitude too small", Location{Lat: 0, Lon: -180.1}, false},
		{"NaN latitude", Location{Lat: math.NaN(), Lon: 0}, false},
		{"infinite longitude", Location{Lat: 0, Lon: math.Inf(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.loc.Valid())
		})
	}
}
