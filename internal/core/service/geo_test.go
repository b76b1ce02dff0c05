package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fogsched/fogsched/internal/core/domain"
)

func TestDistanceKnownPairs(t *testing.T) {
	tests := []struct {
		name     string
		a, b     domain.Location
		expected float64
		delta    float64
	}{
		{
			name:     "same point",
			a:        domain.Location{Lat: 1.3521, Lon: 103.8198},
			b:        domain.Location{Lat: 1.3521, Lon: 103.8198},
			expected: 0,
			delta:    0.0001,
		},
		{
			name:     "one degree of longitude at the equator",
			a:        domain.Location{Lat: 0, Lon: 0},
			b:        domain.Location{Lat: 0, Lon: 1},
			expected: 111.195,
			delta:    0.01,
		},
		{
			name:     "paris to london",
			a:        domain.Location{Lat: 48.8566, Lon: 2.3522},
			b:        domain.Location{Lat: 51.5074, Lon: -0.1278},
			expected: 343.6,
			delta:    2,
		},
		{
			name:     "pole to equator is a quarter circle",
			a:        domain.Location{Lat: 90, Lon: 0},
			b:        domain.Location{Lat: 0, Lon: 0},
			expected: 10007.5,
			delta:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Distance(tt.a, tt.b), tt.delta)
		})
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := domain.Location{Lat: 4.3521, Lon: 97.8198}
	b := domain.Location{Lat: 45.0997, Lon: -85.5786}

	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}

func TestSanitizeLocation(t *testing.T) {
	fallback := domain.Location{Lat: 1.3521, Lon: 103.8198}

	tests := []struct {
		name     string
		loc      *domain.Location
		expected domain.Location
	}{
		{"nil uses fallback", nil, fallback},
		{"valid passes through", &domain.Location{Lat: 50.1109, Lon: 8.6821}, domain.Location{Lat: 50.1109, Lon: 8.6821}},
		{"latitude out of range", &domain.Location{Lat: 91, Lon: 0}, fallback},
		{"longitude out of range", &domain.Location{Lat: 0, Lon: -181}, fallback},
		{"NaN coordinate", &domain.Location{Lat: math.NaN(), Lon: 10}, fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeLocation(tt.loc, fallback))
		})
	}
}
