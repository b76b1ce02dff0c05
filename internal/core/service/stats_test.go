package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogsched/fogsched/internal/core/domain"
)

func TestStatsCollectorAggregates(t *testing.T) {
	c := NewStatsCollector()

	require.NoError(t, c.Record("Fog-SG1", domain.CompletionEvent{
		TaskID:           "t1",
		QueueTime:        2 * time.Second,
		TransmissionTime: 1 * time.Second,
		ProcessingTime:   3 * time.Second,
		TotalTime:        6 * time.Second,
		EnergyWh:         0.5,
		RequiredMIPS:     1000,
	}))
	require.NoError(t, c.Record("Cloud-NA", domain.CompletionEvent{
		TaskID:           "t2",
		TransmissionTime: 3 * time.Second,
		ProcessingTime:   1 * time.Second,
		TotalTime:        4 * time.Second,
		EnergyWh:         0.25,
		RequiredMIPS:     500,
	}))

	s := c.Summary()

	assert.Equal(t, 2, s.Tasks)
	assert.Equal(t, 1*time.Second, s.AvgQueueTime)
	assert.Equal(t, 2*time.Second, s.AvgTransmission)
	assert.Equal(t, 2*time.Second, s.AvgProcessing)
	assert.Equal(t, 5*time.Second, s.AvgTotal)
	assert.InDelta(t, 0.75, s.TotalEnergyWh, 1e-9)

	require.Len(t, s.Nodes, 2)
	// Sorted by name, so Cloud-NA leads
	assert.Equal(t, "Cloud-NA", s.Nodes[0].Node)
	assert.Equal(t, 1, s.Nodes[0].Tasks)
	assert.Equal(t, 4*time.Second, s.Nodes[0].AvgTotal)
	assert.InDelta(t, 500, s.Nodes[0].WorkloadMIs, 1e-9)
	assert.Equal(t, "Fog-SG1", s.Nodes[1].Node)
	assert.InDelta(t, 3000, s.Nodes[1].WorkloadMIs, 1e-9)
}

func TestStatsCollectorEmptySummary(t *testing.T) {
	s := NewStatsCollector().Summary()

	assert.Zero(t, s.Tasks)
	assert.Zero(t, s.AvgTotal)
	assert.Empty(t, s.Nodes)
}
