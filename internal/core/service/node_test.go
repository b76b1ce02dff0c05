package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fogsched/fogsched/internal/core/domain"
)

func testSpec(name string) domain.NodeSpec {
	return domain.NodeSpec{
		Name:     name,
		Capacity: domain.Resources{MIPS: 1000, MemoryMB: 1000, BandwidthMbps: 1000, StorageGB: 100},
		Location: domain.Location{Lat: 1.3521, Lon: 103.8198},
	}
}

func testTask(id string, req domain.Resources) *domain.Task {
	return &domain.Task{
		ID:        id,
		Name:      id,
		SizeMI:    500,
		Required:  req,
		CreatedAt: time.Now(),
	}
}

func TestTryAdmitDeductsLedger(t *testing.T) {
	n := newNode(testSpec("n1"), zap.NewNop())

	ok, load := n.tryAdmit(testTask("t1", domain.Resources{MIPS: 400, MemoryMB: 200, BandwidthMbps: 100, StorageGB: 10}))

	require.True(t, ok)
	assert.InDelta(t, 0.4, load, 1e-9)

	status := n.snapshot()
	assert.InDelta(t, 600, status.Available.MIPS, 1e-9)
	assert.InDelta(t, 800, status.Available.MemoryMB, 1e-9)
	assert.InDelta(t, 900, status.Available.BandwidthMbps, 1e-9)
	assert.InDelta(t, 90, status.Available.StorageGB, 1e-9)
	assert.Equal(t, 1, status.AssignedTasks)
}

func TestTryAdmitRejectsPerDimension(t *testing.T) {
	fits := domain.Resources{MIPS: 500, MemoryMB: 500, BandwidthMbps: 500, StorageGB: 50}

	tests := []struct {
		name string
		req  domain.Resources
	}{
		{"compute exceeded", domain.Resources{MIPS: 1001, MemoryMB: 1, BandwidthMbps: 1, StorageGB: 1}},
		{"memory exceeded", domain.Resources{MIPS: 1, MemoryMB: 1001, BandwidthMbps: 1, StorageGB: 1}},
		{"bandwidth exceeded", domain.Resources{MIPS: 1, MemoryMB: 1, BandwidthMbps: 1001, StorageGB: 1}},
		{"storage exceeded", domain.Resources{MIPS: 1, MemoryMB: 1, BandwidthMbps: 1, StorageGB: 101}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newNode(testSpec("n1"), zap.NewNop())

			ok, _ := n.tryAdmit(testTask("too-big", tt.req))
			assert.False(t, ok)

			// A rejected probe must not have touched the ledger
			ok, _ = n.tryAdmit(testTask("fits", fits))
			assert.True(t, ok)
		})
	}
}

func TestReleaseRestoresLedger(t *testing.T) {
	n := newNode(testSpec("n1"), zap.NewNop())
	task := testTask("t1", domain.Resources{MIPS: 700, MemoryMB: 700, BandwidthMbps: 700, StorageGB: 70})

	ok, _ := n.tryAdmit(task)
	require.True(t, ok)

	drained := n.releaseAndDrain(task)
	assert.Empty(t, drained)

	status := n.snapshot()
	assert.Equal(t, n.capacity(), status.Available)
	assert.Equal(t, 0, status.AssignedTasks)
	assert.Equal(t, 1, status.CompletedTasks)
}

func TestReleaseUnknownTaskIsNoOp(t *testing.T) {
	n := newNode(testSpec("n1"), zap.NewNop())
	ok, _ := n.tryAdmit(testTask("t1", domain.Resources{MIPS: 100}))
	require.True(t, ok)

	before := n.snapshot()
	drained := n.releaseAndDrain(testTask("ghost", domain.Resources{MIPS: 100}))

	assert.Nil(t, drained)
	after := n.snapshot()
	assert.Equal(t, before.Available, after.Available)
	assert.Equal(t, before.AssignedTasks, after.AssignedTasks)
	assert.Equal(t, before.CompletedTasks, after.CompletedTasks)
}

func TestDrainAdmitsFromHeadOnly(t *testing.T) {
	n := newNode(testSpec("n1"), zap.NewNop())
	running := testTask("running", domain.Resources{MIPS: 1000})
	ok, _ := n.tryAdmit(running)
	require.True(t, ok)

	// The head can never fit; the small task behind it must not leapfrog
	n.enqueue(testTask("blocked-head", domain.Resources{MIPS: 5000}), 10)
	n.enqueue(testTask("small", domain.Resources{MIPS: 10}), 10)

	drained := n.releaseAndDrain(running)

	assert.Empty(t, drained)
	_, queued := n.counts()
	assert.Equal(t, 2, queued)
}

func TestDrainChainsWhileHeadsFit(t *testing.T) {
	n := newNode(testSpec("n1"), zap.NewNop())
	running := testTask("running", domain.Resources{MIPS: 1000})
	ok, _ := n.tryAdmit(running)
	require.True(t, ok)

	n.enqueue(testTask("q1", domain.Resources{MIPS: 600}), 10)
	n.enqueue(testTask("q2", domain.Resources{MIPS: 300}), 10)
	n.enqueue(testTask("q3", domain.Resources{MIPS: 300}), 10)

	drained := n.releaseAndDrain(running)

	require.Len(t, drained, 2)
	assert.Equal(t, "q1", drained[0].task.ID)
	assert.Equal(t, "q2", drained[1].task.ID)
	assert.GreaterOrEqual(t, drained[1].loadFactor, drained[0].loadFactor)

	runningCount, queued := n.counts()
	assert.Equal(t, 2, runningCount)
	assert.Equal(t, 1, queued)

	status := n.snapshot()
	assert.InDelta(t, 100, status.Available.MIPS, 1e-9)
}
