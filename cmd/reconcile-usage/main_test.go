package main

import (
	"context"
	"testing"
	"time"

	"github.com/cyverse/ngs/internal/db"
	"github.com/cyverse/ngs/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(&model.Node{}, &model.ResourceSession{}))
	return gdb
}

// addClosedSession records a closed session of the given length and adds it to the node's counter.
func addClosedSession(t *testing.T, gdb *gorm.DB, nodeID, participant string, minutes float64) {
	t.Helper()
	ctx := context.Background()

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	session := &model.ResourceSession{
		ID:             nodeID + "-" + participant,
		NodeID:         nodeID,
		ParticipantRef: participant,
		StartedAt:      start,
	}
	opened, err := db.OpenSession(ctx, gdb, session)
	require.NoError(t, err)
	require.True(t, opened)

	closed, err := db.CloseSession(ctx, gdb, session, start.Add(time.Duration(minutes*float64(time.Minute))), minutes*60, false)
	require.NoError(t, err)
	require.True(t, closed)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)

	for _, id := range []string{"n-ok", "n-low", "n-high"} {
		_, created, err := db.InsertNode(ctx, gdb, &model.Node{ID: id, OwnerID: "alice"})
		require.NoError(t, err)
		require.True(t, created)
	}

	addClosedSession(t, gdb, "n-ok", "p1", 10)
	addClosedSession(t, gdb, "n-low", "p1", 20)
	addClosedSession(t, gdb, "n-high", "p1", 5)

	// Simulate a lost increment and an extra one.
	require.NoError(t, db.IncrementNodeUsage(ctx, gdb, "n-low", -8))
	require.NoError(t, db.IncrementNodeUsage(ctx, gdb, "n-high", 3))

	discrepancies, err := reconcile(ctx, gdb, false)
	require.NoError(t, err)
	require.Len(t, discrepancies, 2)
	assert.Equal(t, "n-high", discrepancies[0].NodeID)
	assert.False(t, discrepancies[0].BelowSessions)
	assert.Equal(t, "n-low", discrepancies[1].NodeID)
	assert.True(t, discrepancies[1].BelowSessions)

	// Without the fix flag nothing changes.
	node, err := db.GetNode(ctx, gdb, "n-low")
	require.NoError(t, err)
	assert.InDelta(t, 12.0, node.AccumulatedUsageMinutes, 1e-9)

	_, err = reconcile(ctx, gdb, true)
	require.NoError(t, err)

	node, err = db.GetNode(ctx, gdb, "n-low")
	require.NoError(t, err)
	assert.InDelta(t, 20.0, node.AccumulatedUsageMinutes, 1e-9)

	// Counters above the session total are left alone.
	node, err = db.GetNode(ctx, gdb, "n-high")
	require.NoError(t, err)
	assert.InDelta(t, 8.0, node.AccumulatedUsageMinutes, 1e-9)

	discrepancies, err = reconcile(ctx, gdb, false)
	require.NoError(t, err)
	require.Len(t, discrepancies, 1)
}
