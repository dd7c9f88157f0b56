package db

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cyverse/ngs/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	// Every connection to :memory: gets its own database, so keep a single connection.
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = gdb.AutoMigrate(
		&model.TierDefinition{},
		&model.Subscription{},
		&model.Node{},
		&model.ResourceSession{},
		&model.SecurityStrike{},
	)
	require.NoError(t, err)

	return gdb
}

// newFileTestDB opens a SQLite database file in WAL mode so that several connections can write concurrently.
func newFileTestDB(t *testing.T, conns int) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "ngs.db") +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_txlock=immediate"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = gdb.AutoMigrate(&model.Node{}, &model.ResourceSession{})
	require.NoError(t, err)

	return gdb
}

func insertNode(t *testing.T, gdb *gorm.DB, nodeID, ownerID string) *model.Node {
	t.Helper()
	node, created, err := InsertNode(context.Background(), gdb, &model.Node{ID: nodeID, OwnerID: ownerID})
	require.NoError(t, err)
	require.True(t, created)
	return node
}

func TestInsertNodeLoserReadsWinner(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)

	insertNode(t, gdb, "n-1", "alice")

	node, created, err := InsertNode(ctx, gdb, &model.Node{ID: "n-1", OwnerID: "mallory"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "alice", node.OwnerID)
}

func TestGetNodeMissing(t *testing.T) {
	node, err := GetNode(context.Background(), newTestDB(t), "missing")
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestIncrementNodeUsageAccumulates(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	insertNode(t, gdb, "n-1", "alice")

	require.NoError(t, IncrementNodeUsage(ctx, gdb, "n-1", 2.5))
	require.NoError(t, IncrementNodeUsage(ctx, gdb, "n-1", 7.5))

	node, err := GetNode(ctx, gdb, "n-1")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, node.AccumulatedUsageMinutes, 1e-9)
}

func TestUpdatesReportMissingNode(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)

	assert.True(t, errors.Is(SuspendNode(ctx, gdb, "missing"), ErrNodeNotFound))
	assert.True(t, errors.Is(IncrementNodeUsage(ctx, gdb, "missing", 1), ErrNodeNotFound))
	assert.True(t, errors.Is(SetContainerRef(ctx, gdb, "missing", nil), ErrNodeNotFound))
}

func TestSuspendAndReactivateNode(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	insertNode(t, gdb, "n-1", "alice")

	require.NoError(t, SuspendNode(ctx, gdb, "n-1"))
	require.NoError(t, SuspendNode(ctx, gdb, "n-1"))
	node, err := GetNode(ctx, gdb, "n-1")
	require.NoError(t, err)
	assert.True(t, node.IsSuspended)

	require.NoError(t, ReactivateNode(ctx, gdb, "n-1"))
	node, err = GetNode(ctx, gdb, "n-1")
	require.NoError(t, err)
	assert.False(t, node.IsSuspended)
}

func TestSetContainerRef(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	insertNode(t, gdb, "n-1", "alice")

	ref := "ctr-42"
	require.NoError(t, SetContainerRef(ctx, gdb, "n-1", &ref))
	node, err := GetNode(ctx, gdb, "n-1")
	require.NoError(t, err)
	require.NotNil(t, node.ContainerRef)
	assert.Equal(t, "ctr-42", *node.ContainerRef)

	require.NoError(t, SetContainerRef(ctx, gdb, "n-1", nil))
	node, err = GetNode(ctx, gdb, "n-1")
	require.NoError(t, err)
	assert.Nil(t, node.ContainerRef)
}

func TestAttachContainer(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	insertNode(t, gdb, "n-1", "alice")

	attached, err := AttachContainer(ctx, gdb, "n-1", "ctr-1")
	require.NoError(t, err)
	assert.True(t, attached)

	require.NoError(t, SuspendNode(ctx, gdb, "n-1"))
	attached, err = AttachContainer(ctx, gdb, "n-1", "ctr-2")
	require.NoError(t, err)
	assert.False(t, attached)

	node, err := GetNode(ctx, gdb, "n-1")
	require.NoError(t, err)
	require.NotNil(t, node.ContainerRef)
	assert.Equal(t, "ctr-1", *node.ContainerRef)

	attached, err = AttachContainer(ctx, gdb, "missing", "ctr-3")
	require.NoError(t, err)
	assert.False(t, attached)
}

func TestCountActiveNodes(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	insertNode(t, gdb, "n-1", "alice")
	insertNode(t, gdb, "n-2", "alice")
	insertNode(t, gdb, "n-3", "alice")
	insertNode(t, gdb, "n-4", "bob")
	require.NoError(t, SuspendNode(ctx, gdb, "n-3"))

	count, err := CountActiveNodes(ctx, gdb, "alice", "n-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = CountActiveNodes(ctx, gdb, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestOpenSessionRejectsSecondOpenSession(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	insertNode(t, gdb, "n-1", "alice")
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	opened, err := OpenSession(ctx, gdb, &model.ResourceSession{ID: "s-1", NodeID: "n-1", ParticipantRef: "p-1", StartedAt: started})
	require.NoError(t, err)
	assert.True(t, opened)

	opened, err = OpenSession(ctx, gdb, &model.ResourceSession{ID: "s-2", NodeID: "n-1", ParticipantRef: "p-1", StartedAt: started})
	require.NoError(t, err)
	assert.False(t, opened)

	var count int64
	require.NoError(t, gdb.Model(&model.ResourceSession{}).Where("ended_at IS NULL").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCloseSessionAddsUsageExactlyOnce(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	insertNode(t, gdb, "n-1", "alice")
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ended := started.Add(30 * time.Minute)

	_, err := OpenSession(ctx, gdb, &model.ResourceSession{ID: "s-1", NodeID: "n-1", ParticipantRef: "p-1", StartedAt: started})
	require.NoError(t, err)

	session, err := FindOpenSession(ctx, gdb, "n-1", "p-1")
	require.NoError(t, err)
	require.NotNil(t, session)

	closed, err := CloseSession(ctx, gdb, session, ended, 1800, false)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = CloseSession(ctx, gdb, session, ended, 1800, false)
	require.NoError(t, err)
	assert.False(t, closed)

	node, err := GetNode(ctx, gdb, "n-1")
	require.NoError(t, err)
	assert.InDelta(t, 30.0, node.AccumulatedUsageMinutes, 1e-9)

	session, err = FindOpenSession(ctx, gdb, "n-1", "p-1")
	require.NoError(t, err)
	assert.Nil(t, session)

	total, err := SumClosedSessionMinutes(ctx, gdb, "n-1")
	require.NoError(t, err)
	assert.InDelta(t, 30.0, total, 1e-9)
}

func TestConcurrentCloseSessionSumsExactly(t *testing.T) {
	ctx := context.Background()
	gdb := newFileTestDB(t, 8)
	insertNode(t, gdb, "n-1", "alice")
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	const sessionCount = 40
	sessions := make([]*model.ResourceSession, sessionCount)
	expected := 0.0
	for i := range sessions {
		sessions[i] = &model.ResourceSession{
			ID:             fmt.Sprintf("s-%d", i),
			NodeID:         "n-1",
			ParticipantRef: fmt.Sprintf("p-%d", i),
			StartedAt:      started,
		}
		opened, err := OpenSession(ctx, gdb, sessions[i])
		require.NoError(t, err)
		require.True(t, opened)
		expected += float64(i + 1)
	}

	// Every session is closed twice to model redelivered end events.
	var wg sync.WaitGroup
	var mu sync.Mutex
	closedCount := 0
	for i := 0; i < 2*sessionCount; i++ {
		wg.Add(1)
		go func(session *model.ResourceSession, minutes int) {
			defer wg.Done()
			ended := started.Add(time.Duration(minutes) * time.Minute)
			closed, err := CloseSession(ctx, gdb, session, ended, float64(minutes*60), false)
			if assert.NoError(t, err) && closed {
				mu.Lock()
				closedCount++
				mu.Unlock()
			}
		}(sessions[i%sessionCount], i%sessionCount+1)
	}
	wg.Wait()

	assert.Equal(t, sessionCount, closedCount)

	node, err := GetNode(ctx, gdb, "n-1")
	require.NoError(t, err)
	assert.InDelta(t, expected, node.AccumulatedUsageMinutes, 1e-9)

	total, err := SumClosedSessionMinutes(ctx, gdb, "n-1")
	require.NoError(t, err)
	assert.InDelta(t, expected, total, 1e-9)
}

func TestCloseSessionRollsBackWhenNodeIsMissing(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	session := &model.ResourceSession{ID: "s-1", NodeID: "ghost", ParticipantRef: "p-1", StartedAt: started}
	_, err := OpenSession(ctx, gdb, session)
	require.NoError(t, err)

	closed, err := CloseSession(ctx, gdb, session, started.Add(time.Minute), 60, false)
	assert.Error(t, err)
	assert.False(t, closed)

	open, err := FindOpenSession(ctx, gdb, "ghost", "p-1")
	require.NoError(t, err)
	assert.NotNil(t, open, "the session update should have been rolled back")
}

func TestSessionCanReopenAfterClose(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	insertNode(t, gdb, "n-1", "alice")
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := &model.ResourceSession{ID: "s-1", NodeID: "n-1", ParticipantRef: "p-1", StartedAt: started}
	_, err := OpenSession(ctx, gdb, first)
	require.NoError(t, err)
	_, err = CloseSession(ctx, gdb, first, started.Add(time.Minute), 60, false)
	require.NoError(t, err)

	opened, err := OpenSession(ctx, gdb, &model.ResourceSession{ID: "s-2", NodeID: "n-1", ParticipantRef: "p-1", StartedAt: started.Add(time.Hour)})
	require.NoError(t, err)
	assert.True(t, opened)

	sessions, err := ListSessions(ctx, gdb, "n-1", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s-2", sessions[0].ID)
}

func TestLatestSessionEnd(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	insertNode(t, gdb, "n-1", "alice")
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	latest, err := LatestSessionEnd(ctx, gdb, "n-1", "p-1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	open := &model.ResourceSession{ID: "s-1", NodeID: "n-1", ParticipantRef: "p-1", StartedAt: started}
	_, err = OpenSession(ctx, gdb, open)
	require.NoError(t, err)
	latest, err = LatestSessionEnd(ctx, gdb, "n-1", "p-1")
	require.NoError(t, err)
	assert.Nil(t, latest, "open sessions have no end")

	markerEnd := started.Add(time.Hour)
	zero := 0.0
	require.Error(t, InsertClosedSession(ctx, gdb, &model.ResourceSession{ID: "s-x", NodeID: "n-1", ParticipantRef: "p-1", StartedAt: markerEnd}))
	require.NoError(t, InsertClosedSession(ctx, gdb, &model.ResourceSession{
		ID:               "s-2",
		NodeID:           "n-1",
		ParticipantRef:   "p-1",
		StartedAt:        markerEnd,
		EndedAt:          &markerEnd,
		DurationSeconds:  &zero,
		EndedBeforeStart: true,
	}))
	_, err = CloseSession(ctx, gdb, open, started.Add(time.Minute), 60, false)
	require.NoError(t, err)

	latest, err = LatestSessionEnd(ctx, gdb, "n-1", "p-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, markerEnd.Equal(*latest))

	latest, err = LatestSessionEnd(ctx, gdb, "n-1", "p-2")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestTiersAndSubscriptions(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)

	require.NoError(t, SaveTier(ctx, gdb, &model.TierDefinition{ID: "pro", DisplayName: "Pro", ResourceCapMinutes: 1000, NodeLimit: 3, IsActive: true}))
	require.NoError(t, SaveTier(ctx, gdb, &model.TierDefinition{ID: "pro", DisplayName: "Pro+", ResourceCapMinutes: 1200, NodeLimit: 3, IsActive: true}))

	tier, err := GetTier(ctx, gdb, "pro")
	require.NoError(t, err)
	require.NotNil(t, tier)
	assert.Equal(t, "Pro+", tier.DisplayName)
	assert.Equal(t, 1200.0, tier.ResourceCapMinutes)

	exists, err := CheckTierExistence(ctx, gdb, "enterprise")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, SaveSubscription(ctx, gdb, &model.Subscription{OwnerID: "alice", TierID: "pro"}))
	subscription, err := GetSubscription(ctx, gdb, "alice")
	require.NoError(t, err)
	require.NotNil(t, subscription)
	require.NotNil(t, subscription.Tier)
	assert.Equal(t, 3, subscription.Tier.NodeLimit)

	missing, err := GetSubscription(ctx, gdb, "bob")
	require.NoError(t, err)
	assert.Nil(t, missing)

	subscriptions, count, err := ListSubscriptions(ctx, gdb, &SubscriptionListingParams{Limit: 10, Search: "ali"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.Len(t, subscriptions, 1)
	assert.Equal(t, "alice", subscriptions[0].OwnerID)
}

func TestStrikes(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"st-1", "st-2", "st-3"} {
		err := CreateStrike(ctx, gdb, &model.SecurityStrike{
			ID:            id,
			OwnerID:       "alice",
			NodeID:        "n-1",
			ViolationType: model.ViolationIllegalEgress,
			Details:       "pattern=nmap",
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
			Severity:      model.SeverityHigh,
		})
		require.NoError(t, err)
	}

	strikes, count, err := ListStrikes(ctx, gdb, "alice", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	require.Len(t, strikes, 2)
	assert.Equal(t, "st-3", strikes[0].ID)

	// A strike is write-once; inserting the same identifier again fails.
	err = CreateStrike(ctx, gdb, &model.SecurityStrike{ID: "st-1", OwnerID: "alice", Timestamp: base})
	assert.Error(t, err)
}
