package admission

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cyverse/ngs/internal/apperr"
	"github.com/cyverse/ngs/internal/capability"
	"github.com/cyverse/ngs/internal/lifecycle"
	"github.com/cyverse/ngs/internal/memstore"
	"github.com/cyverse/ngs/internal/metering"
	"github.com/cyverse/ngs/internal/model"
	"github.com/cyverse/ngs/internal/model/timestamp"
	"github.com/cyverse/ngs/internal/orchestrator"
	"github.com/cyverse/ngs/internal/registry"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrchestrator struct {
	mu      sync.Mutex
	err     error
	started []orchestrator.ContainerConfig
	stopped []string

	// beforeStart runs without the lock held, just before a container is reported as started.
	beforeStart func(ctx context.Context, cfg *orchestrator.ContainerConfig)
	ref         string
}

func (f *fakeOrchestrator) StartContainer(ctx context.Context, cfg *orchestrator.ContainerConfig) (string, error) {
	if f.beforeStart != nil {
		f.beforeStart(ctx, cfg)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.started = append(f.started, *cfg)
	if f.ref != "" {
		return f.ref, nil
	}
	return "ctr-" + cfg.Name, nil
}

func (f *fakeOrchestrator) StopContainer(_ context.Context, containerRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, containerRef)
	return nil
}

func (f *fakeOrchestrator) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeOrchestrator) last() orchestrator.ContainerConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started[len(f.started)-1]
}

type fixture struct {
	store        *memstore.Store
	orchestrator *fakeOrchestrator
	minter       *capability.Minter
	controller   *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New()
	store.PutTier(model.TierDefinition{ID: "free", ResourceCapMinutes: 60, NodeLimit: 1, IsActive: true})
	store.PutTier(model.TierDefinition{ID: "pro", ResourceCapMinutes: 1000, NodeLimit: 3, IsActive: true})
	store.PutTier(model.TierDefinition{ID: "enterprise", ResourceCapMinutes: model.Unlimited, NodeLimit: model.Unlimited, IsActive: true})
	store.PutSubscription(model.Subscription{OwnerID: "alice", TierID: "pro"})

	minter, err := capability.NewMinter(capability.Config{APIKey: "key", APISecret: "secret", TTL: time.Hour})
	require.NoError(t, err)

	orch := &fakeOrchestrator{}
	controller := New(store, registry.New(store, "free"), minter, orch, Config{Image: "agent:latest"})
	return &fixture{store: store, orchestrator: orch, minter: minter, controller: controller}
}

func (f *fixture) putNode(nodeID, ownerID string, usage float64, suspended bool) {
	f.store.PutNode(model.Node{ID: nodeID, OwnerID: ownerID, AccumulatedUsageMinutes: usage, IsSuspended: suspended})
}

func (f *fixture) activate(ownerID, nodeID string) (*ActivationResult, error) {
	return f.controller.Activate(context.Background(), &ActivateRequest{OwnerID: ownerID, NodeID: nodeID})
}

func TestResourceCapBoundaries(t *testing.T) {
	cases := []struct {
		usage   float64
		enabled bool
	}{
		{usage: 0, enabled: true},
		{usage: 999, enabled: true},
		{usage: 1000, enabled: false},
		{usage: 1001, enabled: false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("usage %v", tc.usage), func(t *testing.T) {
			f := newFixture(t)
			f.putNode("n-1", "alice", tc.usage, false)

			result, err := f.activate("alice", "n-1")
			require.NoError(t, err)
			assert.Equal(t, tc.enabled, result.ResourceEnabled)

			claims, err := f.minter.Parse(result.Token)
			require.NoError(t, err)
			assert.Equal(t, tc.enabled, claims.Video.Publishes())
			assert.True(t, claims.Video.Subscribes())

			injected := f.orchestrator.last().Capability
			if tc.enabled {
				assert.Equal(t, result.Token, injected)
			} else {
				assert.Equal(t, capability.DisabledMarker, injected)
			}
		})
	}
}

func TestActivateCreatesNode(t *testing.T) {
	f := newFixture(t)

	result, err := f.activate("alice", "")
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.NotEmpty(t, result.NodeID)
	assert.True(t, result.ResourceEnabled)
	assert.Equal(t, "ctr-node-"+result.NodeID, result.ContainerRef)

	node, err := f.store.GetNode(context.Background(), result.NodeID)
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, "alice", node.OwnerID)
	require.NotNil(t, node.ContainerRef)
	assert.Equal(t, result.ContainerRef, *node.ContainerRef)

	started := f.orchestrator.last()
	assert.Equal(t, orchestrator.ContainerName(result.NodeID), started.Name)
	assert.Equal(t, "agent:latest", started.Image)
	assert.Equal(t, capability.Room(result.NodeID), started.Room)
}

func TestSuspendedNodeIsRejected(t *testing.T) {
	f := newFixture(t)
	f.store.PutSubscription(model.Subscription{OwnerID: "alice", TierID: "enterprise"})
	f.putNode("n-1", "alice", 0, true)

	_, err := f.activate("alice", "n-1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	assert.Contains(t, err.Error(), "node suspended")
	assert.Zero(t, f.store.Calls("CountActiveNodes"))
	assert.Empty(t, f.orchestrator.started)
}

func TestSuspensionDuringActivationWins(t *testing.T) {
	f := newFixture(t)
	f.putNode("n-1", "alice", 0, false)

	kill := lifecycle.New(f.store, f.orchestrator, lifecycle.NewAdministrators(nil))
	f.orchestrator.ref = "ctr-new"
	f.orchestrator.beforeStart = func(ctx context.Context, cfg *orchestrator.ContainerConfig) {
		_, err := kill.Suspend(ctx, &lifecycle.SuspendRequest{NodeID: cfg.NodeID, RequestedBy: "alice"})
		require.NoError(t, err)
	}

	_, err := f.activate("alice", "n-1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	node, err := f.store.GetNode(context.Background(), "n-1")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.True(t, node.IsSuspended)
	assert.Nil(t, node.ContainerRef)
	assert.Equal(t, []string{"ctr-new"}, f.orchestrator.stopped)
}

func TestForeignNodeIsRejected(t *testing.T) {
	f := newFixture(t)
	f.putNode("n-1", "bob", 0, false)

	_, err := f.activate("alice", "n-1")
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
}

func TestNodeLimit(t *testing.T) {
	f := newFixture(t)
	f.putNode("n-1", "carol", 0, false)

	// The default tier allows one node; carol already has it.
	_, err := f.activate("carol", "n-2")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindQuotaExceeded))

	node, err := f.store.GetNode(context.Background(), "n-2")
	require.NoError(t, err)
	assert.Nil(t, node)

	// Reactivating the node carol already has is allowed.
	_, err = f.activate("carol", "n-1")
	assert.NoError(t, err)
}

func TestSuspendedNodesDoNotCountTowardTheLimit(t *testing.T) {
	f := newFixture(t)
	f.putNode("n-1", "carol", 0, true)

	result, err := f.activate("carol", "n-2")
	require.NoError(t, err)
	assert.True(t, result.Created)
}

func TestProvisioningFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.orchestrator.fail(errors.New("connection refused"))

	_, err := f.activate("alice", "n-1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindProvisioning))
	assert.True(t, apperr.Retryable(err))

	node, err := f.store.GetNode(context.Background(), "n-1")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.False(t, node.IsSuspended)
	assert.False(t, node.HasContainer())

	f.orchestrator.fail(nil)
	result, err := f.activate("alice", "n-1")
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, "ctr-node-n-1", result.ContainerRef)

	nodes, err := f.store.ListNodes(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestStorageFailure(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn("GetNode", errors.New("connection refused"))

	_, err := f.activate("alice", "n-1")
	assert.True(t, apperr.Is(err, apperr.KindStorage))
}

func TestConcurrentActivationsCreateOneNode(t *testing.T) {
	f := newFixture(t)

	const requests = 20
	var wg sync.WaitGroup
	results := make([]*ActivationResult, requests)
	errs := make([]error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.activate("alice", "n-race")
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < requests; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "n-race", results[i].NodeID)
		if results[i].Created {
			created++
		}
	}
	assert.Equal(t, 1, created)

	nodes, err := f.store.ListNodes(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestQuotaExhaustionEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	consumer := metering.NewConsumer(f.store)

	first, err := f.activate("alice", "n-1")
	require.NoError(t, err)
	assert.True(t, first.ResourceEnabled)

	begin := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sessions := map[string]time.Duration{"p-1": 600 * time.Minute, "p-2": 405 * time.Minute}
	for participant, length := range sessions {
		_, err = consumer.SessionStarted(ctx, &metering.SessionStarted{
			NodeID: "n-1", ParticipantRef: participant, At: timestamp.Timestamp(begin),
		})
		require.NoError(t, err)
		_, err = consumer.SessionEnded(ctx, &metering.SessionEnded{
			NodeID: "n-1", ParticipantRef: participant, At: timestamp.Timestamp(begin.Add(length)),
		})
		require.NoError(t, err)
	}

	second, err := f.activate("alice", "n-1")
	require.NoError(t, err)
	assert.False(t, second.ResourceEnabled)
	assert.NotEmpty(t, second.ContainerRef)

	claims, err := f.minter.Parse(second.Token)
	require.NoError(t, err)
	assert.False(t, claims.Video.Publishes())
	assert.True(t, claims.Video.Subscribes())
}
