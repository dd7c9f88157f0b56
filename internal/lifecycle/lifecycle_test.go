package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cyverse/ngs/internal/admission"
	"github.com/cyverse/ngs/internal/apperr"
	"github.com/cyverse/ngs/internal/capability"
	"github.com/cyverse/ngs/internal/memstore"
	"github.com/cyverse/ngs/internal/model"
	"github.com/cyverse/ngs/internal/orchestrator"
	"github.com/cyverse/ngs/internal/registry"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrchestrator struct {
	mu      sync.Mutex
	stopErr error
	stopped []string
}

func (f *fakeOrchestrator) StartContainer(_ context.Context, cfg *orchestrator.ContainerConfig) (string, error) {
	return "ctr-" + cfg.NodeID, nil
}

func (f *fakeOrchestrator) StopContainer(_ context.Context, containerRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopped = append(f.stopped, containerRef)
	return nil
}

func withContainer(nodeID, ownerID, containerRef string) model.Node {
	return model.Node{ID: nodeID, OwnerID: ownerID, ContainerRef: &containerRef}
}

func getNode(t *testing.T, store *memstore.Store, nodeID string) *model.Node {
	t.Helper()
	node, err := store.GetNode(context.Background(), nodeID)
	require.NoError(t, err)
	require.NotNil(t, node)
	return node
}

func TestSuspendByOwner(t *testing.T) {
	store := memstore.New()
	store.PutNode(withContainer("n-1", "alice", "ctr-1"))
	orch := &fakeOrchestrator{}
	controller := New(store, orch, NewAdministrators(nil))

	result, err := controller.Suspend(context.Background(), &SuspendRequest{NodeID: "n-1", RequestedBy: "alice"})
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.True(t, result.ContainerStopped)
	assert.Empty(t, result.TerminationWarning)
	assert.Equal(t, []string{"ctr-1"}, orch.stopped)

	node := getNode(t, store, "n-1")
	assert.True(t, node.IsSuspended)
	assert.False(t, node.HasContainer())
}

func TestSuspendByAdministrator(t *testing.T) {
	store := memstore.New()
	store.PutNode(model.Node{ID: "n-1", OwnerID: "alice"})
	controller := New(store, &fakeOrchestrator{}, NewAdministrators([]string{"root"}))

	result, err := controller.Suspend(context.Background(), &SuspendRequest{NodeID: "n-1", RequestedBy: "root"})
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.False(t, result.ContainerStopped)
	assert.True(t, getNode(t, store, "n-1").IsSuspended)
}

func TestSuspendByStrangerIsRejected(t *testing.T) {
	store := memstore.New()
	store.PutNode(model.Node{ID: "n-1", OwnerID: "alice"})
	controller := New(store, &fakeOrchestrator{}, NewAdministrators([]string{"root"}))

	_, err := controller.Suspend(context.Background(), &SuspendRequest{NodeID: "n-1", RequestedBy: "mallory"})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	_, err = controller.Suspend(context.Background(), &SuspendRequest{NodeID: "n-1"})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	assert.False(t, getNode(t, store, "n-1").IsSuspended)
	assert.Zero(t, store.Calls("SuspendNode"))
}

func TestSuspendUnknownNode(t *testing.T) {
	controller := New(memstore.New(), &fakeOrchestrator{}, NewAdministrators(nil))

	_, err := controller.Suspend(context.Background(), &SuspendRequest{NodeID: "n-404", RequestedBy: "alice"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestStopFailureKeepsSuspension(t *testing.T) {
	store := memstore.New()
	store.PutNode(withContainer("n-1", "alice", "ctr-1"))
	orch := &fakeOrchestrator{stopErr: errors.New("orchestrator unavailable")}
	controller := New(store, orch, NewAdministrators(nil))

	result, err := controller.Suspend(context.Background(), &SuspendRequest{NodeID: "n-1", RequestedBy: "alice"})
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.False(t, result.ContainerStopped)
	assert.Contains(t, result.TerminationWarning, "orchestrator unavailable")

	node := getNode(t, store, "n-1")
	assert.True(t, node.IsSuspended)
	assert.True(t, node.HasContainer())
}

// lateAttachStore attaches a container just before the suspension flag is written.
type lateAttachStore struct {
	*memstore.Store
	containerRef string
}

func (s *lateAttachStore) SuspendNode(ctx context.Context, nodeID string) error {
	if _, err := s.AttachContainer(ctx, nodeID, s.containerRef); err != nil {
		return err
	}
	return s.Store.SuspendNode(ctx, nodeID)
}

func TestSuspendStopsContainerAttachedBeforeTheFlag(t *testing.T) {
	store := memstore.New()
	store.PutNode(model.Node{ID: "n-1", OwnerID: "alice"})
	orch := &fakeOrchestrator{}
	controller := New(&lateAttachStore{Store: store, containerRef: "ctr-late"}, orch, NewAdministrators(nil))

	result, err := controller.Suspend(context.Background(), &SuspendRequest{NodeID: "n-1", RequestedBy: "alice"})
	require.NoError(t, err)
	assert.True(t, result.ContainerStopped)
	assert.Equal(t, []string{"ctr-late"}, orch.stopped)
	assert.False(t, getNode(t, store, "n-1").HasContainer())
}

func TestSuspendStorageFailure(t *testing.T) {
	store := memstore.New()
	store.PutNode(withContainer("n-1", "alice", "ctr-1"))
	orch := &fakeOrchestrator{}
	store.FailOn("SuspendNode", errors.New("connection refused"))
	controller := New(store, orch, NewAdministrators(nil))

	_, err := controller.Suspend(context.Background(), &SuspendRequest{NodeID: "n-1", RequestedBy: "alice"})
	assert.True(t, apperr.Is(err, apperr.KindStorage))
	assert.Empty(t, orch.stopped)
}

func TestConcurrentSuspensionsConverge(t *testing.T) {
	store := memstore.New()
	store.PutNode(withContainer("n-1", "alice", "ctr-1"))
	controller := New(store, &fakeOrchestrator{}, NewAdministrators([]string{"root"}))

	var wg sync.WaitGroup
	for _, requester := range []string{"alice", "root", "alice", "root"} {
		wg.Add(1)
		go func(requester string) {
			defer wg.Done()
			result, err := controller.Suspend(context.Background(), &SuspendRequest{NodeID: "n-1", RequestedBy: requester})
			assert.NoError(t, err)
			assert.True(t, result.OK)
		}(requester)
	}
	wg.Wait()

	assert.True(t, getNode(t, store, "n-1").IsSuspended)
}

func TestSuspensionIsSticky(t *testing.T) {
	store := memstore.New()
	store.PutTier(model.TierDefinition{ID: "enterprise", ResourceCapMinutes: model.Unlimited, NodeLimit: model.Unlimited, IsActive: true})
	store.PutSubscription(model.Subscription{OwnerID: "alice", TierID: "enterprise"})
	orch := &fakeOrchestrator{}

	minter, err := capability.NewMinter(capability.Config{APIKey: "key", APISecret: "secret", TTL: time.Hour})
	require.NoError(t, err)
	activation := admission.New(store, registry.New(store, "enterprise"), minter, orch, admission.Config{})
	killSwitch := New(store, orch, NewAdministrators([]string{"root"}))
	admin := NewAdmin(store, NewAdministrators([]string{"root"}))
	ctx := context.Background()

	_, err = activation.Activate(ctx, &admission.ActivateRequest{OwnerID: "alice", NodeID: "n-1"})
	require.NoError(t, err)

	_, err = killSwitch.Suspend(ctx, &SuspendRequest{NodeID: "n-1", RequestedBy: "alice"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = activation.Activate(ctx, &admission.ActivateRequest{OwnerID: "alice", NodeID: "n-1"})
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	}

	// Only an administrator can lift the suspension.
	_, err = admin.Reactivate(ctx, &AdminRequest{NodeID: "n-1", RequestedBy: "alice"})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	node, err := admin.Reactivate(ctx, &AdminRequest{NodeID: "n-1", RequestedBy: "root"})
	require.NoError(t, err)
	assert.False(t, node.IsSuspended)

	_, err = activation.Activate(ctx, &admission.ActivateRequest{OwnerID: "alice", NodeID: "n-1"})
	assert.NoError(t, err)
}

func TestResetUsage(t *testing.T) {
	store := memstore.New()
	store.PutNode(model.Node{ID: "n-1", OwnerID: "alice", AccumulatedUsageMinutes: 1005})
	admin := NewAdmin(store, NewAdministrators([]string{"root"}))

	_, err := admin.ResetUsage(context.Background(), &AdminRequest{NodeID: "n-1", RequestedBy: "alice"})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	assert.Equal(t, 1005.0, getNode(t, store, "n-1").AccumulatedUsageMinutes)

	node, err := admin.ResetUsage(context.Background(), &AdminRequest{NodeID: "n-1", RequestedBy: "root"})
	require.NoError(t, err)
	assert.Zero(t, node.AccumulatedUsageMinutes)

	_, err = admin.ResetUsage(context.Background(), &AdminRequest{NodeID: "n-404", RequestedBy: "root"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
