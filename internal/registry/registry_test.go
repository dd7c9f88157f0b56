package registry

import (
	"context"
	"testing"

	"github.com/cyverse/ngs/internal/apperr"
	"github.com/cyverse/ngs/internal/memstore"
	"github.com/cyverse/ngs/internal/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() *memstore.Store {
	store := memstore.New()
	store.PutTier(model.TierDefinition{ID: "free", DisplayName: "Free", ResourceCapMinutes: 60, NodeLimit: 1, IsActive: true})
	store.PutTier(model.TierDefinition{ID: "pro", DisplayName: "Pro", ResourceCapMinutes: 1000, NodeLimit: 3, IsActive: true})
	store.PutTier(model.TierDefinition{ID: "enterprise", DisplayName: "Enterprise", ResourceCapMinutes: model.Unlimited, NodeLimit: model.Unlimited, IsActive: true})
	return store
}

func TestResourceEnabledBoundaries(t *testing.T) {
	assert.True(t, ResourceEnabled(999, 1000))
	assert.False(t, ResourceEnabled(1000, 1000))
	assert.False(t, ResourceEnabled(1001, 1000))
	assert.True(t, ResourceEnabled(0, 1000))
	assert.False(t, ResourceEnabled(0, 0))
	assert.True(t, ResourceEnabled(1e9, model.Unlimited))
}

func TestNodeLimitReached(t *testing.T) {
	assert.False(t, NodeLimitReached(2, 3))
	assert.True(t, NodeLimitReached(3, 3))
	assert.True(t, NodeLimitReached(4, 3))
	assert.False(t, NodeLimitReached(1000, model.Unlimited))
}

func TestGetTier(t *testing.T) {
	r := New(newStore(), "free")

	tier, err := r.GetTier(context.Background(), "pro")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, tier.ResourceCapMinutes)

	_, err = r.GetTier(context.Background(), "platinum")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGetSubscriptionFallsBackToDefaultTier(t *testing.T) {
	r := New(newStore(), "free")

	subscription, err := r.GetSubscription(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, subscription.IsDefault)
	assert.Equal(t, "free", subscription.TierID)
	assert.Equal(t, "alice", subscription.OwnerID)
}

func TestEffectiveLimitsFromTier(t *testing.T) {
	store := newStore()
	store.PutSubscription(model.Subscription{OwnerID: "alice", TierID: "pro"})
	r := New(store, "free")

	limits, err := r.EffectiveLimits(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "pro", limits.TierID)
	assert.Equal(t, 1000.0, limits.ResourceCapMinutes)
	assert.Equal(t, 3, limits.NodeLimit)
	assert.Equal(t, SourceTier, limits.CapSource)
	assert.False(t, limits.IsDefault)

	assert.True(t, limits.ResourceEnabled(999))
	assert.False(t, limits.ResourceEnabled(1000))
}

func TestEffectiveLimitsPreferSnapshot(t *testing.T) {
	store := newStore()
	capMinutes := 1500.0
	nodeLimit := 5
	store.PutSubscription(model.Subscription{OwnerID: "alice", TierID: "pro", ResourceCapMinutes: &capMinutes, NodeLimit: &nodeLimit})
	r := New(store, "free")

	limits, err := r.EffectiveLimits(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, limits.ResourceCapMinutes)
	assert.Equal(t, 5, limits.NodeLimit)
	assert.Equal(t, SourceSnapshot, limits.CapSource)
	assert.Equal(t, SourceSnapshot, limits.NodeLimitSource)
}

func TestEffectiveLimitsDefaultTier(t *testing.T) {
	r := New(newStore(), "free")

	limits, err := r.EffectiveLimits(context.Background(), "bob")
	require.NoError(t, err)
	assert.True(t, limits.IsDefault)
	assert.Equal(t, 60.0, limits.ResourceCapMinutes)
	assert.Equal(t, 1, limits.NodeLimit)
}

func TestEffectiveLimitsMissingDefaultTier(t *testing.T) {
	r := New(memstore.New(), "free")

	_, err := r.EffectiveLimits(context.Background(), "bob")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestStorageFailuresAreClassified(t *testing.T) {
	store := newStore()
	store.FailOn("GetSubscription", errors.New("connection refused"))
	r := New(store, "free")

	_, err := r.EffectiveLimits(context.Background(), "alice")
	assert.True(t, apperr.Is(err, apperr.KindStorage))
}
