// Package registry resolves the tier and quota limits that apply to an owner.
//
// The registry is the only place that decides which resource cap and node limit are in force. An owner without a
// subscription row is treated as subscribed to the configured default tier; the substitution is explicit and
// visible to callers through Subscription.IsDefault and Limits.Source.
package registry

import (
	"context"

	"github.com/cyverse/ngs/internal/apperr"
	"github.com/cyverse/ngs/internal/model"
	"github.com/cyverse/ngs/logging"
)

var log = logging.ForPackage("registry")

// Sources of an effective limit.
const (
	SourceTier     = "tier"
	SourceSnapshot = "subscription"
)

// Store is the persistence needed by the registry.
type Store interface {
	GetTier(ctx context.Context, tierID string) (*model.TierDefinition, error)
	GetSubscription(ctx context.Context, ownerID string) (*model.Subscription, error)
}

// Limits are the quota limits in force for an owner.
type Limits struct {
	OwnerID            string  `json:"owner_id"`
	TierID             string  `json:"tier_id"`
	ResourceCapMinutes float64 `json:"resource_cap_minutes"`
	NodeLimit          int     `json:"node_limit"`
	CapSource          string  `json:"cap_source"`
	NodeLimitSource    string  `json:"node_limit_source"`
	IsDefault          bool    `json:"is_default"`
}

// ResourceEnabled reports whether a node with the given usage may still consume the metered resource.
func (l Limits) ResourceEnabled(usageMinutes float64) bool {
	return ResourceEnabled(usageMinutes, l.ResourceCapMinutes)
}

// NodeLimitReached reports whether an owner with the given number of active nodes may not activate another.
func (l Limits) NodeLimitReached(activeNodes int64) bool {
	return NodeLimitReached(activeNodes, l.NodeLimit)
}

// ResourceEnabled returns true if usage is strictly below the cap. A node sitting exactly at its cap is denied.
func ResourceEnabled(usageMinutes, capMinutes float64) bool {
	if capMinutes == model.Unlimited {
		return true
	}
	return usageMinutes < capMinutes
}

// NodeLimitReached returns true if the count of active nodes is at or above the limit.
func NodeLimitReached(activeNodes int64, limit int) bool {
	if limit == model.Unlimited {
		return false
	}
	return activeNodes >= int64(limit)
}

// Registry looks up tiers and subscriptions.
type Registry struct {
	store         Store
	defaultTierID string
}

// New creates a registry that falls back to the given tier for owners without a subscription.
func New(store Store, defaultTierID string) *Registry {
	return &Registry{store: store, defaultTierID: defaultTierID}
}

// DefaultTierID returns the tier used for owners without a subscription.
func (r *Registry) DefaultTierID() string {
	return r.defaultTierID
}

// GetTier returns the tier with the given identifier.
func (r *Registry) GetTier(ctx context.Context, tierID string) (*model.TierDefinition, error) {
	tier, err := r.store.GetTier(ctx, tierID)
	if err != nil {
		return nil, apperr.Storage(err, "unable to look up tier %s", tierID)
	}
	if tier == nil {
		return nil, apperr.NotFound("tier %s not found", tierID)
	}
	return tier, nil
}

// GetSubscription returns the subscription for an owner. Owners that have never subscribed get a subscription to
// the default tier that is not stored in the database and has IsDefault set.
func (r *Registry) GetSubscription(ctx context.Context, ownerID string) (*model.Subscription, error) {
	subscription, err := r.store.GetSubscription(ctx, ownerID)
	if err != nil {
		return nil, apperr.Storage(err, "unable to look up the subscription for %s", ownerID)
	}
	if subscription != nil {
		return subscription, nil
	}

	log.WithField("owner", ownerID).Debugf("no subscription found; using the default tier %s", r.defaultTierID)
	return &model.Subscription{
		OwnerID:   ownerID,
		TierID:    r.defaultTierID,
		IsDefault: true,
	}, nil
}

// EffectiveLimits determines the resource cap and node limit in force for an owner. Values snapshotted onto the
// subscription take precedence; anything not snapshotted is read live from the subscription's tier, so tier edits
// apply to existing subscribers immediately.
func (r *Registry) EffectiveLimits(ctx context.Context, ownerID string) (*Limits, error) {
	subscription, err := r.GetSubscription(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	tier := subscription.Tier
	if tier == nil {
		if tier, err = r.GetTier(ctx, subscription.TierID); err != nil {
			return nil, err
		}
	}

	limits := &Limits{
		OwnerID:            ownerID,
		TierID:             tier.ID,
		ResourceCapMinutes: tier.ResourceCapMinutes,
		NodeLimit:          tier.NodeLimit,
		CapSource:          SourceTier,
		NodeLimitSource:    SourceTier,
		IsDefault:          subscription.IsDefault,
	}
	if subscription.ResourceCapMinutes != nil {
		limits.ResourceCapMinutes = *subscription.ResourceCapMinutes
		limits.CapSource = SourceSnapshot
	}
	if subscription.NodeLimit != nil {
		limits.NodeLimit = *subscription.NodeLimit
		limits.NodeLimitSource = SourceSnapshot
	}

	return limits, nil
}
