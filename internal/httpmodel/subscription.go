package httpmodel

import (
	"fmt"

	"github.com/cyverse/ngs/internal/model"
)

// SubscriptionRequest
//
// swagger:model
type SubscriptionRequest struct {

	// The identifier of the tier to subscribe to
	//
	// required: true
	TierID string `json:"tier_id" validate:"required"`

	// Snapshot the tier's current limits onto the subscription so that later tier edits do not affect it
	Snapshot bool `json:"snapshot"`

	// The reference used by the external billing system
	ExternalBillingRef *string `json:"external_billing_ref"`
}

// ToDBModel converts a subscription request for an owner and tier to its equivalent database model.
func (r SubscriptionRequest) ToDBModel(ownerID string, tier *model.TierDefinition) (*model.Subscription, error) {
	if tier.ID != r.TierID {
		return nil, fmt.Errorf("tier %s does not match the requested tier %s", tier.ID, r.TierID)
	}

	subscription := &model.Subscription{
		OwnerID:            ownerID,
		TierID:             tier.ID,
		ExternalBillingRef: r.ExternalBillingRef,
	}
	if r.Snapshot {
		capMinutes := tier.ResourceCapMinutes
		nodeLimit := tier.NodeLimit
		subscription.ResourceCapMinutes = &capMinutes
		subscription.NodeLimit = &nodeLimit
	}
	return subscription, nil
}

// Principal identifies the user performing an operation.
//
// swagger:model
type Principal struct {

	// The user performing the operation
	//
	// required: true
	RequestedBy string `json:"requested_by" validate:"required"`
}
