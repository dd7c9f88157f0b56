package httpmodel

import (
	"fmt"

	"github.com/cyverse/ngs/internal/model"
)

// Note: the names in the comments may deviate a bit from the actual structure names in order to avoid producing
// confusing Swagger docs.

// NewTier
//
// swagger:model
type NewTier struct {

	// The tier identifier; taken from the path when a tier is updated
	ID string `json:"tier_id"`

	// The name displayed to users
	//
	// required: true
	DisplayName string `json:"display_name"`

	// The number of metered resource minutes a node may consume; -1 means unlimited
	//
	// required: true
	ResourceCapMinutes float64 `json:"resource_cap_minutes"`

	// The maximum number of active nodes per owner; -1 means unlimited
	//
	// required: true
	NodeLimit int `json:"node_limit"`

	// Indicates whether or not the tier may be assigned to new subscriptions; defaults to true
	IsActive *bool `json:"is_active"`
}

// Validate verifies that all the required fields in a new tier are present.
func (t NewTier) Validate() error {

	// The identifier and display name are both required.
	if t.ID == "" {
		return fmt.Errorf("a tier ID is required")
	}
	if t.DisplayName == "" {
		return fmt.Errorf("a tier display name is required")
	}

	// Limits are either non-negative or the unlimited sentinel.
	if t.ResourceCapMinutes < 0 && t.ResourceCapMinutes != model.Unlimited {
		return fmt.Errorf("the resource cap must be at least zero or %d for unlimited", model.Unlimited)
	}
	if t.NodeLimit < 0 && t.NodeLimit != model.Unlimited {
		return fmt.Errorf("the node limit must be at least zero or %d for unlimited", model.Unlimited)
	}

	return nil
}

// ToDBModel converts a tier to its equivalent database model.
func (t NewTier) ToDBModel() model.TierDefinition {
	isActive := true
	if t.IsActive != nil {
		isActive = *t.IsActive
	}
	return model.TierDefinition{
		ID:                 t.ID,
		DisplayName:        t.DisplayName,
		ResourceCapMinutes: t.ResourceCapMinutes,
		NodeLimit:          t.NodeLimit,
		IsActive:           isActive,
	}
}
