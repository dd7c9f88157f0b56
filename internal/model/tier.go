package model

import "time"

// Unlimited is the sentinel value used for resource caps and node limits that do not apply.
const Unlimited = -1

// TierDefinition is a named bundle of quota limits.
//
// swagger:model
type TierDefinition struct {
	// The tier identifier
	//
	// required: true
	ID string `gorm:"column:tier_id;type:text;primaryKey" json:"tier_id"`

	// The name displayed to users
	//
	// required: true
	DisplayName string `gorm:"type:text;not null" json:"display_name"`

	// The number of metered resource minutes a node may consume; -1 means unlimited
	ResourceCapMinutes float64 `gorm:"not null" json:"resource_cap_minutes"`

	// The maximum number of concurrent, non-suspended nodes per owner; -1 means unlimited
	NodeLimit int `gorm:"not null" json:"node_limit"`

	// Indicates whether or not the tier may be assigned to new subscriptions
	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	// readOnly: true
	CreatedAt time.Time `json:"created_at"`

	// readOnly: true
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name to use the database.
func (t *TierDefinition) TableName() string {
	return "tiers"
}

// HasUnlimitedResource returns true if the tier does not cap resource usage.
func (t *TierDefinition) HasUnlimitedResource() bool {
	return t.ResourceCapMinutes == Unlimited
}
