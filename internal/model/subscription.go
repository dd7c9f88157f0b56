package model

import "time"

// Subscription binds an owner to a tier.
//
// swagger:model
type Subscription struct {
	// The owner identifier
	//
	// required: true
	OwnerID string `gorm:"type:text;primaryKey" json:"owner_id"`

	// The identifier of the tier associated with the subscription
	//
	// required: true
	TierID string `gorm:"type:text;not null" json:"tier_id"`

	// The tier associated with the subscription
	Tier *TierDefinition `gorm:"foreignKey:TierID;references:ID" json:"tier,omitempty"`

	// The resource cap copied at purchase time. Takes precedence over the tier's cap when present.
	ResourceCapMinutes *float64 `json:"resource_cap_minutes,omitempty"`

	// The node limit copied at purchase time. Takes precedence over the tier's node limit when present.
	NodeLimit *int `json:"node_limit,omitempty"`

	// The reference used by the external billing system
	ExternalBillingRef *string `gorm:"type:text" json:"external_billing_ref,omitempty"`

	// True if this subscription was not found in the database and the default tier was substituted.
	IsDefault bool `gorm:"-" json:"is_default"`

	// readOnly: true
	CreatedAt time.Time `json:"created_at"`

	// readOnly: true
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name to use the database.
func (s *Subscription) TableName() string {
	return "subscriptions"
}
