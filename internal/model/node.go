package model

import (
	"time"

	"gorm.io/datatypes"
)

// Node represents a single agent instance and its governance state.
//
// swagger:model
type Node struct {
	// The node identifier
	//
	// readOnly: true
	ID string `gorm:"column:node_id;type:text;primaryKey" json:"node_id"`

	// The identifier of the user who owns the node
	OwnerID string `gorm:"type:text;not null;index" json:"owner_id"`

	// The number of metered resource minutes the node has consumed. This value only ever increases except when
	// an administrator explicitly resets it.
	AccumulatedUsageMinutes float64 `gorm:"not null;default:0" json:"accumulated_usage_minutes"`

	// True if the node has been suspended by the kill switch
	IsSuspended bool `gorm:"not null;default:false" json:"is_suspended"`

	// The opaque identifier handed to the agent runtime
	ExternalAgentRef string `gorm:"type:text;not null;default:''" json:"external_agent_ref"`

	// The opaque identifier of the running container, if there is one
	ContainerRef *string `gorm:"type:text" json:"container_ref,omitempty"`

	// The external messaging channels bound to the node
	ChannelConfig datatypes.JSONMap `json:"channel_config,omitempty"`

	// The date and time the node was created
	//
	// readOnly: true
	CreatedAt time.Time `json:"created_at"`

	// The date and time the node was last modified
	//
	// readOnly: true
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name to use the database.
func (n *Node) TableName() string {
	return "nodes"
}

// HasContainer returns true if a running container is recorded for the node.
func (n *Node) HasContainer() bool {
	return n.ContainerRef != nil && *n.ContainerRef != ""
}
