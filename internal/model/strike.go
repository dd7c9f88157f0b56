package model

import "time"

// Violation types recorded in security strikes.
const (
	ViolationIllegalEgress = "illegal_egress"
)

// Severity levels recorded in security strikes.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// SecurityStrike is an append-only record of a denied privileged action. Nothing in this service updates or
// deletes strikes.
//
// swagger:model
type SecurityStrike struct {
	// The strike identifier
	//
	// readOnly: true
	ID string `gorm:"column:strike_id;type:text;primaryKey" json:"strike_id"`

	// The owner of the node that attempted the action
	OwnerID string `gorm:"type:text;not null;index" json:"owner_id"`

	// The node that attempted the action
	NodeID string `gorm:"type:text;not null" json:"node_id"`

	// The type of violation
	ViolationType string `gorm:"type:text;not null" json:"violation_type"`

	// A description of the offending action
	Details string `gorm:"type:text;not null" json:"details"`

	// The date and time the action was blocked
	Timestamp time.Time `gorm:"column:recorded_at;not null" json:"timestamp"`

	// The severity of the violation
	Severity string `gorm:"type:text;not null" json:"severity"`
}

// TableName specifies the table name to use the database.
func (s *SecurityStrike) TableName() string {
	return "security_strikes"
}
