package model

import "time"

// ResourceSession is one contiguous period during which a node holds the metered resource.
//
// swagger:model
type ResourceSession struct {
	// The session identifier
	//
	// readOnly: true
	ID string `gorm:"column:session_id;type:text;primaryKey" json:"session_id"`

	// The node holding the resource. At most one open session may exist for a node and participant.
	NodeID string `gorm:"type:text;not null;uniqueIndex:resource_sessions_open_idx,where:ended_at IS NULL" json:"node_id"`

	// The participant reference assigned by the resource provider
	ParticipantRef string `gorm:"type:text;not null;uniqueIndex:resource_sessions_open_idx,where:ended_at IS NULL" json:"participant_ref"`

	// The room reference assigned by the resource provider
	RoomRef string `gorm:"type:text;not null;default:''" json:"room_ref"`

	// The date and time the session started
	StartedAt time.Time `gorm:"not null" json:"started_at"`

	// The date and time the session ended; nil while the session is open
	EndedAt *time.Time `json:"ended_at,omitempty"`

	// The length of the session in seconds; written exactly once, when the session is closed
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`

	// True if the end timestamp preceded the start timestamp and the duration was clamped to zero
	Clamped bool `gorm:"not null;default:false" json:"clamped"`

	// True if the row marks an end event that arrived without an open session. Marker rows have a zero duration
	// and cause start events dated before them to be ignored.
	EndedBeforeStart bool `gorm:"not null;default:false" json:"ended_before_start"`
}

// TableName specifies the table name to use the database.
func (s *ResourceSession) TableName() string {
	return "resource_sessions"
}

// IsOpen returns true if the session has not been closed yet.
func (s *ResourceSession) IsOpen() bool {
	return s.EndedAt == nil
}

// SessionDuration returns the number of seconds between the start of a session and the given end time. Negative
// durations are clamped to zero; the second return value reports whether that happened.
func SessionDuration(startedAt, endedAt time.Time) (float64, bool) {
	seconds := endedAt.Sub(startedAt).Seconds()
	if seconds < 0 {
		return 0, true
	}
	return seconds, false
}
