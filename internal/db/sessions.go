package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cyverse/ngs/internal/model"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OpenSession inserts a new open resource session. The partial unique index on open sessions rejects a second open
// session for the same node and participant; in that case nothing is inserted and false is returned.
func OpenSession(ctx context.Context, db *gorm.DB, session *model.ResourceSession) (bool, error) {
	wrapMsg := fmt.Sprintf("unable to open a session for node '%s'", session.NodeID)

	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(session)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, wrapMsg)
	}

	return result.RowsAffected == 1, nil
}

// FindOpenSession returns the most recent open session for a node and participant, or nil if there isn't one.
func FindOpenSession(ctx context.Context, db *gorm.DB, nodeID, participantRef string) (*model.ResourceSession, error) {
	wrapMsg := fmt.Sprintf("unable to look up the open session for node '%s'", nodeID)

	var session model.ResourceSession
	err := db.WithContext(ctx).
		Where("node_id = ?", nodeID).
		Where("participant_ref = ?", participantRef).
		Where("ended_at IS NULL").
		Order("started_at desc").
		First(&session).
		Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return &session, nil
}

// CloseSession records the end of a session and adds its duration to the node's accumulated usage in a single
// transaction. The session row is only updated if it is still open, so the duration is written exactly once and a
// redelivered event never adds usage twice. The Boolean return value indicates whether or not this call closed the
// session.
func CloseSession(
	ctx context.Context,
	db *gorm.DB,
	session *model.ResourceSession,
	endedAt time.Time,
	durationSeconds float64,
	clamped bool,
) (bool, error) {
	wrapMsg := fmt.Sprintf("unable to close session '%s'", session.ID)

	var closed bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.ResourceSession{}).
			Where("session_id = ?", session.ID).
			Where("ended_at IS NULL").
			Updates(map[string]any{
				"ended_at":         endedAt,
				"duration_seconds": durationSeconds,
				"clamped":          clamped,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if err := IncrementNodeUsage(ctx, tx, session.NodeID, durationSeconds/60); err != nil {
			return err
		}

		closed = true
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, wrapMsg)
	}

	return closed, nil
}

// InsertClosedSession inserts a session that has already ended. Closed sessions are not covered by the open
// session index, so the insert never conflicts.
func InsertClosedSession(ctx context.Context, db *gorm.DB, session *model.ResourceSession) error {
	wrapMsg := fmt.Sprintf("unable to record a closed session for node '%s'", session.NodeID)

	if session.IsOpen() {
		return errors.Wrap(errors.New("the session has no end time"), wrapMsg)
	}
	if err := db.WithContext(ctx).Create(session).Error; err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}

// LatestSessionEnd returns the most recent end time recorded for a node and participant, or nil if no session for
// the pair has ended yet.
func LatestSessionEnd(ctx context.Context, db *gorm.DB, nodeID, participantRef string) (*time.Time, error) {
	wrapMsg := fmt.Sprintf("unable to look up the latest session end for node '%s'", nodeID)

	var session model.ResourceSession
	err := db.WithContext(ctx).
		Select("ended_at").
		Where("node_id = ?", nodeID).
		Where("participant_ref = ?", participantRef).
		Where("ended_at IS NOT NULL").
		Order("ended_at desc").
		First(&session).
		Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return session.EndedAt, nil
}

// SumClosedSessionMinutes adds up the durations of all closed sessions for a node, in minutes.
func SumClosedSessionMinutes(ctx context.Context, db *gorm.DB, nodeID string) (float64, error) {
	wrapMsg := fmt.Sprintf("unable to total the sessions for node '%s'", nodeID)

	var totalSeconds float64
	err := db.WithContext(ctx).
		Model(&model.ResourceSession{}).
		Select("COALESCE(SUM(duration_seconds), 0)").
		Where("node_id = ?", nodeID).
		Where("ended_at IS NOT NULL").
		Scan(&totalSeconds).
		Error
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	return totalSeconds / 60, nil
}

// ListSessions lists the most recent sessions for a node.
func ListSessions(ctx context.Context, db *gorm.DB, nodeID string, limit int) ([]model.ResourceSession, error) {
	wrapMsg := fmt.Sprintf("unable to list the sessions for node '%s'", nodeID)

	sessions := make([]model.ResourceSession, 0)
	err := db.WithContext(ctx).
		Where("node_id = ?", nodeID).
		Order("started_at desc").
		Limit(limit).
		Find(&sessions).
		Error
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return sessions, nil
}
