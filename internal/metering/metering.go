// Package metering consumes the session lifecycle events emitted by the real-time resource provider and turns
// them into per-node usage.
//
// Delivery is at-least-once and unordered. A repeated start is absorbed by the open-session uniqueness constraint
// in the store and a repeated end finds no open session, so usage is added exactly once per closed session. An end
// that arrives before its start leaves a zero-length marker session behind, and a start dated before the latest
// recorded end for the same participant is ignored, so a late start can never open a session that nothing closes.
package metering

import (
	"context"
	"time"

	"github.com/cyverse/ngs/internal/apperr"
	"github.com/cyverse/ngs/internal/model"
	"github.com/cyverse/ngs/internal/model/timestamp"
	"github.com/cyverse/ngs/logging"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log = logging.ForPackage("metering")

// Store is the persistence needed by the consumer.
type Store interface {
	GetNode(ctx context.Context, nodeID string) (*model.Node, error)
	OpenSession(ctx context.Context, session *model.ResourceSession) (bool, error)
	FindOpenSession(ctx context.Context, nodeID, participantRef string) (*model.ResourceSession, error)
	CloseSession(ctx context.Context, session *model.ResourceSession, endedAt time.Time, durationSeconds float64, clamped bool) (bool, error)
	InsertClosedSession(ctx context.Context, session *model.ResourceSession) error
	LatestSessionEnd(ctx context.Context, nodeID, participantRef string) (*time.Time, error)
}

// SessionStarted reports that a participant joined a node's room.
type SessionStarted struct {
	NodeID         string              `json:"node_id" validate:"required"`
	ParticipantRef string              `json:"participant_ref" validate:"required"`
	RoomRef        string              `json:"room_ref"`
	At             timestamp.Timestamp `json:"at"`
}

// SessionEnded reports that a participant left a node's room.
type SessionEnded struct {
	NodeID         string              `json:"node_id" validate:"required"`
	ParticipantRef string              `json:"participant_ref" validate:"required"`
	RoomRef        string              `json:"room_ref"`
	At             timestamp.Timestamp `json:"at"`
}

// Outcome describes what a consumed event changed.
type Outcome struct {
	SessionID       string  `json:"session_id,omitempty"`
	Recorded        bool    `json:"recorded"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Clamped         bool    `json:"clamped,omitempty"`
	Stale           bool    `json:"stale,omitempty"`
}

// Consumer applies session events to the store.
type Consumer struct {
	store    Store
	validate *validator.Validate
}

// NewConsumer returns a consumer that records sessions in the given store.
func NewConsumer(store Store) *Consumer {
	return &Consumer{store: store, validate: validator.New()}
}

func (c *Consumer) validateEvent(event any, at timestamp.Timestamp) error {
	if err := c.validate.Struct(event); err != nil {
		return apperr.Invalid("invalid session event: %s", err.Error())
	}
	if at.IsZero() {
		return apperr.Invalid("invalid session event: the event time is required")
	}
	return nil
}

// requireNode verifies that the node named in an event exists.
func (c *Consumer) requireNode(ctx context.Context, nodeID string) error {
	node, err := c.store.GetNode(ctx, nodeID)
	if err != nil {
		return apperr.Storage(err, "unable to look up node %s", nodeID)
	}
	if node == nil {
		return apperr.NotFound("node %s not found", nodeID)
	}
	return nil
}

// SessionStarted opens a session for the node and participant. If a session is already open for the pair the
// event is a duplicate delivery and nothing changes.
func (c *Consumer) SessionStarted(ctx context.Context, event *SessionStarted) (*Outcome, error) {
	if err := c.validateEvent(event, event.At); err != nil {
		return nil, err
	}

	log := log.WithFields(logrus.Fields{
		"context":     "session started",
		"node":        event.NodeID,
		"participant": event.ParticipantRef,
	})

	if err := c.requireNode(ctx, event.NodeID); err != nil {
		return nil, err
	}

	startedAt := event.At.Time().UTC()
	latestEnd, err := c.store.LatestSessionEnd(ctx, event.NodeID, event.ParticipantRef)
	if err != nil {
		return nil, apperr.Storage(err, "unable to look up the latest session end for node %s", event.NodeID)
	}
	if latestEnd != nil && latestEnd.After(startedAt) {
		log.Warnf("a session for the participant already ended at %s; ignoring the start at %s",
			latestEnd.Format(time.RFC3339Nano), startedAt.Format(time.RFC3339Nano))
		return &Outcome{Recorded: false, Stale: true}, nil
	}

	session := &model.ResourceSession{
		ID:             uuid.NewString(),
		NodeID:         event.NodeID,
		ParticipantRef: event.ParticipantRef,
		RoomRef:        event.RoomRef,
		StartedAt:      startedAt,
	}
	opened, err := c.store.OpenSession(ctx, session)
	if err != nil {
		return nil, apperr.Storage(err, "unable to open a session for node %s", event.NodeID)
	}
	if !opened {
		log.Debug("a session is already open; ignoring the duplicate event")
		return &Outcome{Recorded: false}, nil
	}

	log.WithField("session", session.ID).Info("session opened")
	return &Outcome{SessionID: session.ID, Recorded: true}, nil
}

// SessionEnded closes the most recent open session for the node and participant and adds its duration to the
// node's usage. An end event without an open session adds no usage. Unless it repeats an end that has already been
// recorded, it leaves a marker so that its own start is ignored if it arrives later.
func (c *Consumer) SessionEnded(ctx context.Context, event *SessionEnded) (*Outcome, error) {
	if err := c.validateEvent(event, event.At); err != nil {
		return nil, err
	}

	log := log.WithFields(logrus.Fields{
		"context":     "session ended",
		"node":        event.NodeID,
		"participant": event.ParticipantRef,
	})

	if err := c.requireNode(ctx, event.NodeID); err != nil {
		return nil, err
	}

	session, err := c.store.FindOpenSession(ctx, event.NodeID, event.ParticipantRef)
	if err != nil {
		return nil, apperr.Storage(err, "unable to look up the open session for node %s", event.NodeID)
	}
	endedAt := event.At.Time().UTC()
	if session == nil {
		return c.markEndedBeforeStart(ctx, log, event, endedAt)
	}
	log = log.WithField("session", session.ID)

	duration, clamped := model.SessionDuration(session.StartedAt, endedAt)
	if clamped {
		log.Warnf("session ended at %s before it started at %s; clamping the duration to zero",
			endedAt.Format(time.RFC3339Nano), session.StartedAt.Format(time.RFC3339Nano))
	}

	closed, err := c.store.CloseSession(ctx, session, endedAt, duration, clamped)
	if err != nil {
		return nil, apperr.Storage(err, "unable to close session %s", session.ID)
	}
	if !closed {
		log.Debug("the session was closed concurrently; ignoring the event")
		return &Outcome{SessionID: session.ID, Recorded: false}, nil
	}

	log.Infof("session closed after %.3f seconds", duration)
	return &Outcome{SessionID: session.ID, Recorded: true, DurationSeconds: duration, Clamped: clamped}, nil
}

// markEndedBeforeStart handles an end event for which no session is open.
func (c *Consumer) markEndedBeforeStart(
	ctx context.Context,
	log *logrus.Entry,
	event *SessionEnded,
	endedAt time.Time,
) (*Outcome, error) {
	latestEnd, err := c.store.LatestSessionEnd(ctx, event.NodeID, event.ParticipantRef)
	if err != nil {
		return nil, apperr.Storage(err, "unable to look up the latest session end for node %s", event.NodeID)
	}
	if latestEnd != nil && !latestEnd.Before(endedAt) {
		log.Debug("no open session and a later end is already recorded; ignoring the event")
		return &Outcome{Recorded: false}, nil
	}

	zero := 0.0
	marker := &model.ResourceSession{
		ID:               uuid.NewString(),
		NodeID:           event.NodeID,
		ParticipantRef:   event.ParticipantRef,
		RoomRef:          event.RoomRef,
		StartedAt:        endedAt,
		EndedAt:          &endedAt,
		DurationSeconds:  &zero,
		EndedBeforeStart: true,
	}
	if err = c.store.InsertClosedSession(ctx, marker); err != nil {
		return nil, apperr.Storage(err, "unable to record the session end for node %s", event.NodeID)
	}

	log.WithField("session", marker.ID).Warn("no open session found; recorded the end so that a late start is ignored")
	return &Outcome{SessionID: marker.ID, Recorded: false, Stale: true}, nil
}
