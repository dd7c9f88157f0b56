package db

import (
	"context"
	"time"

	"github.com/cyverse/ngs/internal/model"
	"gorm.io/gorm"
)

// Store binds a GORM database handle to the persistence operations used by the governance services.
type Store struct {
	db *gorm.DB
}

// NewStore returns a Store that uses the given database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) GetNode(ctx context.Context, nodeID string) (*model.Node, error) {
	return GetNode(ctx, s.db, nodeID)
}

func (s *Store) InsertNode(ctx context.Context, node *model.Node) (*model.Node, bool, error) {
	return InsertNode(ctx, s.db, node)
}

func (s *Store) CountActiveNodes(ctx context.Context, ownerID, excludeNodeID string) (int64, error) {
	return CountActiveNodes(ctx, s.db, ownerID, excludeNodeID)
}

func (s *Store) ListNodes(ctx context.Context, ownerID string) ([]model.Node, error) {
	return ListNodes(ctx, s.db, ownerID)
}

func (s *Store) SetContainerRef(ctx context.Context, nodeID string, containerRef *string) error {
	return SetContainerRef(ctx, s.db, nodeID, containerRef)
}

func (s *Store) AttachContainer(ctx context.Context, nodeID, containerRef string) (bool, error) {
	return AttachContainer(ctx, s.db, nodeID, containerRef)
}

func (s *Store) SuspendNode(ctx context.Context, nodeID string) error {
	return SuspendNode(ctx, s.db, nodeID)
}

func (s *Store) ReactivateNode(ctx context.Context, nodeID string) error {
	return ReactivateNode(ctx, s.db, nodeID)
}

func (s *Store) ResetNodeUsage(ctx context.Context, nodeID string) error {
	return ResetNodeUsage(ctx, s.db, nodeID)
}

func (s *Store) OpenSession(ctx context.Context, session *model.ResourceSession) (bool, error) {
	return OpenSession(ctx, s.db, session)
}

func (s *Store) FindOpenSession(ctx context.Context, nodeID, participantRef string) (*model.ResourceSession, error) {
	return FindOpenSession(ctx, s.db, nodeID, participantRef)
}

func (s *Store) CloseSession(
	ctx context.Context,
	session *model.ResourceSession,
	endedAt time.Time,
	durationSeconds float64,
	clamped bool,
) (bool, error) {
	return CloseSession(ctx, s.db, session, endedAt, durationSeconds, clamped)
}

func (s *Store) InsertClosedSession(ctx context.Context, session *model.ResourceSession) error {
	return InsertClosedSession(ctx, s.db, session)
}

func (s *Store) LatestSessionEnd(ctx context.Context, nodeID, participantRef string) (*time.Time, error) {
	return LatestSessionEnd(ctx, s.db, nodeID, participantRef)
}

func (s *Store) GetTier(ctx context.Context, tierID string) (*model.TierDefinition, error) {
	return GetTier(ctx, s.db, tierID)
}

func (s *Store) GetSubscription(ctx context.Context, ownerID string) (*model.Subscription, error) {
	return GetSubscription(ctx, s.db, ownerID)
}

func (s *Store) CreateStrike(ctx context.Context, strike *model.SecurityStrike) error {
	return CreateStrike(ctx, s.db, strike)
}
