// Package memstore provides an in-memory implementation of the governance persistence operations. Every operation
// runs under a single mutex, which gives it the same atomicity the SQL store gets from the database: node inserts
// are unique, usage increments are never lost and at most one session per node and participant is open.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cyverse/ngs/internal/db"
	"github.com/cyverse/ngs/internal/model"
	"github.com/pkg/errors"
)

// Store is an in-memory store for tests and local development.
type Store struct {
	mu            sync.Mutex
	nodes         map[string]model.Node
	sessions      map[string]model.ResourceSession
	tiers         map[string]model.TierDefinition
	subscriptions map[string]model.Subscription
	strikes       []model.SecurityStrike
	failures      map[string]error
	calls         map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		nodes:         make(map[string]model.Node),
		sessions:      make(map[string]model.ResourceSession),
		tiers:         make(map[string]model.TierDefinition),
		subscriptions: make(map[string]model.Subscription),
		failures:      make(map[string]error),
		calls:         make(map[string]int),
	}
}

// FailOn makes every subsequent call to the named method return err. Passing a nil error clears the failure.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// Calls returns the number of times the named method has been called.
func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// enter records a call and returns the injected failure for the method, if any. The caller must hold the lock.
func (s *Store) enter(method string) error {
	s.calls[method]++
	return s.failures[method]
}

// PutNode stores a node as-is, replacing any existing node with the same identifier.
func (s *Store) PutNode(node model.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[node.ID] = node
}

// PutTier stores a tier.
func (s *Store) PutTier(tier model.TierDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[tier.ID] = tier
}

// PutSubscription stores a subscription.
func (s *Store) PutSubscription(subscription model.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[subscription.OwnerID] = subscription
}

// Strikes returns a copy of every recorded strike.
func (s *Store) Strikes() []model.SecurityStrike {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SecurityStrike(nil), s.strikes...)
}

// Sessions returns a copy of every session for a node, oldest first.
func (s *Store) Sessions(nodeID string) []model.ResourceSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]model.ResourceSession, 0)
	for _, session := range s.sessions {
		if session.NodeID == nodeID {
			result = append(result, session)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result
}

func copyNode(node model.Node) *model.Node {
	if node.ContainerRef != nil {
		ref := *node.ContainerRef
		node.ContainerRef = &ref
	}
	return &node
}

func (s *Store) GetNode(_ context.Context, nodeID string) (*model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetNode"); err != nil {
		return nil, err
	}
	node, ok := s.nodes[nodeID]
	if !ok {
		return nil, nil
	}
	return copyNode(node), nil
}

func (s *Store) InsertNode(_ context.Context, node *model.Node) (*model.Node, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertNode"); err != nil {
		return nil, false, err
	}
	if existing, ok := s.nodes[node.ID]; ok {
		return copyNode(existing), false, nil
	}
	now := time.Now()
	node.CreatedAt = now
	node.UpdatedAt = now
	s.nodes[node.ID] = *node
	return copyNode(*node), true, nil
}

func (s *Store) CountActiveNodes(_ context.Context, ownerID, excludeNodeID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CountActiveNodes"); err != nil {
		return 0, err
	}
	var count int64
	for _, node := range s.nodes {
		if node.OwnerID == ownerID && !node.IsSuspended && node.ID != excludeNodeID {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListNodes(_ context.Context, ownerID string) ([]model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListNodes"); err != nil {
		return nil, err
	}
	result := make([]model.Node, 0)
	for _, node := range s.nodes {
		if node.OwnerID == ownerID {
			result = append(result, *copyNode(node))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// updateNode applies fn to a stored node. The caller must hold the lock.
func (s *Store) updateNode(nodeID string, fn func(node *model.Node)) error {
	node, ok := s.nodes[nodeID]
	if !ok {
		return errors.Wrapf(db.ErrNodeNotFound, "unable to update node '%s'", nodeID)
	}
	fn(&node)
	node.UpdatedAt = time.Now()
	s.nodes[nodeID] = node
	return nil
}

func (s *Store) SetContainerRef(_ context.Context, nodeID string, containerRef *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SetContainerRef"); err != nil {
		return err
	}
	return s.updateNode(nodeID, func(node *model.Node) {
		if containerRef == nil {
			node.ContainerRef = nil
			return
		}
		ref := *containerRef
		node.ContainerRef = &ref
	})
}

func (s *Store) AttachContainer(_ context.Context, nodeID, containerRef string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AttachContainer"); err != nil {
		return false, err
	}
	node, ok := s.nodes[nodeID]
	if !ok || node.IsSuspended {
		return false, nil
	}
	node.ContainerRef = &containerRef
	node.UpdatedAt = time.Now()
	s.nodes[nodeID] = node
	return true, nil
}

func (s *Store) SuspendNode(_ context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SuspendNode"); err != nil {
		return err
	}
	return s.updateNode(nodeID, func(node *model.Node) { node.IsSuspended = true })
}

func (s *Store) ReactivateNode(_ context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ReactivateNode"); err != nil {
		return err
	}
	return s.updateNode(nodeID, func(node *model.Node) { node.IsSuspended = false })
}

func (s *Store) ResetNodeUsage(_ context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ResetNodeUsage"); err != nil {
		return err
	}
	return s.updateNode(nodeID, func(node *model.Node) { node.AccumulatedUsageMinutes = 0 })
}

func (s *Store) OpenSession(_ context.Context, session *model.ResourceSession) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("OpenSession"); err != nil {
		return false, err
	}
	for _, existing := range s.sessions {
		if existing.NodeID == session.NodeID && existing.ParticipantRef == session.ParticipantRef && existing.IsOpen() {
			return false, nil
		}
	}
	s.sessions[session.ID] = *session
	return true, nil
}

func (s *Store) FindOpenSession(_ context.Context, nodeID, participantRef string) (*model.ResourceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindOpenSession"); err != nil {
		return nil, err
	}
	var found *model.ResourceSession
	for _, session := range s.sessions {
		if session.NodeID != nodeID || session.ParticipantRef != participantRef || !session.IsOpen() {
			continue
		}
		if found == nil || session.StartedAt.After(found.StartedAt) {
			candidate := session
			found = &candidate
		}
	}
	return found, nil
}

func (s *Store) CloseSession(
	_ context.Context,
	session *model.ResourceSession,
	endedAt time.Time,
	durationSeconds float64,
	clamped bool,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CloseSession"); err != nil {
		return false, err
	}
	stored, ok := s.sessions[session.ID]
	if !ok || !stored.IsOpen() {
		return false, nil
	}
	node, ok := s.nodes[stored.NodeID]
	if !ok {
		return false, errors.Wrapf(db.ErrNodeNotFound, "unable to close session '%s'", session.ID)
	}

	end := endedAt
	duration := durationSeconds
	stored.EndedAt = &end
	stored.DurationSeconds = &duration
	stored.Clamped = clamped
	s.sessions[stored.ID] = stored

	node.AccumulatedUsageMinutes += durationSeconds / 60
	s.nodes[node.ID] = node
	return true, nil
}

func (s *Store) InsertClosedSession(_ context.Context, session *model.ResourceSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertClosedSession"); err != nil {
		return err
	}
	if session.IsOpen() {
		return errors.Errorf("session '%s' has no end time", session.ID)
	}
	s.sessions[session.ID] = *session
	return nil
}

func (s *Store) LatestSessionEnd(_ context.Context, nodeID, participantRef string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LatestSessionEnd"); err != nil {
		return nil, err
	}
	var latest *time.Time
	for _, session := range s.sessions {
		if session.NodeID != nodeID || session.ParticipantRef != participantRef || session.IsOpen() {
			continue
		}
		if latest == nil || session.EndedAt.After(*latest) {
			end := *session.EndedAt
			latest = &end
		}
	}
	return latest, nil
}

func (s *Store) GetTier(_ context.Context, tierID string) (*model.TierDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetTier"); err != nil {
		return nil, err
	}
	tier, ok := s.tiers[tierID]
	if !ok {
		return nil, nil
	}
	return &tier, nil
}

func (s *Store) GetSubscription(_ context.Context, ownerID string) (*model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetSubscription"); err != nil {
		return nil, err
	}
	subscription, ok := s.subscriptions[ownerID]
	if !ok {
		return nil, nil
	}
	if tier, ok := s.tiers[subscription.TierID]; ok {
		subscription.Tier = &tier
	}
	return &subscription, nil
}

func (s *Store) CreateStrike(_ context.Context, strike *model.SecurityStrike) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateStrike"); err != nil {
		return err
	}
	for _, existing := range s.strikes {
		if existing.ID == strike.ID {
			return errors.Errorf("duplicate strike identifier '%s'", strike.ID)
		}
	}
	s.strikes = append(s.strikes, *strike)
	return nil
}
