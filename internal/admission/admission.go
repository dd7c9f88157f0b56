// Package admission decides whether a node may be (re)activated and which capability it receives.
package admission

import (
	"context"
	"strings"

	"github.com/cyverse/ngs/internal/apperr"
	"github.com/cyverse/ngs/internal/capability"
	"github.com/cyverse/ngs/internal/model"
	"github.com/cyverse/ngs/internal/orchestrator"
	"github.com/cyverse/ngs/internal/registry"
	"github.com/cyverse/ngs/logging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log = logging.ForPackage("admission")

// Store is the persistence needed by the admission controller.
type Store interface {
	GetNode(ctx context.Context, nodeID string) (*model.Node, error)
	InsertNode(ctx context.Context, node *model.Node) (*model.Node, bool, error)
	CountActiveNodes(ctx context.Context, ownerID, excludeNodeID string) (int64, error)
	AttachContainer(ctx context.Context, nodeID, containerRef string) (bool, error)
}

// LimitResolver determines the limits in force for an owner.
type LimitResolver interface {
	EffectiveLimits(ctx context.Context, ownerID string) (*registry.Limits, error)
}

// Minter mints capability tokens.
type Minter interface {
	Mint(identity, room string, canPublish, canSubscribe bool) (string, error)
}

// Orchestrator starts node containers and stops the ones that may not be kept.
type Orchestrator interface {
	StartContainer(ctx context.Context, cfg *orchestrator.ContainerConfig) (string, error)
	StopContainer(ctx context.Context, containerRef string) error
}

// Config contains the settings passed through to every node container.
type Config struct {
	Image       string
	ResourceURL string
}

// ActivateRequest asks for a node to be activated. An empty node ID creates a new node for the owner.
type ActivateRequest struct {
	OwnerID          string         `json:"owner_id" validate:"required"`
	NodeID           string         `json:"node_id,omitempty"`
	ExternalAgentRef string         `json:"external_agent_ref,omitempty"`
	ChannelConfig    map[string]any `json:"channel_config,omitempty"`
}

// ActivationResult describes an activated node.
type ActivationResult struct {
	NodeID          string `json:"node_id"`
	Token           string `json:"token"`
	ResourceEnabled bool   `json:"resource_enabled"`
	ContainerRef    string `json:"container_ref"`
	Created         bool   `json:"created"`
}

// Controller activates nodes.
type Controller struct {
	store        Store
	limits       LimitResolver
	minter       Minter
	orchestrator Orchestrator
	cfg          Config
}

// New creates an admission controller.
func New(store Store, limits LimitResolver, minter Minter, orch Orchestrator, cfg Config) *Controller {
	return &Controller{
		store:        store,
		limits:       limits,
		minter:       minter,
		orchestrator: orch,
		cfg:          cfg,
	}
}

// checkNode rejects nodes that belong to someone else or that have been suspended.
func checkNode(node *model.Node, ownerID string) error {
	if node.OwnerID != ownerID {
		return apperr.Authorization("node %s does not belong to %s", node.ID, ownerID)
	}
	if node.IsSuspended {
		return apperr.Authorization("node suspended")
	}
	return nil
}

// checkNodeLimit fails if the owner already has as many other active nodes as the limit allows.
func (c *Controller) checkNodeLimit(ctx context.Context, limits *registry.Limits, nodeID string) error {
	count, err := c.store.CountActiveNodes(ctx, limits.OwnerID, nodeID)
	if err != nil {
		return apperr.Storage(err, "unable to count the active nodes for %s", limits.OwnerID)
	}
	if limits.NodeLimitReached(count) {
		return apperr.QuotaExceeded("node limit: %d of %d nodes are active", count, limits.NodeLimit)
	}
	return nil
}

// resolveNode returns the existing node or creates it if it does not exist yet. The node limit is enforced before
// a new node is inserted so that a rejected request leaves nothing behind.
func (c *Controller) resolveNode(
	ctx context.Context,
	req *ActivateRequest,
	existing *model.Node,
	limits *registry.Limits,
) (*model.Node, bool, error) {
	if err := c.checkNodeLimit(ctx, limits, req.NodeID); err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	agentRef := req.ExternalAgentRef
	if agentRef == "" {
		agentRef = req.NodeID
	}
	node, created, err := c.store.InsertNode(ctx, &model.Node{
		ID:               req.NodeID,
		OwnerID:          req.OwnerID,
		ExternalAgentRef: agentRef,
		ChannelConfig:    req.ChannelConfig,
	})
	if err != nil {
		return nil, false, apperr.Storage(err, "unable to create node %s", req.NodeID)
	}

	// A concurrent request may have created the node first, in which case the winner's row is what we have.
	if !created {
		if err = checkNode(node, req.OwnerID); err != nil {
			return nil, false, err
		}
	}
	return node, created, nil
}

// Activate runs the activation sequence for a node: resolve the node, check suspension and quota, mint a
// capability and (re)start the node's container. Every step is safe to repeat, so a failed activation may simply
// be retried.
func (c *Controller) Activate(ctx context.Context, req *ActivateRequest) (*ActivationResult, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, apperr.Invalid("an owner ID is required")
	}
	if req.NodeID == "" {
		req.NodeID = uuid.NewString()
	}

	log := log.WithFields(logrus.Fields{"context": "activate", "owner": req.OwnerID, "node": req.NodeID})

	// Suspension is checked before anything else so that a suspended node is rejected regardless of quota state.
	existing, err := c.store.GetNode(ctx, req.NodeID)
	if err != nil {
		return nil, apperr.Storage(err, "unable to look up node %s", req.NodeID)
	}
	if existing != nil {
		if err = checkNode(existing, req.OwnerID); err != nil {
			log.WithError(err).Warn("activation rejected")
			return nil, err
		}
	}

	limits, err := c.limits.EffectiveLimits(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	node, created, err := c.resolveNode(ctx, req, existing, limits)
	if err != nil {
		log.WithError(err).Warn("activation rejected")
		return nil, err
	}

	resourceEnabled := limits.ResourceEnabled(node.AccumulatedUsageMinutes)
	log.Debugf("usage %.3f of cap %.3f; resource enabled: %t",
		node.AccumulatedUsageMinutes, limits.ResourceCapMinutes, resourceEnabled)

	token, err := c.minter.Mint(capability.Identity(node.ID), capability.Room(node.ID), resourceEnabled, true)
	if err != nil {
		return nil, apperr.Provisioning(err, "unable to mint a capability for node %s", node.ID)
	}

	injected := token
	if !resourceEnabled {
		injected = capability.DisabledMarker
	}
	containerRef, err := c.orchestrator.StartContainer(ctx, &orchestrator.ContainerConfig{
		Name:             orchestrator.ContainerName(node.ID),
		NodeID:           node.ID,
		OwnerID:          node.OwnerID,
		Image:            c.cfg.Image,
		ExternalAgentRef: node.ExternalAgentRef,
		Capability:       injected,
		ResourceEnabled:  resourceEnabled,
		ResourceURL:      c.cfg.ResourceURL,
		Room:             capability.Room(node.ID),
		ChannelConfig:    node.ChannelConfig,
	})
	if err != nil {
		log.WithError(err).Error("unable to start the node container")
		return nil, apperr.Provisioning(err, "unable to start the container for node %s", node.ID)
	}

	// The node may have been suspended while the container was starting. The suspension wins.
	attached, err := c.store.AttachContainer(ctx, node.ID, containerRef)
	if err != nil {
		return nil, apperr.Storage(err, "unable to record the container for node %s", node.ID)
	}
	if !attached {
		log.WithField("container", containerRef).Warn("node suspended during activation")
		if err = c.orchestrator.StopContainer(ctx, containerRef); err != nil {
			log.WithError(err).Errorf("unable to stop container %s", containerRef)
		}
		return nil, apperr.Authorization("node suspended")
	}

	log.WithField("container", containerRef).Info("node activated")
	return &ActivationResult{
		NodeID:          node.ID,
		Token:           token,
		ResourceEnabled: resourceEnabled,
		ContainerRef:    containerRef,
		Created:         created,
	}, nil
}
