// Package lifecycle implements the kill switch that suspends a node and stops its container, along with the
// separately authorized administrative operations that undo its effects.
package lifecycle

import (
	"context"
	"strings"

	"github.com/cyverse/ngs/internal/apperr"
	"github.com/cyverse/ngs/internal/model"
	"github.com/cyverse/ngs/logging"
	"github.com/sirupsen/logrus"
)

var log = logging.ForPackage("lifecycle")

// Store is the persistence needed by the lifecycle controllers.
type Store interface {
	GetNode(ctx context.Context, nodeID string) (*model.Node, error)
	SuspendNode(ctx context.Context, nodeID string) error
	SetContainerRef(ctx context.Context, nodeID string, containerRef *string) error
	ReactivateNode(ctx context.Context, nodeID string) error
	ResetNodeUsage(ctx context.Context, nodeID string) error
}

// Stopper stops node containers.
type Stopper interface {
	StopContainer(ctx context.Context, containerRef string) error
}

// Administrators is the set of users allowed to act on any node.
type Administrators map[string]bool

// NewAdministrators builds the administrator set from a list of usernames.
func NewAdministrators(usernames []string) Administrators {
	admins := make(Administrators)
	for _, username := range usernames {
		username = strings.TrimSpace(username)
		if username != "" {
			admins[username] = true
		}
	}
	return admins
}

// Contains returns true if the user is an administrator.
func (a Administrators) Contains(username string) bool {
	return a[username]
}

// SuspendRequest asks for a node to be suspended.
type SuspendRequest struct {
	NodeID      string `json:"node_id"`
	RequestedBy string `json:"requested_by"`
}

// SuspendResult reports the outcome of a suspension. The suspension itself always succeeded when a result is
// returned; a non-empty TerminationWarning means the container could not be stopped.
type SuspendResult struct {
	OK                 bool   `json:"ok"`
	NodeID             string `json:"node_id"`
	ContainerStopped   bool   `json:"container_stopped"`
	TerminationWarning string `json:"termination_warning,omitempty"`
}

// Controller suspends nodes. It deliberately has no way to reverse a suspension.
type Controller struct {
	store   Store
	stopper Stopper
	admins  Administrators
}

// New creates a kill-switch controller.
func New(store Store, stopper Stopper, admins Administrators) *Controller {
	return &Controller{store: store, stopper: stopper, admins: admins}
}

// lookupNode returns the node with the given ID or a not found error.
func lookupNode(ctx context.Context, store Store, nodeID string) (*model.Node, error) {
	node, err := store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, apperr.Storage(err, "unable to look up node %s", nodeID)
	}
	if node == nil {
		return nil, apperr.NotFound("node %s not found", nodeID)
	}
	return node, nil
}

// Suspend marks a node as suspended and then asks the orchestrator to stop its container. The flag is written
// first and is never rolled back: a failure to stop the container is reported as a warning.
func (c *Controller) Suspend(ctx context.Context, req *SuspendRequest) (*SuspendResult, error) {
	log := log.WithFields(logrus.Fields{"context": "suspend", "node": req.NodeID, "requestedBy": req.RequestedBy})

	node, err := lookupNode(ctx, c.store, req.NodeID)
	if err != nil {
		return nil, err
	}
	if req.RequestedBy == "" || (req.RequestedBy != node.OwnerID && !c.admins.Contains(req.RequestedBy)) {
		log.Warn("suspension rejected")
		return nil, apperr.Authorization("%s may not suspend node %s", req.RequestedBy, req.NodeID)
	}

	if err = c.store.SuspendNode(ctx, node.ID); err != nil {
		return nil, apperr.Storage(err, "unable to suspend node %s", node.ID)
	}
	log.Info("node suspended")

	// An activation that finished before the flag was written may have attached a newer container.
	if current, err := c.store.GetNode(ctx, node.ID); err != nil {
		log.WithError(err).Warn("unable to reload the suspended node")
	} else if current != nil {
		node = current
	}

	result := &SuspendResult{OK: true, NodeID: node.ID}
	if !node.HasContainer() {
		return result, nil
	}

	containerRef := *node.ContainerRef
	if err = c.stopper.StopContainer(ctx, containerRef); err != nil {
		log.WithError(err).Warnf("unable to stop container %s", containerRef)
		result.TerminationWarning = apperr.Provisioning(err, "unable to stop container %s", containerRef).Error()
		return result, nil
	}
	result.ContainerStopped = true

	if err = c.store.SetContainerRef(ctx, node.ID, nil); err != nil {
		log.WithError(err).Warnf("container %s stopped but the reference could not be cleared", containerRef)
		result.TerminationWarning = apperr.Storage(err, "unable to clear the container for node %s", node.ID).Error()
	}
	return result, nil
}
