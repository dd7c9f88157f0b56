package lifecycle

import (
	"context"

	"github.com/cyverse/ngs/internal/apperr"
	"github.com/cyverse/ngs/internal/model"
	"github.com/sirupsen/logrus"
)

// AdminRequest identifies a node and the administrator acting on it.
type AdminRequest struct {
	NodeID      string `json:"node_id"`
	RequestedBy string `json:"requested_by"`
}

// Admin performs the administrative operations on nodes. Every operation requires an administrator; node owners
// cannot use them.
type Admin struct {
	store  Store
	admins Administrators
}

// NewAdmin creates the administrative controller.
func NewAdmin(store Store, admins Administrators) *Admin {
	return &Admin{store: store, admins: admins}
}

func (a *Admin) authorize(req *AdminRequest, operation string) error {
	if !a.admins.Contains(req.RequestedBy) {
		return apperr.Authorization("%s may not %s node %s", req.RequestedBy, operation, req.NodeID)
	}
	return nil
}

// Reactivate clears the suspension flag of a node. The node's container is not restarted; the owner must
// activate the node again.
func (a *Admin) Reactivate(ctx context.Context, req *AdminRequest) (*model.Node, error) {
	log := log.WithFields(logrus.Fields{"context": "reactivate", "node": req.NodeID, "requestedBy": req.RequestedBy})

	if err := a.authorize(req, "reactivate"); err != nil {
		log.Warn("reactivation rejected")
		return nil, err
	}
	if _, err := lookupNode(ctx, a.store, req.NodeID); err != nil {
		return nil, err
	}
	if err := a.store.ReactivateNode(ctx, req.NodeID); err != nil {
		return nil, apperr.Storage(err, "unable to reactivate node %s", req.NodeID)
	}

	log.Info("node reactivated")
	return lookupNode(ctx, a.store, req.NodeID)
}

// ResetUsage sets the accumulated usage of a node back to zero.
func (a *Admin) ResetUsage(ctx context.Context, req *AdminRequest) (*model.Node, error) {
	log := log.WithFields(logrus.Fields{"context": "reset usage", "node": req.NodeID, "requestedBy": req.RequestedBy})

	if err := a.authorize(req, "reset the usage of"); err != nil {
		log.Warn("usage reset rejected")
		return nil, err
	}
	node, err := lookupNode(ctx, a.store, req.NodeID)
	if err != nil {
		return nil, err
	}
	if err = a.store.ResetNodeUsage(ctx, req.NodeID); err != nil {
		return nil, apperr.Storage(err, "unable to reset the usage of node %s", req.NodeID)
	}

	log.Infof("usage reset from %.3f minutes", node.AccumulatedUsageMinutes)
	return lookupNode(ctx, a.store, req.NodeID)
}
