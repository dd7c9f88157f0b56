package controllers

import (
	"net/http"

	"github.com/cyverse/ngs/internal/lifecycle"
	"github.com/cyverse/ngs/internal/model"
	"github.com/labstack/echo/v4"
)

// ReactivateNode clears the suspension of a node.
//
// swagger:route POST /v1/admin/nodes/{node_id}/reactivate admin reactivateNode
//
// # Reactivate a Node
//
// Clears the suspension of a node. Only administrators may reactivate nodes, and the node's owner must activate
// the node again afterwards.
//
// responses:
//
//	200: nodeResponse
//	400: badRequestResponse
//	403: forbiddenResponse
//	404: notFoundResponse
//	500: internalServerErrorResponse
func (s Server) ReactivateNode(ctx echo.Context) error {
	nodeID, err := extractNodeID(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	principal, err := s.bindPrincipal(ctx)
	if principal == nil {
		return err
	}

	node, err := s.Admin.Reactivate(ctx.Request().Context(), &lifecycle.AdminRequest{
		NodeID:      nodeID,
		RequestedBy: principal.RequestedBy,
	})
	if err != nil {
		return model.ErrorFrom(ctx, err)
	}

	return model.Success(ctx, node, http.StatusOK)
}

// ResetNodeUsage sets the accumulated usage of a node to zero.
//
// swagger:route POST /v1/admin/nodes/{node_id}/reset-usage admin resetNodeUsage
//
// # Reset Node Usage
//
// Sets the accumulated usage of a node to zero. Only administrators may reset usage.
//
// responses:
//
//	200: nodeResponse
//	400: badRequestResponse
//	403: forbiddenResponse
//	404: notFoundResponse
//	500: internalServerErrorResponse
func (s Server) ResetNodeUsage(ctx echo.Context) error {
	nodeID, err := extractNodeID(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	principal, err := s.bindPrincipal(ctx)
	if principal == nil {
		return err
	}

	node, err := s.Admin.ResetUsage(ctx.Request().Context(), &lifecycle.AdminRequest{
		NodeID:      nodeID,
		RequestedBy: principal.RequestedBy,
	})
	if err != nil {
		return model.ErrorFrom(ctx, err)
	}

	return model.Success(ctx, node, http.StatusOK)
}
