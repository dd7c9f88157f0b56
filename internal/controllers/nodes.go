package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cyverse/ngs/internal/admission"
	"github.com/cyverse/ngs/internal/db"
	"github.com/cyverse/ngs/internal/guard"
	"github.com/cyverse/ngs/internal/lifecycle"
	"github.com/cyverse/ngs/internal/model"
	"github.com/cyverse/ngs/internal/query"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// ActivateNode is the handler for the POST /v1/nodes/activate endpoint.
//
// swagger:route POST /v1/nodes/activate nodes activateNode
//
// # Activate a Node
//
// Activates a node, creating it first if no node ID is given or the node doesn't exist yet. The response contains
// the capability token minted for the node and whether the node may use the metered resource.
//
// responses:
//
//	200: activationResponse
//	400: badRequestResponse
//	402: quotaExceededResponse
//	403: forbiddenResponse
//	502: provisioningErrorResponse
//	500: internalServerErrorResponse
func (s Server) ActivateNode(ctx echo.Context) error {
	var req admission.ActivateRequest
	if err := ctx.Bind(&req); err != nil {
		return model.Error(ctx, fmt.Sprintf("invalid request body: %s", err), http.StatusBadRequest)
	}
	if err := validate.Struct(req); err != nil {
		return model.Error(ctx, "owner_id is required", http.StatusBadRequest)
	}
	req.OwnerID = s.normalizeOwnerID(req.OwnerID)

	log := log.WithFields(logrus.Fields{"context": "activating node", "owner": req.OwnerID, "node": req.NodeID})

	result, err := s.Admission.Activate(ctx.Request().Context(), &req)
	if err != nil {
		log.WithError(err).Warn("unable to activate the node")
		return model.ErrorFrom(ctx, err)
	}

	return model.Success(ctx, result, http.StatusOK)
}

// GetNode returns the governance state of a node.
//
// swagger:route GET /v1/nodes/{node_id} nodes getNode
//
// # Get Node Information
//
// Returns the governance state of a node.
//
// responses:
//
//	200: nodeResponse
//	400: badRequestResponse
//	404: notFoundResponse
//	500: internalServerErrorResponse
func (s Server) GetNode(ctx echo.Context) error {
	nodeID, err := extractNodeID(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	node, err := db.GetNode(ctx.Request().Context(), s.GORMDB, nodeID)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusInternalServerError)
	}
	if node == nil {
		return model.Error(ctx, fmt.Sprintf("node %s not found", nodeID), http.StatusNotFound)
	}

	return model.Success(ctx, node, http.StatusOK)
}

// ListNodeSessions lists the most recent resource sessions of a node.
//
// swagger:route GET /v1/nodes/{node_id}/sessions nodes listNodeSessions
//
// # List Node Sessions
//
// Lists the most recent resource sessions of a node.
//
// responses:
//
//	200: sessionsResponse
//	400: badRequestResponse
//	500: internalServerErrorResponse
func (s Server) ListNodeSessions(ctx echo.Context) error {
	nodeID, err := extractNodeID(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	limit, err := query.ValidateLimit(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	sessions, err := db.ListSessions(ctx.Request().Context(), s.GORMDB, nodeID, limit)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusInternalServerError)
	}

	return model.Success(ctx, sessions, http.StatusOK)
}

// ListOwnerNodes lists the nodes that belong to an owner.
//
// swagger:route GET /v1/owners/{owner_id}/nodes owners listOwnerNodes
//
// # List Owner Nodes
//
// Lists the nodes that belong to an owner.
//
// responses:
//
//	200: nodesResponse
//	400: badRequestResponse
//	500: internalServerErrorResponse
func (s Server) ListOwnerNodes(ctx echo.Context) error {
	ownerID, err := s.extractOwnerID(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	nodes, err := db.ListNodes(ctx.Request().Context(), s.GORMDB, ownerID)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusInternalServerError)
	}

	return model.Success(ctx, nodes, http.StatusOK)
}

// GetOwnerLimits returns the limits in force for an owner.
//
// swagger:route GET /v1/owners/{owner_id}/limits owners getOwnerLimits
//
// # Get Owner Limits
//
// Returns the resource cap and node limit in force for an owner along with where each value comes from.
//
// responses:
//
//	200: limitsResponse
//	400: badRequestResponse
//	404: notFoundResponse
//	500: internalServerErrorResponse
func (s Server) GetOwnerLimits(ctx echo.Context) error {
	ownerID, err := s.extractOwnerID(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	limits, err := s.Registry.EffectiveLimits(ctx.Request().Context(), ownerID)
	if err != nil {
		return model.ErrorFrom(ctx, err)
	}

	return model.Success(ctx, limits, http.StatusOK)
}

// SuspendNode is the handler for the kill switch.
//
// swagger:route POST /v1/nodes/{node_id}/suspend nodes suspendNode
//
// # Suspend a Node
//
// Suspends a node and asks the orchestrator to stop its container. Only the owner of the node or an administrator
// may suspend it. The suspension succeeds even if the container can't be stopped; the response includes a warning
// in that case.
//
// responses:
//
//	200: suspendResponse
//	400: badRequestResponse
//	403: forbiddenResponse
//	404: notFoundResponse
//	500: internalServerErrorResponse
func (s Server) SuspendNode(ctx echo.Context) error {
	nodeID, err := extractNodeID(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	principal, err := s.bindPrincipal(ctx)
	if principal == nil {
		return err
	}

	result, err := s.Lifecycle.Suspend(ctx.Request().Context(), &lifecycle.SuspendRequest{
		NodeID:      nodeID,
		RequestedBy: principal.RequestedBy,
	})
	if err != nil {
		return model.ErrorFrom(ctx, err)
	}

	return model.Success(ctx, result, http.StatusOK)
}

// EvaluateAction is the handler for the POST /v1/nodes/{node_id}/actions/evaluate endpoint.
//
// swagger:route POST /v1/nodes/{node_id}/actions/evaluate nodes evaluateAction
//
// # Evaluate an Action
//
// Decides whether a node may perform a privileged action. Denied actions are reported with a 403 status code.
//
// responses:
//
//	200: decisionResponse
//	400: badRequestResponse
//	403: decisionResponse
func (s Server) EvaluateAction(ctx echo.Context) error {
	nodeID, err := extractNodeID(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	var body struct {
		ActionKind string          `json:"action_kind" validate:"required"`
		ActionArgs json.RawMessage `json:"action_args"`
	}
	if err = ctx.Bind(&body); err != nil {
		return model.Error(ctx, fmt.Sprintf("invalid request body: %s", err), http.StatusBadRequest)
	}
	if err = validate.Struct(body); err != nil {
		return model.Error(ctx, "action_kind is required", http.StatusBadRequest)
	}

	decision := s.Guard.Evaluate(ctx.Request().Context(), &guard.EvaluateRequest{
		NodeID:     nodeID,
		ActionKind: body.ActionKind,
		ActionArgs: body.ActionArgs,
	})
	if !decision.Allowed {
		return model.Success(ctx, decision, http.StatusForbidden)
	}

	return model.Success(ctx, decision, http.StatusOK)
}
