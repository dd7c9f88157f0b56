package controllers

import (
	"fmt"
	"net/http"

	"github.com/cyverse-de/echo-middleware/v2/params"
	"github.com/cyverse/ngs/internal/httpmodel"
	"github.com/cyverse/ngs/internal/model"
	"github.com/cyverse/ngs/utils"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// identifierValidation is the validation applied to node, owner and tier identifiers in request paths.
const identifierValidation = "required,printascii,max=128"

var validate = validator.New()

// extractNodeID extracts and validates the node ID path parameter.
func extractNodeID(ctx echo.Context) (string, error) {
	nodeID, err := params.ValidatedPathParam(ctx, "node_id", identifierValidation)
	if err != nil {
		return "", fmt.Errorf("invalid node ID")
	}
	return nodeID, nil
}

// extractOwnerID extracts and validates the owner ID path parameter.
func (s Server) extractOwnerID(ctx echo.Context) (string, error) {
	ownerID, err := params.ValidatedPathParam(ctx, "owner_id", identifierValidation)
	if err != nil {
		return "", fmt.Errorf("invalid owner ID")
	}
	return s.normalizeOwnerID(ownerID), nil
}

// extractTierID extracts and validates the tier ID path parameter.
func extractTierID(ctx echo.Context) (string, error) {
	tierID, err := params.ValidatedPathParam(ctx, "tier_id", identifierValidation)
	if err != nil {
		return "", fmt.Errorf("invalid tier ID")
	}
	return tierID, nil
}

func (s Server) normalizeOwnerID(ownerID string) string {
	return utils.NormalizeOwnerID(ownerID, s.UsernameSuffix)
}

// bindPrincipal parses the request body identifying the user performing an operation. If the body is invalid then
// an error response is sent to the caller and the returned principal is nil.
func (s Server) bindPrincipal(ctx echo.Context) (*httpmodel.Principal, error) {
	var principal httpmodel.Principal
	if err := ctx.Bind(&principal); err != nil {
		return nil, model.Error(ctx, fmt.Sprintf("invalid request body: %s", err), http.StatusBadRequest)
	}
	if err := validate.Struct(principal); err != nil {
		return nil, model.Error(ctx, "requested_by is required", http.StatusBadRequest)
	}
	principal.RequestedBy = s.normalizeOwnerID(principal.RequestedBy)
	return &principal, nil
}
