package controllers

import (
	"fmt"
	"net/http"

	"github.com/cyverse/ngs/internal/model"
	"github.com/labstack/echo/v4"
)

// VerifyCapability checks a capability token minted by this service and returns its claims.
//
// swagger:route POST /v1/capabilities/verify capabilities verifyCapability
//
// # Verify a Capability
//
// Verifies a capability token and returns its claims.
//
// responses:
//
//	200: capabilityResponse
//	400: badRequestResponse
//	401: errorResponse
func (s Server) VerifyCapability(ctx echo.Context) error {
	var body struct {
		Token string `json:"token" validate:"required"`
	}
	if err := ctx.Bind(&body); err != nil {
		return model.Error(ctx, fmt.Sprintf("invalid request body: %s", err), http.StatusBadRequest)
	}
	if err := validate.Struct(body); err != nil {
		return model.Error(ctx, "token is required", http.StatusBadRequest)
	}

	claims, err := s.Minter.Parse(body.Token)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusUnauthorized)
	}

	return model.Success(ctx, claims, http.StatusOK)
}
