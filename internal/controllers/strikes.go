package controllers

import (
	"net/http"

	"github.com/cyverse/ngs/internal/db"
	"github.com/cyverse/ngs/internal/model"
	"github.com/cyverse/ngs/internal/query"
	"github.com/labstack/echo/v4"
)

// ListStrikes lists the security strikes recorded for an owner.
//
// swagger:route GET /v1/strikes/{owner_id} strikes listStrikes
//
// # List Security Strikes
//
// Lists the security strikes recorded for an owner, most recent first.
//
// Responses:
//
//	200: strikeListing
//	400: badRequestResponse
//	500: internalServerErrorResponse
func (s Server) ListStrikes(ctx echo.Context) error {
	ownerID, err := s.extractOwnerID(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	page, err := query.ValidatePage(ctx)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusBadRequest)
	}

	strikes, count, err := db.ListStrikes(ctx.Request().Context(), s.GORMDB, ownerID, page.Offset, page.Limit)
	if err != nil {
		return model.Error(ctx, err.Error(), http.StatusInternalServerError)
	}

	return model.Success(ctx, map[string]any{"strikes": strikes, "total": count}, http.StatusOK)
}
