package controllers

import (
	"fmt"
	"net/http"

	"github.com/cyverse/ngs/internal/metering"
	"github.com/cyverse/ngs/internal/model"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// SessionStarted is the webhook handler for session start events.
//
// swagger:route POST /v1/sessions/started sessions sessionStarted
//
// # Record a Session Start
//
// Opens a resource session for a node. Duplicate deliveries are accepted without opening a second session.
//
// responses:
//
//	200: sessionOutcomeResponse
//	400: badRequestResponse
//	404: notFoundResponse
//	500: internalServerErrorResponse
func (s Server) SessionStarted(ctx echo.Context) error {
	var event metering.SessionStarted
	if err := ctx.Bind(&event); err != nil {
		return model.Error(ctx, fmt.Sprintf("invalid request body: %s", err), http.StatusBadRequest)
	}

	outcome, err := s.Metering.SessionStarted(ctx.Request().Context(), &event)
	if err != nil {
		log.WithFields(logrus.Fields{"context": "session started", "node": event.NodeID}).Error(err)
		return model.ErrorFrom(ctx, err)
	}

	return model.Success(ctx, outcome, http.StatusOK)
}

// SessionEnded is the webhook handler for session end events.
//
// swagger:route POST /v1/sessions/ended sessions sessionEnded
//
// # Record a Session End
//
// Closes the open resource session for a node and participant and adds its duration to the node's usage. Events
// for sessions that are not open are accepted and ignored.
//
// responses:
//
//	200: sessionOutcomeResponse
//	400: badRequestResponse
//	404: notFoundResponse
//	500: internalServerErrorResponse
func (s Server) SessionEnded(ctx echo.Context) error {
	var event metering.SessionEnded
	if err := ctx.Bind(&event); err != nil {
		return model.Error(ctx, fmt.Sprintf("invalid request body: %s", err), http.StatusBadRequest)
	}

	outcome, err := s.Metering.SessionEnded(ctx.Request().Context(), &event)
	if err != nil {
		log.WithFields(logrus.Fields{"context": "session ended", "node": event.NodeID}).Error(err)
		return model.ErrorFrom(ctx, err)
	}

	return model.Success(ctx, outcome, http.StatusOK)
}
