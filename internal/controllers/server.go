package controllers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/cyverse/ngs/internal/admission"
	"github.com/cyverse/ngs/internal/capability"
	"github.com/cyverse/ngs/internal/guard"
	"github.com/cyverse/ngs/internal/lifecycle"
	"github.com/cyverse/ngs/internal/metering"
	"github.com/cyverse/ngs/internal/model"
	"github.com/cyverse/ngs/internal/registry"
	"github.com/cyverse/ngs/logging"
	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"gorm.io/gorm"
)

var log = logging.ForPackage("controllers")

// Server contains the dependencies shared by every handler.
type Server struct {
	Router         *echo.Echo
	DB             *sql.DB
	GORMDB         *gorm.DB
	Service        string
	Title          string
	Version        string
	NATSConn       *nats.Conn
	EventTimeout   time.Duration
	UsernameSuffix string

	Registry  *registry.Registry
	Metering  *metering.Consumer
	Admission *admission.Controller
	Guard     *guard.Guard
	Lifecycle *lifecycle.Controller
	Admin     *lifecycle.Admin
	Minter    *capability.Minter
}

// RootHandler is the handler for the root endpoint, which also serves as a health check.
//
// swagger:route GET / misc getRoot
//
// # Service Information
//
// Returns general information about the service.
//
// responses:
//
//	200: rootResponse
func (s Server) RootHandler(ctx echo.Context) error {
	return model.Success(ctx, model.RootResponse{
		Service: s.Service,
		Title:   s.Title,
		Version: s.Version,
	}, http.StatusOK)
}

// V1RootHandler is the handler for the root endpoint of version 1 of the API.
//
// swagger:route GET /v1 misc getV1Root
//
// # API Version Information
//
// Returns information about version 1 of the API.
//
// responses:
//
//	200: apiVersionResponse
func (s Server) V1RootHandler(ctx echo.Context) error {
	return model.Success(ctx, model.APIVersionResponse{Version: "v1"}, http.StatusOK)
}
