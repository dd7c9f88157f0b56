package server

import (
	"github.com/cyverse-de/echo-middleware/v2/redoc"
	"github.com/cyverse/ngs/config"
	"github.com/cyverse/ngs/internal/controllers"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	echolog "github.com/spirosoik/echo-logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

func InitRouter() *echo.Echo {
	log := log.WithFields(logrus.Fields{"context": "router"})

	// Create the web server.
	e := echo.New()

	// Set a custom logger.
	echoLogger := echolog.NewLoggerMiddleware(log)
	e.Logger = echoLogger

	// Add middleware.
	e.Use(otelecho.Middleware(config.ServiceName))
	e.Use(echoLogger.Hook())
	e.Use(middleware.Recover())
	e.Use(redoc.Serve(redoc.Opts{Title: "CyVerse Node Governance Service"}))

	return e
}

func registerNodeEndpoints(nodes *echo.Group, s *controllers.Server) {
	// Activates a node, creating it if necessary.
	nodes.POST("/activate", s.ActivateNode)

	// Gets the governance state of a node.
	nodes.GET("/:node_id", s.GetNode)

	// Lists the recent resource sessions of a node.
	nodes.GET("/:node_id/sessions", s.ListNodeSessions)

	// The kill switch.
	nodes.POST("/:node_id/suspend", s.SuspendNode)

	// Evaluates a privileged action before the node performs it.
	nodes.POST("/:node_id/actions/evaluate", s.EvaluateAction)
}

func registerTierEndpoints(tiers *echo.Group, s *controllers.Server) {
	// Returns a listing of the tiers.
	tiers.GET("", s.ListTiers)

	// Adds a tier to the database.
	tiers.POST("", s.AddTier)

	// Gets the details of a tier.
	tiers.GET("/:tier_id", s.GetTier)

	// Updates the limits of a tier.
	tiers.PUT("/:tier_id", s.UpdateTier)
}

func registerSubscriptionEndpoints(subscriptions *echo.Group, s *controllers.Server) {
	// Lists subscriptions.
	subscriptions.GET("", s.ListSubscriptions)

	// Gets the subscription of an owner, falling back to the default tier.
	subscriptions.GET("/:owner_id", s.GetSubscription)

	// Subscribes an owner to a tier.
	subscriptions.PUT("/:owner_id", s.PutSubscription)
}

func RegisterHandlers(s controllers.Server) {

	// The base URL acts as a health check endpoint.
	s.Router.GET("/", s.RootHandler)

	// API version 1 endpoints.
	v1 := s.Router.Group("/v1")
	v1.GET("", s.V1RootHandler)

	sessions := v1.Group("/sessions")
	sessions.POST("/started", s.SessionStarted)
	sessions.POST("/ended", s.SessionEnded)

	nodes := v1.Group("/nodes")
	registerNodeEndpoints(nodes, &s)

	owners := v1.Group("/owners")
	owners.GET("/:owner_id/nodes", s.ListOwnerNodes)
	owners.GET("/:owner_id/limits", s.GetOwnerLimits)

	tiers := v1.Group("/tiers")
	registerTierEndpoints(tiers, &s)

	subscriptions := v1.Group("/subscriptions")
	registerSubscriptionEndpoints(subscriptions, &s)

	strikes := v1.Group("/strikes")
	strikes.GET("/:owner_id", s.ListStrikes)

	capabilities := v1.Group("/capabilities")
	capabilities.POST("/verify", s.VerifyCapability)

	adminNodes := v1.Group("/admin/nodes")
	adminNodes.POST("/:node_id/reactivate", s.ReactivateNode)
	adminNodes.POST("/:node_id/reset-usage", s.ResetNodeUsage)
}
