package routes

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	controller "safeclicker/controllers"
	"safeclicker/middleware"
)

const requestLogFormat = "[${time}] ${status} - ${latency} ${method} ${path}\n"

// Dependencies are the long lived services the handlers share.
type Dependencies struct {
	Dispatcher controller.CampaignDispatcher
	Recorder   controller.ClickRecorder
	Logger     logrus.FieldLogger

	// TrackingEndpoint is the public path prefix of tracking links.
	TrackingEndpoint string
	// RateLimitDispatch is the number of sends allowed per principal and
	// campaign per minute. RateLimitStorage may be nil for in-memory counters.
	RateLimitDispatch int
	RateLimitStorage  fiber.Storage
}

func (d Dependencies) componentLogger(component string) logrus.FieldLogger {
	base := d.Logger
	if base == nil {
		base = logrus.StandardLogger()
	}
	return base.WithField("component", component)
}

func SetupAuthRoutes(app *fiber.App, db *gorm.DB, deps Dependencies) {
	authController := controller.NewAuthController(db, deps.componentLogger("auth"))

	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: requestLogFormat,
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/login", authController.Login)
	auth.Post("/refresh", authController.RefreshToken)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected(db))
	protectedAuth.Get("/me", authController.GetCurrentUser)
}

// SetupTrackingRoutes registers the public tracking endpoint. It must be
// registered before the protected /campaigns group so the token is the only
// credential checked.
func SetupTrackingRoutes(app *fiber.App, db *gorm.DB, deps Dependencies) {
	campaignController := controller.NewCampaignController(db, deps.componentLogger("tracking"), deps.Dispatcher, deps.Recorder)

	endpoint := "/" + strings.Trim(deps.TrackingEndpoint, "/")
	if endpoint == "/" {
		endpoint = "/campaigns/track"
	}
	app.Get(endpoint+"/:token", campaignController.TrackClick)
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB, deps Dependencies) {
	campaignController := controller.NewCampaignController(db, deps.componentLogger("campaign"), deps.Dispatcher, deps.Recorder)
	userController := controller.NewUserController(db, deps.componentLogger("user"))
	departmentController := controller.NewDepartmentController(db, deps.componentLogger("department"))
	reportController := controller.NewReportController(db, deps.componentLogger("report"))

	requestLogger := logger.New(logger.Config{
		Format: requestLogFormat,
	})

	// User routes
	users := app.Group("/users", requestLogger, middleware.Protected(db))
	users.Get("/", userController.ListUsers)
	users.Post("/", userController.CreateUser)
	users.Get("/:id", userController.GetUser)
	users.Put("/:id", userController.UpdateUser)
	users.Delete("/:id", userController.DeleteUser)

	// Department routes
	departments := app.Group("/departments", requestLogger, middleware.Protected(db))
	departments.Get("/", departmentController.ListDepartments)
	departments.Post("/", departmentController.CreateDepartment)
	departments.Get("/:id", departmentController.GetDepartment)

	// Campaign routes
	campaign := app.Group("/campaigns", requestLogger, middleware.Protected(db))
	campaign.Get("/", campaignController.ListCampaigns)
	campaign.Post("/", campaignController.CreateCampaign)
	campaign.Get("/:id", campaignController.GetCampaign)
	campaign.Put("/:id", campaignController.UpdateCampaign)
	campaign.Delete("/:id", campaignController.DeleteCampaign)
	campaign.Get("/:id/sends", campaignController.ListSends)
	campaign.Post("/:id/send",
		middleware.DispatchRateLimiter(deps.RateLimitDispatch, deps.RateLimitStorage),
		campaignController.SendCampaign)

	// Report routes
	reports := app.Group("/reports", requestLogger, middleware.Protected(db))
	reports.Get("/dashboard", reportController.GetDashboard)
	reports.Get("/campaigns/:id/clicks", reportController.GetCampaignClicks)
}

func SetupRoutes(app *fiber.App, db *gorm.DB, deps Dependencies) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	SetupAuthRoutes(app, db, deps)
	SetupTrackingRoutes(app, db, deps)
	SetupAPIRoutes(app, db, deps)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
