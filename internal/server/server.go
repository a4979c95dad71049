package server

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/flowbaker/automations/internal/auth"
	"github.com/flowbaker/automations/internal/controllers"
	"github.com/flowbaker/automations/internal/middlewares"
	"github.com/flowbaker/automations/internal/version"
)

type HTTPServerDependencies struct {
	CatalogController  *controllers.CatalogController
	WorkflowController *controllers.WorkflowController
	WebhookController  *controllers.WebhookController
	// TokenVerifier guards the workflow API and generic push webhooks. Both
	// are left unmounted when it is nil.
	TokenVerifier middlewares.TokenVerifier
}

func NewHTTPServer(deps HTTPServerDependencies) *fiber.App {
	router := fiber.New(fiber.Config{
		AppName: "automations",
	})

	router.Use(recover.New())
	router.Use(cors.New())
	router.Use(logger.New())

	router.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   "automations",
			"version":   version.GetVersion(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	catalog := router.Group("/catalog")
	catalog.Get("/triggers", deps.CatalogController.ListTriggers)
	catalog.Get("/actions", deps.CatalogController.ListActions)
	catalog.Get("/:provider", deps.CatalogController.GetProvider)

	webhooks := router.Group("/webhooks")
	webhooks.Post("/gmail", deps.WebhookController.HandleGmailPush)

	if deps.TokenVerifier == nil {
		return router
	}

	webhooks.Post("/:provider/:trigger", middlewares.RequireToken(deps.TokenVerifier, auth.ScopePush), deps.WebhookController.HandleEvent)

	workflows := router.Group("/workflows", middlewares.RequireToken(deps.TokenVerifier, auth.ScopeWorkflows))
	workflows.Post("/", deps.WorkflowController.CreateWorkflow)
	workflows.Get("/", deps.WorkflowController.ListWorkflows)
	workflows.Get("/:workflowID", deps.WorkflowController.GetWorkflow)
	workflows.Patch("/:workflowID", deps.WorkflowController.UpdateWorkflow)
	workflows.Delete("/:workflowID", deps.WorkflowController.DeleteWorkflow)
	workflows.Post("/:workflowID/activate", deps.WorkflowController.ActivateWorkflow)
	workflows.Post("/:workflowID/deactivate", deps.WorkflowController.DeactivateWorkflow)
	workflows.Post("/:workflowID/execute", deps.WorkflowController.ExecuteWorkflow)
	workflows.Get("/:workflowID/executions", deps.WorkflowController.ListExecutions)

	executions := router.Group("/executions", middlewares.RequireToken(deps.TokenVerifier, auth.ScopeWorkflows))
	executions.Get("/:executionID", deps.WorkflowController.GetExecution)
	executions.Post("/:executionID/cancel", deps.WorkflowController.CancelExecution)

	return router
}
