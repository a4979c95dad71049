package controllers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/flowbaker/automations/internal/middlewares"
	"github.com/flowbaker/automations/pkg/dispatcher"
	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/lifecycle"
)

type WorkflowControllerDependencies struct {
	Lifecycle  *lifecycle.Manager
	Dispatcher *dispatcher.Dispatcher
}

// WorkflowController serves the owner-scoped workflow and execution API.
type WorkflowController struct {
	lifecycle  *lifecycle.Manager
	dispatcher *dispatcher.Dispatcher
}

func NewWorkflowController(deps WorkflowControllerDependencies) *WorkflowController {
	return &WorkflowController{
		lifecycle:  deps.Lifecycle,
		dispatcher: deps.Dispatcher,
	}
}

type CreateWorkflowRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Trigger     domain.WorkflowTrigger `json:"trigger"`
	Action      domain.WorkflowAction  `json:"action"`
}

type UpdateWorkflowRequest struct {
	Name        *string                 `json:"name"`
	Description *string                 `json:"description"`
	Trigger     *domain.WorkflowTrigger `json:"trigger"`
	Action      *domain.WorkflowAction  `json:"action"`
}

type ExecuteWorkflowRequest struct {
	Payload map[string]any `json:"payload"`
}

func (c *WorkflowController) CreateWorkflow(ctx fiber.Ctx) error {
	var req CreateWorkflowRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	workflow, err := c.lifecycle.CreateWorkflow(ctx.RequestCtx(), lifecycle.CreateWorkflowParams{
		OwnerID:     middlewares.UserID(ctx),
		Name:        req.Name,
		Description: req.Description,
		Trigger:     req.Trigger,
		Action:      req.Action,
	})
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(workflow)
}

func (c *WorkflowController) ListWorkflows(ctx fiber.Ctx) error {
	workflows, err := c.lifecycle.ListWorkflows(ctx.RequestCtx(), middlewares.UserID(ctx))
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"workflows": workflows})
}

func (c *WorkflowController) GetWorkflow(ctx fiber.Ctx) error {
	workflow, err := c.lifecycle.GetWorkflow(ctx.RequestCtx(), middlewares.UserID(ctx), ctx.Params("workflowID"))
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(workflow)
}

func (c *WorkflowController) UpdateWorkflow(ctx fiber.Ctx) error {
	var req UpdateWorkflowRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	workflow, err := c.lifecycle.UpdateWorkflow(ctx.RequestCtx(), lifecycle.UpdateWorkflowParams{
		OwnerID:     middlewares.UserID(ctx),
		WorkflowID:  ctx.Params("workflowID"),
		Name:        req.Name,
		Description: req.Description,
		Trigger:     req.Trigger,
		Action:      req.Action,
	})
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(workflow)
}

func (c *WorkflowController) DeleteWorkflow(ctx fiber.Ctx) error {
	if err := c.lifecycle.DeleteWorkflow(ctx.RequestCtx(), middlewares.UserID(ctx), ctx.Params("workflowID")); err != nil {
		return respondError(ctx, err)
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *WorkflowController) ActivateWorkflow(ctx fiber.Ctx) error {
	workflow, err := c.lifecycle.ActivateWorkflow(ctx.RequestCtx(), middlewares.UserID(ctx), ctx.Params("workflowID"))
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(workflow)
}

func (c *WorkflowController) DeactivateWorkflow(ctx fiber.Ctx) error {
	workflow, err := c.lifecycle.DeactivateWorkflow(ctx.RequestCtx(), middlewares.UserID(ctx), ctx.Params("workflowID"))
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(workflow)
}

func (c *WorkflowController) ExecuteWorkflow(ctx fiber.Ctx) error {
	var req ExecuteWorkflowRequest

	if len(ctx.Body()) > 0 {
		if err := ctx.Bind().Body(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	execution, err := c.lifecycle.ExecuteWorkflow(ctx.RequestCtx(), middlewares.UserID(ctx), ctx.Params("workflowID"), req.Payload)
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.Status(fiber.StatusAccepted).JSON(execution)
}

func (c *WorkflowController) ListExecutions(ctx fiber.Ctx) error {
	limit := fiber.Query[int](ctx, "limit", 50)

	executions, err := c.dispatcher.ListExecutions(ctx.RequestCtx(), middlewares.UserID(ctx), ctx.Params("workflowID"), limit)
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"executions": executions})
}

func (c *WorkflowController) GetExecution(ctx fiber.Ctx) error {
	execution, err := c.dispatcher.GetExecution(ctx.RequestCtx(), middlewares.UserID(ctx), ctx.Params("executionID"))
	if err != nil {
		return respondError(ctx, err)
	}

	if !execution.Status.IsTerminal() {
		synced, err := c.dispatcher.SyncExecutionStatus(ctx.RequestCtx(), execution.ID)
		if err != nil {
			log.Warn().Err(err).Str("execution_id", execution.ID).Msg("Failed to sync execution status")
		} else {
			execution = synced
		}
	}

	return ctx.JSON(execution)
}

func (c *WorkflowController) CancelExecution(ctx fiber.Ctx) error {
	execution, err := c.dispatcher.CancelExecution(ctx.RequestCtx(), middlewares.UserID(ctx), ctx.Params("executionID"))
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(execution)
}
