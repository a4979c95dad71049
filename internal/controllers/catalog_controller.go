package controllers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/flowbaker/automations/pkg/domain"
)

type CatalogControllerDependencies struct {
	Triggers *domain.TriggerRegistry
	Actions  *domain.ActionRegistry
}

// CatalogController exposes the read-only trigger and action catalog.
type CatalogController struct {
	triggers *domain.TriggerRegistry
	actions  *domain.ActionRegistry
}

func NewCatalogController(deps CatalogControllerDependencies) *CatalogController {
	return &CatalogController{
		triggers: deps.Triggers,
		actions:  deps.Actions,
	}
}

func (c *CatalogController) ListTriggers(ctx fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"triggers": c.triggers.GetAllMetadata()})
}

func (c *CatalogController) ListActions(ctx fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"actions": c.actions.GetAllMetadata()})
}

func (c *CatalogController) GetProvider(ctx fiber.Ctx) error {
	provider := domain.IntegrationType(ctx.Params("provider"))

	triggers := []domain.DescriptorView{}
	for _, trigger := range c.triggers.GetByProvider(provider) {
		triggers = append(triggers, domain.NewDescriptorView(domain.CapabilityKind_Trigger, trigger.Descriptor()))
	}

	actions := []domain.DescriptorView{}
	for _, action := range c.actions.GetByProvider(provider) {
		actions = append(actions, domain.NewDescriptorView(domain.CapabilityKind_Action, action.Descriptor()))
	}

	if len(triggers) == 0 && len(actions) == 0 {
		return fiber.NewError(fiber.StatusNotFound, "Unknown provider")
	}

	return ctx.JSON(fiber.Map{
		"provider": provider,
		"triggers": triggers,
		"actions":  actions,
	})
}
