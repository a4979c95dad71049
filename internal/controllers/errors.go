package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/flowbaker/automations/pkg/domain"
)

// respondError renders domain errors with the status a client can act on.
func respondError(c fiber.Ctx, err error) error {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  validationErr.Error(),
			"issues": validationErr.Issues,
		})
	}

	switch {
	case domain.IsNotFoundError(err):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case domain.IsInvalidStateError(err), errors.Is(err, domain.ErrNotActive):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRegistration), domain.IsCredentialError(err):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrExternalProvider):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")

	return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
}
