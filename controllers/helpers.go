package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"safeclicker/apperrors"
	"safeclicker/utils"
)

// respondError renders err with the status its apperrors class maps to.
// Unclassified errors are reported and answered with a generic 500.
func respondError(c *fiber.Ctx, err error, context map[string]interface{}) error {
	status := apperrors.StatusCode(err)
	switch status {
	case fiber.StatusNotFound:
		return utils.ErrorResponse(c, status, "Not found", err)
	case fiber.StatusForbidden:
		return utils.ErrorResponse(c, status, "Access denied", err)
	case fiber.StatusBadRequest:
		return utils.ErrorResponse(c, status, "Invalid request", err)
	case fiber.StatusConflict:
		return utils.ErrorResponse(c, status, "Conflict", err)
	}
	if context == nil {
		context = map[string]interface{}{}
	}
	context["path"] = c.Path()
	utils.LogError("request_failed", err, context)
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error", nil)
}

// idParam parses a positive numeric route parameter.
func idParam(c *fiber.Ctx, name string) (uint, error) {
	id := utils.ParseUint(c.Params(name))
	if id == 0 {
		return 0, apperrors.InvalidState("invalid %s", name)
	}
	return id, nil
}

// notFoundOr converts gorm's not-found into an apperrors NotFound.
func notFoundOr(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(resource, id)
	}
	return err
}
