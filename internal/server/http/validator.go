package http

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"reverc/internal/server/core"
)

var validate = validator.New()

// validationMiddleware parses and validates JSON bodies by route
func validationMiddleware(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		return c.Next()
	}

	path := c.Path()
	var requestType any

	switch {
	case strings.HasPrefix(path, "/api/move/custom/"), strings.HasPrefix(path, "/api/move/archive/"):
		requestType = &core.MoveRequest{}
	case strings.HasPrefix(path, "/api/move/ai/"):
		requestType = &core.AIMoveRequest{}
	case path == "/api/setup":
		requestType = &core.SetupRequest{}
	case path == "/api/admin/login":
		requestType = &core.AdminLoginRequest{}
	default:
		return c.Next() // No validation for unknown endpoints
	}

	// BodyParser needs the content type to pick a decoder
	if c.Get(fiber.HeaderContentType) == "" {
		c.Request().Header.SetContentType(fiber.MIMEApplicationJSON)
	}
	if err := c.BodyParser(requestType); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "invalid request body",
			Code:    core.ErrInvalidRequest,
			Details: err.Error(),
		})
	}

	if errs := validate.Struct(requestType); errs != nil {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "validation failed",
			Code:    core.ErrValidationFailed,
			Details: describe(errs),
		})
	}

	c.Locals("validatedBody", requestType)
	c.Locals("validated", true)

	return c.Next()
}

func describe(errs error) string {
	verrs, ok := errs.(validator.ValidationErrors)
	if !ok {
		return errs.Error()
	}

	var details strings.Builder
	for _, err := range verrs {
		if details.Len() > 0 {
			details.WriteString("; ")
		}
		switch err.Tag() {
		case "required":
			details.WriteString(fmt.Sprintf("%s is required", err.Namespace()))
		case "oneof":
			details.WriteString(fmt.Sprintf("%s must be one of [%s]", err.Namespace(), err.Param()))
		case "min":
			if err.Kind() == reflect.String {
				details.WriteString(fmt.Sprintf("%s must be at least %s characters", err.Namespace(), err.Param()))
			} else {
				details.WriteString(fmt.Sprintf("%s must be at least %s", err.Namespace(), err.Param()))
			}
		case "max":
			if err.Kind() == reflect.String {
				details.WriteString(fmt.Sprintf("%s must be at most %s characters", err.Namespace(), err.Param()))
			} else {
				details.WriteString(fmt.Sprintf("%s must be at most %s", err.Namespace(), err.Param()))
			}
		default:
			details.WriteString(fmt.Sprintf("%s failed %s validation", err.Namespace(), err.Tag()))
		}
	}
	return details.String()
}

// validatedBody returns the body stored by validationMiddleware
func validatedBody[T any](c *fiber.Ctx) (*T, *core.ErrorResponse) {
	validated, ok := c.Locals("validated").(bool)
	if !ok || !validated {
		return nil, &core.ErrorResponse{Error: "validation bypass detected", Code: core.ErrInternalError}
	}
	body, ok := c.Locals("validatedBody").(*T)
	if !ok || body == nil {
		return nil, &core.ErrorResponse{Error: "validation data missing", Code: core.ErrInternalError}
	}
	return body, nil
}
