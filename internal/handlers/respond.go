package handlers

import (
	"errors"
	"fmt"

	"repohub/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeValidation             = "VALIDATION_FAILED"
	CodeInvalidID              = "INVALID_ID"
	CodeNotFound               = "NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeBadRequest             = "BAD_REQUEST"
	CodeDuplicateEmail         = "DUPLICATE_EMAIL"
	CodeDuplicateName          = "DUPLICATE_NAME"
	CodeOwnerNotFound          = "OWNER_NOT_FOUND"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeInternal               = "INTERNAL_SERVER_ERROR"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// requestError is a client error detected before reaching a service.
type requestError struct {
	status int
	body   ErrorResponse
}

func (e *requestError) Error() string { return e.body.Message }

var validate = validator.New()

// bindBody decodes and validates the request body into dest.
func bindBody(c *fiber.Ctx, dest interface{}) error {
	if err := c.BodyParser(dest); err != nil {
		log.Debug().Ctx(c.UserContext()).Err(err).Msg("invalid request body")
		return &requestError{status: fiber.StatusBadRequest, body: ErrorResponse{
			Message: "Invalid request body",
			Code:    CodeValidation,
		}}
	}

	if err := validate.Struct(dest); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return fmt.Errorf("failed to validate request: %w", err)
		}
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return &requestError{status: fiber.StatusBadRequest, body: ErrorResponse{
			Message: "Validation failed",
			Code:    CodeValidation,
			Errors:  errorMessages,
		}}
	}
	return nil
}

// parseID reads a positive integer route parameter.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		return 0, &requestError{status: fiber.StatusBadRequest, body: ErrorResponse{
			Message: "Invalid ID",
			Code:    CodeInvalidID,
		}}
	}
	return uint(id), nil
}

func notFound(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
		Message: message,
		Code:    CodeNotFound,
	})
}

// respondError maps an error to a status code and body. Business outcomes
// become client errors; anything else is logged and hidden behind a 500.
func respondError(c *fiber.Ctx, err error) error {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return c.Status(reqErr.status).JSON(reqErr.body)
	}

	switch {
	case errors.Is(err, models.ErrDuplicateEmail):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Message: "A user with this email already exists.",
			Code:    CodeDuplicateEmail,
		})
	case errors.Is(err, models.ErrDuplicateName):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Message: "A repository with this name already exists for this user.",
			Code:    CodeDuplicateName,
		})
	case errors.Is(err, models.ErrOwnerNotFound):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "The user with the specified ID does not exist.",
			Code:    CodeOwnerNotFound,
		})
	case errors.Is(err, models.ErrConcurrentModification):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Message: "The repository was modified by another request, please try again.",
			Code:    CodeConcurrentModification,
		})
	}

	log.Error().Ctx(c.UserContext()).Err(err).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Msg("unexpected error")
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Message: "An unexpected error occurred.",
		Code:    CodeInternal,
	})
}

// ErrorHandler is the Fiber error handler. Framework errors such as unknown
// routes keep their status; everything else goes through respondError.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := CodeInternal
		switch {
		case fiberErr.Code == fiber.StatusNotFound:
			code = CodeNotFound
		case fiberErr.Code == fiber.StatusUnauthorized:
			code = CodeUnauthorized
		case fiberErr.Code == fiber.StatusBadRequest, fiberErr.Code == fiber.StatusUnprocessableEntity:
			code = CodeValidation
		case fiberErr.Code < fiber.StatusInternalServerError:
			code = CodeBadRequest
		}
		return c.Status(fiberErr.Code).JSON(ErrorResponse{Message: fiberErr.Message, Code: code})
	}
	return respondError(c, err)
}
