package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/storage"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func success(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(Response{Success: true, Data: data})
}

func errorResponse(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Response{
		Success: false,
		Error:   &ErrorBody{Code: codeFor(status), Message: message},
	})
}

func statusFor(err error) int {
	var userErr *common.UserError
	switch {
	case errors.Is(err, common.ErrNotFound):
		return fiber.StatusNotFound
	case errors.As(err, &userErr),
		errors.Is(err, common.ErrInvalidConfig),
		errors.Is(err, storage.ErrEmptyString),
		errors.Is(err, storage.ErrInvalidType),
		errors.Is(err, storage.ErrInvalidID):
		return fiber.StatusBadRequest
	case errors.Is(err, common.ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func codeFor(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusServiceUnavailable:
		return "UNAVAILABLE"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	default:
		if status >= 500 {
			return "INTERNAL_ERROR"
		}
		return "ERROR"
	}
}
