package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/fuelnow/fuelnow/internal/apperror"
)

// ErrorHandler renders handler errors as {"error", "code"} JSON. Fiber errors
// keep their status; domain errors are mapped by kind and storage faults are
// logged but never echoed to the caller.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		status := statusOf(err)
		kind := apperror.KindOf(err)
		if kind == apperror.KindStorage && logger != nil {
			requestID, _ := c.Locals(requestIDHeader).(string)
			logger.Error("request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("request_id", requestID),
				slog.Any("error", err),
			)
		}
		return c.Status(status).JSON(fiber.Map{
			"error": apperror.PublicMessage(err),
			"code":  string(kind),
		})
	}
}

func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return apperror.HTTPStatus(err)
}
