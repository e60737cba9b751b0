package handlers

import (
	stderrors "errors"

	"github.com/gofiber/fiber/v2"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/middleware"
)

// ErrorHandler renders non-transcript errors as {success:false,...}.
// Transcript outcomes, including failures, are rendered by the handlers
// themselves in the result shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var appErr *errors.AppError
	var fiberErr *fiber.Error
	switch {
	case stderrors.As(err, &appErr):
		code = appErr.Code
		message = appErr.Message
	case stderrors.As(err, &fiberErr):
		code = fiberErr.Code
		message = fiberErr.Message
	}

	log := middleware.GetLogger(c).WithField("status", code).WithError(err)
	if code >= fiber.StatusInternalServerError {
		log.Error("Request error")
	} else {
		log.Debug("Request error")
	}

	return c.Status(code).JSON(fiber.Map{
		"success":    false,
		"error":      message,
		"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
	})
}
