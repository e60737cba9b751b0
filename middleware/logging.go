package middleware

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-transcript/errors"
)

const loggerKey = "logger"

// RequestLogger attaches a request-scoped logrus entry to the context and
// logs the request outcome. It expects the requestid middleware to run
// first.
func RequestLogger(base *logrus.Logger) fiber.Handler {
	if base == nil {
		base = logrus.StandardLogger()
	}

	return func(c *fiber.Ctx) (err error) {
		start := time.Now()

		entry := base.WithFields(logrus.Fields{
			"request_id": requestID(c),
			"method":     c.Method(),
			"path":       c.Path(),
			"remote_ip":  c.IP(),
			"user_agent": c.Get(fiber.HeaderUserAgent),
		})
		c.Locals(loggerKey, entry)

		defer func() {
			if rec := recover(); rec != nil {
				err = errors.Internal("RequestLogger", fmt.Errorf("%v", rec), "Internal Server Error")
				entry.WithError(err).WithField("stack", string(debug.Stack())).Error("Panic in handler")
			}
		}()

		err = c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			} else if e, ok := err.(*errors.AppError); ok {
				status = e.Code
			}
		}

		done := entry.WithFields(logrus.Fields{
			"status":   status,
			"duration": time.Since(start),
			"size":     len(c.Response().Body()),
		})
		if err != nil {
			done = done.WithError(err)
		}

		switch {
		case status >= 500:
			done.Error("Request completed with server error")
		case status >= 400:
			done.Warn("Request completed with client error")
		default:
			done.Info("Request completed")
		}
		return err
	}
}

// GetLogger returns the request-scoped logger, or the standard logger when
// RequestLogger is not installed.
func GetLogger(c *fiber.Ctx) *logrus.Entry {
	if entry, ok := c.Locals(loggerKey).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}
