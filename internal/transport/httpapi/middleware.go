package httpapi

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sujal-kumar-jasti/Apex-Invest/utils"
)

const requestIDHeader = "X-Request-Id"
const userIDHeader = "X-User-Id"
const userIDLocal = "user_id"

// RequestID assigns every request a request ID and threads it through the
// user context so service and repository logs correlate.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rqID := uuid.NewString()
		c.SetUserContext(utils.CtxWithRqID(c.UserContext(), rqID))
		c.Set(requestIDHeader, rqID)
		return c.Next()
	}
}

// RequestLogger logs each request with its outcome and latency.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		rqID := utils.GetRequestIDFromCtx(c.UserContext())
		slog.Info(
			"request handled",
			slog.String("rqID", rqID),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", c.Response().StatusCode()),
			slog.String("duration", time.Since(start).String()),
		)

		return err
	}
}

// RequireUser extracts the caller identity from the X-User-Id header.
// Authenticating that identity is the gateway's concern, not ours.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get(userIDHeader)
		if userID == "" {
			return respondError(c, "X-User-Id header is required", fiber.StatusUnauthorized)
		}
		c.Locals(userIDLocal, userID)
		return c.Next()
	}
}

func getUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals(userIDLocal).(string)
	return userID
}
