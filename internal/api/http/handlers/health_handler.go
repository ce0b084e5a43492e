package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/rental-portal/internal/directory"
	"github.com/spec-kit/rental-portal/internal/store"
)

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	sessions    store.SessionStore
	directory   directory.Client
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, sessions store.SessionStore, dir directory.Client) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, sessions: sessions, directory: dir}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports service readiness by checking dependencies.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	if err := h.sessions.Ping(ctx); err != nil {
		depStatus["session_store"] = err.Error()
		ready = false
	} else {
		depStatus["session_store"] = "ok"
	}

	if err := h.directory.Ping(ctx); err != nil {
		depStatus["directory"] = err.Error()
		ready = false
	} else {
		depStatus["directory"] = "ok"
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}
