package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Version is a string type for dependency injection of the build version.
type Version string

// Inventory reports what a broker serves.
type Inventory interface {
	Schemes() []string
	Stages() []string
}

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	inventory Inventory
	version   Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(inv Inventory, v Version) *HealthHandler {
	return &HealthHandler{inventory: inv, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns the build version with the registered schemes and stages.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": string(h.version),
		"schemes": h.inventory.Schemes(),
		"stages":  h.inventory.Stages(),
	})
}
