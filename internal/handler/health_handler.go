package handler

import (
	"net/http"

	"app/internal/realtime"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db       *gorm.DB
	registry *realtime.Registry
}

func NewHealthHandler(db *gorm.DB, registry *realtime.Registry) *HealthHandler {
	return &HealthHandler{db: db, registry: registry}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
}

// HealthはGET /health のハンドラ。DB疎通と接続数を返す。
func (h *HealthHandler) Health(c echo.Context) error {
	status := http.StatusOK
	dbStatus := "ok"

	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
		status = http.StatusServiceUnavailable
		dbStatus = "down"
	}

	return c.JSON(status, map[string]interface{}{
		"status":      dbStatus,
		"connections": h.registry.ConnCount(),
	})
}
