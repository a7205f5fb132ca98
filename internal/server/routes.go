package server

import (
	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, h Handlers) {
	h.Auth.RegisterRoutes(e)
	h.Protected.RegisterRoutes(e)
	h.AdminUser.RegisterRoutes(e)
	h.Batch.RegisterRoutes(e)
}
