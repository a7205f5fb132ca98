package server

import (
	"net/http"

	"app/internal/handler"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// Handlersはルート登録に必要なhandler一式。
type Handlers struct {
	Auth      *handler.AuthHandler
	Protected *handler.ProtectedHandler
	AdminUser *handler.AdminUserHandler
	Batch     *handler.BatchHandler
}

// Newはechoを組み立てて返す（起動はしない。テストから使えるように分けている）。
func New(h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	//死活監視用
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	RegisterRoutes(e, h)

	return e
}

// Startはサーバを起動する。
func Start(addr string, h Handlers) error {
	e := New(h)
	return e.Start(addr)
}
