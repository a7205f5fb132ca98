package handler

import (
	"net/http"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/repository"

	"github.com/labstack/echo/v4"
)

// 会員向けの保護エリア。ゲートの通し方の見本を兼ねる。
type ProtectedHandler struct {
	cfg      config.Config
	userRepo repository.UserRepository
}

func NewProtectedHandler(cfg config.Config, userRepo repository.UserRepository) *ProtectedHandler {
	return &ProtectedHandler{cfg: cfg, userRepo: userRepo}
}

func (h *ProtectedHandler) RegisterRoutes(e *echo.Echo) {
	// /protected 配下は「JWT + token_version一致 + 承認済み」
	protected := e.Group(
		"/protected",
		middleware.AuthJWT(h.cfg),
		middleware.TokenVersionGuard(h.userRepo),
		middleware.ApprovedAreaGuard(),
	)
	protected.GET("/example", h.Example)

	//クレジット消費機能はさらにCreditGuard（毎回DBを読む）を重ねる
	credited := protected.Group("", middleware.CreditGuard(h.userRepo))
	credited.GET("/credited-example", h.CreditedExample)
}

// ExampleはGET /protected/example。承認済みエリアに入れたことの確認用。
func (h *ProtectedHandler) Example(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserIDKey).(string)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "You have access to protected content",
		"user_id": userID,
	})
}

// CreditedExampleはGET /protected/credited-example。CreditGuardを通過した人だけ来る。
func (h *ProtectedHandler) CreditedExample(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserIDKey).(string)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "You have access to credited content",
		"user_id": userID,
	})
}
