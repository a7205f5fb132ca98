package handler

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"os"
	"time"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	cfg          config.Config
	userRepo     repository.UserRepository
	uc           *usecase.AuthUsecase
	refreshTTL   time.Duration // refresh/csrf cookie の有効期限
	cookieSecure bool
}

// DIコンストラクタ
func NewAuthHandler(
	cfg config.Config,
	userRepo repository.UserRepository,
	uc *usecase.AuthUsecase,
	refreshTTL time.Duration,
) *AuthHandler {
	return &AuthHandler{
		cfg:          cfg,
		userRepo:     userRepo,
		uc:           uc,
		refreshTTL:   refreshTTL,
		cookieSecure: envBool("COOKIE_SECURE", true),
	}
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True":
		return true
	case "0", "false", "FALSE", "False":
		return false
	default:
		return def
	}
}

func (h *AuthHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/auth/register", h.Register)
	e.POST("/auth/login", h.Login)
	e.POST("/auth/refresh", h.Refresh)
	e.POST("/auth/logout", h.Logout)

	// /users/me は「JWT必須 + token_version一致」だけ（PENDINGでも自分の状態は見える）
	me := e.Group(
		"/users",
		middleware.AuthJWT(h.cfg),
		middleware.TokenVersionGuard(h.userRepo),
	)
	me.GET("/me", h.Me)
}

// RegisterはPOST /auth/registerのハンドラ
func (h *AuthHandler) Register(c echo.Context) error {
	var req usecase.AuthRegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON("VALIDATION_ERROR"))
	}

	out, err := h.uc.Register(c.Request().Context(), req)
	if err != nil {
		return writeUsecaseError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

// LoginはPOST /auth/login のハンドラ。
func (h *AuthHandler) Login(c echo.Context) error {
	var req usecase.AuthLoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON("VALIDATION_ERROR"))
	}

	// User-Agentを取得（refreshtokenに紐付ける）
	userAgent := c.Request().Header.Get("User-Agent")

	out, err := h.uc.Login(c.Request().Context(), req, userAgent)
	if err != nil {
		return writeUsecaseError(c, err)
	}

	// refresh cookie
	h.setRefreshCookie(c, out.RefreshTokenPlain)

	//csrf cookie
	csrfToken, genErr := generateSecureToken(32)
	if genErr != nil {
		return c.JSON(http.StatusInternalServerError, errorJSON("INTERNAL"))
	}
	h.setCsrfCookie(c, csrfToken)

	//JSONレスポンス（user + token）
	return c.JSON(http.StatusOK, out.Body)
}

// RefreshはPOST /auth/refresh のハンドラ。cookieのrefresh tokenでaccess tokenを再発行する。
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie("refresh")
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusUnauthorized, errorJSON("UNAUTHORIZED"))
	}

	userAgent := c.Request().Header.Get("User-Agent")

	out, uerr := h.uc.Refresh(c.Request().Context(), cookie.Value, userAgent)
	if uerr != nil {
		//不正が疑われたらcookieも消す
		h.clearRefreshCookie(c)
		return writeUsecaseError(c, uerr)
	}

	//ローテーションした新しいrefreshをcookieに入れ直す
	h.setRefreshCookie(c, out.RefreshTokenPlain)

	return c.JSON(http.StatusOK, out.Body)
}

// LogoutはPOST /auth/logout のハンドラ。
func (h *AuthHandler) Logout(c echo.Context) error {
	cookie, err := c.Cookie("refresh")
	if err != nil || cookie.Value == "" {
		//cookieが無くてもlogoutは成功扱い
		h.clearRefreshCookie(c)
		return c.JSON(http.StatusOK, usecase.SuccessResponse{Message: "logout success"})
	}

	out, uerr := h.uc.Logout(c.Request().Context(), cookie.Value)
	h.clearRefreshCookie(c)
	if uerr != nil {
		//token側が無効でもcookieは消したので成功にする
		return c.JSON(http.StatusOK, usecase.SuccessResponse{Message: "logout success"})
	}

	return c.JSON(http.StatusOK, out)
}

// MeはGET /users/me のハンドラ。DBの最新の自分を返す。
func (h *AuthHandler) Me(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserIDKey).(string)

	out, err := h.uc.Me(c.Request().Context(), userID)
	if err != nil {
		return writeUsecaseError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// refreshtoken をCookieにセット。
func (h *AuthHandler) setRefreshCookie(c echo.Context, plainRefresh string) {
	exp := time.Now().Add(h.refreshTTL)

	cookie := &http.Cookie{
		Name:     "refresh",
		Value:    plainRefresh,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	}
	c.SetCookie(cookie)
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	cookie := &http.Cookie{
		Name:     "refresh",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
	c.SetCookie(cookie)
}

// csrftokenをCookieにセット
func (h *AuthHandler) setCsrfCookie(c echo.Context, csrfToken string) {
	exp := time.Now().Add(h.refreshTTL)

	cookie := &http.Cookie{
		Name:     "csrf_token",
		Value:    csrfToken,
		Path:     "/",
		HttpOnly: false,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	}
	c.SetCookie(cookie)
}

// ランダム文字列を作る。
func generateSecureToken(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = 32
	}

	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
