package handler

import (
	"net/http"
	"strconv"
	"strings"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminUserHandler struct {
	cfg      config.Config
	userRepo repository.UserRepository
	uc       *usecase.AdminUserUsecase
	sweep    *usecase.SweepUsecase
}

func NewAdminUserHandler(
	cfg config.Config,
	userRepo repository.UserRepository,
	uc *usecase.AdminUserUsecase,
	sweep *usecase.SweepUsecase,
) *AdminUserHandler {
	return &AdminUserHandler{cfg: cfg, userRepo: userRepo, uc: uc, sweep: sweep}
}

func (h *AdminUserHandler) RegisterRoutes(e *echo.Echo) {
	// ★ /admin 配下は全部「JWT必須 + token_version一致 + ADMIN限定」
	admin := e.Group(
		"/admin",
		middleware.AuthJWT(h.cfg),
		middleware.TokenVersionGuard(h.userRepo),
		middleware.AdminRoleGuard(),
	)

	admin.GET("/users", h.ListUsers)
	admin.PUT("/users/batch-status", h.BatchUpdateStatus)
	admin.PUT("/users/:id/status", h.UpdateStatus)
	admin.PUT("/users/:id/credits", h.AdjustCredits)
	admin.GET("/users/:id/credit-logs", h.ListCreditLogs)
	admin.POST("/users/:id/force-logout", h.ForceLogout)
	admin.POST("/users/block-zero-credits", h.BlockZeroCredits)
	admin.GET("/credit-logs/export", h.ExportCreditLogs)
	admin.GET("/audit-logs", h.ListAuditLogs)
	admin.GET("/stats", h.Stats)
}

// ListUsersはGET /admin/users のハンドラ。
func (h *AdminUserHandler) ListUsers(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	out, err := h.uc.ListUsers(c.Request().Context(), usecase.ListUsersInput{
		Page:     page,
		Limit:    limit,
		Status:   c.QueryParam("status"),
		Search:   c.QueryParam("search"),
		SortBy:   c.QueryParam("sort_by"),
		SortDesc: c.QueryParam("sort_order") != "asc",
	})
	if err != nil {
		return writeUsecaseError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatusはPUT /admin/users/:id/status のハンドラ。
func (h *AdminUserHandler) UpdateStatus(c echo.Context) error {
	adminID, _ := c.Get(middleware.CtxUserIDKey).(string)

	targetID := c.Param("id")
	if targetID == "" {
		return c.JSON(http.StatusBadRequest, errorJSON("invalid user_id"))
	}

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON("VALIDATION_ERROR"))
	}

	out, err := h.uc.UpdateStatus(c.Request().Context(), adminID, targetID, req.Status)
	if err != nil {
		return writeUsecaseError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

type batchUpdateStatusRequest struct {
	UserIDs []string `json:"user_ids"`
	Status  string   `json:"status"`
}

// BatchUpdateStatusはPUT /admin/users/batch-status のハンドラ。
func (h *AdminUserHandler) BatchUpdateStatus(c echo.Context) error {
	adminID, _ := c.Get(middleware.CtxUserIDKey).(string)

	var req batchUpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON("VALIDATION_ERROR"))
	}

	out, err := h.uc.BatchUpdateStatus(c.Request().Context(), adminID, req.UserIDs, req.Status)
	if err != nil {
		return writeUsecaseError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

type adjustCreditsRequest struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// AdjustCreditsはPUT /admin/users/:id/credits のハンドラ。
func (h *AdminUserHandler) AdjustCredits(c echo.Context) error {
	adminID, _ := c.Get(middleware.CtxUserIDKey).(string)

	targetID := c.Param("id")
	if targetID == "" {
		return c.JSON(http.StatusBadRequest, errorJSON("invalid user_id"))
	}

	var req adjustCreditsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON("VALIDATION_ERROR"))
	}

	out, err := h.uc.AdjustCredits(c.Request().Context(), adminID, targetID, req.Amount, req.Reason)
	if err != nil {
		return writeUsecaseError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// ListCreditLogsはGET /admin/users/:id/credit-logs のハンドラ。
func (h *AdminUserHandler) ListCreditLogs(c echo.Context) error {
	targetID := c.Param("id")
	if targetID == "" {
		return c.JSON(http.StatusBadRequest, errorJSON("invalid user_id"))
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	out, err := h.uc.ListCreditLogs(c.Request().Context(), targetID, limit, offset)
	if err != nil {
		return writeUsecaseError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// ExportCreditLogsはGET /admin/credit-logs/export のハンドラ。xlsxを返す。
func (h *AdminUserHandler) ExportCreditLogs(c echo.Context) error {
	userID := c.QueryParam("user_id")

	data, filename, err := h.uc.ExportCreditLogsXLSX(c.Request().Context(), userID)
	if err != nil {
		return writeUsecaseError(c, err)
	}

	c.Response().Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// ForceLogoutはPOST /admin/users/:id/force-logout のハンドラ。
func (h *AdminUserHandler) ForceLogout(c echo.Context) error {
	adminID, _ := c.Get(middleware.CtxUserIDKey).(string)

	targetID := c.Param("id")
	if targetID == "" {
		return c.JSON(http.StatusBadRequest, errorJSON("invalid user_id"))
	}

	out, err := h.uc.ForceLogout(c.Request().Context(), adminID, targetID)
	if err != nil {
		return writeUsecaseError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

type blockZeroCreditsRequest struct {
	UserID string `json:"user_id"`
}

// BlockZeroCreditsはPOST /admin/users/block-zero-credits のハンドラ。
// body未指定なら全員sweep、user_id指定ならその1人だけ。
func (h *AdminUserHandler) BlockZeroCredits(c echo.Context) error {
	var req blockZeroCreditsRequest
	//bodyなしも許す
	_ = c.Bind(&req)

	out, err := h.sweep.SweepZeroCreditUsers(c.Request().Context(), req.UserID)
	if err != nil {
		return writeUsecaseError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// ListAuditLogsはGET /admin/audit-logs のハンドラ。
func (h *AdminUserHandler) ListAuditLogs(c echo.Context) error {
	filter := repository.AuditLogFilter{}

	if v := strings.TrimSpace(c.QueryParam("actor_user_id")); v != "" {
		filter.ActorUserID = &v
	}
	if v := strings.TrimSpace(c.QueryParam("resource_id")); v != "" {
		filter.ResourceID = &v
	}
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filter.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	logs, err := h.uc.ListAuditLogs(c.Request().Context(), filter)
	if err != nil {
		return writeUsecaseError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"logs": logs})
}

// StatsはGET /admin/stats のハンドラ。
func (h *AdminUserHandler) Stats(c echo.Context) error {
	out, err := h.uc.Stats(c.Request().Context())
	if err != nil {
		return writeUsecaseError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
