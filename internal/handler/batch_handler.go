package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"app/internal/config"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// スケジューラ（cron）から叩かれる内部エンドポイント。
// JWTではなくCRON_SECRET_TOKENのBearerで守る。
type BatchHandler struct {
	cfg       config.Config
	deduction *usecase.DailyDeductionUsecase
	sweep     *usecase.SweepUsecase
}

func NewBatchHandler(
	cfg config.Config,
	deduction *usecase.DailyDeductionUsecase,
	sweep *usecase.SweepUsecase,
) *BatchHandler {
	return &BatchHandler{cfg: cfg, deduction: deduction, sweep: sweep}
}

func (h *BatchHandler) RegisterRoutes(e *echo.Echo) {
	internal := e.Group("/internal", h.cronAuth)

	internal.POST("/credits/deduct-daily", h.DeductDaily)
	internal.GET("/credits/deduct-daily", h.DeductDailyPreview)
	internal.POST("/credits/block-zero", h.BlockZero)
}

// CRON_SECRET_TOKENの照合。固定長比較でタイミング攻撃を避ける。
func (h *BatchHandler) cronAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authz := c.Request().Header.Get("Authorization")
		parts := strings.SplitN(authz, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.JSON(http.StatusUnauthorized, errorJSON("UNAUTHORIZED"))
		}

		token := strings.TrimSpace(parts[1])
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.CronSecretToken)) != 1 {
			return c.JSON(http.StatusUnauthorized, errorJSON("UNAUTHORIZED"))
		}

		return next(c)
	}
}

// DeductDailyはPOST /internal/credits/deduct-daily のハンドラ。日次減算を実行する。
// 部分失敗してもHTTPとしては200で、bodyのerrorsに入る。
func (h *BatchHandler) DeductDaily(c echo.Context) error {
	result := h.deduction.Run(c.Request().Context())
	return c.JSON(http.StatusOK, result)
}

// DeductDailyPreviewはGET /internal/credits/deduct-daily のハンドラ。
// 実行せずに次回の対象人数だけ返す（監視用）。
func (h *BatchHandler) DeductDailyPreview(c echo.Context) error {
	count, err := h.deduction.EligibleCount(c.Request().Context())
	if err != nil {
		return writeUsecaseError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"eligible_count": count})
}

type blockZeroRequest struct {
	UserID string `json:"user_id"`
}

// BlockZeroはPOST /internal/credits/block-zero のハンドラ。sweepを実行する。
func (h *BatchHandler) BlockZero(c echo.Context) error {
	var req blockZeroRequest
	_ = c.Bind(&req)

	result, err := h.sweep.SweepZeroCreditUsers(c.Request().Context(), req.UserID)
	if err != nil {
		return writeUsecaseError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}
