package middleware

import (
	"net/http"

	"app/internal/policy"
	"app/internal/repository"

	"github.com/labstack/echo/v4"
)

// クレジット消費機能のゲート。ここはclaimsを信用せず毎回DBを読む。
// 日次バッチが0にした直後でも、古いtokenのcredits claimで通り抜けられない。
func CreditGuard(userRepo repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := c.Get(CtxUserIDKey).(string)
			if !ok || userID == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//最新の残高とstatusをDBから取る
			user, err := userRepo.FindByID(c.Request().Context(), userID)
			if err != nil || user == nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			if d := policy.CanUseCreditedCapability(user); !d.Allowed {
				return c.JSON(http.StatusForbidden, errorJSONWithReason(denyMessage(d.Reason), string(d.Reason)))
			}

			return next(c)
		}
	}
}
