package middleware

import (
	"net/http"

	"app/internal/domain/model"
	"app/internal/policy"

	"github.com/labstack/echo/v4"
)

// 承認済みエリアのゲート。claimsのstatus/creditsだけで判定する（DBを読まない速い方）。
// claimsが古い可能性はTokenVersionGuardが先に潰している前提で使う。
func ApprovedAreaGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			status, ok := c.Get(CtxUserStatusKey).(string)
			if !ok || status == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			credits, ok := c.Get(CtxUserCreditsKey).(int)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//claimsからの写しで判定する
			snapshot := model.User{
				Status:  model.UserStatus(status),
				Credits: credits,
			}
			if d := policy.CanEnterApprovedArea(&snapshot); !d.Allowed {
				return c.JSON(http.StatusForbidden, errorJSONWithReason(denyMessage(d.Reason), string(d.Reason)))
			}

			return next(c)
		}
	}
}

// 拒否理由ごとのメッセージ。フロントはreasonの方を見る想定。
func denyMessage(reason policy.DenyReason) string {
	switch reason {
	case policy.DenyReasonPending:
		return "account pending approval"
	case policy.DenyReasonRejected:
		return "account rejected"
	case policy.DenyReasonBlocked:
		return "account blocked"
	case policy.DenyReasonNoCredits:
		return "no credits remaining"
	case policy.DenyReasonNotAdmin:
		return "admin only"
	default:
		return "forbidden"
	}
}
