// アクセス判定を1箇所に集める。
// statusとcreditsは別々の必要条件として見る（status=APPROVEDのままcredits=0の
// 瞬間があるので、statusだけを信用しない）。
package policy

import "app/internal/domain/model"

// 拒否理由。handlerはこれを見て具体的なレスポンスを返す。
type DenyReason string

const (
	DenyReasonNone DenyReason = ""

	//承認待ち。
	DenyReasonPending DenyReason = "pending"

	//却下済み。
	DenyReasonRejected DenyReason = "rejected"

	//ブロック中またはクレジット0。
	DenyReasonBlocked DenyReason = "blocked"

	//クレジット不足（credit消費機能用）。
	DenyReasonNoCredits DenyReason = "no_credits"

	//ADMINではない。
	DenyReasonNotAdmin DenyReason = "not_admin"
)

// 判定結果。
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision {
	return Decision{Allowed: true, Reason: DenyReasonNone}
}

func deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// ログインしてよいか。REJECTEDだけ拒否（パスワード照合は別）。
// PENDING/BLOCKEDはログイン自体はできて、その先の画面で弾かれる。
func CanAuthenticate(u *model.User) Decision {
	if u.Status == model.UserStatusRejected {
		return deny(DenyReasonRejected)
	}
	return allow()
}

// 承認済みエリア（ダッシュボード等）に入れるか。
func CanEnterApprovedArea(u *model.User) Decision {
	if u.Status == model.UserStatusPending {
		return deny(DenyReasonPending)
	}
	if u.Status == model.UserStatusRejected {
		return deny(DenyReasonRejected)
	}
	//statusがまだAPPROVEDでもcredits<=0なら入れない
	if u.Status == model.UserStatusBlocked || u.Credits <= 0 {
		return deny(DenyReasonBlocked)
	}
	return allow()
}

// クレジットを消費する機能を使えるか。一番厳しいゲート。
func CanUseCreditedCapability(u *model.User) Decision {
	if u.Status == model.UserStatusPending {
		return deny(DenyReasonPending)
	}
	if u.Status == model.UserStatusRejected {
		return deny(DenyReasonRejected)
	}
	//credits<=0はstatusに関係なく即拒否
	if u.Credits <= 0 || u.Status == model.UserStatusBlocked {
		return deny(DenyReasonNoCredits)
	}
	return allow()
}

// 管理者機能を使えるか。roleだけで判定（creditsは見ない）。
func CanAdminister(u *model.User) Decision {
	if u.Role != model.RoleAdmin {
		return deny(DenyReasonNotAdmin)
	}
	return allow()
}
