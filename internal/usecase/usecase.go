package usecase

import (
	"errors"
	"time"

	"app/internal/domain/model"
)

var (
	//400 入力不足
	ErrValidation = errors.New("validation error")
	//404 対象なし
	ErrNotFound = errors.New("not found")
	//401 認証失敗
	ErrUnauthorized = errors.New("unauthorized")
	//403 却下済み（ログイン拒否はこれだけ。他の拒否はmiddlewareのguardが返す）
	ErrAccountRejected = errors.New("account rejected")
	//400 自分自身のstatusは変えられない
	ErrSelfStatusChange = errors.New("cannot change own status")
	//401 refresh tokenが再利用されてしまっている
	ErrSecurityIncident = errors.New("security incident")
	//競合
	ErrConflict = errors.New("conflict")
	//500
	ErrInternal = errors.New("internal error")
)

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

type UserDTO struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Role                string     `json:"role"`
	Status              string     `json:"status"`
	Credits             int        `json:"credits"`
	TokenVersion        int        `json:"token_version"`
	RegistrationDate    time.Time  `json:"registration_date"`
	LastCreditDeduction *time.Time `json:"last_credit_deduction"`
	LastLoginAt         *time.Time `json:"last_login_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type CreditLogDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	AdminID   *string   `json:"admin_id"`
	Amount    int       `json:"amount"`
	Type      string    `json:"type"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// model.UserをAPI返却用DTOに変換。password_hashは絶対に出さない。
func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:                  u.ID,
		Email:               u.Email,
		Role:                string(u.Role),
		Status:              string(u.Status),
		Credits:             u.Credits,
		TokenVersion:        u.TokenVersion,
		RegistrationDate:    u.RegistrationDate,
		LastCreditDeduction: u.LastCreditDeduction,
		LastLoginAt:         u.LastLoginAt,
		UpdatedAt:           u.UpdatedAt,
	}
}

func toCreditLogDTO(l *model.CreditLog) CreditLogDTO {
	return CreditLogDTO{
		ID:        l.ID,
		UserID:    l.UserID,
		AdminID:   l.AdminID,
		Amount:    l.Amount,
		Type:      string(l.Type),
		Reason:    l.Reason,
		CreatedAt: l.CreatedAt,
	}
}
