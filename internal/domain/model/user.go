package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// 会員の状態。
type UserStatus string

const (
	//登録直後。管理者の承認待ち。
	UserStatusPending UserStatus = "PENDING"

	//承認済み。クレジットがあれば利用できる。
	UserStatusApproved UserStatus = "APPROVED"

	//却下。ログイン不可（管理者は状態変更できる）。
	UserStatusRejected UserStatus = "REJECTED"

	//クレジット0で自動ブロック。付与で復帰する。
	UserStatusBlocked UserStatus = "BLOCKED"
)

// statusとして許可される値かどうか。
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusPending, UserStatusApproved, UserStatusRejected, UserStatusBlocked:
		return true
	default:
		return false
	}
}

type User struct {
	ID           string     `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"column:password_hash;not null" json:"-"`
	Role         Role       `gorm:"type:varchar(20);not null;default:'USER'" json:"role"`
	Status       UserStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`

	//クレジット残高。0未満にはしない（減算はmax(0, ...)でクランプ）。
	Credits int `gorm:"not null;default:0" json:"credits"`

	//JWTのtvと突き合わせる。管理者操作で+1して古いtokenを無効化する。
	TokenVersion int `gorm:"not null;default:0" json:"token_version"`

	RegistrationDate    time.Time  `gorm:"not null" json:"registration_date"`
	LastCreditDeduction *time.Time `json:"last_credit_deduction"`
	LastLoginAt         *time.Time `json:"last_login_at"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
