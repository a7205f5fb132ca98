package model

import "time"

// クレジット変動の種類。
type CreditLogType string

const (
	//管理者がクレジットを追加した。
	CreditLogTypeAdded CreditLogType = "ADDED"

	//管理者が減算した。自動ブロックの記録（amount=0）もここ。
	CreditLogTypeDeducted CreditLogType = "DEDUCTED"

	//日次バッチの-1。
	CreditLogTypeDailyDeduction CreditLogType = "DAILY_DEDUCTION"
)

// クレジット台帳（追記のみ）。
// 残高やstatusを動かした取引は必ず同一トランザクションで1行残す。
// 書いた後は更新も削除もしない。
type CreditLog struct {
	ID string `gorm:"type:uuid;primaryKey" json:"id"`

	//対象ユーザー。
	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`

	//操作した管理者。システム起因（日次バッチ・sweep）はnil。
	AdminID *string `gorm:"type:uuid;index" json:"admin_id"`

	//符号付きの増減。statusだけ直した監査行は0。
	Amount int `gorm:"not null" json:"amount"`

	Type   CreditLogType `gorm:"type:varchar(20);not null;index" json:"type"`
	Reason string        `gorm:"type:varchar(255)" json:"reason"`

	//並び順のキー。
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
