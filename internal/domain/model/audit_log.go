package model

import "time"

// 管理者操作の種類。
type AuditAction string

const (
	//ユーザーのstatusを変更した操作。
	AuditActionUpdateStatus AuditAction = "UPDATE_STATUS"

	//複数ユーザーのstatusを一括変更した操作。
	AuditActionBatchUpdateStatus AuditAction = "BATCH_UPDATE_STATUS"

	//強制ログアウトさせた操作。
	AuditActionForceLogout AuditAction = "FORCE_LOGOUT"
)

// 何に対する操作か
type AuditResourceType string

const (
	//ユーザーに対する操作。
	AuditResourceUser AuditResourceType = "user"
)

// 監査ログ（管理者操作ログ）。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
// クレジット起因のstatus変更はCreditLog側に残るので、こちらは管理者の直接操作だけ。
type AuditLog struct {
	//IDは監査ログの主キー
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作した管理者のID。
	ActorUserID string `gorm:"type:uuid;not null;index" json:"actor_user_id"`

	//Actionは操作の種類（UPDATE_STATUS / BATCH_UPDATE_STATUS など）。
	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	//対象の種類（user）。
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	//対象のID。
	ResourceID string `gorm:"type:uuid;not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`

	//JSON文字列で保存する。
	AfterJSON string `gorm:"type:text" json:"after_json"`

	//作成時刻
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
