package repository

import (
	"app/internal/domain/model"
	"context"
	"time"
)

// クレジット台帳の絞り込み条件。
type CreditLogFilter struct {
	UserID      *string
	AdminID     *string
	Type        *model.CreditLogType
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// クレジット台帳の保存・一覧取得の約束。
// 台帳は追記のみ。UpdateやDeleteは提供しない。
type CreditLogRepository interface {
	//台帳に1行追加
	Create(ctx context.Context, log *model.CreditLog) error

	//条件で一覧取得（新しい順）と総件数。
	List(ctx context.Context, filter CreditLogFilter) ([]model.CreditLog, int64, error)

	//全件数（整合性チェック用）。
	Count(ctx context.Context) (int64, error)
}
