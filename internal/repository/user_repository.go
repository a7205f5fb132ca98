package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
	"time"
)

// ユーザーが見つかりませんを統一
var ErrUserNotFound = errors.New("user not found")

// email重複
var ErrEmailAlreadyExists = errors.New("email already exists")

// 一覧取得の絞り込み条件。
type UserFilter struct {
	//statusで絞る（nilなら全部）。
	Status *model.UserStatus

	//emailの部分一致（大文字小文字は区別しない）。
	EmailContains string

	//並び替え（registration_date / credits / email / updated_at）。
	SortBy string

	//asc / desc。
	SortDesc bool

	Limit  int
	Offset int
}

// 保存・取得を約束
type UserRepository interface {
	//新規ユーザー作成
	Create(ctx context.Context, user *model.User) error

	// IDからユーザーを1件取得する。
	FindByID(ctx context.Context, userID string) (*model.User, error)

	//メールからユーザーを一件取得する（大文字小文字は区別しない）。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// ユーザー情報の更新=>クレジット・status・各種タイムスタンプの変更など。
	// 全カラムを書き戻すので、FOR UPDATEで読んだ行以外に使わないこと。
	Update(ctx context.Context, user *model.User) error

	//last_login_atだけを更新。残高やstatusには触らない。
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error

	//一覧（絞り込み+ページング）と総件数。
	List(ctx context.Context, filter UserFilter) ([]model.User, int64, error)

	//日次減算の対象（APPROVED かつ credits > 0）。
	ListEligibleForDeduction(ctx context.Context) ([]model.User, error)

	//日次減算の対象人数だけ（行は読まない。監視用）。
	CountEligibleForDeduction(ctx context.Context) (int64, error)

	//sweep対象（APPROVED かつ credits == 0）。scopeUserIDを渡すと1人だけ見る。
	ListZeroCreditApproved(ctx context.Context, scopeUserID string) ([]model.User, error)

	//statusごとの件数とクレジット合計（管理画面の統計用）。
	CountByStatus(ctx context.Context) (map[model.UserStatus]StatusCount, error)

	//全ユーザー数。
	Count(ctx context.Context) (int64, error)

	//トークンのバージョンを＋１
	IncrementTokenVersion(ctx context.Context, userID string) error
}

// statusごとの集計。
type StatusCount struct {
	Users      int64
	CreditsSum int64
}

// トランザクション内だけで使えるユーザー操作。
// 行ロック付きの取得はここにしか無い（ロックはトランザクションの外では意味がないので）。
type UserTxRepository interface {
	UserRepository

	//SELECT ... FOR UPDATE で1件取得。同じユーザーへの同時更新を直列化する。
	FindByIDForUpdate(ctx context.Context, userID string) (*model.User, error)
}
