package repository

import (
	"app/internal/domain/model"
	domainrepo "app/internal/repository"
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userGormRepository struct {
	db *gorm.DB
}

// DI
// main.goでこれをnewしてusecaseに注入します。
func NewUserGormRepository(db *gorm.DB) domainrepo.UserTxRepository {
	return &userGormRepository{db: db}
}

// Create はユーザーを新規作成
func (r *userGormRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		//email重複（unique違反）をConflictに変換する
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainrepo.ErrEmailAlreadyExists
		}
		return err
	}
	return nil
}

// emailでユーザーを1件取得（大文字小文字は区別しない）
func (r *userGormRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User

	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainrepo.ErrUserNotFound
		}
		return nil, err
	}

	return &u, nil
}

// IDでユーザーを1件取得
func (r *userGormRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&u).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainrepo.ErrUserNotFound
		}
		return nil, err
	}

	return &u, nil
}

// SELECT ... FOR UPDATE で1件取得。
// トランザクションの中で呼ぶこと。同じユーザーの残高更新を直列化する。
func (r *userGormRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.User, error) {
	var u model.User

	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&u).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainrepo.ErrUserNotFound
		}
		return nil, err
	}

	return &u, nil
}

// ユーザーを更新。全カラムのSaveなのでロック付きで読んだ行にだけ使う。
func (r *userGormRepository) Update(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return err
	}
	return nil
}

// last_login_atだけを更新。ログインと日次バッチが競合しても残高を書き戻さない。
func (r *userGormRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", &at)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainrepo.ErrUserNotFound
	}
	return nil
}

// 一覧（絞り込み + ページング）。usersと総件数を返す。
func (r *userGormRepository) List(ctx context.Context, filter domainrepo.UserFilter) ([]model.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.User{})

	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if s := strings.TrimSpace(filter.EmailContains); s != "" {
		q = q.Where("email ILIKE ?", "%"+s+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	//並び替え（許可したカラムだけ。それ以外はregistration_date）
	sortBy := filter.SortBy
	switch sortBy {
	case "registration_date", "credits", "email", "updated_at":
	default:
		sortBy = "registration_date"
	}
	dir := "ASC"
	if filter.SortDesc {
		dir = "DESC"
	}
	q = q.Order(sortBy + " " + dir)

	// limit/offset
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	q = q.Limit(limit).Offset(offset)

	var users []model.User
	if err := q.Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// 日次減算の対象一覧。APPROVED かつ credits > 0 だけ。
// 0のユーザーはバッチ対象外（sweepが拾う）。
func (r *userGormRepository) ListEligibleForDeduction(ctx context.Context) ([]model.User, error) {
	var users []model.User

	err := r.db.WithContext(ctx).
		Where("status = ? AND credits > 0", model.UserStatusApproved).
		Order("registration_date ASC").
		Find(&users).Error

	if err != nil {
		return nil, err
	}
	return users, nil
}

// 日次減算の対象人数。COUNTだけで行は読まない。
func (r *userGormRepository) CountEligibleForDeduction(ctx context.Context) (int64, error) {
	var total int64

	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("status = ? AND credits > 0", model.UserStatusApproved).
		Count(&total).Error

	if err != nil {
		return 0, err
	}
	return total, nil
}

// sweep対象一覧。APPROVED かつ credits == 0。
func (r *userGormRepository) ListZeroCreditApproved(ctx context.Context, scopeUserID string) ([]model.User, error) {
	q := r.db.WithContext(ctx).
		Where("status = ? AND credits = 0", model.UserStatusApproved)

	if scopeUserID != "" {
		q = q.Where("id = ?", scopeUserID)
	}

	var users []model.User
	if err := q.Order("registration_date ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

type statusCountRow struct {
	Status     model.UserStatus
	Users      int64
	CreditsSum int64
}

// statusごとの件数とクレジット合計。
func (r *userGormRepository) CountByStatus(ctx context.Context) (map[model.UserStatus]domainrepo.StatusCount, error) {
	var rows []statusCountRow

	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Select("status, COUNT(*) AS users, COALESCE(SUM(credits), 0) AS credits_sum").
		Group("status").
		Scan(&rows).Error

	if err != nil {
		return nil, err
	}

	result := make(map[model.UserStatus]domainrepo.StatusCount, len(rows))
	for _, row := range rows {
		result[row.Status] = domainrepo.StatusCount{
			Users:      row.Users,
			CreditsSum: row.CreditsSum,
		}
	}
	return result, nil
}

// 全ユーザー数。
func (r *userGormRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// token_versionを+1 します。
func (r *userGormRepository) IncrementTokenVersion(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumn("token_version", gorm.Expr("token_version + ?", 1))

	if res.Error != nil {
		return res.Error
	}

	// 0件更新は「対象がない」
	if res.RowsAffected == 0 {
		return domainrepo.ErrUserNotFound
	}
	return nil
}
