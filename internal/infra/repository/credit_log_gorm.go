package repository

import (
	"context"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type creditLogGormRepository struct {
	db *gorm.DB
}

func NewCreditLogGormRepository(db *gorm.DB) repo.CreditLogRepository {
	return &creditLogGormRepository{db: db}
}

// 台帳に1行追加。追記のみ（UpdateもDeleteも無い）。
func (r *creditLogGormRepository) Create(ctx context.Context, log *model.CreditLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return err
	}
	return nil
}

func (r *creditLogGormRepository) List(ctx context.Context, filter repo.CreditLogFilter) ([]model.CreditLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.CreditLog{})

	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.AdminID != nil {
		q = q.Where("admin_id = ?", *filter.AdminID)
	}
	if filter.Type != nil {
		q = q.Where("type = ?", *filter.Type)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	//新しい順
	q = q.Order("created_at DESC")

	// limit/offset
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	q = q.Limit(limit).Offset(filter.Offset)

	var logs []model.CreditLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (r *creditLogGormRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.CreditLog{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
