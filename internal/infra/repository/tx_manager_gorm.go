package repository

import (
	"context"

	repo "app/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	users      repo.UserTxRepository
	creditLogs repo.CreditLogRepository
}

func (r *txReposGorm) Users() repo.UserTxRepository         { return r.users }
func (r *txReposGorm) CreditLogs() repo.CreditLogRepository { return r.creditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			users:      NewUserGormRepository(tx),
			creditLogs: NewCreditLogGormRepository(tx),
		}
		return fn(r)
	})
}
