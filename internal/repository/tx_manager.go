package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Users() UserTxRepository
	CreditLogs() CreditLogRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// fnがerrorを返したら全部rollback。ユーザー更新と台帳追記は必ず同じTxで行う。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
