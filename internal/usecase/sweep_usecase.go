package usecase

import (
	"context"
	"fmt"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

// sweepのreason（台帳に残る文言）。
const autoBlockReason = "Automatic blocking due to zero credits"

// ゼロクレジット自動ブロックのsweep。
// 「APPROVEDのままcredits=0」は本来一瞬のはずだが、レースや外部経路で残ることが
// あるので、これが定期的に拾って直す。何度実行しても安全（2回目は対象が空）。
type SweepUsecase struct {
	tx     repo.TransactionManager
	users  repo.UserRepository
	ledger *CreditLedgerUsecase
	log    *zap.Logger
}

func NewSweepUsecase(
	tx repo.TransactionManager,
	users repo.UserRepository,
	ledger *CreditLedgerUsecase,
	log *zap.Logger,
) *SweepUsecase {
	return &SweepUsecase{
		tx:     tx,
		users:  users,
		ledger: ledger,
		log:    log,
	}
}

type BlockedUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type SweepResult struct {
	BlockedCount int           `json:"blocked_count"`
	BlockedUsers []BlockedUser `json:"blocked_users"`
	Errors       []string      `json:"errors"`
}

// SweepZeroCreditUsersはAPPROVEDかつcredits==0のユーザーをBLOCKEDにする。
// scopeUserIDを渡すとその1人だけ見る（空なら全員）。
// クレジットは動かさないが、statusを変えた記録としてamount=0の台帳行を必ず残す。
func (u *SweepUsecase) SweepZeroCreditUsers(ctx context.Context, scopeUserID string) (SweepResult, error) {
	result := SweepResult{
		BlockedUsers: []BlockedUser{},
		Errors:       []string{},
	}

	targets, err := u.users.ListZeroCreditApproved(ctx, scopeUserID)
	if err != nil {
		u.log.Error("zero credit query failed", zap.Error(err))
		return result, ErrInternal
	}

	//対象なしは正常（エラーではない）
	if len(targets) == 0 {
		return result, nil
	}

	for i := range targets {
		user := &targets[i]

		err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			//amount=0でもstatus導出（APPROVED+0→BLOCKED）と台帳追記が走る
			_, txErr := u.ledger.applyDeltaTx(ctx, r, applyDeltaTxInput{
				UserID:  user.ID,
				Amount:  0,
				Type:    model.CreditLogTypeDeducted,
				Reason:  autoBlockReason,
				AdminID: nil,
			})
			return txErr
		})
		if err != nil {
			u.log.Error("auto block failed for user",
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("failed to block user %s: %v", user.Email, err))
			continue
		}

		result.BlockedCount++
		result.BlockedUsers = append(result.BlockedUsers, BlockedUser{
			ID:    user.ID,
			Email: user.Email,
		})
	}

	if result.BlockedCount > 0 {
		u.log.Info("automatically blocked zero credit users", zap.Int("count", result.BlockedCount))
	}

	return result, nil
}
