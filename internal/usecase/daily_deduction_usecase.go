package usecase

import (
	"context"
	"fmt"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

// 日次バッチのreason（台帳に残る文言）。
const dailyDeductionReason = "Daily automatic credit deduction"

// 日次減算バッチ。
// 「1人失敗しても残りは全員処理する」が一番大事な契約。
// 同日2回実行のガードはここには無い（1日1回はスケジューラ側の責任）。
type DailyDeductionUsecase struct {
	tx     repo.TransactionManager
	users  repo.UserRepository
	ledger *CreditLedgerUsecase
	log    *zap.Logger
}

func NewDailyDeductionUsecase(
	tx repo.TransactionManager,
	users repo.UserRepository,
	ledger *CreditLedgerUsecase,
	log *zap.Logger,
) *DailyDeductionUsecase {
	return &DailyDeductionUsecase{
		tx:     tx,
		users:  users,
		ledger: ledger,
		log:    log,
	}
}

type ProcessedUser struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	PreviousCredits int    `json:"previous_credits"`
	NewCredits      int    `json:"new_credits"`
	Blocked         bool   `json:"blocked"`
}

type DeductionResult struct {
	TotalProcessed int             `json:"total_processed"`
	TotalBlocked   int             `json:"total_blocked"`
	Errors         []string        `json:"errors"`
	ProcessedUsers []ProcessedUser `json:"processed_users"`
}

// Runは日次減算を実行する。
// 対象：APPROVED かつ credits > 0。すでに0の人は対象外（sweepが拾う）。
func (u *DailyDeductionUsecase) Run(ctx context.Context) DeductionResult {
	result := DeductionResult{
		Errors:         []string{},
		ProcessedUsers: []ProcessedUser{},
	}

	eligible, err := u.users.ListEligibleForDeduction(ctx)
	if err != nil {
		//対象の取得自体に失敗したら0件処理+エラー1件で返す（panicも再throwもしない）
		u.log.Error("eligible user query failed", zap.Error(err))
		result.Errors = append(result.Errors, fmt.Sprintf("eligible user query failed: %v", err))
		return result
	}

	u.log.Info("daily credit deduction started", zap.Int("eligible", len(eligible)))

	for i := range eligible {
		user := &eligible[i]
		previous := user.Credits

		//1人=1トランザクション。失敗してもそのユーザーだけ記録して次へ進む
		var res LedgerResult
		err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			var txErr error
			res, txErr = u.ledger.applyDeltaTx(ctx, r, applyDeltaTxInput{
				UserID:         user.ID,
				Amount:         -1,
				Type:           model.CreditLogTypeDailyDeduction,
				Reason:         dailyDeductionReason,
				AdminID:        nil,
				StampDeduction: true,
			})
			return txErr
		})
		if err != nil {
			u.log.Error("deduction failed for user",
				zap.String("user_id", user.ID),
				zap.String("email", user.Email),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("failed to process user %s: %v", user.Email, err))
			continue
		}

		result.TotalProcessed++
		result.ProcessedUsers = append(result.ProcessedUsers, ProcessedUser{
			ID:              user.ID,
			Email:           user.Email,
			PreviousCredits: previous,
			NewCredits:      res.User.Credits,
			Blocked:         res.Blocked,
		})
		if res.Blocked {
			result.TotalBlocked++
			u.log.Info("user blocked due to zero credits",
				zap.String("user_id", user.ID),
				zap.String("email", user.Email),
			)
		}
	}

	u.log.Info("daily credit deduction completed",
		zap.Int("total_processed", result.TotalProcessed),
		zap.Int("total_blocked", result.TotalBlocked),
		zap.Int("error_count", len(result.Errors)),
	)

	return result
}

// EligibleCountは監視用。次回バッチの対象人数を返す（COUNTだけで行は読まない）。
func (u *DailyDeductionUsecase) EligibleCount(ctx context.Context) (int, error) {
	total, err := u.users.CountEligibleForDeduction(ctx)
	if err != nil {
		return 0, ErrInternal
	}
	return int(total), nil
}
