package usecase

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

// 1回の操作で動かせる量の上限。オペミス（桁間違い等）をここで止める。
const (
	maxCreditDelta = 1000
	minCreditDelta = -1000
)

// クレジット台帳エンジン。
// 残高の増減・statusの導出・台帳への追記を全部ここで行う。
// 残高やstatusを動かすのにここを通らない経路は作らないこと。
type CreditLedgerUsecase struct {
	tx    repo.TransactionManager
	idGen IDGenerator
	clock Clock
	log   *zap.Logger
}

func NewCreditLedgerUsecase(
	tx repo.TransactionManager,
	idGen IDGenerator,
	clock Clock,
	log *zap.Logger,
) *CreditLedgerUsecase {
	return &CreditLedgerUsecase{
		tx:    tx,
		idGen: idGen,
		clock: clock,
		log:   log,
	}
}

type ApplyCreditDeltaInput struct {
	UserID string
	Amount int
	Reason string
	//操作した管理者。システム起因ならnil。
	AdminID *string
}

type LedgerResult struct {
	User UserDTO      `json:"user"`
	Log  CreditLogDTO `json:"log"`

	//この操作でBLOCKEDになったか。
	Blocked bool `json:"blocked"`
}

// 残高変更後のstatusを決める。このルールはここだけに書く。
//   - BLOCKED中に残高が増えたらAPPROVEDに戻す（付与で復帰）。
//   - APPROVEDで残高が0になったらBLOCKED（使い切りで自動ブロック）。
//   - それ以外は変えない。
func deriveStatus(current model.UserStatus, newCredits int) model.UserStatus {
	if current == model.UserStatusBlocked && newCredits > 0 {
		return model.UserStatusApproved
	}
	if current == model.UserStatusApproved && newCredits == 0 {
		return model.UserStatusBlocked
	}
	return current
}

// ApplyCreditDeltaは管理者のクレジット調整の入口。
// ユーザー更新と台帳追記を1トランザクションで行う（片方だけは絶対に起きない）。
func (u *CreditLedgerUsecase) ApplyCreditDelta(ctx context.Context, in ApplyCreditDeltaInput) (LedgerResult, error) {
	var out LedgerResult

	if in.UserID == "" {
		return out, ErrValidation
	}

	//±1000を超える指定はオペミス扱いで拒否
	if in.Amount < minCreditDelta || in.Amount > maxCreditDelta {
		return out, ErrValidation
	}

	//typeは符号で決まる（バッチのDAILY_DEDUCTIONはここを通らない）
	logType := model.CreditLogTypeDeducted
	if in.Amount > 0 {
		logType = model.CreditLogTypeAdded
	}

	//reason未指定時のデフォルト
	reason := in.Reason
	if reason == "" {
		if in.Amount > 0 {
			reason = "Credits added by admin"
		} else {
			reason = "Credits deducted by admin"
		}
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		res, err := u.applyDeltaTx(ctx, r, applyDeltaTxInput{
			UserID:  in.UserID,
			Amount:  in.Amount,
			Type:    logType,
			Reason:  reason,
			AdminID: in.AdminID,
		})
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
			return LedgerResult{}, err
		}
		u.log.Error("credit delta failed",
			zap.String("user_id", in.UserID),
			zap.Int("amount", in.Amount),
			zap.Error(err),
		)
		return LedgerResult{}, ErrInternal
	}

	return out, nil
}

type applyDeltaTxInput struct {
	UserID  string
	Amount  int
	Type    model.CreditLogType
	Reason  string
	AdminID *string

	//日次バッチのときだけtrue。last_credit_deductionを押す。
	StampDeduction bool
}

// applyDeltaTxは呼び出し側のトランザクションの中で残高を動かす本体。
// FOR UPDATEで行を取るので、同じユーザーへの同時更新はここで直列になる。
func (u *CreditLedgerUsecase) applyDeltaTx(ctx context.Context, r repo.TxRepos, in applyDeltaTxInput) (LedgerResult, error) {
	user, err := r.Users().FindByIDForUpdate(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return LedgerResult{}, ErrNotFound
		}
		return LedgerResult{}, err
	}

	now := u.clock.Now()

	//0未満にはしない（クランプ）
	newCredits := user.Credits + in.Amount
	if newCredits < 0 {
		newCredits = 0
	}

	//実際に適用された増減（クランプ後）。台帳にはこれを書く
	applied := newCredits - user.Credits

	prevStatus := user.Status
	newStatus := deriveStatus(user.Status, newCredits)

	user.Credits = newCredits
	user.Status = newStatus
	user.UpdatedAt = now
	if in.StampDeduction {
		user.LastCreditDeduction = &now
	}

	//残高かstatusが変わったら古いclaimsを殺す
	if applied != 0 || newStatus != prevStatus {
		user.TokenVersion++
	}

	if err := r.Users().Update(ctx, user); err != nil {
		return LedgerResult{}, err
	}

	entry := &model.CreditLog{
		ID:        u.idGen.NewID(),
		UserID:    user.ID,
		AdminID:   in.AdminID,
		Amount:    applied,
		Type:      in.Type,
		Reason:    in.Reason,
		CreatedAt: now,
	}
	if err := r.CreditLogs().Create(ctx, entry); err != nil {
		return LedgerResult{}, err
	}

	return LedgerResult{
		User:    toUserDTO(user),
		Log:     toCreditLogDTO(entry),
		Blocked: prevStatus != model.UserStatusBlocked && newStatus == model.UserStatusBlocked,
	}, nil
}
