package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// 管理者向けのユーザー管理。
// クレジット調整はCreditLedgerUsecaseに委譲する（残高を直接触る処理はここに書かない）。
type AdminUserUsecase struct {
	tx         repo.TransactionManager
	users      repo.UserRepository
	creditLogs repo.CreditLogRepository
	auditLogs  repo.AuditLogRepository
	rtRepo     repo.RefreshTokenRepository
	ledger     *CreditLedgerUsecase
	clock      Clock
	log        *zap.Logger
}

func NewAdminUserUsecase(
	tx repo.TransactionManager,
	users repo.UserRepository,
	creditLogs repo.CreditLogRepository,
	auditLogs repo.AuditLogRepository,
	rtRepo repo.RefreshTokenRepository,
	ledger *CreditLedgerUsecase,
	clock Clock,
	log *zap.Logger,
) *AdminUserUsecase {
	return &AdminUserUsecase{
		tx:         tx,
		users:      users,
		creditLogs: creditLogs,
		auditLogs:  auditLogs,
		rtRepo:     rtRepo,
		ledger:     ledger,
		clock:      clock,
		log:        log,
	}
}

// =====================
// ユーザー一覧
// =====================

type ListUsersInput struct {
	Page     int
	Limit    int
	Status   string // all / pending / approved / rejected / blocked
	Search   string // emailの部分一致
	SortBy   string
	SortDesc bool
}

type AdminUserDTO struct {
	UserDTO

	//登録からの日数。
	DaysSinceRegistration int `json:"days_since_registration"`

	//今のペース（1日-1）で残高が切れる予定日。APPROVED以外はnil。
	EstimatedExpiryDate *time.Time `json:"estimated_expiry_date"`
}

type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalCount  int64 `json:"total_count"`
	Limit       int   `json:"limit"`
	HasNextPage bool  `json:"has_next_page"`
	HasPrevPage bool  `json:"has_prev_page"`
}

type ListUsersOutput struct {
	Users      []AdminUserDTO `json:"users"`
	Pagination Pagination     `json:"pagination"`
}

func (u *AdminUserUsecase) ListUsers(ctx context.Context, in ListUsersInput) (*ListUsersOutput, error) {
	page := in.Page
	if page <= 0 {
		page = 1
	}
	limit := in.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	filter := repo.UserFilter{
		EmailContains: in.Search,
		SortBy:        in.SortBy,
		SortDesc:      in.SortDesc,
		Limit:         limit,
		Offset:        (page - 1) * limit,
	}

	//statusの絞り込み（"all"と空は絞らない）
	if in.Status != "" && in.Status != "all" {
		st := model.UserStatus(in.Status)
		if !st.Valid() {
			return nil, ErrValidation
		}
		filter.Status = &st
	}

	users, total, err := u.users.List(ctx, filter)
	if err != nil {
		return nil, ErrInternal
	}

	now := u.clock.Now()
	dtos := make([]AdminUserDTO, 0, len(users))
	for i := range users {
		dtos = append(dtos, toAdminUserDTO(&users[i], now))
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))

	return &ListUsersOutput{
		Users: dtos,
		Pagination: Pagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalCount:  total,
			Limit:       limit,
			HasNextPage: page < totalPages,
			HasPrevPage: page > 1,
		},
	}, nil
}

func toAdminUserDTO(user *model.User, now time.Time) AdminUserDTO {
	dto := AdminUserDTO{
		UserDTO:               toUserDTO(user),
		DaysSinceRegistration: int(now.Sub(user.RegistrationDate).Hours() / 24),
	}

	//残高1につき1日なので、credits日後が目安
	if user.Credits > 0 && user.Status == model.UserStatusApproved {
		expiry := now.Add(time.Duration(user.Credits) * 24 * time.Hour)
		dto.EstimatedExpiryDate = &expiry
	}

	return dto
}

// =====================
// status変更
// =====================

type UpdateStatusOutput struct {
	User    UserDTO `json:"user"`
	Message string  `json:"message"`
}

// UpdateStatusは管理者によるstatusの直接変更。
// ここはクレジットを動かさないのでCreditLogは書かない（監査ログだけ）。
// クレジット起因のstatus変更（自動ブロック等）はCreditLedger側が台帳に残す。
// 行はFOR UPDATEで取り直す。日次バッチと同時に走っても減算後の残高をそのまま保つ。
func (u *AdminUserUsecase) UpdateStatus(ctx context.Context, adminID string, targetUserID string, newStatus string) (*UpdateStatusOutput, error) {
	st := model.UserStatus(newStatus)
	if !st.Valid() {
		return nil, ErrValidation
	}

	//自分自身のstatusは変えられない
	if targetUserID == adminID {
		return nil, ErrSelfStatusChange
	}

	var prevStatus model.UserStatus
	var updated UserDTO

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		user, err := r.Users().FindByIDForUpdate(ctx, targetUserID)
		if err != nil {
			if errors.Is(err, repo.ErrUserNotFound) {
				return ErrNotFound
			}
			return err
		}

		prevStatus = user.Status

		now := u.clock.Now()
		user.Status = st
		user.UpdatedAt = now
		//古いtokenのstatus claimを無効化する
		user.TokenVersion++

		if err := r.Users().Update(ctx, user); err != nil {
			return err
		}

		updated = toUserDTO(user)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrInternal
	}

	u.writeAudit(ctx, adminID, model.AuditActionUpdateStatus, targetUserID,
		map[string]string{"status": string(prevStatus)},
		map[string]string{"status": string(st)},
	)

	return &UpdateStatusOutput{
		User:    updated,
		Message: fmt.Sprintf("User status updated to %s", st),
	}, nil
}

type BatchUpdateStatusOutput struct {
	Users   []UserDTO `json:"users"`
	Message string    `json:"message"`
}

// BatchUpdateStatusは複数ユーザーのstatusを1トランザクションで変更する。
// 1人でも存在しなければ全体をNotFoundにする（部分適用しない）。
func (u *AdminUserUsecase) BatchUpdateStatus(ctx context.Context, adminID string, userIDs []string, newStatus string) (*BatchUpdateStatusOutput, error) {
	if len(userIDs) == 0 {
		return nil, ErrValidation
	}

	st := model.UserStatus(newStatus)
	if !st.Valid() {
		return nil, ErrValidation
	}

	//自分が混ざっていたら拒否
	for _, id := range userIDs {
		if id == adminID {
			return nil, ErrSelfStatusChange
		}
	}

	var updated []UserDTO

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := u.clock.Now()
		for _, id := range userIDs {
			user, err := r.Users().FindByIDForUpdate(ctx, id)
			if err != nil {
				if errors.Is(err, repo.ErrUserNotFound) {
					return ErrNotFound
				}
				return err
			}

			user.Status = st
			user.UpdatedAt = now
			user.TokenVersion++

			if err := r.Users().Update(ctx, user); err != nil {
				return err
			}
			updated = append(updated, toUserDTO(user))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrInternal
	}

	idsJSON, _ := json.Marshal(userIDs)
	u.writeAudit(ctx, adminID, model.AuditActionBatchUpdateStatus, adminID,
		map[string]string{"user_ids": string(idsJSON)},
		map[string]string{"status": string(st)},
	)

	return &BatchUpdateStatusOutput{
		Users:   updated,
		Message: fmt.Sprintf("%d users updated to %s", len(updated), st),
	}, nil
}

// =====================
// クレジット調整
// =====================

type AdjustCreditsOutput struct {
	User    UserDTO      `json:"user"`
	Log     CreditLogDTO `json:"log"`
	Message string       `json:"message"`
}

// AdjustCreditsは管理者のクレジット調整の入口。本体はCreditLedgerUsecase。
func (u *AdminUserUsecase) AdjustCredits(ctx context.Context, adminID string, targetUserID string, amount int, reason string) (*AdjustCreditsOutput, error) {
	res, err := u.ledger.ApplyCreditDelta(ctx, ApplyCreditDeltaInput{
		UserID:  targetUserID,
		Amount:  amount,
		Reason:  reason,
		AdminID: &adminID,
	})
	if err != nil {
		return nil, err
	}

	verb := "deducted"
	abs := -amount
	if amount > 0 {
		verb = "added"
		abs = amount
	}

	return &AdjustCreditsOutput{
		User:    res.User,
		Log:     res.Log,
		Message: fmt.Sprintf("%d credits %s successfully", abs, verb),
	}, nil
}

// =====================
// 強制ログアウト
// =====================

type ForceLogoutOutput struct {
	UserID          string `json:"user_id"`
	NewTokenVersion int    `json:"new_token_version"`
}

// ForceLogoutはtoken_versionを+1して全refresh tokenを消す。
// 対象の手持ちのaccess tokenはTokenVersionGuardで全部401になる。
func (u *AdminUserUsecase) ForceLogout(ctx context.Context, adminID string, targetUserID string) (*ForceLogoutOutput, error) {
	if targetUserID == "" {
		return nil, ErrValidation
	}

	if err := u.users.IncrementTokenVersion(ctx, targetUserID); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrInternal
	}

	if err := u.rtRepo.DeleteAllByUserID(ctx, targetUserID); err != nil {
		return nil, ErrInternal
	}

	//更新後を取得してnew_token_versionを返す
	user, err := u.users.FindByID(ctx, targetUserID)
	if err != nil || user == nil {
		return nil, ErrInternal
	}

	u.writeAudit(ctx, adminID, model.AuditActionForceLogout, targetUserID, nil,
		map[string]string{"token_version": fmt.Sprintf("%d", user.TokenVersion)},
	)

	return &ForceLogoutOutput{
		UserID:          user.ID,
		NewTokenVersion: user.TokenVersion,
	}, nil
}

// =====================
// 統計・監査
// =====================

type StatusStat struct {
	Users      int64 `json:"users"`
	CreditsSum int64 `json:"credits_sum"`
}

type StatsOutput struct {
	ByStatus        map[string]StatusStat `json:"by_status"`
	TotalUsers      int64                 `json:"total_users"`
	TotalCreditLogs int64                 `json:"total_credit_logs"`
	TotalAuditLogs  int64                 `json:"total_audit_logs"`
}

func (u *AdminUserUsecase) Stats(ctx context.Context) (*StatsOutput, error) {
	byStatus, err := u.users.CountByStatus(ctx)
	if err != nil {
		return nil, ErrInternal
	}

	totalUsers, err := u.users.Count(ctx)
	if err != nil {
		return nil, ErrInternal
	}
	totalCreditLogs, err := u.creditLogs.Count(ctx)
	if err != nil {
		return nil, ErrInternal
	}
	totalAuditLogs, err := u.auditLogs.Count(ctx)
	if err != nil {
		return nil, ErrInternal
	}

	out := &StatsOutput{
		ByStatus:        make(map[string]StatusStat, len(byStatus)),
		TotalUsers:      totalUsers,
		TotalCreditLogs: totalCreditLogs,
		TotalAuditLogs:  totalAuditLogs,
	}
	for st, c := range byStatus {
		out.ByStatus[string(st)] = StatusStat{Users: c.Users, CreditsSum: c.CreditsSum}
	}
	return out, nil
}

type ListCreditLogsOutput struct {
	Logs       []CreditLogDTO `json:"logs"`
	TotalCount int64          `json:"total_count"`
}

// ListCreditLogsは1ユーザーの台帳履歴（新しい順）。
func (u *AdminUserUsecase) ListCreditLogs(ctx context.Context, targetUserID string, limit int, offset int) (*ListCreditLogsOutput, error) {
	//存在しないユーザーは404にする
	if _, err := u.users.FindByID(ctx, targetUserID); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrInternal
	}

	logs, total, err := u.creditLogs.List(ctx, repo.CreditLogFilter{
		UserID: &targetUserID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, ErrInternal
	}

	dtos := make([]CreditLogDTO, 0, len(logs))
	for i := range logs {
		dtos = append(dtos, toCreditLogDTO(&logs[i]))
	}

	return &ListCreditLogsOutput{Logs: dtos, TotalCount: total}, nil
}

func (u *AdminUserUsecase) ListAuditLogs(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	logs, err := u.auditLogs.List(ctx, filter)
	if err != nil {
		return nil, ErrInternal
	}
	return logs, nil
}

// =====================
// 台帳エクスポート
// =====================

const exportPageSize = 200

// ExportCreditLogsXLSXは台帳をExcelにして返す。userIDを渡すと1人分だけ。
func (u *AdminUserUsecase) ExportCreditLogsXLSX(ctx context.Context, userID string) ([]byte, string, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "CreditLogs"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "User ID", "Admin ID", "Amount", "Type", "Reason", "Created At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, "", ErrInternal
		}
	}

	filter := repo.CreditLogFilter{Limit: exportPageSize}
	if userID != "" {
		filter.UserID = &userID
	}

	//ページを回して全部書く（一度に全件読まない）
	row := 2
	for offset := 0; ; offset += exportPageSize {
		filter.Offset = offset
		logs, total, err := u.creditLogs.List(ctx, filter)
		if err != nil {
			return nil, "", ErrInternal
		}

		for i := range logs {
			l := &logs[i]
			adminID := ""
			if l.AdminID != nil {
				adminID = *l.AdminID
			}
			values := []interface{}{
				l.ID, l.UserID, adminID, l.Amount, string(l.Type), l.Reason,
				l.CreatedAt.Format(time.RFC3339),
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return nil, "", ErrInternal
				}
			}
			row++
		}

		if int64(offset+len(logs)) >= total || len(logs) == 0 {
			break
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", ErrInternal
	}

	filename := fmt.Sprintf("credit_logs_%s.xlsx", u.clock.Now().Format("20060102"))
	return buf.Bytes(), filename, nil
}

// 監査ログを書く。失敗しても本処理は成功扱い（ログだけ残す）。
func (u *AdminUserUsecase) writeAudit(ctx context.Context, actorID string, action model.AuditAction, resourceID string, before map[string]string, after map[string]string) {
	beforeJSON, _ := json.Marshal(before)
	afterJSON, _ := json.Marshal(after)

	entry := model.AuditLog{
		ActorUserID:  actorID,
		Action:       action,
		ResourceType: model.AuditResourceUser,
		ResourceID:   resourceID,
		BeforeJSON:   string(beforeJSON),
		AfterJSON:    string(afterJSON),
		CreatedAt:    u.clock.Now(),
	}

	if err := u.auditLogs.Create(ctx, entry); err != nil {
		u.log.Error("audit log write failed",
			zap.String("actor_user_id", actorID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}
