package usecase

import (
	"context"
	"fmt"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/stretchr/testify/mock"
)

// =====================
// Mock: UserRepository
// =====================

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, userID string) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, filter repo.UserFilter) ([]model.User, int64, error) {
	args := m.Called(ctx, filter)
	users, _ := args.Get(0).([]model.User)
	return users, args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) ListEligibleForDeduction(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]model.User)
	return users, args.Error(1)
}

func (m *MockUserRepository) CountEligibleForDeduction(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) ListZeroCreditApproved(ctx context.Context, scopeUserID string) ([]model.User, error) {
	args := m.Called(ctx, scopeUserID)
	users, _ := args.Get(0).([]model.User)
	return users, args.Error(1)
}

func (m *MockUserRepository) CountByStatus(ctx context.Context) (map[model.UserStatus]repo.StatusCount, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[model.UserStatus]repo.StatusCount)
	return counts, args.Error(1)
}

func (m *MockUserRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) IncrementTokenVersion(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserRepository) FindByIDForUpdate(ctx context.Context, userID string) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

// =====================
// Mock: CreditLogRepository
// =====================

type MockCreditLogRepository struct {
	mock.Mock
}

func (m *MockCreditLogRepository) Create(ctx context.Context, log *model.CreditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockCreditLogRepository) List(ctx context.Context, filter repo.CreditLogFilter) ([]model.CreditLog, int64, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.CreditLog)
	return logs, args.Get(1).(int64), args.Error(2)
}

func (m *MockCreditLogRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// =====================
// Mock: AuditLogRepository
// =====================

type MockAuditLogRepository struct {
	mock.Mock
}

func (m *MockAuditLogRepository) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditLogRepository) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

func (m *MockAuditLogRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// =====================
// Mock: RefreshTokenRepository
// =====================

type MockRefreshTokenRepository struct {
	mock.Mock
}

func (m *MockRefreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	rt, _ := args.Get(0).(*model.RefreshToken)
	return rt, args.Error(1)
}

func (m *MockRefreshTokenRepository) MarkUsed(ctx context.Context, tokenID string, usedAt time.Time) error {
	args := m.Called(ctx, tokenID, usedAt)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) Revoke(ctx context.Context, tokenID string, revokedAt time.Time) error {
	args := m.Called(ctx, tokenID, revokedAt)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) DeleteAllByUserID(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) DeleteByID(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

// =====================
// Mock: AuthValidator
// =====================

type MockAuthValidator struct {
	mock.Mock
}

func (m *MockAuthValidator) ValidateRegister(ctx context.Context, email string, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

func (m *MockAuthValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

func (m *MockAuthValidator) ValidateRefresh(ctx context.Context, refreshToken string, userAgent string) error {
	args := m.Called(ctx, refreshToken, userAgent)
	return args.Error(0)
}

// =====================
// TxManagerのスタブ
// =====================

// 本物のDBトランザクションは張らず、同じmockをそのまま渡す。
type stubTxRepos struct {
	users      *MockUserRepository
	creditLogs *MockCreditLogRepository
}

func (r *stubTxRepos) Users() repo.UserTxRepository         { return r.users }
func (r *stubTxRepos) CreditLogs() repo.CreditLogRepository { return r.creditLogs }

type stubTxManager struct {
	repos *stubTxRepos

	//トランザクション開始自体を失敗させたいとき用
	beginErr error
}

func newStubTxManager(users *MockUserRepository, creditLogs *MockCreditLogRepository) *stubTxManager {
	return &stubTxManager{repos: &stubTxRepos{users: users, creditLogs: creditLogs}}
}

func (m *stubTxManager) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if m.beginErr != nil {
		return m.beginErr
	}
	return fn(m.repos)
}

// =====================
// Clock / IDGenerator
// =====================

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time { return c.t }

type seqIDGenerator struct {
	n int
}

func (g *seqIDGenerator) NewID() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}
