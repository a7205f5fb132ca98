package validator

import (
	"context"
	"testing"
	"time"

	"app/internal/domain/model"
	"app/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockUserRepoForValidator struct {
	mock.Mock
}

func (m *MockUserRepoForValidator) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepoForValidator) FindByID(ctx context.Context, userID string) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepoForValidator) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepoForValidator) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepoForValidator) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

func (m *MockUserRepoForValidator) List(ctx context.Context, filter repository.UserFilter) ([]model.User, int64, error) {
	args := m.Called(ctx, filter)
	users, _ := args.Get(0).([]model.User)
	return users, args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepoForValidator) ListEligibleForDeduction(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]model.User)
	return users, args.Error(1)
}

func (m *MockUserRepoForValidator) CountEligibleForDeduction(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepoForValidator) ListZeroCreditApproved(ctx context.Context, scopeUserID string) ([]model.User, error) {
	args := m.Called(ctx, scopeUserID)
	users, _ := args.Get(0).([]model.User)
	return users, args.Error(1)
}

func (m *MockUserRepoForValidator) CountByStatus(ctx context.Context) (map[model.UserStatus]repository.StatusCount, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[model.UserStatus]repository.StatusCount)
	return counts, args.Error(1)
}

func (m *MockUserRepoForValidator) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepoForValidator) IncrementTokenVersion(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

var _ repository.UserRepository = (*MockUserRepoForValidator)(nil)

func TestValidateRegister(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"正常", "user@example.com", "Password1", nil},
		{"email空", "", "Password1", ErrInvalidInput},
		{"password空", "user@example.com", "", ErrInvalidInput},
		{"email形式不正", "not-an-email", "Password1", ErrInvalidInput},
		{"8文字未満", "user@example.com", "Pass1", ErrInvalidInput},
		{"大文字なし", "user@example.com", "password1", ErrInvalidInput},
		{"小文字なし", "user@example.com", "PASSWORD1", ErrInvalidInput},
		{"数字なし", "user@example.com", "Passwordx", ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserRepoForValidator)
			users.On("FindByEmail", mock.Anything, mock.Anything).Return(nil, repository.ErrUserNotFound)

			v := NewAuthValidator(users)
			err := v.ValidateRegister(context.Background(), tt.email, tt.password)

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRegister_DuplicateEmail(t *testing.T) {
	users := new(MockUserRepoForValidator)
	users.On("FindByEmail", mock.Anything, "used@example.com").Return(&model.User{ID: "u-1"}, nil)

	v := NewAuthValidator(users)
	err := v.ValidateRegister(context.Background(), "Used@Example.com", "Password1")
	assert.ErrorIs(t, err, ErrEmailAlreadyUsed)
}

func TestValidateRegister_StoreFailureIsNotTreatedAsFreeEmail(t *testing.T) {
	users := new(MockUserRepoForValidator)
	//DB障害。「未登録」とは区別してそのまま返す
	users.On("FindByEmail", mock.Anything, "user@example.com").Return(nil, assert.AnError)

	v := NewAuthValidator(users)
	err := v.ValidateRegister(context.Background(), "user@example.com", "Password1")

	assert.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, ErrEmailAlreadyUsed)
}

func TestValidateLogin(t *testing.T) {
	users := new(MockUserRepoForValidator)
	v := NewAuthValidator(users)

	assert.NoError(t, v.ValidateLogin(context.Background(), "user@example.com", "whatever"))
	assert.ErrorIs(t, v.ValidateLogin(context.Background(), "", "whatever"), ErrInvalidInput)
	assert.ErrorIs(t, v.ValidateLogin(context.Background(), "bad-email", "whatever"), ErrInvalidInput)
}

func TestValidateRefresh(t *testing.T) {
	users := new(MockUserRepoForValidator)
	v := NewAuthValidator(users)

	assert.NoError(t, v.ValidateRefresh(context.Background(), "some-token", "agent"))
	assert.ErrorIs(t, v.ValidateRefresh(context.Background(), "  ", "agent"), ErrInvalidRefresh)
}
