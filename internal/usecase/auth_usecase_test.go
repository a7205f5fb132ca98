package usecase

import (
	"context"
	"testing"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test_secret"

func newAuthForTest(users *MockUserRepository, rtRepo *MockRefreshTokenRepository, validator *MockAuthValidator) (*AuthUsecase, *fixedClock) {
	cfg := config.Config{JWTSecret: testJWTSecret}
	clock := &fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewAuthUsecase(cfg, users, rtRepo, validator, &seqIDGenerator{}, clock, zap.NewNop()), clock
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	assert.NoError(t, err)
	return string(h)
}

func TestRegister_CreatesPendingUserWithZeroCredits(t *testing.T) {
	users := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	validator := new(MockAuthValidator)
	uc, _ := newAuthForTest(users, rtRepo, validator)

	validator.On("ValidateRegister", mock.Anything, "New@Example.com", "Password1").Return(nil)
	users.On("Create", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		//最初は必ずPENDING/0クレジット。emailは小文字化。平文は保存しない
		return u.Status == model.UserStatusPending &&
			u.Credits == 0 &&
			u.Role == model.RoleUser &&
			u.Email == "new@example.com" &&
			u.PasswordHash != "Password1"
	})).Return(nil)

	out, err := uc.Register(context.Background(), AuthRegisterRequest{
		Email:    "New@Example.com",
		Password: "Password1",
	})

	assert.NoError(t, err)
	assert.Equal(t, "PENDING", out.User.Status)
	assert.Equal(t, 0, out.User.Credits)
	users.AssertExpectations(t)
}

func TestRegister_DuplicateEmailIsConflict(t *testing.T) {
	users := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	validator := new(MockAuthValidator)
	uc, _ := newAuthForTest(users, rtRepo, validator)

	validator.On("ValidateRegister", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	users.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(repo.ErrEmailAlreadyExists)

	_, err := uc.Register(context.Background(), AuthRegisterRequest{
		Email:    "dup@example.com",
		Password: "Password1",
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLogin_RejectedUserCannotLogin(t *testing.T) {
	users := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	validator := new(MockAuthValidator)
	uc, _ := newAuthForTest(users, rtRepo, validator)

	rejected := &model.User{
		ID:           "u-1",
		Email:        "rejected@example.com",
		PasswordHash: hashPassword(t, "Password1"),
		Role:         model.RoleUser,
		Status:       model.UserStatusRejected,
	}

	validator.On("ValidateLogin", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	users.On("FindByEmail", mock.Anything, "rejected@example.com").Return(rejected, nil)

	//パスワードが正しくてもREJECTEDはログインできない
	_, err := uc.Login(context.Background(), AuthLoginRequest{
		Email:    "rejected@example.com",
		Password: "Password1",
	}, "test-agent")
	assert.ErrorIs(t, err, ErrAccountRejected)

	rtRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLogin_PendingAndBlockedCanLogin(t *testing.T) {
	//PENDING/BLOCKEDはログイン自体はできる（その先のゲートで弾く）
	for _, status := range []model.UserStatus{model.UserStatusPending, model.UserStatusBlocked} {
		users := new(MockUserRepository)
		rtRepo := new(MockRefreshTokenRepository)
		validator := new(MockAuthValidator)
		uc, _ := newAuthForTest(users, rtRepo, validator)

		u := &model.User{
			ID:           "u-1",
			Email:        "user@example.com",
			PasswordHash: hashPassword(t, "Password1"),
			Role:         model.RoleUser,
			Status:       status,
		}

		validator.On("ValidateLogin", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		users.On("FindByEmail", mock.Anything, "user@example.com").Return(u, nil)
		users.On("TouchLastLogin", mock.Anything, "u-1", mock.AnythingOfType("time.Time")).Return(nil)
		rtRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.RefreshToken")).Return(nil)

		out, err := uc.Login(context.Background(), AuthLoginRequest{
			Email:    "user@example.com",
			Password: "Password1",
		}, "test-agent")

		assert.NoError(t, err, string(status))
		assert.Equal(t, string(status), out.Body.User.Status)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	users := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	validator := new(MockAuthValidator)
	uc, _ := newAuthForTest(users, rtRepo, validator)

	u := &model.User{
		ID:           "u-1",
		Email:        "user@example.com",
		PasswordHash: hashPassword(t, "Password1"),
		Status:       model.UserStatusApproved,
	}

	validator.On("ValidateLogin", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	users.On("FindByEmail", mock.Anything, "user@example.com").Return(u, nil)

	_, err := uc.Login(context.Background(), AuthLoginRequest{
		Email:    "user@example.com",
		Password: "wrong",
	}, "test-agent")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogin_ClaimsAreSnapshotOfUserRow(t *testing.T) {
	users := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	validator := new(MockAuthValidator)
	uc, clock := newAuthForTest(users, rtRepo, validator)

	u := &model.User{
		ID:           "u-1",
		Email:        "user@example.com",
		PasswordHash: hashPassword(t, "Password1"),
		Role:         model.RoleUser,
		Status:       model.UserStatusApproved,
		Credits:      42,
		TokenVersion: 7,
	}

	validator.On("ValidateLogin", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	users.On("FindByEmail", mock.Anything, "user@example.com").Return(u, nil)
	users.On("TouchLastLogin", mock.Anything, "u-1", mock.AnythingOfType("time.Time")).Return(nil)
	rtRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.RefreshToken")).Return(nil)

	out, err := uc.Login(context.Background(), AuthLoginRequest{
		Email:    "user@example.com",
		Password: "Password1",
	}, "test-agent")
	assert.NoError(t, err)
	assert.NotEmpty(t, out.RefreshTokenPlain)

	//発行されたtokenのclaimsがDB行の写しになっていること
	jwt.TimeFunc = func() time.Time { return clock.t }
	defer func() { jwt.TimeFunc = time.Now }()
	token, err := jwt.Parse(out.Body.Token.AccessToken, func(t *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	assert.NoError(t, err)

	claims, ok := token.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, "u-1", claims["sub"])
	assert.Equal(t, "USER", claims["role"])
	assert.Equal(t, "APPROVED", claims["status"])
	assert.Equal(t, float64(42), claims["credits"])
	assert.Equal(t, float64(7), claims["tv"])
	assert.Equal(t, float64(clock.t.Unix()), claims["iat"])
	assert.Equal(t, float64(clock.t.Add(15*time.Minute).Unix()), claims["exp"])
}

func TestLogin_StampsLastLoginColumnOnly(t *testing.T) {
	users := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	validator := new(MockAuthValidator)
	uc, clock := newAuthForTest(users, rtRepo, validator)

	//ログインと同時に日次バッチが残高を動かしている想定。
	//ここで行を丸ごとSaveすると減算前の残高が復活してしまうので、
	//last_login_atのカラム更新だけが呼ばれること
	u := &model.User{
		ID:           "u-1",
		Email:        "user@example.com",
		PasswordHash: hashPassword(t, "Password1"),
		Role:         model.RoleUser,
		Status:       model.UserStatusApproved,
		Credits:      5,
	}

	validator.On("ValidateLogin", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	users.On("FindByEmail", mock.Anything, "user@example.com").Return(u, nil)
	users.On("TouchLastLogin", mock.Anything, "u-1", clock.t).Return(nil)
	rtRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.RefreshToken")).Return(nil)

	_, err := uc.Login(context.Background(), AuthLoginRequest{
		Email:    "user@example.com",
		Password: "Password1",
	}, "test-agent")

	assert.NoError(t, err)
	users.AssertCalled(t, "TouchLastLogin", mock.Anything, "u-1", clock.t)
	users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestLogin_StampFailureDoesNotBlockLogin(t *testing.T) {
	users := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	validator := new(MockAuthValidator)
	uc, _ := newAuthForTest(users, rtRepo, validator)

	u := &model.User{
		ID:           "u-1",
		Email:        "user@example.com",
		PasswordHash: hashPassword(t, "Password1"),
		Role:         model.RoleUser,
		Status:       model.UserStatusApproved,
	}

	validator.On("ValidateLogin", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	users.On("FindByEmail", mock.Anything, "user@example.com").Return(u, nil)
	//タイムスタンプの更新失敗はログイン自体を止めない
	users.On("TouchLastLogin", mock.Anything, "u-1", mock.AnythingOfType("time.Time")).Return(assert.AnError)
	rtRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.RefreshToken")).Return(nil)

	out, err := uc.Login(context.Background(), AuthLoginRequest{
		Email:    "user@example.com",
		Password: "Password1",
	}, "test-agent")

	assert.NoError(t, err)
	assert.NotEmpty(t, out.Body.Token.AccessToken)
}

func TestRefresh_ReplayDeletesAllTokens(t *testing.T) {
	users := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	validator := new(MockAuthValidator)
	uc, clock := newAuthForTest(users, rtRepo, validator)

	used := clock.t.Add(-time.Hour)
	rt := &model.RefreshToken{
		ID:        "rt-1",
		UserID:    "u-1",
		TokenHash: hashToken("stolen-token"),
		UserAgent: "test-agent",
		ExpiresAt: clock.t.Add(time.Hour),
		UsedAt:    &used,
	}

	validator.On("ValidateRefresh", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	rtRepo.On("FindByTokenHash", mock.Anything, rt.TokenHash).Return(rt, nil)
	rtRepo.On("DeleteAllByUserID", mock.Anything, "u-1").Return(nil)

	//使用済みtokenの再提示はreplay。全refresh tokenを破棄する
	_, err := uc.Refresh(context.Background(), "stolen-token", "test-agent")
	assert.ErrorIs(t, err, ErrSecurityIncident)
	rtRepo.AssertCalled(t, "DeleteAllByUserID", mock.Anything, "u-1")
}

func TestRefresh_ReprojectsClaimsFromDB(t *testing.T) {
	users := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	validator := new(MockAuthValidator)
	uc, clock := newAuthForTest(users, rtRepo, validator)

	rt := &model.RefreshToken{
		ID:        "rt-1",
		UserID:    "u-1",
		TokenHash: hashToken("valid-token"),
		UserAgent: "test-agent",
		ExpiresAt: clock.t.Add(time.Hour),
	}

	//ログイン後に管理者が残高を変えた想定（credits=3, tv=9）
	u := &model.User{
		ID:           "u-1",
		Email:        "user@example.com",
		Role:         model.RoleUser,
		Status:       model.UserStatusApproved,
		Credits:      3,
		TokenVersion: 9,
	}

	validator.On("ValidateRefresh", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	rtRepo.On("FindByTokenHash", mock.Anything, rt.TokenHash).Return(rt, nil)
	users.On("FindByID", mock.Anything, "u-1").Return(u, nil)
	rtRepo.On("MarkUsed", mock.Anything, "rt-1", clock.t).Return(nil)
	rtRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.RefreshToken")).Return(nil)

	out, err := uc.Refresh(context.Background(), "valid-token", "test-agent")
	assert.NoError(t, err)

	//新しいtokenは最新のDB行から作られている
	jwt.TimeFunc = func() time.Time { return clock.t }
	defer func() { jwt.TimeFunc = time.Now }()
	token, err := jwt.Parse(out.Body.AccessToken, func(t *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	assert.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(3), claims["credits"])
	assert.Equal(t, float64(9), claims["tv"])
	assert.Equal(t, 9, out.Body.TokenVersion)

	//ローテーションで新しい平文が返る
	assert.NotEqual(t, "valid-token", out.RefreshTokenPlain)
}

func TestRefresh_ExpiredTokenIsDeleted(t *testing.T) {
	users := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	validator := new(MockAuthValidator)
	uc, clock := newAuthForTest(users, rtRepo, validator)

	rt := &model.RefreshToken{
		ID:        "rt-1",
		UserID:    "u-1",
		TokenHash: hashToken("old-token"),
		ExpiresAt: clock.t.Add(-time.Minute),
	}

	validator.On("ValidateRefresh", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	rtRepo.On("FindByTokenHash", mock.Anything, rt.TokenHash).Return(rt, nil)
	rtRepo.On("DeleteByID", mock.Anything, "rt-1").Return(nil)

	_, err := uc.Refresh(context.Background(), "old-token", "test-agent")
	assert.ErrorIs(t, err, ErrUnauthorized)
	rtRepo.AssertCalled(t, "DeleteByID", mock.Anything, "rt-1")
}

func TestMe_ReadsFreshRow(t *testing.T) {
	users := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	validator := new(MockAuthValidator)
	uc, _ := newAuthForTest(users, rtRepo, validator)

	u := approvedUser("u-1", 4)
	users.On("FindByID", mock.Anything, "u-1").Return(u, nil)

	out, err := uc.Me(context.Background(), "u-1")
	assert.NoError(t, err)
	assert.Equal(t, 4, out.Credits)

	_, err = uc.Me(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
