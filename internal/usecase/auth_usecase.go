package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/policy"
	repo "app/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// accesstokenの有効期限。
// claimsにstatus/creditsを入れて返すので、長くしすぎない（古い残高を信じる時間になる）。
const accessTokenTTL = 15 * time.Minute

// refreshtokenの有効期限
const refreshTokenTTL = 30 * 24 * time.Hour

// usecaseがValidatorInterfaceに依存する約束
type AuthValidator interface {
	ValidateRegister(ctx context.Context, email string, password string) error
	ValidateLogin(ctx context.Context, email string, password string) error
	ValidateRefresh(ctx context.Context, refreshToken string, userAgent string) error
}

type JwtAccessTokenDTO struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenVersion int    `json:"token_version"`
}

type AuthRegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthRegisterResponse struct {
	User    UserDTO `json:"user"`
	Message string  `json:"message"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginResponse struct {
	User  UserDTO           `json:"user"`
	Token JwtAccessTokenDTO `json:"token"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

type LoginResult struct {
	Body              AuthLoginResponse
	RefreshTokenPlain string
}

type RefreshResult struct {
	Body              JwtAccessTokenDTO
	RefreshTokenPlain string
}

type AuthUsecase struct {
	cfg       config.Config
	users     repo.UserRepository
	rtRepo    repo.RefreshTokenRepository
	validator AuthValidator
	idGen     IDGenerator
	clock     Clock
	log       *zap.Logger
}

func NewAuthUsecase(
	cfg config.Config,
	users repo.UserRepository,
	rtRepo repo.RefreshTokenRepository,
	validator AuthValidator,
	idGen IDGenerator,
	clock Clock,
	log *zap.Logger,
) *AuthUsecase {
	return &AuthUsecase{
		cfg:       cfg,
		users:     users,
		rtRepo:    rtRepo,
		validator: validator,
		idGen:     idGen,
		clock:     clock,
		log:       log,
	}
}

// Registerは会員登録。PENDING・クレジット0で作る（利用開始は承認+付与から）。
func (u *AuthUsecase) Register(ctx context.Context, req AuthRegisterRequest) (*AuthRegisterResponse, error) {
	//入力検証（validatorに寄せる）
	if err := u.validator.ValidateRegister(ctx, req.Email, req.Password); err != nil {
		return nil, err
	}

	//emailは小文字で保存（比較を大文字小文字なしにするため）
	email := strings.ToLower(strings.TrimSpace(req.Email))

	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrInternal
	}

	now := u.clock.Now()

	//ユーザー作成。最初は必ずPENDING/0クレジット
	user := &model.User{
		ID:               u.idGen.NewID(),
		Email:            email,
		PasswordHash:     string(pwHash),
		Role:             model.RoleUser,
		Status:           model.UserStatusPending,
		Credits:          0,
		TokenVersion:     0,
		RegistrationDate: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := u.users.Create(ctx, user); err != nil {
		// unique違反はConflict
		if errors.Is(err, repo.ErrEmailAlreadyExists) {
			return nil, ErrConflict
		}
		return nil, ErrInternal
	}

	return &AuthRegisterResponse{
		User:    toUserDTO(user),
		Message: "User registered successfully. Please wait for admin approval.",
	}, nil
}

// Loginはログイン。REJECTEDだけはログイン自体を拒否する。
// PENDING/BLOCKEDはログインできて、その先のゲートで弾かれる（理由を見せるため）。
func (u *AuthUsecase) Login(ctx context.Context, req AuthLoginRequest, userAgent string) (*LoginResult, error) {
	// 1) 入力検証
	if err := u.validator.ValidateLogin(ctx, req.Email, req.Password); err != nil {
		return nil, err
	}

	//ユーザー取得
	user, err := u.users.FindByEmail(ctx, req.Email)
	if err != nil || user == nil {
		return nil, ErrUnauthorized
	}

	//REJECTEDはログイン不可
	if d := policy.CanAuthenticate(user); !d.Allowed {
		return nil, ErrAccountRejected
	}

	//パスワード照合（bcrypt）
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrUnauthorized
	}

	//last_login更新。このカラムだけ書く（読んだ行を丸ごとSaveすると、
	//直後に走った日次減算の結果を古い残高で上書きしてしまう）
	now := u.clock.Now()
	if err := u.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		u.log.Warn("last login stamp failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
	user.LastLoginAt = &now

	//access token発行（claimsはこの時点のDB行の写し）
	accessToken, expiresIn, err := u.issueAccessToken(user)
	if err != nil {
		return nil, ErrInternal
	}

	//refresh token発行（DBにはhash保存）
	refreshPlain, refreshHash, err := newRandomTokenAndHash()
	if err != nil {
		return nil, ErrInternal
	}

	rt := &model.RefreshToken{
		ID:        u.idGen.NewID(),
		UserID:    user.ID,
		TokenHash: refreshHash,
		UserAgent: userAgent,
		ExpiresAt: now.Add(refreshTokenTTL),
		UsedAt:    nil,
		RevokedAt: nil,
		CreatedAt: now,
	}

	if err := u.rtRepo.Create(ctx, rt); err != nil {
		return nil, ErrInternal
	}

	return &LoginResult{
		Body: AuthLoginResponse{
			User: toUserDTO(user),
			Token: JwtAccessTokenDTO{
				AccessToken:  accessToken,
				ExpiresIn:    expiresIn,
				TokenVersion: user.TokenVersion,
			},
		},
		RefreshTokenPlain: refreshPlain,
	}, nil
}

// Meは自分の最新状態を返す。claimsではなくDBの行を読む。
func (u *AuthUsecase) Me(ctx context.Context, userID string) (*UserDTO, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil || user == nil {
		return nil, ErrUnauthorized
	}

	dto := toUserDTO(user)
	return &dto, nil
}

// Refreshはaccess tokenを再発行する。
// claimsはDBから読み直すので、管理者がクレジットやstatusを変えていればここで反映される。
func (u *AuthUsecase) Refresh(ctx context.Context, refreshTokenPlain string, userAgent string) (*RefreshResult, error) {
	//入力検証
	if err := u.validator.ValidateRefresh(ctx, refreshTokenPlain, userAgent); err != nil {
		return nil, err
	}

	//DB照合
	tokenHash := hashToken(refreshTokenPlain)

	rt, err := u.rtRepo.FindByTokenHash(ctx, tokenHash)
	if err != nil || rt == nil {
		return nil, ErrUnauthorized
	}

	now := u.clock.Now()

	//期限切れ
	if rt.ExpiresAt.Before(now) {
		_ = u.rtRepo.DeleteByID(ctx, rt.ID)
		return nil, ErrUnauthorized
	}

	//revoked
	if rt.RevokedAt != nil {
		return nil, ErrUnauthorized
	}

	//used済みが来たら replay → 全削除
	if rt.UsedAt != nil {
		_ = u.rtRepo.DeleteAllByUserID(ctx, rt.UserID)
		return nil, ErrSecurityIncident
	}

	//user_agent違い（再認証扱い。全削除）
	if userAgent != "" && rt.UserAgent != "" && userAgent != rt.UserAgent {
		_ = u.rtRepo.DeleteAllByUserID(ctx, rt.UserID)
		return nil, ErrSecurityIncident
	}

	//user取得（最新のstatus/credits/tvを読む）
	user, err := u.users.FindByID(ctx, rt.UserID)
	if err != nil || user == nil {
		return nil, ErrUnauthorized
	}
	if d := policy.CanAuthenticate(user); !d.Allowed {
		return nil, ErrAccountRejected
	}

	//旧tokenをusedにする
	if err := u.rtRepo.MarkUsed(ctx, rt.ID, now); err != nil {
		_ = u.rtRepo.DeleteAllByUserID(ctx, rt.UserID)
		return nil, ErrSecurityIncident
	}

	//新tokenを作って保存
	newPlain, newHash, err := newRandomTokenAndHash()
	if err != nil {
		return nil, ErrInternal
	}

	newRT := &model.RefreshToken{
		ID:        u.idGen.NewID(),
		UserID:    user.ID,
		TokenHash: newHash,
		UserAgent: userAgent,
		ExpiresAt: now.Add(refreshTokenTTL),
		CreatedAt: now,
	}

	if err := u.rtRepo.Create(ctx, newRT); err != nil {
		return nil, ErrInternal
	}

	//access再発行（claimsは読み直したDB行から作る）
	accessToken, expiresIn, err := u.issueAccessToken(user)
	if err != nil {
		return nil, ErrInternal
	}

	return &RefreshResult{
		Body: JwtAccessTokenDTO{
			AccessToken:  accessToken,
			ExpiresIn:    expiresIn,
			TokenVersion: user.TokenVersion,
		},
		RefreshTokenPlain: newPlain,
	}, nil
}

func (u *AuthUsecase) Logout(ctx context.Context, refreshTokenPlain string) (*SuccessResponse, error) {
	if refreshTokenPlain == "" {
		return nil, ErrUnauthorized
	}

	tokenHash := hashToken(refreshTokenPlain)

	rt, err := u.rtRepo.FindByTokenHash(ctx, tokenHash)
	if err != nil || rt == nil {
		return nil, ErrUnauthorized
	}

	//refreshを削除（失効）
	if err := u.rtRepo.DeleteByID(ctx, rt.ID); err != nil {
		return nil, ErrInternal
	}

	return &SuccessResponse{Message: "logout success"}, nil
}

// jwt発行。claimsにrole/status/credits/tvを全部入れる（ゲート側が読む）。
func (u *AuthUsecase) issueAccessToken(user *model.User) (string, int, error) {
	now := u.clock.Now()
	exp := now.Add(accessTokenTTL)

	claims := jwt.MapClaims{
		"sub":     user.ID,
		"role":    string(user.Role),
		"status":  string(user.Status),
		"credits": user.Credits,
		"tv":      user.TokenVersion,
		"iat":     now.Unix(),
		"exp":     exp.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := t.SignedString([]byte(u.cfg.JWTSecret))
	if err != nil {
		return "", 0, err
	}

	return signed, int(accessTokenTTL.Seconds()), nil
}

// refresh token生成（平文 + DB保存hash）
func newRandomTokenAndHash() (plain string, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}

	plain = base64.RawURLEncoding.EncodeToString(b)

	sum := sha256.Sum256([]byte(plain))
	hash = base64.RawURLEncoding.EncodeToString(sum[:])

	return plain, hash, nil
}

func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
