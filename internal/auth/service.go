// Package auth はトークンの発行・検証とログイン・アカウント登録を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/yogastudio/internal/metrics"
	"github.com/hitoshi/yogastudio/internal/model"
	"github.com/hitoshi/yogastudio/internal/repository"
	"github.com/hitoshi/yogastudio/internal/security"
)

// LoginResult はログイン成功時に返すプリンシパルと新規発行トークン。
type LoginResult struct {
	Principal model.Principal
	Token     string
}

// RegisterInput はアカウント登録の入力値。
type RegisterInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	hasher   security.PasswordHasher
	tokens   *TokenService
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// NewService はServiceを生成する。collectorがnilの場合は記録しない。
func NewService(
	userRepo repository.UserRepository,
	hasher security.PasswordHasher,
	tokens *TokenService,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		metrics:  collector,
		now:      time.Now,
	}
}

// Login はメールアドレスとパスワードを照合し、プリンシパルと新しいトークンを返す。
// ユーザーが存在しない場合とパスワード不一致の場合は同じAuthenticationFailedを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user for login: %w", err)
	}
	if user == nil {
		s.metrics.RecordLogin(metrics.LoginFailure)
		return nil, model.NewAuthenticationFailedError()
	}

	if err := s.hasher.Compare(user.Password, password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			s.metrics.RecordLogin(metrics.LoginFailure)
			return nil, model.NewAuthenticationFailedError()
		}
		return nil, err
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLogin(metrics.LoginSuccess)
	slog.Info("user logged in", slog.Int64("user_id", user.ID))

	return &LoginResult{
		Principal: model.PrincipalFromUser(user),
		Token:     token,
	}, nil
}

// Register は新しいアカウントを作成する。
// メールアドレスが登録済みの場合はBadRequest（EMAIL_ALREADY_TAKEN）を返す。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	email := strings.TrimSpace(input.Email)

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, model.NewEmailTakenError()
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		Email:     email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Password:  hash,
		Admin:     false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// 存在確認と作成の間に同じメールアドレスが登録された場合
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", slog.Int64("user_id", user.ID))
	return user, nil
}

// ResolvePrincipal はトークンを検証し、対応するユーザーのプリンシパルを返す。
// トークンが無効な場合やユーザーが削除済みの場合はUnauthorizedを返す。
func (s *Service) ResolvePrincipal(ctx context.Context, token string) (*model.Principal, error) {
	if !s.tokens.Validate(token) {
		return nil, model.NewUnauthorizedError()
	}

	email := s.tokens.ExtractPrincipal(token)
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve principal: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	p := model.PrincipalFromUser(user)
	return &p, nil
}
