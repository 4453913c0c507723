// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/yogastudio/internal/model"
	"github.com/hitoshi/yogastudio/internal/repository"
)

// Service はユーザー管理のサービス層。
// 参照と本人によるアカウント削除を提供する。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// FindByID は指定IDのユーザーを返す。存在しない場合はNotFoundを返す。
func (s *Service) FindByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(id)
	}
	return user, nil
}

// Delete はprincipal本人のアカウントを削除する。
// 対象が存在しない場合はNotFound、principalのメールアドレスと一致しない場合はUnauthorizedを返す。
// 管理者フラグはこの判定に影響しない。参加していたセッションの名簿からは自動的に外れる。
func (s *Service) Delete(ctx context.Context, principal model.Principal, id int64) error {
	target, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if !strings.EqualFold(principal.Email, target.Email) {
		slog.Warn("他人のアカウント削除を拒否しました",
			slog.Int64("principal_id", principal.ID),
			slog.Int64("target_id", id),
		)
		return model.NewNotOwnAccountError()
	}

	if err := s.userRepo.DeleteByID(ctx, id); err != nil {
		// 確認後に別リクエストで削除された場合
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError(id)
		}
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("アカウントを削除しました", slog.Int64("user_id", id))
	return nil
}
