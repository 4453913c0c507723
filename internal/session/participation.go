package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/yogastudio/internal/metrics"
	"github.com/hitoshi/yogastudio/internal/model"
)

// AddParticipant はユーザーをセッションの名簿に追加する。
// セッションまたはユーザーが存在しない場合はNotFound、既に参加済みの場合はBadRequestを返す。
func (s *Service) AddParticipant(ctx context.Context, sessionID, userID int64) error {
	exists, err := s.sessions.ExistsByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("セッションの存在確認に失敗しました: %w", err)
	}
	if !exists {
		return model.NewSessionNotFoundError(sessionID)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError(userID)
	}

	_, err = s.mutate(ctx, sessionID, func(current *model.Session) error {
		if current.HasParticipant(userID) {
			return model.NewAlreadyParticipatingError()
		}
		current.AddParticipant(userID)
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.RecordParticipation(metrics.ParticipationJoin)
	slog.Info("participant added",
		slog.Int64("session_id", sessionID),
		slog.Int64("user_id", userID),
	)
	return nil
}

// RemoveParticipant はユーザーをセッションの名簿から取り除く。
// セッションが存在しない場合はNotFoundを返す。
// 名簿に含まれないユーザーの取り消しはエラーにせず、名簿を変えずに保存する。
func (s *Service) RemoveParticipant(ctx context.Context, sessionID, userID int64) error {
	_, err := s.mutate(ctx, sessionID, func(current *model.Session) error {
		current.RemoveParticipant(userID)
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.RecordParticipation(metrics.ParticipationLeave)
	slog.Info("participant removed",
		slog.Int64("session_id", sessionID),
		slog.Int64("user_id", userID),
	)
	return nil
}
