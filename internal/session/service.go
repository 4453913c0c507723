// Package session はヨガセッションのライフサイクルと参加者名簿の管理を提供する。
//
// セッションの更新と参加・参加取り消しは「読み込み→検証→保存」の順で行い、
// 保存はリポジトリのバージョン比較で楽観的に排他する。競合時は読み込みからやり直す。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/hitoshi/yogastudio/internal/metrics"
	"github.com/hitoshi/yogastudio/internal/model"
	"github.com/hitoshi/yogastudio/internal/repository"
	"github.com/hitoshi/yogastudio/internal/security"
)

// DefaultMaxRetries は楽観ロック競合時の既定の最大試行回数。
const DefaultMaxRetries = 5

// ErrRetriesExhausted は競合が続き、最大試行回数内に保存できなかったことを示す。
var ErrRetriesExhausted = errors.New("session update retries exhausted")

// Config はセッションサービスの設定。
type Config struct {
	// MaxRetries は保存競合時の最大試行回数。0以下の場合はDefaultMaxRetries。
	MaxRetries int
}

// Service はセッションのライフサイクル管理と参加管理のサービス層。
type Service struct {
	sessions   repository.SessionRepository
	teachers   repository.TeacherRepository
	users      repository.UserRepository
	sanitizer  security.TextSanitizerService
	metrics    metrics.MetricsCollector
	maxRetries int
	now        func() time.Time
}

// NewService はServiceを生成する。collectorがnilの場合は記録しない。
func NewService(
	sessions repository.SessionRepository,
	teachers repository.TeacherRepository,
	users repository.UserRepository,
	sanitizer security.TextSanitizerService,
	collector metrics.MetricsCollector,
	cfg Config,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Service{
		sessions:   sessions,
		teachers:   teachers,
		users:      users,
		sanitizer:  sanitizer,
		metrics:    collector,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Create はセッションを作成する。
// 講師IDが指定されていて存在しない場合はBadRequestを返し、何も保存しない。
func (s *Service) Create(ctx context.Context, in model.SessionInput) (*model.Session, error) {
	in, err := s.prepareInput(ctx, in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &model.Session{
		Name:        in.Name,
		Date:        in.Date,
		Description: in.Description,
		TeacherID:   in.TeacherID,
		Users:       in.Users,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	slog.Info("session created",
		slog.Int64("session_id", session.ID),
		slog.Int("participants", len(session.Users)),
	)
	return session, nil
}

// Update はセッションを入力値で全置換する。
// 入力にない項目は空になる。createdAtは維持し、updatedAtは必ず前回より進める。
func (s *Service) Update(ctx context.Context, id int64, in model.SessionInput) (*model.Session, error) {
	exists, err := s.sessions.ExistsByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("セッションの存在確認に失敗しました: %w", err)
	}
	if !exists {
		return nil, model.NewSessionNotFoundError(id)
	}

	in, err = s.prepareInput(ctx, in)
	if err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, id, func(current *model.Session) error {
		current.Name = in.Name
		current.Date = in.Date
		current.Description = in.Description
		current.TeacherID = in.TeacherID
		current.Users = slices.Clone(in.Users)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("session updated", slog.Int64("session_id", id))
	return updated, nil
}

// GetByID は指定IDのセッションを返す。存在しない場合はNotFoundを返す。
func (s *Service) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(id)
	}
	return session, nil
}

// FindAll は全セッションを返す。順序は保証しない。
func (s *Service) FindAll(ctx context.Context) ([]*model.Session, error) {
	sessions, err := s.sessions.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("セッション一覧の取得に失敗しました: %w", err)
	}
	return sessions, nil
}

// Delete はセッションを削除する。講師と参加ユーザーは削除しない。
// ストアは存在しないIDの削除を報告しないため、事前に存在を確認してNotFoundを返す。
func (s *Service) Delete(ctx context.Context, id int64) error {
	exists, err := s.sessions.ExistsByID(ctx, id)
	if err != nil {
		return fmt.Errorf("セッションの存在確認に失敗しました: %w", err)
	}
	if !exists {
		return model.NewSessionNotFoundError(id)
	}

	if err := s.sessions.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	slog.Info("session deleted", slog.Int64("session_id", id))
	return nil
}

// prepareInput は入力値のサニタイズと参照整合性の検証を行う。
func (s *Service) prepareInput(ctx context.Context, in model.SessionInput) (model.SessionInput, error) {
	in.Name = s.sanitizer.Sanitize(in.Name)
	in.Description = s.sanitizer.Sanitize(in.Description)

	switch {
	case in.Name == "":
		return in, model.NewValidationError("name")
	case in.Description == "":
		return in, model.NewValidationError("description")
	case in.Date.IsZero():
		return in, model.NewValidationError("date")
	}

	if in.TeacherID != nil {
		ok, err := s.teachers.ExistsByID(ctx, *in.TeacherID)
		if err != nil {
			return in, fmt.Errorf("講師の存在確認に失敗しました: %w", err)
		}
		if !ok {
			return in, model.NewUnknownTeacherError(*in.TeacherID)
		}
	}

	if err := s.validateRoster(ctx, in.Users); err != nil {
		return in, err
	}
	in.Users = slices.Clone(in.Users)
	if in.Users == nil {
		in.Users = []int64{}
	}
	return in, nil
}

// validateRoster は入力名簿に重複がなく、すべて登録済みユーザーであることを確認する。
func (s *Service) validateRoster(ctx context.Context, users []int64) error {
	seen := make(map[int64]struct{}, len(users))
	for _, id := range users {
		if _, dup := seen[id]; dup {
			return model.NewDuplicateParticipantError(id)
		}
		seen[id] = struct{}{}

		u, err := s.users.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("参加者の存在確認に失敗しました: %w", err)
		}
		if u == nil {
			return model.NewUnknownParticipantError(id)
		}
	}
	return nil
}

// mutate はセッションを読み込んでapplyで変更し、バージョン比較付きで保存する。
// 競合した場合は最大maxRetries回まで読み込みからやり直す。
// applyがエラーを返した場合は保存せずにそのエラーを返す。
func (s *Service) mutate(ctx context.Context, id int64, apply func(*model.Session) error) (*model.Session, error) {
	for attempt := 1; ; attempt++ {
		current, err := s.sessions.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
		}
		if current == nil {
			return nil, model.NewSessionNotFoundError(id)
		}

		if err := apply(current); err != nil {
			return nil, err
		}
		current.UpdatedAt = s.advance(current.UpdatedAt)

		err = s.sessions.Save(ctx, current)
		switch {
		case err == nil:
			return current, nil
		case errors.Is(err, repository.ErrNotFound):
			return nil, model.NewSessionNotFoundError(id)
		case !errors.Is(err, repository.ErrVersionConflict):
			return nil, fmt.Errorf("セッションの保存に失敗しました: %w", err)
		}

		s.metrics.RecordVersionConflict()
		if attempt >= s.maxRetries {
			slog.Error("session save conflict retries exhausted",
				slog.Int64("session_id", id),
				slog.Int("attempts", attempt),
			)
			return nil, fmt.Errorf("セッション %d の保存が競合しました: %w", id, ErrRetriesExhausted)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slog.Debug("session save conflict, retrying",
			slog.Int64("session_id", id),
			slog.Int("attempt", attempt),
		)
	}
}

// advance は前回のupdatedAtより厳密に後の現在時刻を返す。
// PostgreSQLのtimestamptzはマイクロ秒精度のため、最小の進み幅もマイクロ秒とする。
func (s *Service) advance(prev time.Time) time.Time {
	now := s.now()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
