// Package cleanup は開催日を過ぎた古いセッションの自動削除ジョブを提供する。
// 開催日が保持期間（SESSION_RETENTION_DAYS）より前のセッションを
// 日次バッチで削除する。参加者名簿はストア側で連動して削除される。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/yogastudio/internal/metrics"
)

// SessionPurger は指定時刻より前に開催されたセッションを削除するインターフェース。
// repository.SessionRepositoryが実装する。
type SessionPurger interface {
	DeleteDatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob は保持期間を超過したセッションの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	purger        SessionPurger
	logger        *slog.Logger
	metrics       metrics.MetricsCollector
	now           func() time.Time
	RetentionDays int // セッションの保持日数。0以下なら削除しない
}

// NewCleanupJob は新しいCleanupJobを生成する。collectorはnilでもよい。
func NewCleanupJob(purger SessionPurger, logger *slog.Logger, collector metrics.MetricsCollector, retentionDays int) *CleanupJob {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &CleanupJob{
		purger:        purger,
		logger:        logger,
		metrics:       collector,
		now:           time.Now,
		RetentionDays: retentionDays,
	}
}

// Enabled は保持期間が設定されているかを返す。
func (j *CleanupJob) Enabled() bool {
	return j.RetentionDays > 0
}

// Run は保持期間を超過したセッションを削除する。
// 開催日がRetentionDays日前より古いセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	if !j.Enabled() {
		j.logger.Debug("セッションクリーンアップは無効です")
		return nil
	}

	start := time.Now()
	cutoff := j.now().AddDate(0, 0, -j.RetentionDays)

	deletedCount, err := j.purger.DeleteDatedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	j.metrics.RecordSessionsPurged(deletedCount)

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

// runLogged はRunを実行する。エラーはRun内でログ出力済みのため、ここでは握りつぶす。
func (j *CleanupJob) runLogged(ctx context.Context) {
	_ = j.Run(ctx)
}
