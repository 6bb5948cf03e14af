// Package cleanup は古いデータの自動削除ジョブを提供する。
// 保持期間（デフォルト30日）を超過した終了済みコンテストと、
// 期限切れの通知行を日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/contestman/internal/repository"
)

// defaultRetentionDays はコンテストの保持日数のデフォルト値。
const defaultRetentionDays = 30

// CleanupJob は保持期間を超過したデータの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	contestRepo   repository.ContestRepository
	notifRepo     repository.NotificationRepository
	logger        *slog.Logger
	RetentionDays int // 終了済みコンテストの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// retentionDaysが0以下の場合はデフォルトの30日を使用する。
func NewCleanupJob(
	contestRepo repository.ContestRepository,
	notifRepo repository.NotificationRepository,
	logger *slog.Logger,
	retentionDays int,
) *CleanupJob {
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	return &CleanupJob{
		contestRepo:   contestRepo,
		notifRepo:     notifRepo,
		logger:        logger,
		RetentionDays: retentionDays,
	}
}

// Run は保持期間を超過した終了済みコンテストと期限切れ通知を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	now := time.Now()

	cutoff := now.AddDate(0, 0, -j.RetentionDays)
	deletedContests, err := j.contestRepo.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("コンテストクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("コンテストクリーンアップの実行に失敗: %w", err)
	}

	deletedNotifs, err := j.notifRepo.DeleteExpired(ctx, now)
	if err != nil {
		j.logger.Error("期限切れ通知クリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れ通知クリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_contests", deletedContests),
		slog.Int64("deleted_notifications", deletedNotifs),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでクリーンアップジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップスケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
