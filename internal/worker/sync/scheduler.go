package sync

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler は6時間間隔の定期同期を駆動する。
// 時刻駆動のトリガーに徹し、業務ロジックはOrchestratorに委譲する。
type Scheduler struct {
	orchestrator *Orchestrator
	logger       *slog.Logger
	syncOnStart  bool
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// syncOnStartがtrueの場合、起動直後に1回全プラットフォームを同期する。
func NewScheduler(orchestrator *Orchestrator, logger *slog.Logger, syncOnStart bool) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		logger:       logger,
		syncOnStart:  syncOnStart,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("同期スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Bool("sync_on_start", s.syncOnStart),
	)

	if s.syncOnStart {
		s.RunOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同期スケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は全プラットフォームの同期を1回実行する。
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	results := s.orchestrator.SyncAll(ctx)

	total := 0
	for _, counts := range results {
		total += counts.Synced + counts.Updated
	}

	s.logger.Info("同期サイクルが完了しました",
		slog.Int("platforms", len(results)),
		slog.Int("total_processed", total),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}
