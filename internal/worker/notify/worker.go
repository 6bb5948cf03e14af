// Package notify は通知パイプラインの定期実行ワーカーを提供する。
// 30分間隔の開催予定スキャンと、日次・週次のダイジェスト送信を駆動する。
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/contestman/internal/notify"
)

// ダイジェストのデフォルト送信間隔。
const (
	dailyDigestInterval  = 24 * time.Hour
	weeklyDigestInterval = 7 * 24 * time.Hour
)

// Pipeline はワーカーが呼び出す通知サービスのインターフェース。
type Pipeline interface {
	// CheckUpcomingContests は先読み幅内の開始前コンテストを走査し通知を配信する。
	CheckUpcomingContests(ctx context.Context) (int, error)

	// SendDailyDigests は日次ダイジェストを送信し、送信数を返す。
	SendDailyDigests(ctx context.Context) (int, error)

	// SendWeeklyDigests は週次ダイジェストを送信し、送信数を返す。
	SendWeeklyDigests(ctx context.Context) (int, error)
}

var _ Pipeline = (*notify.Service)(nil)

// Worker は通知サービスを定期駆動するスケジューラ。
// 時刻駆動のトリガーに徹し、業務ロジックはnotify.Serviceに委譲する。
type Worker struct {
	pipeline Pipeline
	logger   *slog.Logger

	scanInterval   time.Duration
	dailyInterval  time.Duration
	weeklyInterval time.Duration
}

// NewWorker はWorkerの新しいインスタンスを生成する。
// スキャン間隔は30分、ダイジェスト間隔は日次24時間・週次7日が既定値。
func NewWorker(pipeline Pipeline, logger *slog.Logger) *Worker {
	return &Worker{
		pipeline:       pipeline,
		logger:         logger,
		scanInterval:   notify.RescanInterval(),
		dailyInterval:  dailyDigestInterval,
		weeklyInterval: weeklyDigestInterval,
	}
}

// Start は3本のティッカーでワーカーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (w *Worker) Start(ctx context.Context) {
	scanTicker := time.NewTicker(w.scanInterval)
	defer scanTicker.Stop()
	dailyTicker := time.NewTicker(w.dailyInterval)
	defer dailyTicker.Stop()
	weeklyTicker := time.NewTicker(w.weeklyInterval)
	defer weeklyTicker.Stop()

	w.logger.Info("通知ワーカーを開始しました",
		slog.Duration("scan_interval", w.scanInterval),
		slog.Duration("daily_interval", w.dailyInterval),
		slog.Duration("weekly_interval", w.weeklyInterval),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("通知ワーカーを停止しました")
			return
		case <-scanTicker.C:
			w.RunScan(ctx)
		case <-dailyTicker.C:
			w.RunDailyDigest(ctx)
		case <-weeklyTicker.C:
			w.RunWeeklyDigest(ctx)
		}
	}
}

// RunScan は開催予定コンテストのスキャンを1回実行する。
func (w *Worker) RunScan(ctx context.Context) {
	start := time.Now()
	sent, err := w.pipeline.CheckUpcomingContests(ctx)
	if err != nil {
		w.logger.Error("通知スキャンの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	w.logger.Info("通知スキャンサイクルが完了しました",
		slog.Int("sent", sent),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}

// RunDailyDigest は日次ダイジェストの送信を1回実行する。
func (w *Worker) RunDailyDigest(ctx context.Context) {
	sent, err := w.pipeline.SendDailyDigests(ctx)
	if err != nil {
		w.logger.Error("日次ダイジェストの送信に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	w.logger.Info("日次ダイジェストを送信しました",
		slog.Int("sent", sent),
	)
}

// RunWeeklyDigest は週次ダイジェストの送信を1回実行する。
func (w *Worker) RunWeeklyDigest(ctx context.Context) {
	sent, err := w.pipeline.SendWeeklyDigests(ctx)
	if err != nil {
		w.logger.Error("週次ダイジェストの送信に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	w.logger.Info("週次ダイジェストを送信しました",
		slog.Int("sent", sent),
	)
}
