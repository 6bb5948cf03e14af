// Package sync はプラットフォーム同期のオーケストレーションを提供する。
// スケジューラ、オーケストレーター、プラットフォーム単位の排他制御を含む。
package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/contestman/internal/contest"
	"github.com/hitoshi/contestman/internal/lock"
	"github.com/hitoshi/contestman/internal/metrics"
	"github.com/hitoshi/contestman/internal/model"
	"github.com/hitoshi/contestman/internal/platform"
)

// syncLockTTL は同期ロックの自動失効時間。
// 1プラットフォームの同期がこれを超えることは想定しない。
const syncLockTTL = 15 * time.Minute

// Reconciler はコンテストのUPSERT処理のインターフェース。
type Reconciler interface {
	// Upsert は正規化済みコンテストをUPSERTし、件数を集計して返す。
	Upsert(ctx context.Context, platform model.Platform, contests []model.ParsedContest) (model.SyncCounts, error)
}

var _ Reconciler = (*contest.ReconcileService)(nil)

// Orchestrator はプラットフォーム同期の指揮を行う。
// 同一プラットフォームの同期の多重実行をロックで防ぎ、
// プラットフォーム間の失敗を隔離する。
type Orchestrator struct {
	registry   *platform.Registry
	reconciler Reconciler
	locker     lock.PlatformLocker
	collector  metrics.MetricsCollector
	logger     *slog.Logger
}

// NewOrchestrator はOrchestratorの新しいインスタンスを生成する。
func NewOrchestrator(
	registry *platform.Registry,
	reconciler Reconciler,
	locker lock.PlatformLocker,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:   registry,
		reconciler: reconciler,
		locker:     locker,
		collector:  collector,
		logger:     logger,
	}
}

// SyncPlatform は1プラットフォーム分の同期を実行する。
// 同一プラットフォームの同期が実行中の場合はSYNC_IN_PROGRESSで拒否する
// （skip-if-running。後続のスケジュール実行が積み重ならないようにする）。
// アップストリーム取得失敗はFETCH_FAILEDとして返す。
func (o *Orchestrator) SyncPlatform(ctx context.Context, name model.Platform) (model.SyncCounts, error) {
	adapter, ok := o.registry.Get(name)
	if !ok {
		return model.SyncCounts{}, model.NewUnknownPlatformError(string(name))
	}

	acquired, err := o.locker.TryAcquire(ctx, name, syncLockTTL)
	if err != nil {
		return model.SyncCounts{}, err
	}
	if !acquired {
		return model.SyncCounts{}, model.NewSyncInProgressError(name)
	}
	defer func() {
		if err := o.locker.Release(ctx, name); err != nil {
			o.logger.Error("同期ロックの解放に失敗しました",
				slog.String("platform", string(name)),
				slog.String("error", err.Error()),
			)
		}
	}()

	start := time.Now()
	o.logger.Info("プラットフォーム同期を開始します",
		slog.String("platform", string(name)),
	)

	contests, err := adapter.FetchContests(ctx)
	if err != nil {
		o.collector.RecordSyncFailure(string(name))
		o.logger.Error("コンテスト取得に失敗しました",
			slog.String("platform", string(name)),
			slog.String("error", err.Error()),
		)
		return model.SyncCounts{Failed: 1}, model.NewFetchFailedError(name, err.Error())
	}

	counts, err := o.reconciler.Upsert(ctx, name, contests)
	if err != nil {
		o.collector.RecordSyncFailure(string(name))
		return counts, err
	}

	o.collector.RecordSyncSuccess(string(name))
	o.collector.RecordContestsSynced(string(name), counts.Synced, counts.Updated, counts.Failed)

	o.logger.Info("プラットフォーム同期が完了しました",
		slog.String("platform", string(name)),
		slog.Int("synced", counts.Synced),
		slog.Int("updated", counts.Updated),
		slog.Int("failed", counts.Failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return counts, nil
}

// SyncAll は登録済み全プラットフォームを順次同期する。
// 順次実行はログの読みやすさのためで、正しさは順序に依存しない。
// 個別プラットフォームの失敗は隔離し、そのプラットフォームのみ
// ゼロ件数+Failed>0の結果として記録して次へ進む。
func (o *Orchestrator) SyncAll(ctx context.Context) map[model.Platform]model.SyncCounts {
	results := make(map[model.Platform]model.SyncCounts, len(o.registry.All()))

	for _, adapter := range o.registry.All() {
		name := adapter.Name()
		counts, err := o.SyncPlatform(ctx, name)
		if err != nil {
			o.logger.Error("プラットフォーム同期に失敗しました",
				slog.String("platform", string(name)),
				slog.String("error", err.Error()),
			)
			if counts.Failed == 0 {
				counts.Failed = 1
			}
		}
		results[name] = counts
	}

	return results
}
