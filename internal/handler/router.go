package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/contestman/internal/metrics"
	"github.com/hitoshi/contestman/internal/middleware"
)

// Pinger はヘルスチェック用のデータベース疎通確認インターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter

	// 同期・クリーンアップ
	SyncService SyncServiceInterface
	Cleanup     CleanupRunner

	// 通知
	NotificationService NotificationServiceInterface

	// コンテスト参照
	ContestLister ContestListerInterface

	// ヘルスチェック・メトリクス
	DB       Pinger
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	LoggingMiddleware → RecoveryMiddleware → RateLimitMiddleware(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())

	syncHandler := NewSyncHandler(deps.SyncService, deps.Cleanup)
	notifHandler := NewNotificationHandler(deps.NotificationService)
	contestHandler := NewContestHandler(deps.ContestLister)

	// --- 監視用ルート（レート制限なし） ---

	r.Get("/health", newHealthHandler(deps.DB))
	r.Get("/metrics", metrics.Handler(deps.Gatherer).ServeHTTP)

	// --- 管理APIルート ---
	// ミドルウェアスタック: RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 同期トリガー（アップストリームを叩くため専用レート制限を追加）
		r.Route("/api/sync", func(r chi.Router) {
			r.With(deps.RateLimiter.SyncTriggerMiddleware()).Post("/", syncHandler.SyncAll)
			r.With(deps.RateLimiter.SyncTriggerMiddleware()).Post("/{platform}", syncHandler.SyncPlatform)
		})

		// クリーンアップトリガー
		r.Post("/api/cleanup", syncHandler.RunCleanup)

		// 通知トリガー・統計
		r.Route("/api/notifications", func(r chi.Router) {
			r.Post("/check", notifHandler.CheckUpcoming)
			r.Get("/stats", notifHandler.Stats)

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/retry", notifHandler.Retry)
				r.Post("/read", notifHandler.MarkRead)
			})
		})

		// ダイジェストトリガー
		r.Post("/api/digests/{frequency}", notifHandler.SendDigests)

		// コンテスト参照
		r.Get("/api/contests/upcoming", contestHandler.ListUpcoming)
	})

	return r
}

// newHealthHandler はデータベース疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "unhealthy",
					"reason": "database unreachable",
				})
				return
			}
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
