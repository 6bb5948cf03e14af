// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/contestman/internal/channel"
	"github.com/hitoshi/contestman/internal/config"
	"github.com/hitoshi/contestman/internal/contest"
	"github.com/hitoshi/contestman/internal/database"
	"github.com/hitoshi/contestman/internal/handler"
	"github.com/hitoshi/contestman/internal/lock"
	"github.com/hitoshi/contestman/internal/logger"
	"github.com/hitoshi/contestman/internal/metrics"
	"github.com/hitoshi/contestman/internal/middleware"
	"github.com/hitoshi/contestman/internal/notify"
	"github.com/hitoshi/contestman/internal/platform"
	"github.com/hitoshi/contestman/internal/repository"
	"github.com/hitoshi/contestman/internal/security"
	"github.com/hitoshi/contestman/internal/worker/cleanup"
	notifyworker "github.com/hitoshi/contestman/internal/worker/notify"
	syncworker "github.com/hitoshi/contestman/internal/worker/sync"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// engine は同期・通知エンジンの全構成要素をまとめた構造体。
// serveモードとworkerモードの両方が同じワイヤリングを共有する。
type engine struct {
	orchestrator  *syncworker.Orchestrator
	notifyService *notify.Service
	cleanupJob    *cleanup.CleanupJob
	contestRepo   repository.ContestRepository
	registry      prometheus.Gatherer
	redisClient   *redis.Client
}

// close はエンジンが保持する外部接続を解放する。
func (e *engine) close() {
	if e.redisClient != nil {
		if err := e.redisClient.Close(); err != nil {
			slog.Error("failed to close redis connection", slog.String("error", err.Error()))
		}
	}
}

// buildEngine は設定とDB接続から全構成要素をワイヤリングする。
func buildEngine(cfg *config.Config, db *sql.DB) (*engine, error) {
	// 1. リポジトリの初期化
	contestRepo := repository.NewPostgresContestRepo(db)
	userRepo := repository.NewPostgresUserRepo(db)
	notifRepo := repository.NewPostgresNotificationRepo(db)

	// 2. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 3. メトリクスの初期化
	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	// 4. プラットフォームアダプタの初期化
	client := platform.NewClient(ssrfGuard, slog.Default(), platform.ClientConfig{
		Timeout:      cfg.FetchTimeout,
		MaxBodySize:  cfg.FetchMaxSize,
		RetryCount:   cfg.FetchRetryCount,
		RetryBackoff: cfg.FetchRetryBackoff,
	})
	registry := platform.NewRegistry(
		platform.NewCodeforcesAdapter(client, slog.Default(), cfg.CodeforcesAPIURL),
		platform.NewCodeChefAdapter(client, slog.Default(), cfg.CodeChefAPIURL),
		platform.NewAtCoderAdapter(client, slog.Default(), cfg.AtCoderAPIURL),
		platform.NewHackerEarthAdapter(client, slog.Default(), cfg.HackerEarthAPIURL),
	)

	// 5. 同期ロックの初期化
	// REDIS_URLが設定されている場合は複数インスタンス対応のredisロック、
	// 未設定の場合はインメモリロックを使用する。
	var locker lock.PlatformLocker
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		locker = lock.NewRedisLocker(redisClient)
		slog.Info("using redis sync lock")
	} else {
		locker = lock.NewMemoryLocker()
		slog.Info("using in-memory sync lock")
	}

	// 6. 同期オーケストレーターの初期化
	reconciler := contest.NewReconcileService(contestRepo, sanitizer)
	orchestrator := syncworker.NewOrchestrator(registry, reconciler, locker, collector, slog.Default())

	// 7. 通知チャネルの初期化
	emailTransport := channel.NewEmailTransport(channel.EmailConfig{
		AccessKey: cfg.SESAccessKey,
		SecretKey: cfg.SESSecretKey,
		Region:    cfg.SESRegion,
		FromAddr:  cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
	})
	messagingTransport := channel.NewMessagingTransport(cfg.MessagingAPIURL, cfg.MessagingAPIKey)
	pushTransport := channel.NewPushTransport(cfg.PushAPIURL, cfg.PushServerKey)

	// 8. 通知パイプラインの初期化
	dispatcher := notify.NewDispatcher(emailTransport, messagingTransport, pushTransport)
	dispatcher.SetRecorder(collector)
	tracker := notify.NewDeliveryTracker(notifRepo)
	notifyService := notify.NewService(
		notify.NewSelector(userRepo),
		notify.NewDedupGuard(notifRepo),
		dispatcher,
		tracker,
		notify.NewRetryCoordinator(notifRepo, userRepo, dispatcher, tracker),
		notify.NewDigestBatcher(userRepo, contestRepo, dispatcher, tracker),
		contestRepo,
		notifRepo,
		cfg.NotifyMaxConcurrent,
	)

	// 9. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(contestRepo, notifRepo, slog.Default(), cfg.ContestRetentionDays)

	return &engine{
		orchestrator:  orchestrator,
		notifyService: notifyService,
		cleanupJob:    cleanupJob,
		contestRepo:   contestRepo,
		registry:      promRegistry,
		redisClient:   redisClient,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. エンジンのワイヤリング
	eng, err := buildEngine(cfg, db)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	defer eng.close()

	// 3. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:              slog.Default(),
		RateLimiter:         rateLimiter,
		SyncService:         eng.orchestrator,
		Cleanup:             eng.cleanupJob,
		NotificationService: eng.notifyService,
		ContestLister:       eng.contestRepo,
		DB:                  db,
		Gatherer:            eng.registry,
	})

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 同期スケジューラ、通知ワーカー、クリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. エンジンのワイヤリング
	eng, err := buildEngine(cfg, db)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	defer eng.close()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sync_interval", cfg.SyncInterval),
		slog.Bool("sync_on_start", cfg.SyncOnStart),
	)

	// 3. 通知ワーカーをバックグラウンドで起動
	notifyWorker := notifyworker.NewWorker(eng.notifyService, slog.Default())
	go notifyWorker.Start(ctx)

	// 4. クリーンアップジョブをバックグラウンドで起動
	go eng.cleanupJob.Start(ctx, cfg.CleanupInterval)

	// 5. 同期スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler := syncworker.NewScheduler(eng.orchestrator, slog.Default(), cfg.SyncOnStart)
	scheduler.Start(ctx, cfg.SyncInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
