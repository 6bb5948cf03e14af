package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/contestman/internal/model"
	"github.com/hitoshi/contestman/internal/repository"
)

// RetryCoordinator は失敗した通知の再送を調整する。
// 再送は元の対象チャネル全てに対して行う。失敗したチャネルのみの
// 再送ではないことに注意（現行仕様として維持する）。
type RetryCoordinator struct {
	notifRepo  repository.NotificationRepository
	userRepo   repository.UserRepository
	dispatcher *Dispatcher
	tracker    *DeliveryTracker
	now        func() time.Time
}

// NewRetryCoordinator はRetryCoordinatorの新しいインスタンスを生成する。
func NewRetryCoordinator(
	notifRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	dispatcher *Dispatcher,
	tracker *DeliveryTracker,
) *RetryCoordinator {
	return &RetryCoordinator{
		notifRepo:  notifRepo,
		userRepo:   userRepo,
		dispatcher: dispatcher,
		tracker:    tracker,
		now:        time.Now,
	}
}

// Retry は指定通知の再送を行う。
// 前提条件: retryCountが上限未満かつ状態がfailedまたはretrying。
// 条件を満たさない場合は理由付きのエラーで拒否する。
// 受理した場合はretryCountを加算し、retrying状態に遷移した上で
// 配信と確定のシーケンスを再実行する。
func (c *RetryCoordinator) Retry(ctx context.Context, notificationID string) error {
	n, err := c.notifRepo.FindByID(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("通知の取得に失敗しました: %w", err)
	}
	if n == nil {
		return model.NewNotificationNotFoundError(notificationID)
	}

	if !n.CanRetry() {
		if n.RetryCount >= n.MaxRetries {
			return model.NewCannotRetryError(notificationID,
				fmt.Sprintf("再送回数が上限に達しています (%d/%d)", n.RetryCount, n.MaxRetries))
		}
		return model.NewCannotRetryError(notificationID,
			fmt.Sprintf("状態 %s は再送対象外です", n.Status))
	}

	user, err := c.userRepo.FindByID(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError(n.UserID)
	}

	now := c.now()
	n.RetryCount++
	n.LastRetryAt = &now
	n.Status = model.StatusRetrying
	n.UpdatedAt = now
	if err := c.notifRepo.Update(ctx, n); err != nil {
		return fmt.Errorf("再送状態の更新に失敗しました: %w", err)
	}

	slog.Info("通知を再送します",
		"notification_id", n.ID,
		"user_id", n.UserID,
		"retry_count", n.RetryCount,
		"channels", len(n.Channels),
	)

	results := c.dispatcher.Dispatch(ctx, user, n, n.Channels)
	if err := c.tracker.Finalize(ctx, n, results); err != nil {
		return err
	}
	return nil
}
