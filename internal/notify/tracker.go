package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/contestman/internal/model"
	"github.com/hitoshi/contestman/internal/repository"
)

// errUnknownChannel は未登録チャネルへの配信指示に対するエラー。
func errUnknownChannel(name model.Channel) error {
	return fmt.Errorf("未登録のチャネルです: %s", name)
}

// DeliveryTracker は配信試行の記録を二相で行う。
// 配信前にpending行とチャネルごとのスタブを作成し、
// 全チャネルの結果が揃った後にfinalizeで確定する。
// 配信と永続化の間でクラッシュしても、監査可能なpending行が残る。
type DeliveryTracker struct {
	notifRepo repository.NotificationRepository
	now       func() time.Time
}

// NewDeliveryTracker はDeliveryTrackerの新しいインスタンスを生成する。
func NewDeliveryTracker(notifRepo repository.NotificationRepository) *DeliveryTracker {
	return &DeliveryTracker{
		notifRepo: notifRepo,
		now:       time.Now,
	}
}

// RecordAttempt はトランスポート呼び出し前にpending状態の通知行を作成する。
// delivery_statusesには対象チャネルごとのpendingスタブを1つずつ入れる。
func (t *DeliveryTracker) RecordAttempt(
	ctx context.Context,
	user *model.User,
	notifType model.NotificationType,
	title, message string,
	payload model.NotificationPayload,
	channels []model.Channel,
) (*model.Notification, error) {
	now := t.now()

	stubs := make([]model.DeliveryStatus, 0, len(channels))
	for _, c := range channels {
		stubs = append(stubs, model.DeliveryStatus{
			Channel: c,
			Status:  model.StatusPending,
		})
	}

	n := &model.Notification{
		ID:               uuid.New().String(),
		UserID:           user.ID,
		ContestID:        payload.ContestID,
		Type:             notifType,
		Title:            title,
		Message:          message,
		Payload:          payload,
		Channels:         channels,
		DeliveryStatuses: stubs,
		Status:           model.StatusPending,
		ScheduledAt:      now,
		MaxRetries:       defaultMaxRetries,
		ExpiresAt:        now.Add(notificationTTL),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := t.notifRepo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("通知行の作成に失敗しました: %w", err)
	}
	return n, nil
}

// Finalize は全チャネルの配信結果から通知行を確定する。
// delivery_statusesは最新試行の結果で置き換え、過去のエラーは
// error_logに追記して監査証跡を保つ。全体状態はいずれか1チャネルでも
// 成功していればsent、全滅の場合のみfailed。
func (t *DeliveryTracker) Finalize(
	ctx context.Context,
	n *model.Notification,
	results []ChannelResult,
) error {
	now := t.now()

	statuses := make([]model.DeliveryStatus, 0, len(results))
	for _, r := range results {
		ds := model.DeliveryStatus{
			Channel:    r.Channel,
			RetryCount: n.RetryCount,
		}
		if r.Result.Success {
			ds.Status = model.StatusSent
			ds.MessageID = r.Result.MessageID
			ds.SentAt = &now
		} else {
			ds.Status = model.StatusFailed
			ds.FailedAt = &now
			if r.Result.Error != nil {
				ds.Error = r.Result.Error.Error()
				n.ErrorLog = append(n.ErrorLog,
					fmt.Sprintf("%s [%s] %s", now.UTC().Format(time.RFC3339), r.Channel, r.Result.Error),
				)
			}
		}
		statuses = append(statuses, ds)
	}

	n.DeliveryStatuses = statuses
	n.Status = model.OverallStatus(statuses)
	if n.Status == model.StatusSent {
		n.SentAt = &now
	} else {
		n.FailedAt = &now
	}
	n.UpdatedAt = now

	if err := t.notifRepo.Update(ctx, n); err != nil {
		return fmt.Errorf("通知行の確定に失敗しました: %w", err)
	}
	return nil
}
