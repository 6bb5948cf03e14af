// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/contestman/internal/model"
)

// ContestRepository はコンテストデータの永続化インターフェース。
// コンテスト行への書き込みはReconcileServiceとクリーンアップジョブのみが行う。
type ContestRepository interface {
	// FindByID は指定IDのコンテストを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Contest, error)

	// FindByPlatformID は(platform, platform_id)でコンテストを検索する。
	// 同一性判定の唯一の手段。見つからない場合はnilを返す。
	FindByPlatformID(ctx context.Context, platform model.Platform, platformID string) (*model.Contest, error)

	// Create は新規コンテストを作成する。
	Create(ctx context.Context, contest *model.Contest) error

	// Update は既存コンテストの可変フィールドを上書き更新し、last_synced_atを刷新する。
	Update(ctx context.Context, contest *model.Contest) error

	// ListUpcomingWithin は開始時刻が[now, until]に入るアクティブな開始前コンテストを
	// start_time昇順で返す。30分間隔の通知スキャンが使用する。
	ListUpcomingWithin(ctx context.Context, now, until time.Time) ([]*model.Contest, error)

	// ListUpcomingForPlatforms は指定プラットフォーム群の開始前コンテストを
	// 開始時刻が[now, until]に入る範囲でstart_time昇順で返す。ダイジェスト用。
	ListUpcomingForPlatforms(ctx context.Context, platforms []model.Platform, now, until time.Time) ([]*model.Contest, error)

	// MarkNotified はコンテストのis_notifiedフラグを立てる。
	MarkNotified(ctx context.Context, id string) error

	// DeleteFinishedBefore は終了済みかつend_timeがcutoffより古いコンテストを削除し、
	// 削除件数を返す。クリーンアップジョブが使用する。
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserRepository はユーザーデータの読み取りインターフェース。
// ユーザーの作成・更新は外部システムの責務であり、本エンジンは読み取り専用。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// ListImmediateByPlatform は指定プラットフォームを購読する即時通知対象ユーザーを返す。
	// 条件: is_active かつ email_verified かつ frequency = 'immediate' かつ
	// platformsに指定プラットフォームを含む。
	ListImmediateByPlatform(ctx context.Context, platform model.Platform) ([]*model.User, error)

	// ListByFrequency は指定頻度のアクティブかつメール確認済みユーザーを返す。
	// ダイジェスト送信が使用する。
	ListByFrequency(ctx context.Context, frequency model.AlertFrequency) ([]*model.User, error)
}

// NotificationRepository は通知データの永続化インターフェース。
type NotificationRepository interface {
	// FindByID は指定IDの通知を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Notification, error)

	// Create は通知を作成する。DeliveryTrackerがpending行の事前作成に使用する。
	Create(ctx context.Context, notification *model.Notification) error

	// Update は通知の配信結果・状態・再送情報を更新する。
	Update(ctx context.Context, notification *model.Notification) error

	// ExistsRecentSent は(user, contest, type)の組でsent状態かつ
	// sent_atがsince以降の通知が存在するかを返す。DedupGuardが使用する。
	ExistsRecentSent(ctx context.Context, userID, contestID string, notifType model.NotificationType, since time.Time) (bool, error)

	// MarkRead は通知の既読フラグを立てる。
	MarkRead(ctx context.Context, id string) error

	// DeleteExpired はexpires_atがnowより古い通知を削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// Stats はフィルタ条件に合致する通知の状態別・種別別の集計を返す。
	Stats(ctx context.Context, filter model.StatsFilter) (*model.NotificationStats, error)
}
