package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/contestman/internal/model"
	"github.com/hitoshi/contestman/internal/repository"
)

// DedupGuard は同一(user, contest)への短期間の再送を抑止する。
// ハードな一意制約ではなく遡及窓による判定とする。ダイジェストと
// リマインダーは同一コンテストに対して共存を許すため、
// 判定はcontest_reminder種別に限定する。
type DedupGuard struct {
	notifRepo repository.NotificationRepository
	now       func() time.Time
}

// NewDedupGuard はDedupGuardの新しいインスタンスを生成する。
func NewDedupGuard(notifRepo repository.NotificationRepository) *DedupGuard {
	return &DedupGuard{
		notifRepo: notifRepo,
		now:       time.Now,
	}
}

// AlreadyNotified は(user, contest)の組に対しsent状態かつ送信時刻が
// 遡及窓（12時間）以内のリマインダー通知が存在するかを返す。
func (g *DedupGuard) AlreadyNotified(ctx context.Context, userID, contestID string) (bool, error) {
	since := g.now().Add(-dedupWindow)
	exists, err := g.notifRepo.ExistsRecentSent(ctx, userID, contestID, model.TypeContestReminder, since)
	if err != nil {
		return false, fmt.Errorf("重複送信の判定に失敗しました: %w", err)
	}
	return exists, nil
}
