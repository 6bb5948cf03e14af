package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/contestman/internal/model"
	"github.com/hitoshi/contestman/internal/repository"
)

// Selector は通知対象ユーザーの選定を行う。
// 選定条件: アクティブ、メール確認済み、コンテストのプラットフォームを購読中、
// 通知頻度がimmediate、かつ通知希望時間（時間単位）がコンテスト開始までの
// 実残時間以上であること。
type Selector struct {
	userRepo repository.UserRepository
	now      func() time.Time
}

// NewSelector はSelectorの新しいインスタンスを生成する。
func NewSelector(userRepo repository.UserRepository) *Selector {
	return &Selector{
		userRepo: userRepo,
		now:      time.Now,
	}
}

// SelectRecipients は指定コンテストの通知対象ユーザーを返す。
// 閾値比較は以上（>=）であることに注意。「24時間前までに通知が欲しい」
// ユーザーは開始24時間以内に入った時点で対象になる。
// ちょうど24時間の瞬間のみ対象になるのではない。
func (s *Selector) SelectRecipients(ctx context.Context, contest *model.Contest) ([]*model.User, error) {
	candidates, err := s.userRepo.ListImmediateByPlatform(ctx, contest.Platform)
	if err != nil {
		return nil, fmt.Errorf("通知候補ユーザーの取得に失敗しました: %w", err)
	}

	hoursUntil := contest.StartTime.Sub(s.now()).Hours()
	if hoursUntil < 0 {
		// 開始済みコンテストは対象外
		return nil, nil
	}

	recipients := make([]*model.User, 0, len(candidates))
	for _, u := range candidates {
		if float64(u.NotifyBeforeHours) >= hoursUntil {
			recipients = append(recipients, u)
		}
	}
	return recipients, nil
}
