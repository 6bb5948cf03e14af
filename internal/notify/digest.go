package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/contestman/internal/model"
	"github.com/hitoshi/contestman/internal/repository"
)

// digestHorizons は頻度ごとの先読み幅。
var digestHorizons = map[model.AlertFrequency]time.Duration{
	model.FrequencyDaily:  24 * time.Hour,
	model.FrequencyWeekly: 168 * time.Hour,
}

// digestTypes は頻度ごとの通知種別。
var digestTypes = map[model.AlertFrequency]model.NotificationType{
	model.FrequencyDaily:  model.TypeDailyDigest,
	model.FrequencyWeekly: model.TypeWeeklyDigest,
}

// DigestBatcher は日次・週次のダイジェスト送信を行う。
// ダイジェストはメールチャネル限定で、1ユーザー1実行につき
// 最大1通に集約する。対象コンテストが0件のユーザーには何も送らず、
// 通知行も作成しない。
type DigestBatcher struct {
	userRepo    repository.UserRepository
	contestRepo repository.ContestRepository
	dispatcher  *Dispatcher
	tracker     *DeliveryTracker
	now         func() time.Time
}

// NewDigestBatcher はDigestBatcherの新しいインスタンスを生成する。
func NewDigestBatcher(
	userRepo repository.UserRepository,
	contestRepo repository.ContestRepository,
	dispatcher *Dispatcher,
	tracker *DeliveryTracker,
) *DigestBatcher {
	return &DigestBatcher{
		userRepo:    userRepo,
		contestRepo: contestRepo,
		dispatcher:  dispatcher,
		tracker:     tracker,
		now:         time.Now,
	}
}

// SendDigests は指定頻度の全対象ユーザーにダイジェストを送信し、
// 送信数を返す。個別ユーザーのエラーはログに記録して次のユーザーへ進む。
func (b *DigestBatcher) SendDigests(ctx context.Context, frequency model.AlertFrequency) (int, error) {
	horizon, ok := digestHorizons[frequency]
	if !ok {
		return 0, model.NewInvalidFrequencyError(string(frequency))
	}

	// メールトランスポート未設定の環境では配信試行も通知行の作成もせず、
	// 実行ごとに1行のログを残して丸ごとスキップする。
	if !b.dispatcher.ChannelEnabled(model.ChannelEmail) {
		slog.Warn("メールチャネルが未設定のためダイジェスト送信をスキップします",
			"frequency", frequency,
		)
		return 0, nil
	}

	users, err := b.userRepo.ListByFrequency(ctx, frequency)
	if err != nil {
		return 0, fmt.Errorf("ダイジェスト対象ユーザーの取得に失敗しました: %w", err)
	}

	sent := 0
	for _, user := range users {
		ok, err := b.sendDigestTo(ctx, user, frequency, horizon)
		if err != nil {
			slog.Error("ダイジェスト送信でエラー",
				"user_id", user.ID,
				"frequency", frequency,
				"error", err,
			)
			continue
		}
		if ok {
			sent++
		}
	}

	slog.Info("ダイジェスト送信完了",
		"frequency", frequency,
		"users", len(users),
		"sent", sent,
	)
	return sent, nil
}

// sendDigestTo は1ユーザー分のダイジェストを送信する。
// 対象コンテストが0件の場合は何も送らずfalseを返す。
func (b *DigestBatcher) sendDigestTo(
	ctx context.Context,
	user *model.User,
	frequency model.AlertFrequency,
	horizon time.Duration,
) (bool, error) {
	if len(user.Platforms) == 0 {
		return false, nil
	}

	now := b.now()

	// ユーザー自身の通知希望時間がホライズンより短い場合はそちらで絞る
	until := now.Add(horizon)
	if user.NotifyBeforeHours > 0 {
		userLimit := now.Add(time.Duration(user.NotifyBeforeHours) * time.Hour)
		if userLimit.Before(until) {
			until = userLimit
		}
	}

	contests, err := b.contestRepo.ListUpcomingForPlatforms(ctx, user.Platforms, now, until)
	if err != nil {
		return false, fmt.Errorf("開催予定コンテストの取得に失敗しました: %w", err)
	}
	if len(contests) == 0 {
		// 空のダイジェストは送らない
		return false, nil
	}

	// ダイジェストはメール限定。メール不可のユーザーには送れない。
	if !user.Channels.Email || user.Email == "" {
		return false, nil
	}

	title, message := buildDigestContent(frequency, contests)
	payload := model.NotificationPayload{UserID: user.ID}

	channels := []model.Channel{model.ChannelEmail}
	n, err := b.tracker.RecordAttempt(ctx, user, digestTypes[frequency], title, message, payload, channels)
	if err != nil {
		return false, err
	}

	results := b.dispatcher.Dispatch(ctx, user, n, channels)
	if err := b.tracker.Finalize(ctx, n, results); err != nil {
		return false, err
	}

	return n.Status == model.StatusSent, nil
}
