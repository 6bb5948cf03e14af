package notify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/hitoshi/contestman/internal/model"
	"github.com/hitoshi/contestman/internal/repository"
)

// Service は通知パイプラインの窓口となるファサード。
// スケジューラと管理APIはServiceのメソッドのみを呼び出す。
type Service struct {
	selector    *Selector
	dedup       *DedupGuard
	dispatcher  *Dispatcher
	tracker     *DeliveryTracker
	retry       *RetryCoordinator
	digest      *DigestBatcher
	contestRepo repository.ContestRepository
	notifRepo   repository.NotificationRepository

	// maxConcurrent はユーザー単位の配信処理の並列上限。
	maxConcurrent int
	now           func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	selector *Selector,
	dedup *DedupGuard,
	dispatcher *Dispatcher,
	tracker *DeliveryTracker,
	retry *RetryCoordinator,
	digest *DigestBatcher,
	contestRepo repository.ContestRepository,
	notifRepo repository.NotificationRepository,
	maxConcurrent int,
) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &Service{
		selector:      selector,
		dedup:         dedup,
		dispatcher:    dispatcher,
		tracker:       tracker,
		retry:         retry,
		digest:        digest,
		contestRepo:   contestRepo,
		notifRepo:     notifRepo,
		maxConcurrent: maxConcurrent,
		now:           time.Now,
	}
}

// CheckUpcomingContests は開始が先読み幅（24時間）以内に入った
// 開始前コンテストを走査し、対象ユーザーへリマインダーを配信する。
// 戻り値は送信に成功した通知数。30分間隔のスキャナと管理APIから呼ばれる。
func (s *Service) CheckUpcomingContests(ctx context.Context) (int, error) {
	now := s.now()
	contests, err := s.contestRepo.ListUpcomingWithin(ctx, now, now.Add(upcomingScanWindow))
	if err != nil {
		return 0, fmt.Errorf("開催予定コンテストの取得に失敗しました: %w", err)
	}

	total := 0
	for _, contest := range contests {
		sent, err := s.notifyContest(ctx, contest)
		if err != nil {
			slog.Error("コンテスト通知でエラー",
				"contest_id", contest.ID,
				"platform", contest.Platform,
				"error", err,
			)
			continue
		}
		total += sent
	}

	slog.Info("通知スキャン完了",
		"contests", len(contests),
		"sent", total,
	)
	return total, nil
}

// notifyContest は1コンテスト分の通知対象を選定し、
// ユーザー単位で並列に配信する。並列度はセマフォで制限する。
func (s *Service) notifyContest(ctx context.Context, contest *model.Contest) (int, error) {
	recipients, err := s.selector.SelectRecipients(ctx, contest)
	if err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	sent := 0

	for _, user := range recipients {
		wg.Add(1)
		sem <- struct{}{}
		go func(user *model.User) {
			defer wg.Done()
			defer func() { <-sem }()

			ok, err := s.notifyUser(ctx, user, contest)
			if err != nil {
				slog.Error("ユーザーへの通知でエラー",
					"user_id", user.ID,
					"contest_id", contest.ID,
					"error", err,
				)
				return
			}
			if ok {
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}(user)
	}
	wg.Wait()

	if sent > 0 {
		if err := s.contestRepo.MarkNotified(ctx, contest.ID); err != nil {
			slog.Error("通知済みフラグの更新でエラー",
				"contest_id", contest.ID,
				"error", err,
			)
		}
	}

	return sent, nil
}

// notifyUser は1ユーザーへのリマインダー配信を行う。
// 重複抑止に該当する場合と対象チャネルが0件の場合は何もせずfalseを返す。
// 対象チャネル0件は失敗ではなくスキップであり、通知行も作成しない。
func (s *Service) notifyUser(ctx context.Context, user *model.User, contest *model.Contest) (bool, error) {
	already, err := s.dedup.AlreadyNotified(ctx, user.ID, contest.ID)
	if err != nil {
		return false, err
	}
	if already {
		return false, nil
	}

	channels := s.dispatcher.QualifyingChannels(user)
	if len(channels) == 0 {
		return false, nil
	}

	hoursUntil := int(math.Round(contest.StartTime.Sub(s.now()).Hours()))
	title, message := buildReminderContent(contest, hoursUntil)
	payload := model.NotificationPayload{
		UserID:          user.ID,
		ContestID:       contest.ID,
		ContestName:     contest.Name,
		Platform:        string(contest.Platform),
		StartTime:       contest.StartTime,
		HoursUntilStart: hoursUntil,
	}

	n, err := s.tracker.RecordAttempt(ctx, user, model.TypeContestReminder, title, message, payload, channels)
	if err != nil {
		return false, err
	}

	results := s.dispatcher.Dispatch(ctx, user, n, channels)
	if err := s.tracker.Finalize(ctx, n, results); err != nil {
		return false, err
	}

	return n.Status == model.StatusSent, nil
}

// SendDailyDigests は日次ダイジェストを送信し、送信数を返す。
func (s *Service) SendDailyDigests(ctx context.Context) (int, error) {
	return s.digest.SendDigests(ctx, model.FrequencyDaily)
}

// SendWeeklyDigests は週次ダイジェストを送信し、送信数を返す。
func (s *Service) SendWeeklyDigests(ctx context.Context) (int, error) {
	return s.digest.SendDigests(ctx, model.FrequencyWeekly)
}

// RetryNotification は指定通知の再送を行う。
// 再送不可の通知には理由付きのエラーを返す。
func (s *Service) RetryNotification(ctx context.Context, notificationID string) error {
	return s.retry.Retry(ctx, notificationID)
}

// MarkNotificationRead は通知に既読フラグを立てる。
func (s *Service) MarkNotificationRead(ctx context.Context, notificationID string) error {
	n, err := s.notifRepo.FindByID(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("通知の取得に失敗しました: %w", err)
	}
	if n == nil {
		return model.NewNotificationNotFoundError(notificationID)
	}
	if err := s.notifRepo.MarkRead(ctx, notificationID); err != nil {
		return fmt.Errorf("既読フラグの更新に失敗しました: %w", err)
	}
	return nil
}

// GetNotificationStats はフィルタ条件に合致する通知の集計統計を返す。
func (s *Service) GetNotificationStats(ctx context.Context, filter model.StatsFilter) (*model.NotificationStats, error) {
	stats, err := s.notifRepo.Stats(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("通知統計の取得に失敗しました: %w", err)
	}
	return stats, nil
}
