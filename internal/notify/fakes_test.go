package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hitoshi/contestman/internal/channel"
	"github.com/hitoshi/contestman/internal/model"
)

// fakeUserRepo はテスト用のUserRepository実装。
type fakeUserRepo struct {
	users []*model.User
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) ListImmediateByPlatform(ctx context.Context, platform model.Platform) ([]*model.User, error) {
	var out []*model.User
	for _, u := range r.users {
		if u.IsActive && u.EmailVerified && u.Frequency == model.FrequencyImmediate && u.IsSubscribedTo(platform) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) ListByFrequency(ctx context.Context, frequency model.AlertFrequency) ([]*model.User, error) {
	var out []*model.User
	for _, u := range r.users {
		if u.IsActive && u.EmailVerified && u.Frequency == frequency {
			out = append(out, u)
		}
	}
	return out, nil
}

// fakeNotifRepo はテスト用のNotificationRepository実装。
type fakeNotifRepo struct {
	mu            sync.Mutex
	notifications map[string]*model.Notification
}

func newFakeNotifRepo() *fakeNotifRepo {
	return &fakeNotifRepo{notifications: make(map[string]*model.Notification)}
}

func (r *fakeNotifRepo) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notifications[id], nil
}

func (r *fakeNotifRepo) Create(ctx context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *n
	r.notifications[n.ID] = &clone
	return nil
}

func (r *fakeNotifRepo) Update(ctx context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notifications[n.ID]; !ok {
		return errors.New("notification not found")
	}
	clone := *n
	r.notifications[n.ID] = &clone
	return nil
}

func (r *fakeNotifRepo) ExistsRecentSent(ctx context.Context, userID, contestID string, notifType model.NotificationType, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.UserID == userID && n.ContestID == contestID && n.Type == notifType &&
			n.Status == model.StatusSent && n.SentAt != nil && !n.SentAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeNotifRepo) MarkRead(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return errors.New("notification not found")
	}
	n.IsRead = true
	return nil
}

func (r *fakeNotifRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, n := range r.notifications {
		if n.ExpiresAt.Before(now) {
			delete(r.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeNotifRepo) Stats(ctx context.Context, filter model.StatsFilter) (*model.NotificationStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &model.NotificationStats{
		ByStatus: make(map[model.NotificationStatus]int),
		ByType:   make(map[model.NotificationType]int),
	}
	for _, n := range r.notifications {
		if filter.UserID != "" && n.UserID != filter.UserID {
			continue
		}
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		stats.Total++
		stats.ByStatus[n.Status]++
		stats.ByType[n.Type]++
	}
	return stats, nil
}

// all は保存済み通知の一覧を返す。
func (r *fakeNotifRepo) all() []*model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Notification, 0, len(r.notifications))
	for _, n := range r.notifications {
		out = append(out, n)
	}
	return out
}

// fakeContestRepo はテスト用のContestRepository実装。
type fakeContestRepo struct {
	contests []*model.Contest
	notified map[string]bool
}

func newFakeContestRepo(contests ...*model.Contest) *fakeContestRepo {
	return &fakeContestRepo{contests: contests, notified: make(map[string]bool)}
}

func (r *fakeContestRepo) FindByID(ctx context.Context, id string) (*model.Contest, error) {
	for _, c := range r.contests {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeContestRepo) FindByPlatformID(ctx context.Context, platform model.Platform, platformID string) (*model.Contest, error) {
	return nil, nil
}

func (r *fakeContestRepo) Create(ctx context.Context, contest *model.Contest) error {
	r.contests = append(r.contests, contest)
	return nil
}

func (r *fakeContestRepo) Update(ctx context.Context, contest *model.Contest) error {
	return nil
}

func (r *fakeContestRepo) ListUpcomingWithin(ctx context.Context, now, until time.Time) ([]*model.Contest, error) {
	var out []*model.Contest
	for _, c := range r.contests {
		if c.Phase == model.PhaseUpcoming && c.IsActive &&
			!c.StartTime.Before(now) && !c.StartTime.After(until) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeContestRepo) ListUpcomingForPlatforms(ctx context.Context, platforms []model.Platform, now, until time.Time) ([]*model.Contest, error) {
	var out []*model.Contest
	for _, c := range r.contests {
		if c.Phase != model.PhaseUpcoming || c.StartTime.Before(now) || c.StartTime.After(until) {
			continue
		}
		for _, p := range platforms {
			if c.Platform == p {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeContestRepo) MarkNotified(ctx context.Context, id string) error {
	r.notified[id] = true
	return nil
}

func (r *fakeContestRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// fakeTransport はテスト用のTransport実装。
type fakeTransport struct {
	name    model.Channel
	enabled bool
	fail    bool
	mu      sync.Mutex
	sends   int
}

func (t *fakeTransport) Name() model.Channel {
	return t.name
}

func (t *fakeTransport) IsEnabled() bool {
	return t.enabled
}

func (t *fakeTransport) Send(ctx context.Context, user *model.User, n *model.Notification) channel.Result {
	t.mu.Lock()
	t.sends++
	t.mu.Unlock()
	if t.fail {
		return channel.Result{Success: false, Error: errors.New("transport failure")}
	}
	return channel.Result{Success: true, MessageID: string(t.name) + "-msg"}
}

func (t *fakeTransport) sendCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sends
}

// immediateUser は即時通知設定のテスト用ユーザーを生成する。
func immediateUser(id string, notifyBefore int) *model.User {
	return &model.User{
		ID:                id,
		Email:             id + "@example.com",
		Phone:             "+81-90-0000-0000",
		DeviceToken:       "token-" + id,
		IsActive:          true,
		EmailVerified:     true,
		Platforms:         []model.Platform{model.PlatformCodeforces},
		Frequency:         model.FrequencyImmediate,
		Channels:          model.ChannelPrefs{Email: true, Messaging: true, Push: true},
		NotifyBeforeHours: notifyBefore,
	}
}

// upcomingContest は開始前のテスト用コンテストを生成する。
func upcomingContest(id string, startIn time.Duration, now time.Time) *model.Contest {
	start := now.Add(startIn)
	return &model.Contest{
		ID:         id,
		Platform:   model.PlatformCodeforces,
		PlatformID: id,
		Name:       "Codeforces Round " + id,
		Phase:      model.PhaseUpcoming,
		StartTime:  start,
		EndTime:    start.Add(2 * time.Hour),
		URL:        "https://codeforces.com/contest/" + id,
		IsActive:   true,
	}
}
