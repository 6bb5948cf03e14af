package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/contestman/internal/channel"
	"github.com/hitoshi/contestman/internal/model"
)

// TestTracker_RecordAttempt は配信前にpending行とチャネルごとの
// スタブが作成されることを検証する。
func TestTracker_RecordAttempt(t *testing.T) {
	repo := newFakeNotifRepo()
	tracker := NewDeliveryTracker(repo)
	user := immediateUser("user-1", 24)

	n, err := tracker.RecordAttempt(context.Background(), user, model.TypeContestReminder,
		"タイトル", "本文", model.NotificationPayload{UserID: user.ID, ContestID: "c1"},
		[]model.Channel{model.ChannelEmail, model.ChannelPush})
	if err != nil {
		t.Fatalf("RecordAttempt error = %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), n.ID)
	if stored == nil {
		t.Fatal("pending行が作成されるべき")
	}
	if stored.Status != model.StatusPending {
		t.Errorf("Status = %s, want pending", stored.Status)
	}
	if len(stored.DeliveryStatuses) != 2 {
		t.Fatalf("スタブ数 = %d, want 2", len(stored.DeliveryStatuses))
	}
	for _, ds := range stored.DeliveryStatuses {
		if ds.Status != model.StatusPending {
			t.Errorf("スタブのStatus = %s, want pending", ds.Status)
		}
	}
	if stored.MaxRetries != defaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", stored.MaxRetries, defaultMaxRetries)
	}
	if stored.ContestID != "c1" {
		t.Errorf("ContestID = %s, want c1", stored.ContestID)
	}
}

// TestTracker_Finalize_PartialSuccess は1チャネル成功・1チャネル失敗の
// 通知がsentになることを検証する。部分的成功は配信成功として扱う。
func TestTracker_Finalize_PartialSuccess(t *testing.T) {
	repo := newFakeNotifRepo()
	tracker := NewDeliveryTracker(repo)
	user := immediateUser("user-1", 24)

	n, err := tracker.RecordAttempt(context.Background(), user, model.TypeContestReminder,
		"タイトル", "本文", model.NotificationPayload{},
		[]model.Channel{model.ChannelEmail, model.ChannelPush})
	if err != nil {
		t.Fatalf("RecordAttempt error = %v", err)
	}

	results := []ChannelResult{
		{Channel: model.ChannelEmail, Result: channel.Result{Success: true, MessageID: "m1"}},
		{Channel: model.ChannelPush, Result: channel.Result{Success: false, Error: errors.New("token expired")}},
	}
	if err := tracker.Finalize(context.Background(), n, results); err != nil {
		t.Fatalf("Finalize error = %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), n.ID)
	if stored.Status != model.StatusSent {
		t.Errorf("部分的成功はsentになるべき: Status = %s", stored.Status)
	}
	if stored.SentAt == nil {
		t.Error("sent_atが設定されるべき")
	}
	if len(stored.ErrorLog) != 1 {
		t.Errorf("失敗チャネルのエラーはerror_logに追記されるべき: %v", stored.ErrorLog)
	}
}

// TestTracker_Finalize_AllFailed は全チャネル失敗の通知が
// failedになることを検証する。
func TestTracker_Finalize_AllFailed(t *testing.T) {
	repo := newFakeNotifRepo()
	tracker := NewDeliveryTracker(repo)
	user := immediateUser("user-1", 24)

	n, err := tracker.RecordAttempt(context.Background(), user, model.TypeContestReminder,
		"タイトル", "本文", model.NotificationPayload{}, []model.Channel{model.ChannelEmail})
	if err != nil {
		t.Fatalf("RecordAttempt error = %v", err)
	}

	results := []ChannelResult{
		{Channel: model.ChannelEmail, Result: channel.Result{Success: false, Error: errors.New("bounce")}},
	}
	if err := tracker.Finalize(context.Background(), n, results); err != nil {
		t.Fatalf("Finalize error = %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), n.ID)
	if stored.Status != model.StatusFailed {
		t.Errorf("全チャネル失敗はfailedになるべき: Status = %s", stored.Status)
	}
	if stored.FailedAt == nil {
		t.Error("failed_atが設定されるべき")
	}
	if stored.DeliveryStatuses[0].Error != "bounce" {
		t.Errorf("delivery_statusにエラーが記録されるべき: %+v", stored.DeliveryStatuses[0])
	}
}

// TestTracker_Finalize_AuditLogAppend は再試行のたびにerror_logが
// 追記され、delivery_statusesは最新試行のみを反映することを検証する。
func TestTracker_Finalize_AuditLogAppend(t *testing.T) {
	repo := newFakeNotifRepo()
	tracker := NewDeliveryTracker(repo)
	user := immediateUser("user-1", 24)

	n, err := tracker.RecordAttempt(context.Background(), user, model.TypeContestReminder,
		"タイトル", "本文", model.NotificationPayload{}, []model.Channel{model.ChannelEmail})
	if err != nil {
		t.Fatalf("RecordAttempt error = %v", err)
	}

	fail := []ChannelResult{
		{Channel: model.ChannelEmail, Result: channel.Result{Success: false, Error: errors.New("timeout")}},
	}
	if err := tracker.Finalize(context.Background(), n, fail); err != nil {
		t.Fatalf("Finalize error = %v", err)
	}
	if err := tracker.Finalize(context.Background(), n, fail); err != nil {
		t.Fatalf("Finalize error = %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), n.ID)
	if len(stored.ErrorLog) != 2 {
		t.Errorf("error_logは追記専用であるべき: len = %d, want 2", len(stored.ErrorLog))
	}
	if len(stored.DeliveryStatuses) != 1 {
		t.Errorf("delivery_statusesは最新試行のみ保持するべき: len = %d", len(stored.DeliveryStatuses))
	}
}

// TestTracker_ExpiresAt は通知行に自動削除の期限が設定されることを検証する。
func TestTracker_ExpiresAt(t *testing.T) {
	repo := newFakeNotifRepo()
	tracker := NewDeliveryTracker(repo)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }

	n, err := tracker.RecordAttempt(context.Background(), immediateUser("user-1", 24),
		model.TypeContestReminder, "タイトル", "本文",
		model.NotificationPayload{}, []model.Channel{model.ChannelEmail})
	if err != nil {
		t.Fatalf("RecordAttempt error = %v", err)
	}
	if !n.ExpiresAt.Equal(now.Add(notificationTTL)) {
		t.Errorf("ExpiresAt = %v, want %v", n.ExpiresAt, now.Add(notificationTTL))
	}
}
