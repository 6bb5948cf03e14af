package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/contestman/internal/model"
)

// retryFixture は再送テスト用の依存一式を組み立てる。
type retryFixture struct {
	notifRepo   *fakeNotifRepo
	userRepo    *fakeUserRepo
	email       *fakeTransport
	push        *fakeTransport
	coordinator *RetryCoordinator
}

func newRetryFixture() *retryFixture {
	notifRepo := newFakeNotifRepo()
	userRepo := &fakeUserRepo{users: []*model.User{immediateUser("user-1", 24)}}
	email := &fakeTransport{name: model.ChannelEmail, enabled: true}
	push := &fakeTransport{name: model.ChannelPush, enabled: true}
	dispatcher := NewDispatcher(email, push)
	tracker := NewDeliveryTracker(notifRepo)
	return &retryFixture{
		notifRepo:   notifRepo,
		userRepo:    userRepo,
		email:       email,
		push:        push,
		coordinator: NewRetryCoordinator(notifRepo, userRepo, dispatcher, tracker),
	}
}

// failedNotification はfailed状態のテスト用通知を保存して返す。
func (f *retryFixture) failedNotification(t *testing.T, retryCount, maxRetries int) *model.Notification {
	t.Helper()
	n := &model.Notification{
		ID:         "n1",
		UserID:     "user-1",
		ContestID:  "c1",
		Type:       model.TypeContestReminder,
		Channels:   []model.Channel{model.ChannelEmail, model.ChannelPush},
		Status:     model.StatusFailed,
		RetryCount: retryCount,
		MaxRetries: maxRetries,
	}
	if err := f.notifRepo.Create(context.Background(), n); err != nil {
		t.Fatalf("テスト用通知の作成に失敗: %v", err)
	}
	return n
}

// TestRetry_Success はfailed状態の通知が再送され、
// retryCountがちょうど1増えることを検証する。
func TestRetry_Success(t *testing.T) {
	f := newRetryFixture()
	f.failedNotification(t, 1, 3)

	if err := f.coordinator.Retry(context.Background(), "n1"); err != nil {
		t.Fatalf("Retry error = %v", err)
	}

	stored, _ := f.notifRepo.FindByID(context.Background(), "n1")
	if stored.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", stored.RetryCount)
	}
	if stored.LastRetryAt == nil {
		t.Error("last_retry_atが設定されるべき")
	}
	if stored.Status != model.StatusSent {
		t.Errorf("再送成功後のStatus = %s, want sent", stored.Status)
	}
	// 再送は元の対象チャネル全てに行う
	if f.email.sendCount() != 1 || f.push.sendCount() != 1 {
		t.Errorf("全対象チャネルに再送されるべき: email=%d push=%d", f.email.sendCount(), f.push.sendCount())
	}
}

// TestRetry_RejectedAtMaxRetries は再送回数上限に達した通知の
// 再送が拒否されることを検証する。
func TestRetry_RejectedAtMaxRetries(t *testing.T) {
	f := newRetryFixture()
	f.failedNotification(t, 3, 3)

	err := f.coordinator.Retry(context.Background(), "n1")
	if err == nil {
		t.Fatal("上限到達の通知は再送拒否されるべき")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeCannotRetry {
		t.Errorf("CANNOT_RETRYエラーになるべき: %v", err)
	}

	stored, _ := f.notifRepo.FindByID(context.Background(), "n1")
	if stored.RetryCount != 3 {
		t.Errorf("拒否時はretryCountが変わらないべき: %d", stored.RetryCount)
	}
}

// TestRetry_RejectedForSentStatus はsent状態の通知の再送が
// 拒否されることを検証する。
func TestRetry_RejectedForSentStatus(t *testing.T) {
	f := newRetryFixture()
	n := f.failedNotification(t, 0, 3)
	n.Status = model.StatusSent
	if err := f.notifRepo.Update(context.Background(), n); err != nil {
		t.Fatalf("テスト用通知の更新に失敗: %v", err)
	}

	err := f.coordinator.Retry(context.Background(), "n1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeCannotRetry {
		t.Errorf("sent状態の再送はCANNOT_RETRYになるべき: %v", err)
	}
}

// TestRetry_NotFound は存在しない通知の再送が
// NOTIFICATION_NOT_FOUNDになることを検証する。
func TestRetry_NotFound(t *testing.T) {
	f := newRetryFixture()

	err := f.coordinator.Retry(context.Background(), "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotificationNotFound {
		t.Errorf("NOTIFICATION_NOT_FOUNDエラーになるべき: %v", err)
	}
}

// TestRetry_RetryingStatusAllowed はretrying状態の通知が
// 再送対象になることを検証する。
func TestRetry_RetryingStatusAllowed(t *testing.T) {
	f := newRetryFixture()
	n := f.failedNotification(t, 1, 3)
	n.Status = model.StatusRetrying
	if err := f.notifRepo.Update(context.Background(), n); err != nil {
		t.Fatalf("テスト用通知の更新に失敗: %v", err)
	}

	if err := f.coordinator.Retry(context.Background(), "n1"); err != nil {
		t.Fatalf("retrying状態は再送可能であるべき: %v", err)
	}
}
