package notify

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/contestman/internal/model"
)

// fakeRecorder はテスト用のRecorder実装。
type fakeRecorder struct {
	sent      map[string]int
	failed    map[string]int
	latencies int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		sent:   make(map[string]int),
		failed: make(map[string]int),
	}
}

func (r *fakeRecorder) RecordNotificationSent(channel string) { r.sent[channel]++ }

func (r *fakeRecorder) RecordNotificationFailed(channel string) { r.failed[channel]++ }

func (r *fakeRecorder) RecordDispatchLatency(duration time.Duration) { r.latencies++ }

// TestQualifyingChannels はチャネル選定の3条件
// （ユーザー設定・宛先情報・トランスポート設定）を検証する。
func TestQualifyingChannels(t *testing.T) {
	email := &fakeTransport{name: model.ChannelEmail, enabled: true}
	messaging := &fakeTransport{name: model.ChannelMessaging, enabled: true}
	push := &fakeTransport{name: model.ChannelPush, enabled: false} // 未設定チャネル
	dispatcher := NewDispatcher(email, messaging, push)

	user := immediateUser("user-1", 24)
	user.Phone = "" // メッセージングの宛先なし

	channels := dispatcher.QualifyingChannels(user)
	if len(channels) != 1 {
		t.Fatalf("対象チャネル数 = %d, want 1", len(channels))
	}
	if channels[0] != model.ChannelEmail {
		t.Errorf("対象チャネル = %s, want email", channels[0])
	}
}

// TestChannelEnabled はトランスポートの登録有無と設定状態の判定を検証する。
func TestChannelEnabled(t *testing.T) {
	email := &fakeTransport{name: model.ChannelEmail, enabled: true}
	push := &fakeTransport{name: model.ChannelPush, enabled: false}
	dispatcher := NewDispatcher(email, push)

	if !dispatcher.ChannelEnabled(model.ChannelEmail) {
		t.Error("設定済みチャネルはenabledと判定されるべき")
	}
	if dispatcher.ChannelEnabled(model.ChannelPush) {
		t.Error("未設定チャネルはenabledと判定されないべき")
	}
	if dispatcher.ChannelEnabled(model.ChannelMessaging) {
		t.Error("未登録チャネルはenabledと判定されないべき")
	}
}

// TestQualifyingChannels_UserDisabled はユーザーが無効化した
// チャネルが除外されることを検証する。
func TestQualifyingChannels_UserDisabled(t *testing.T) {
	email := &fakeTransport{name: model.ChannelEmail, enabled: true}
	dispatcher := NewDispatcher(email)

	user := immediateUser("user-1", 24)
	user.Channels.Email = false

	if got := dispatcher.QualifyingChannels(user); len(got) != 0 {
		t.Errorf("無効化チャネルは除外されるべき: %v", got)
	}
}

// TestDispatch_AllChannels は全対象チャネルへの並行配信と
// 結果の揃いを検証する。
func TestDispatch_AllChannels(t *testing.T) {
	email := &fakeTransport{name: model.ChannelEmail, enabled: true}
	push := &fakeTransport{name: model.ChannelPush, enabled: true}
	dispatcher := NewDispatcher(email, push)

	user := immediateUser("user-1", 24)
	n := &model.Notification{ID: "n1", UserID: user.ID}

	results := dispatcher.Dispatch(context.Background(), user, n,
		[]model.Channel{model.ChannelEmail, model.ChannelPush})

	if len(results) != 2 {
		t.Fatalf("結果数 = %d, want 2", len(results))
	}
	for _, r := range results {
		if !r.Result.Success {
			t.Errorf("チャネル %s の配信が失敗: %v", r.Channel, r.Result.Error)
		}
	}
	if email.sendCount() != 1 || push.sendCount() != 1 {
		t.Errorf("送信回数 = email:%d push:%d, want 1:1", email.sendCount(), push.sendCount())
	}
}

// TestDispatch_PartialFailure は一部チャネルの失敗が他チャネルの
// 結果に影響しないことを検証する。
func TestDispatch_PartialFailure(t *testing.T) {
	email := &fakeTransport{name: model.ChannelEmail, enabled: true}
	push := &fakeTransport{name: model.ChannelPush, enabled: true, fail: true}
	dispatcher := NewDispatcher(email, push)

	user := immediateUser("user-1", 24)
	n := &model.Notification{ID: "n1", UserID: user.ID}

	results := dispatcher.Dispatch(context.Background(), user, n,
		[]model.Channel{model.ChannelEmail, model.ChannelPush})

	byChannel := make(map[model.Channel]ChannelResult)
	for _, r := range results {
		byChannel[r.Channel] = r
	}
	if !byChannel[model.ChannelEmail].Result.Success {
		t.Error("emailチャネルは成功するべき")
	}
	if byChannel[model.ChannelPush].Result.Success {
		t.Error("pushチャネルは失敗するべき")
	}
	if byChannel[model.ChannelPush].Result.Error == nil {
		t.Error("失敗結果はエラーを持つべき")
	}
}

// TestDispatch_RecordsMetrics はレコーダー設定時にチャネル別の
// 成否とレイテンシが記録されることを検証する。
func TestDispatch_RecordsMetrics(t *testing.T) {
	email := &fakeTransport{name: model.ChannelEmail, enabled: true}
	push := &fakeTransport{name: model.ChannelPush, enabled: true, fail: true}
	dispatcher := NewDispatcher(email, push)
	recorder := newFakeRecorder()
	dispatcher.SetRecorder(recorder)

	user := immediateUser("user-1", 24)
	n := &model.Notification{ID: "n1", UserID: user.ID}

	dispatcher.Dispatch(context.Background(), user, n,
		[]model.Channel{model.ChannelEmail, model.ChannelPush})

	if recorder.sent["email"] != 1 {
		t.Errorf("sent[email] = %d, want 1", recorder.sent["email"])
	}
	if recorder.failed["push"] != 1 {
		t.Errorf("failed[push] = %d, want 1", recorder.failed["push"])
	}
	if recorder.latencies != 1 {
		t.Errorf("latency記録回数 = %d, want 1", recorder.latencies)
	}
}

// TestDispatch_UnknownChannel は未登録チャネルへの配信指示が
// 失敗Resultになることを検証する。
func TestDispatch_UnknownChannel(t *testing.T) {
	dispatcher := NewDispatcher()
	user := immediateUser("user-1", 24)
	n := &model.Notification{ID: "n1"}

	results := dispatcher.Dispatch(context.Background(), user, n, []model.Channel{model.ChannelEmail})
	if len(results) != 1 {
		t.Fatalf("結果数 = %d, want 1", len(results))
	}
	if results[0].Result.Success {
		t.Error("未登録チャネルは失敗になるべき")
	}
}
