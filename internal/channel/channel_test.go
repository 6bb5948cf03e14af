package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/hitoshi/contestman/internal/model"
)

// testUser は全チャネルの宛先が揃ったテスト用ユーザーを生成する。
func testUser() *model.User {
	return &model.User{
		ID:          "user-1",
		Email:       "user@example.com",
		Phone:       "+81-90-0000-0000",
		DeviceToken: "device-token-1",
	}
}

// testNotification はテスト用の通知を生成する。
func testNotification() *model.Notification {
	return &model.Notification{
		ID:      "notif-1",
		UserID:  "user-1",
		Type:    model.TypeContestReminder,
		Title:   "Codeforces Round 900 開始2時間前",
		Message: "<p>まもなく開始します</p>",
	}
}

// fakeSESClient はテスト用のsesClient実装。
type fakeSESClient struct {
	err    error
	lastIn *sesv2.SendEmailInput
}

func (c *fakeSESClient) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	c.lastIn = params
	if c.err != nil {
		return nil, c.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-msg-1")}, nil
}

// TestEmailTransport_Send は成功時にMessageIDが返ることを検証する。
func TestEmailTransport_Send(t *testing.T) {
	fake := &fakeSESClient{}
	transport := &EmailTransport{
		client:   fake,
		fromAddr: "noreply@contestman.app",
		fromName: "Contestman",
	}

	result := transport.Send(context.Background(), testUser(), testNotification())
	if !result.Success {
		t.Fatalf("Send失敗: %v", result.Error)
	}
	if result.MessageID != "ses-msg-1" {
		t.Errorf("MessageID = %s, want ses-msg-1", result.MessageID)
	}
	if got := fake.lastIn.Destination.ToAddresses[0]; got != "user@example.com" {
		t.Errorf("宛先 = %s", got)
	}
}

// TestEmailTransport_SendFailure はSESエラーが失敗Resultになることを検証する。
func TestEmailTransport_SendFailure(t *testing.T) {
	transport := &EmailTransport{
		client:   &fakeSESClient{err: errors.New("throttled")},
		fromAddr: "noreply@contestman.app",
		fromName: "Contestman",
	}

	result := transport.Send(context.Background(), testUser(), testNotification())
	if result.Success {
		t.Fatal("SESエラー時は失敗になるべき")
	}
	if result.Error == nil {
		t.Error("失敗ResultはErrorを持つべき")
	}
}

// TestEmailTransport_Disabled は資格情報未設定時に無効となることを検証する。
func TestEmailTransport_Disabled(t *testing.T) {
	transport := NewEmailTransport(EmailConfig{Region: "us-east-1"})
	if transport.IsEnabled() {
		t.Error("資格情報未設定のメールチャネルは無効になるべき")
	}
	result := transport.Send(context.Background(), testUser(), testNotification())
	if result.Success {
		t.Error("無効チャネルのSendは失敗するべき")
	}
}

// TestMessagingTransport_Send はメッセージングAPIへの送信を検証する。
func TestMessagingTransport_Send(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"message_id": "msg-42"}`))
	}))
	defer server.Close()

	transport := NewMessagingTransport(server.URL, "secret-key")
	result := transport.Send(context.Background(), testUser(), testNotification())
	if !result.Success {
		t.Fatalf("Send失敗: %v", result.Error)
	}
	if result.MessageID != "msg-42" {
		t.Errorf("MessageID = %s, want msg-42", result.MessageID)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %s", gotAuth)
	}
}

// TestMessagingTransport_APIError はAPIのエラーレスポンスが
// 失敗Resultになることを検証する。
func TestMessagingTransport_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "invalid recipient"}`))
	}))
	defer server.Close()

	transport := NewMessagingTransport(server.URL, "secret-key")
	result := transport.Send(context.Background(), testUser(), testNotification())
	if result.Success {
		t.Fatal("APIエラー時は失敗になるべき")
	}
}

// TestMessagingTransport_MissingPhone は電話番号未設定ユーザーへの
// 送信が失敗することを検証する。
func TestMessagingTransport_MissingPhone(t *testing.T) {
	transport := NewMessagingTransport("https://messaging.example.com", "key")
	user := testUser()
	user.Phone = ""
	result := transport.Send(context.Background(), user, testNotification())
	if result.Success {
		t.Fatal("電話番号未設定時は失敗になるべき")
	}
}

// TestPushTransport_Send はプッシュAPIへの送信を検証する。
func TestPushTransport_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message_id": "push-7"}`))
	}))
	defer server.Close()

	transport := NewPushTransport(server.URL, "server-key")
	result := transport.Send(context.Background(), testUser(), testNotification())
	if !result.Success {
		t.Fatalf("Send失敗: %v", result.Error)
	}
	if result.MessageID != "push-7" {
		t.Errorf("MessageID = %s, want push-7", result.MessageID)
	}
}

// TestPushTransport_HTTPError は5xxレスポンスが失敗Resultになることを検証する。
func TestPushTransport_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	transport := NewPushTransport(server.URL, "server-key")
	result := transport.Send(context.Background(), testUser(), testNotification())
	if result.Success {
		t.Fatal("5xxレスポンス時は失敗になるべき")
	}
}

// TestTransport_IsEnabled は設定有無による有効判定を検証する。
func TestTransport_IsEnabled(t *testing.T) {
	if NewMessagingTransport("", "").IsEnabled() {
		t.Error("URL未設定のメッセージングチャネルは無効になるべき")
	}
	if !NewMessagingTransport("https://m.example.com", "k").IsEnabled() {
		t.Error("URL設定済みのメッセージングチャネルは有効になるべき")
	}
	if NewPushTransport("", "").IsEnabled() {
		t.Error("URL未設定のプッシュチャネルは無効になるべき")
	}
}
