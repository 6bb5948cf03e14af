package channel

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/contestman/internal/model"
)

// PushTransport は外部プッシュ通知API経由のチャネル。
// ユーザーのデバイストークン宛にJSON POSTで通知を送信する。
type PushTransport struct {
	httpClient *http.Client
	apiURL     string
	serverKey  string
}

var _ Transport = (*PushTransport)(nil)

// pushRequest はプッシュ通知APIのリクエストボディ。
type pushRequest struct {
	DeviceToken string                    `json:"device_token"`
	Title       string                    `json:"title"`
	Body        string                    `json:"body"`
	Data        model.NotificationPayload `json:"data"`
}

// NewPushTransport はPushTransportを生成する。
// apiURLが空の場合はIsEnabledがfalseになる。
func NewPushTransport(apiURL, serverKey string) *PushTransport {
	return &PushTransport{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     apiURL,
		serverKey:  serverKey,
	}
}

// Name はチャネル名を返す。
func (t *PushTransport) Name() model.Channel {
	return model.ChannelPush
}

// IsEnabled はAPIエンドポイントが設定済みかを返す。
func (t *PushTransport) IsEnabled() bool {
	return t.apiURL != ""
}

// Send はプッシュ通知APIに通知を送信する。
func (t *PushTransport) Send(ctx context.Context, user *model.User, n *model.Notification) Result {
	if t.apiURL == "" {
		return failure(fmt.Errorf("プッシュチャネルが設定されていません"))
	}
	if user.DeviceToken == "" {
		return failure(fmt.Errorf("ユーザーのデバイストークンが未設定です"))
	}

	resp, err := postJSON(ctx, t.httpClient, t.apiURL, t.serverKey, pushRequest{
		DeviceToken: user.DeviceToken,
		Title:       n.Title,
		Body:        n.Message,
		Data:        n.Payload,
	})
	if err != nil {
		return failure(fmt.Errorf("プッシュ送信に失敗しました: %w", err))
	}
	if resp.Error != "" {
		return failure(fmt.Errorf("プッシュAPIがエラーを返しました: %s", resp.Error))
	}

	return Result{Success: true, MessageID: resp.MessageID}
}
