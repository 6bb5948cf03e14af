package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/contestman/internal/model"
)

// MessagingTransport は外部メッセージングAPI経由のチャネル。
// APIキー認証のJSON POSTでメッセージを送信する。
type MessagingTransport struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
}

var _ Transport = (*MessagingTransport)(nil)

// messagingRequest はメッセージングAPIのリクエストボディ。
type messagingRequest struct {
	To      string                    `json:"to"`
	Message string                    `json:"message"`
	Payload model.NotificationPayload `json:"payload"`
}

// apiResponse は外部通知APIの共通レスポンスボディ。
// メッセージング・プッシュ両APIが同じ形式を返す。
type apiResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

// NewMessagingTransport はMessagingTransportを生成する。
// apiURLが空の場合はIsEnabledがfalseになる。
func NewMessagingTransport(apiURL, apiKey string) *MessagingTransport {
	return &MessagingTransport{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     apiURL,
		apiKey:     apiKey,
	}
}

// Name はチャネル名を返す。
func (t *MessagingTransport) Name() model.Channel {
	return model.ChannelMessaging
}

// IsEnabled はAPIエンドポイントが設定済みかを返す。
func (t *MessagingTransport) IsEnabled() bool {
	return t.apiURL != ""
}

// Send はメッセージングAPIに通知を送信する。
func (t *MessagingTransport) Send(ctx context.Context, user *model.User, n *model.Notification) Result {
	if t.apiURL == "" {
		return failure(fmt.Errorf("メッセージングチャネルが設定されていません"))
	}
	if user.Phone == "" {
		return failure(fmt.Errorf("ユーザーの電話番号が未設定です"))
	}

	resp, err := postJSON(ctx, t.httpClient, t.apiURL, t.apiKey, messagingRequest{
		To:      user.Phone,
		Message: n.Message,
		Payload: n.Payload,
	})
	if err != nil {
		return failure(fmt.Errorf("メッセージング送信に失敗しました: %w", err))
	}
	if resp.Error != "" {
		return failure(fmt.Errorf("メッセージングAPIがエラーを返しました: %s", resp.Error))
	}

	return Result{Success: true, MessageID: resp.MessageID}
}

// postJSON はAPIキー認証付きのJSON POSTを実行し、レスポンスをデコードする。
// メッセージング・プッシュ両チャネルで共用する。
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body any) (*apiResponse, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("リクエストのシリアライズに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("HTTPエラー: status=%d", resp.StatusCode)
	}

	var out apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("レスポンスのパースに失敗しました: %w", err)
	}
	return &out, nil
}
