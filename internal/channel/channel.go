// Package channel は通知の配信チャネルを提供する。
// 各チャネル（メール・メッセージング・プッシュ）はTransportインターフェースを実装し、
// Dispatcherから並行に呼び出される。資格情報が未設定のチャネルは
// IsEnabledがfalseを返し、配信対象から除外される。
package channel

import (
	"context"

	"github.com/hitoshi/contestman/internal/model"
)

// Result は1チャネル分の配信試行結果を表す。
type Result struct {
	Success   bool
	MessageID string // 配信プロバイダが発行したID（成功時のみ）
	Error     error  // 失敗時のエラー
}

// Transport は配信チャネルの共通インターフェース。
type Transport interface {
	// Name はチャネル名を返す。
	Name() model.Channel

	// Send は1ユーザーへの通知を配信する。
	// 配信失敗はResult.Errorで表現し、エラー戻り値は使わない。
	// 戻り値のエラーは呼び出し自体が成立しない場合（無効な設定等）に限る。
	Send(ctx context.Context, user *model.User, n *model.Notification) Result

	// IsEnabled はチャネルが設定済みで配信可能かを返す。
	IsEnabled() bool
}

// failure は失敗Resultを組み立てるヘルパー。
func failure(err error) Result {
	return Result{Success: false, Error: err}
}
