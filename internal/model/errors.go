// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// 管理系の呼び出し元に返す原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, sync, notification, system
	Action   string // 呼び出し元向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnknownPlatform      = "UNKNOWN_PLATFORM"
	ErrCodeSyncInProgress       = "SYNC_IN_PROGRESS"
	ErrCodeFetchFailed          = "FETCH_FAILED"
	ErrCodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	ErrCodeCannotRetry          = "CANNOT_RETRY"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeContestNotFound      = "CONTEST_NOT_FOUND"
	ErrCodeInvalidFrequency     = "INVALID_FREQUENCY"
)

// NewUnknownPlatformError は未対応プラットフォームエラーを生成する。
func NewUnknownPlatformError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownPlatform,
		Message:  fmt.Sprintf("未対応のプラットフォームです: %s", name),
		Category: "validation",
		Action:   "codeforces、codechef、atcoder、hackerearth のいずれかを指定してください。",
	}
}

// NewSyncInProgressError は同期重複実行エラーを生成する。
func NewSyncInProgressError(platform Platform) *APIError {
	return &APIError{
		Code:     ErrCodeSyncInProgress,
		Message:  fmt.Sprintf("プラットフォーム %s の同期は既に実行中です", platform),
		Category: "sync",
		Action:   "実行中の同期が完了してから再度お試しください。",
	}
}

// NewFetchFailedError はアップストリーム取得失敗エラーを生成する。
func NewFetchFailedError(platform Platform, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("プラットフォーム %s からのコンテスト取得に失敗しました: %s", platform, reason),
		Category: "sync",
		Action:   "アップストリームAPIの状態を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewNotificationNotFoundError は通知未検出エラーを生成する。
func NewNotificationNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotificationNotFound,
		Message:  fmt.Sprintf("指定された通知が見つかりません: %s", id),
		Category: "notification",
		Action:   "通知IDを確認してください。",
	}
}

// NewCannotRetryError は再送不可エラーを生成する。
// 再送回数上限到達または再送対象外の状態の通知に対する再送要求で返される。
func NewCannotRetryError(id string, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeCannotRetry,
		Message:  fmt.Sprintf("通知 %s は再送できません: %s", id, reason),
		Category: "notification",
		Action:   "通知の状態と再送回数を確認してください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", id),
		Category: "notification",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewContestNotFoundError はコンテスト未検出エラーを生成する。
func NewContestNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeContestNotFound,
		Message:  fmt.Sprintf("指定されたコンテストが見つかりません: %s", id),
		Category: "notification",
		Action:   "コンテストIDを確認してください。",
	}
}

// NewInvalidFrequencyError は無効なダイジェスト頻度エラーを生成する。
func NewInvalidFrequencyError(frequency string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFrequency,
		Message:  fmt.Sprintf("無効なダイジェスト頻度です: %s", frequency),
		Category: "validation",
		Action:   "頻度には daily または weekly を指定してください。",
	}
}
