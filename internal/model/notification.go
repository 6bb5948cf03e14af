// Package model はドメインモデルを定義する。
package model

import "time"

// Channel は通知の配信チャネルを表す。
type Channel string

const (
	// ChannelEmail はメールチャネル。
	ChannelEmail Channel = "email"
	// ChannelMessaging はメッセージングチャネル。
	ChannelMessaging Channel = "messaging"
	// ChannelPush はプッシュ通知チャネル。
	ChannelPush Channel = "push"
)

// NotificationType は通知の種別を表す。
type NotificationType string

const (
	// TypeContestReminder はコンテスト開始前の個別リマインダー。
	TypeContestReminder NotificationType = "contest_reminder"
	// TypeDailyDigest は日次ダイジェスト。
	TypeDailyDigest NotificationType = "daily_digest"
	// TypeWeeklyDigest は週次ダイジェスト。
	TypeWeeklyDigest NotificationType = "weekly_digest"
)

// NotificationStatus は通知全体の配信状態を表す。
type NotificationStatus string

const (
	// StatusPending は配信試行前の状態。
	StatusPending NotificationStatus = "pending"
	// StatusSent はいずれかのチャネルで配信成功した状態。
	// 部分的成功（1チャネル成功・他チャネル失敗）もsentとして扱う。
	StatusSent NotificationStatus = "sent"
	// StatusFailed は試行した全チャネルで配信失敗した状態。
	StatusFailed NotificationStatus = "failed"
	// StatusRetrying は再送処理中の状態。
	StatusRetrying NotificationStatus = "retrying"
)

// DeliveryStatus はチャネルごとの配信結果を表す。
// delivery_statuses配列は最新試行の結果のみを保持し、
// 過去のエラーはNotification.ErrorLogに追記される。
type DeliveryStatus struct {
	Channel    Channel            `json:"channel"`
	Status     NotificationStatus `json:"status"`
	MessageID  string             `json:"message_id,omitempty"`
	SentAt     *time.Time         `json:"sent_at,omitempty"`
	FailedAt   *time.Time         `json:"failed_at,omitempty"`
	Error      string             `json:"error,omitempty"`
	RetryCount int                `json:"retry_count"`
}

// NotificationPayload は全チャネルに共通で渡される正規化済みペイロード。
type NotificationPayload struct {
	UserID          string    `json:"user_id"`
	ContestID       string    `json:"contest_id,omitempty"`
	ContestName     string    `json:"contest_name,omitempty"`
	Platform        string    `json:"platform,omitempty"`
	StartTime       time.Time `json:"start_time,omitzero"`
	HoursUntilStart int       `json:"hours_until_start,omitempty"` // 四捨五入した整数値
}

// Notification は1回の配信試行バッチ（1ユーザーへのリマインダーまたはダイジェスト）を表す。
type Notification struct {
	ID               string
	UserID           string
	ContestID        string // ダイジェストの場合は空
	Type             NotificationType
	Title            string
	Message          string
	Payload          NotificationPayload
	Channels         []Channel
	DeliveryStatuses []DeliveryStatus
	Status           NotificationStatus
	ScheduledAt      time.Time
	SentAt           *time.Time
	FailedAt         *time.Time
	RetryCount       int
	MaxRetries       int
	LastRetryAt      *time.Time
	ErrorLog         []string // 追記専用の監査ログ
	IsRead           bool
	ExpiresAt        time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CanRetry は通知が再送可能な状態かを判定する。
// retryCountが上限未満かつ状態がfailedまたはretryingの場合にのみ再送を許可する。
func (n *Notification) CanRetry() bool {
	if n.RetryCount >= n.MaxRetries {
		return false
	}
	return n.Status == StatusFailed || n.Status == StatusRetrying
}

// OverallStatus は各チャネルの配信結果から通知全体の状態を決定する。
// いずれか1チャネルでも成功していればsent、全チャネル失敗の場合のみfailed。
func OverallStatus(statuses []DeliveryStatus) NotificationStatus {
	for _, ds := range statuses {
		if ds.Status == StatusSent {
			return StatusSent
		}
	}
	return StatusFailed
}

// NotificationStats は通知の集計統計を表す。
type NotificationStats struct {
	Total    int
	ByStatus map[NotificationStatus]int
	ByType   map[NotificationType]int
}

// StatsFilter は通知統計の絞り込み条件を表す。
// ゼロ値のフィールドは条件として適用されない。
type StatsFilter struct {
	UserID string
	Type   NotificationType
	Since  time.Time
}
