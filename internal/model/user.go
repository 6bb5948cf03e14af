// Package model はドメインモデルを定義する。
package model

import "time"

// AlertFrequency はユーザーの通知頻度設定を表す。
type AlertFrequency string

const (
	// FrequencyImmediate はコンテストごとの即時リマインダー。
	FrequencyImmediate AlertFrequency = "immediate"
	// FrequencyDaily は日次ダイジェスト。
	FrequencyDaily AlertFrequency = "daily"
	// FrequencyWeekly は週次ダイジェスト。
	FrequencyWeekly AlertFrequency = "weekly"
)

// ChannelPrefs はユーザーが有効化したチャネルのフラグを表す。
type ChannelPrefs struct {
	Email     bool
	Messaging bool
	Push      bool
}

// User は通知対象のユーザーを表す。
// 本エンジンは外部で管理されるユーザーを読み取り専用で参照する。
// アカウント管理・認証は本エンジンの責務外。
type User struct {
	ID                string
	Email             string
	Phone             string // メッセージングチャネル用
	DeviceToken       string // プッシュ通知チャネル用
	IsActive          bool
	EmailVerified     bool
	Platforms         []Platform // 購読中のプラットフォーム
	Frequency         AlertFrequency
	Channels          ChannelPrefs
	NotifyBeforeHours int // コンテスト開始の何時間前までに通知を受けたいか
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsSubscribedTo はユーザーが指定プラットフォームを購読しているかを判定する。
func (u *User) IsSubscribedTo(platform Platform) bool {
	for _, p := range u.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}
