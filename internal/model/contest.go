// Package model はドメインモデルを定義する。
package model

import "time"

// Platform は対応するコンテストプラットフォームを表す。
type Platform string

const (
	// PlatformCodeforces はCodeforcesプラットフォーム。
	PlatformCodeforces Platform = "codeforces"
	// PlatformCodeChef はCodeChefプラットフォーム。
	PlatformCodeChef Platform = "codechef"
	// PlatformAtCoder はAtCoderプラットフォーム。
	PlatformAtCoder Platform = "atcoder"
	// PlatformHackerEarth はHackerEarthプラットフォーム。
	PlatformHackerEarth Platform = "hackerearth"
)

// AllPlatforms は対応する全プラットフォームの一覧を返す。
func AllPlatforms() []Platform {
	return []Platform{
		PlatformCodeforces,
		PlatformCodeChef,
		PlatformAtCoder,
		PlatformHackerEarth,
	}
}

// IsValidPlatform はプラットフォーム名が対応済みかを判定する。
func IsValidPlatform(name string) bool {
	for _, p := range AllPlatforms() {
		if string(p) == name {
			return true
		}
	}
	return false
}

// Phase はコンテストの正規化済みライフサイクル状態を表す。
// 各プラットフォーム固有のフェーズ語彙はアダプタで本語彙に写像される。
type Phase string

const (
	// PhaseUpcoming は開始前のコンテスト。
	PhaseUpcoming Phase = "upcoming"
	// PhaseRunning は開催中のコンテスト。
	PhaseRunning Phase = "running"
	// PhaseFinished は終了済みのコンテスト。
	// 未知のフェーズ語彙はアクティブ扱いを避けるため本値に写像される。
	PhaseFinished Phase = "finished"
)

// DerivePhase は開始時刻と終了時刻からフェーズをローカル計算する。
// サーバー側フェーズを提供しないプラットフォーム用。
func DerivePhase(startTime, endTime, now time.Time) Phase {
	if startTime.After(now) {
		return PhaseUpcoming
	}
	if now.Before(endTime) {
		return PhaseRunning
	}
	return PhaseFinished
}

// IsActivePhase はフェーズがアクティブ（開始前または開催中）かを判定する。
func IsActivePhase(phase Phase) bool {
	return phase == PhaseUpcoming || phase == PhaseRunning
}

// Contest は正規化済みのコンテストを表す。
// (Platform, PlatformID) の組で一意に識別される。
type Contest struct {
	ID               string
	Platform         Platform
	PlatformID       string
	Name             string
	Phase            Phase
	ContestType      string
	Difficulty       string
	StartTime        time.Time
	EndTime          time.Time
	DurationMinutes  int
	Description      string // サニタイズ済みHTML
	URL              string
	Organizer        string
	ParticipantCount int
	ProblemCount     int
	Country          string
	City             string
	Metadata         map[string]string // プラットフォーム固有の追加情報
	IsActive         bool
	IsNotified       bool
	LastSyncedAt     time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ParsedContest はアダプタが正規化した未保存のコンテストデータを表す。
// アダプタがフェッチ・変換した後、ReconcileServiceに渡される。
type ParsedContest struct {
	PlatformID       string
	Name             string
	Phase            Phase
	ContestType      string
	Difficulty       string
	StartTime        time.Time
	EndTime          time.Time
	DurationMinutes  int
	Description      string // 未サニタイズ
	URL              string
	Organizer        string
	ParticipantCount int
	ProblemCount     int
	Country          string
	City             string
	Metadata         map[string]string
}

// SyncCounts は1プラットフォーム分の同期結果の集計を表す。
type SyncCounts struct {
	Synced  int // 新規挿入されたコンテスト数
	Updated int // 上書き更新されたコンテスト数
	Failed  int // 個別エラーで処理できなかったコンテスト数
}

// Add は別の集計結果を加算する。
func (c *SyncCounts) Add(other SyncCounts) {
	c.Synced += other.Synced
	c.Updated += other.Updated
	c.Failed += other.Failed
}
