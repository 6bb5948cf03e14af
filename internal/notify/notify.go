// Package notify は通知パイプラインを提供する。
// パイプラインは選定（Selector）、重複抑止（DedupGuard）、
// 配信（Dispatcher）、記録（DeliveryTracker）、再送（RetryCoordinator）、
// ダイジェスト集約（DigestBatcher）の6段で構成され、
// Serviceがスケジューラ・管理APIへの窓口となる。
package notify

import "time"

// dedupWindow は同一(user, contest)への再送を抑止する遡及期間。
// 30分間隔の再スキャンで同じコンテストが繰り返しスキャン窓に入っても
// 再送しないよう、スキャン間隔より十分長くする。一方で「まもなく開始」のような
// 後続の別リマインダーを恒久的に抑止しない長さに留める。設定項目にはしない。
const dedupWindow = 12 * time.Hour

// upcomingScanWindow は通知スキャンが対象とする開始時刻の先読み幅。
const upcomingScanWindow = 24 * time.Hour

// rescanInterval は通知スキャンの実行間隔。worker側のティッカーが参照する。
const rescanInterval = 30 * time.Minute

// defaultMaxRetries は通知の再送上限のデフォルト値。
const defaultMaxRetries = 3

// notificationTTL は通知行が自動削除されるまでの保持期間。
const notificationTTL = 30 * 24 * time.Hour

// RescanInterval は通知スキャンの実行間隔を返す。
func RescanInterval() time.Duration {
	return rescanInterval
}
