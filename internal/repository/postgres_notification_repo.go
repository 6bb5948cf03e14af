package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/contestman/internal/model"
)

// notificationColumns は通知取得クエリで共通のSELECT句。
const notificationColumns = `id, user_id, contest_id, type, title, message, payload,
	channels, delivery_statuses, status, scheduled_at, sent_at, failed_at,
	retry_count, max_retries, last_retry_at, error_log, is_read, expires_at,
	created_at, updated_at`

// PostgresNotificationRepo はPostgreSQLを使用した通知リポジトリ。
// delivery_statuses、payload、error_logはJSONBカラムとして保存する。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

// scanNotification は1行分の通知をスキャンする。
func scanNotification(row interface{ Scan(...any) error }) (*model.Notification, error) {
	n := &model.Notification{}
	var contestID sql.NullString
	var sentAt, failedAt, lastRetryAt sql.NullTime
	var payload, deliveryStatuses, errorLog []byte
	var channels pq.StringArray

	err := row.Scan(
		&n.ID, &n.UserID, &contestID, &n.Type, &n.Title, &n.Message, &payload,
		&channels, &deliveryStatuses, &n.Status, &n.ScheduledAt, &sentAt, &failedAt,
		&n.RetryCount, &n.MaxRetries, &lastRetryAt, &errorLog, &n.IsRead, &n.ExpiresAt,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if contestID.Valid {
		n.ContestID = contestID.String
	}
	if sentAt.Valid {
		n.SentAt = &sentAt.Time
	}
	if failedAt.Valid {
		n.FailedAt = &failedAt.Time
	}
	if lastRetryAt.Valid {
		n.LastRetryAt = &lastRetryAt.Time
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return nil, fmt.Errorf("payloadのパースに失敗しました: %w", err)
		}
	}
	if len(deliveryStatuses) > 0 {
		if err := json.Unmarshal(deliveryStatuses, &n.DeliveryStatuses); err != nil {
			return nil, fmt.Errorf("delivery_statusesのパースに失敗しました: %w", err)
		}
	}
	if len(errorLog) > 0 {
		if err := json.Unmarshal(errorLog, &n.ErrorLog); err != nil {
			return nil, fmt.Errorf("error_logのパースに失敗しました: %w", err)
		}
	}

	n.Channels = make([]model.Channel, 0, len(channels))
	for _, c := range channels {
		n.Channels = append(n.Channels, model.Channel(c))
	}

	return n, nil
}

// marshalNotificationJSON は通知のJSONBカラム群をシリアライズする。
func marshalNotificationJSON(n *model.Notification) (payload, statuses, errorLog []byte, err error) {
	payload, err = json.Marshal(n.Payload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("payloadのシリアライズに失敗しました: %w", err)
	}

	if n.DeliveryStatuses == nil {
		statuses = []byte("[]")
	} else if statuses, err = json.Marshal(n.DeliveryStatuses); err != nil {
		return nil, nil, nil, fmt.Errorf("delivery_statusesのシリアライズに失敗しました: %w", err)
	}

	if n.ErrorLog == nil {
		errorLog = []byte("[]")
	} else if errorLog, err = json.Marshal(n.ErrorLog); err != nil {
		return nil, nil, nil, fmt.Errorf("error_logのシリアライズに失敗しました: %w", err)
	}

	return payload, statuses, errorLog, nil
}

// channelNames はチャネル列をtext[]用の文字列スライスに変換する。
func channelNames(channels []model.Channel) []string {
	names := make([]string, 0, len(channels))
	for _, c := range channels {
		names = append(names, string(c))
	}
	return names
}

// nullableID は空文字列をNULLとして扱う。contest_id用。
func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// FindByID は指定IDの通知を取得する。見つからない場合はnilを返す。
func (r *PostgresNotificationRepo) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("通知の取得に失敗しました: %w", err)
	}
	return n, nil
}

// Create は通知を作成する。
func (r *PostgresNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	payload, statuses, errorLog, err := marshalNotificationJSON(n)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO notifications (
			id, user_id, contest_id, type, title, message, payload,
			channels, delivery_statuses, status, scheduled_at, sent_at, failed_at,
			retry_count, max_retries, last_retry_at, error_log, is_read, expires_at,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21
		)`,
		n.ID, n.UserID, nullableID(n.ContestID), n.Type, n.Title, n.Message, payload,
		pq.Array(channelNames(n.Channels)), statuses, n.Status,
		n.ScheduledAt, n.SentAt, n.FailedAt,
		n.RetryCount, n.MaxRetries, n.LastRetryAt, errorLog, n.IsRead, n.ExpiresAt,
		n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("通知の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は通知の配信結果・状態・再送情報を更新する。
func (r *PostgresNotificationRepo) Update(ctx context.Context, n *model.Notification) error {
	payload, statuses, errorLog, err := marshalNotificationJSON(n)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE notifications SET
			title = $2, message = $3, payload = $4, channels = $5,
			delivery_statuses = $6, status = $7, sent_at = $8, failed_at = $9,
			retry_count = $10, max_retries = $11, last_retry_at = $12,
			error_log = $13, is_read = $14, updated_at = $15
		 WHERE id = $1`,
		n.ID, n.Title, n.Message, payload, pq.Array(channelNames(n.Channels)),
		statuses, n.Status, n.SentAt, n.FailedAt,
		n.RetryCount, n.MaxRetries, n.LastRetryAt,
		errorLog, n.IsRead, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("通知の更新に失敗しました: %w", err)
	}
	return nil
}

// ExistsRecentSent は(user, contest, type)の組でsent状態かつsent_atがsince以降の
// 通知が存在するかを返す。
func (r *PostgresNotificationRepo) ExistsRecentSent(ctx context.Context, userID, contestID string, notifType model.NotificationType, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_id = $1 AND contest_id = $2 AND type = $3
			  AND status = $4 AND sent_at >= $5
		)`,
		userID, contestID, notifType, model.StatusSent, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("重複送信チェックに失敗しました: %w", err)
	}
	return exists, nil
}

// MarkRead は通知の既読フラグを立てる。
func (r *PostgresNotificationRepo) MarkRead(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE, updated_at = now() WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("既読フラグの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteExpired はexpires_atがnowより古い通知を削除する。
func (r *PostgresNotificationRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE expires_at < $1`, now,
	)
	if err != nil {
		return 0, fmt.Errorf("期限切れ通知の削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// Stats はフィルタ条件に合致する通知の状態別・種別別の集計を返す。
func (r *PostgresNotificationRepo) Stats(ctx context.Context, filter model.StatsFilter) (*model.NotificationStats, error) {
	where := "WHERE 1=1"
	args := []any{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT status, type, count(*) FROM notifications `+where+` GROUP BY status, type`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("通知統計の集計に失敗しました: %w", err)
	}
	defer rows.Close()

	stats := &model.NotificationStats{
		ByStatus: make(map[model.NotificationStatus]int),
		ByType:   make(map[model.NotificationType]int),
	}

	for rows.Next() {
		var status model.NotificationStatus
		var notifType model.NotificationType
		var count int
		if err := rows.Scan(&status, &notifType, &count); err != nil {
			return nil, fmt.Errorf("通知統計のスキャンに失敗しました: %w", err)
		}
		stats.Total += count
		stats.ByStatus[status] += count
		stats.ByType[notifType] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("通知統計の読み取りに失敗しました: %w", err)
	}

	return stats, nil
}
