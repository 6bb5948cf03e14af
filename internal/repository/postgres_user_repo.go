package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/contestman/internal/model"
)

// userColumns はユーザー取得クエリで共通のSELECT句。
const userColumns = `id, email, phone, device_token, is_active, email_verified,
	platforms, frequency, channel_email, channel_messaging, channel_push,
	notify_before_hours, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// ユーザーの作成・更新は外部システムが行うため、読み取り系のみを実装する。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// scanUser は1行分のユーザーをスキャンする。
func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var platforms pq.StringArray

	err := row.Scan(
		&user.ID, &user.Email, &user.Phone, &user.DeviceToken,
		&user.IsActive, &user.EmailVerified,
		&platforms, &user.Frequency,
		&user.Channels.Email, &user.Channels.Messaging, &user.Channels.Push,
		&user.NotifyBeforeHours, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Platforms = make([]model.Platform, 0, len(platforms))
	for _, p := range platforms {
		user.Platforms = append(user.Platforms, model.Platform(p))
	}

	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}

// ListImmediateByPlatform は指定プラットフォームを購読する即時通知対象ユーザーを返す。
func (r *PostgresUserRepo) ListImmediateByPlatform(ctx context.Context, platform model.Platform) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 WHERE is_active = TRUE AND email_verified = TRUE
		   AND frequency = $1 AND $2 = ANY(platforms)`,
		model.FrequencyImmediate, platform,
	)
	if err != nil {
		return nil, fmt.Errorf("即時通知対象ユーザーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// ListByFrequency は指定頻度のアクティブかつメール確認済みユーザーを返す。
func (r *PostgresUserRepo) ListByFrequency(ctx context.Context, frequency model.AlertFrequency) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 WHERE is_active = TRUE AND email_verified = TRUE AND frequency = $1`,
		frequency,
	)
	if err != nil {
		return nil, fmt.Errorf("頻度別ユーザーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// collectUsers はrowsから全ユーザーを読み取る。
func collectUsers(rows *sql.Rows) ([]*model.User, error) {
	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ユーザー行のスキャンに失敗しました: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザー行の読み取りに失敗しました: %w", err)
	}
	return users, nil
}
