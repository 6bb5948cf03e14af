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

// contestColumns はコンテスト取得クエリで共通のSELECT句。
const contestColumns = `id, platform, platform_id, name, phase, contest_type, difficulty,
	start_time, end_time, duration_minutes, description, url, organizer,
	participant_count, problem_count, country, city, metadata,
	is_active, is_notified, last_synced_at, created_at, updated_at`

// PostgresContestRepo はPostgreSQLを使用したコンテストリポジトリ。
type PostgresContestRepo struct {
	db *sql.DB
}

// NewPostgresContestRepo はPostgresContestRepoを生成する。
func NewPostgresContestRepo(db *sql.DB) *PostgresContestRepo {
	return &PostgresContestRepo{db: db}
}

// scanContest は1行分のコンテストをスキャンする。
func scanContest(row interface{ Scan(...any) error }) (*model.Contest, error) {
	contest := &model.Contest{}
	var metadata []byte

	err := row.Scan(
		&contest.ID, &contest.Platform, &contest.PlatformID, &contest.Name,
		&contest.Phase, &contest.ContestType, &contest.Difficulty,
		&contest.StartTime, &contest.EndTime, &contest.DurationMinutes,
		&contest.Description, &contest.URL, &contest.Organizer,
		&contest.ParticipantCount, &contest.ProblemCount,
		&contest.Country, &contest.City, &metadata,
		&contest.IsActive, &contest.IsNotified,
		&contest.LastSyncedAt, &contest.CreatedAt, &contest.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &contest.Metadata); err != nil {
			return nil, fmt.Errorf("metadataのパースに失敗しました: %w", err)
		}
	}

	return contest, nil
}

// marshalMetadata はメタデータバッグをJSONBに変換する。nilは空オブジェクトとして保存する。
func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(metadata)
}

// FindByID は指定IDのコンテストを取得する。見つからない場合はnilを返す。
func (r *PostgresContestRepo) FindByID(ctx context.Context, id string) (*model.Contest, error) {
	contest, err := scanContest(r.db.QueryRowContext(ctx,
		`SELECT `+contestColumns+` FROM contests WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("コンテストの取得に失敗しました: %w", err)
	}
	return contest, nil
}

// FindByPlatformID は(platform, platform_id)でコンテストを検索する。見つからない場合はnilを返す。
func (r *PostgresContestRepo) FindByPlatformID(ctx context.Context, platform model.Platform, platformID string) (*model.Contest, error) {
	contest, err := scanContest(r.db.QueryRowContext(ctx,
		`SELECT `+contestColumns+` FROM contests WHERE platform = $1 AND platform_id = $2`,
		platform, platformID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("platform_idによるコンテストの検索に失敗しました: %w", err)
	}
	return contest, nil
}

// Create は新規コンテストを作成する。
func (r *PostgresContestRepo) Create(ctx context.Context, contest *model.Contest) error {
	metadata, err := marshalMetadata(contest.Metadata)
	if err != nil {
		return fmt.Errorf("metadataのシリアライズに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO contests (
			id, platform, platform_id, name, phase, contest_type, difficulty,
			start_time, end_time, duration_minutes, description, url, organizer,
			participant_count, problem_count, country, city, metadata,
			is_active, is_notified, last_synced_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23
		)`,
		contest.ID, contest.Platform, contest.PlatformID, contest.Name,
		contest.Phase, contest.ContestType, contest.Difficulty,
		contest.StartTime, contest.EndTime, contest.DurationMinutes,
		contest.Description, contest.URL, contest.Organizer,
		contest.ParticipantCount, contest.ProblemCount,
		contest.Country, contest.City, metadata,
		contest.IsActive, contest.IsNotified,
		contest.LastSyncedAt, contest.CreatedAt, contest.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("コンテストの作成に失敗しました: %w", err)
	}
	return nil
}

// Update は既存コンテストの可変フィールドを上書き更新し、last_synced_atを刷新する。
func (r *PostgresContestRepo) Update(ctx context.Context, contest *model.Contest) error {
	metadata, err := marshalMetadata(contest.Metadata)
	if err != nil {
		return fmt.Errorf("metadataのシリアライズに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE contests SET
			name = $2, phase = $3, contest_type = $4, difficulty = $5,
			start_time = $6, end_time = $7, duration_minutes = $8,
			description = $9, url = $10, organizer = $11,
			participant_count = $12, problem_count = $13,
			country = $14, city = $15, metadata = $16,
			is_active = $17, last_synced_at = $18, updated_at = $19
		 WHERE id = $1`,
		contest.ID, contest.Name, contest.Phase, contest.ContestType, contest.Difficulty,
		contest.StartTime, contest.EndTime, contest.DurationMinutes,
		contest.Description, contest.URL, contest.Organizer,
		contest.ParticipantCount, contest.ProblemCount,
		contest.Country, contest.City, metadata,
		contest.IsActive, contest.LastSyncedAt, contest.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("コンテストの更新に失敗しました: %w", err)
	}
	return nil
}

// ListUpcomingWithin は開始時刻が[now, until]に入るアクティブな開始前コンテストを返す。
func (r *PostgresContestRepo) ListUpcomingWithin(ctx context.Context, now, until time.Time) ([]*model.Contest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+contestColumns+`
		 FROM contests
		 WHERE phase = $1 AND is_active = TRUE AND start_time >= $2 AND start_time <= $3
		 ORDER BY start_time ASC`,
		model.PhaseUpcoming, now, until,
	)
	if err != nil {
		return nil, fmt.Errorf("開始前コンテストの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectContests(rows)
}

// ListUpcomingForPlatforms は指定プラットフォーム群の開始前コンテストを返す。
func (r *PostgresContestRepo) ListUpcomingForPlatforms(ctx context.Context, platforms []model.Platform, now, until time.Time) ([]*model.Contest, error) {
	if len(platforms) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, string(p))
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+contestColumns+`
		 FROM contests
		 WHERE phase = $1 AND is_active = TRUE
		   AND platform = ANY($2)
		   AND start_time >= $3 AND start_time <= $4
		 ORDER BY start_time ASC`,
		model.PhaseUpcoming, pq.Array(names), now, until,
	)
	if err != nil {
		return nil, fmt.Errorf("プラットフォーム別開始前コンテストの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectContests(rows)
}

// MarkNotified はコンテストのis_notifiedフラグを立てる。
func (r *PostgresContestRepo) MarkNotified(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE contests SET is_notified = TRUE, updated_at = now() WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("通知済みフラグの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteFinishedBefore は終了済みかつend_timeがcutoffより古いコンテストを削除する。
func (r *PostgresContestRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM contests WHERE phase = $1 AND end_time < $2`,
		model.PhaseFinished, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("終了済みコンテストの削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// collectContests はrowsから全コンテストを読み取る。
func collectContests(rows *sql.Rows) ([]*model.Contest, error) {
	var contests []*model.Contest
	for rows.Next() {
		contest, err := scanContest(rows)
		if err != nil {
			return nil, fmt.Errorf("コンテスト行のスキャンに失敗しました: %w", err)
		}
		contests = append(contests, contest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コンテスト行の読み取りに失敗しました: %w", err)
	}
	return contests, nil
}
