package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/contestman/internal/model"
)

// DefaultAtCoderURL はAtCoderコンテスト一覧のデフォルトエンドポイント。
// AtCoderは公式APIを提供しないため、AtCoder Problemsの公開リソースを使用する。
const DefaultAtCoderURL = "https://kenkoooo.com/atcoder/resources/contests.json"

// atcoderRecentWindow は過去コンテストを取り込む範囲。
// contests.jsonは全履歴を返すため、この範囲より前に終了した
// コンテストは取り込まない。
const atcoderRecentWindow = 7 * 24 * time.Hour

// atcoderTypeRules はタイトルからコンテスト種別を推定するルール。
// AtCoderはサーバー側の種別フィールドを持たないためタイトルで判定する。
var atcoderTypeRules = []keywordRule{
	{keyword: "beginner", contestType: "abc"},
	{keyword: "regular", contestType: "arc"},
	{keyword: "grand", contestType: "agc"},
	{keyword: "heuristic", contestType: "ahc"},
}

// atcoderDefaultType は種別キーワードに一致しない場合のフォールバック。
const atcoderDefaultType = "other"

// atcoderDifficultyTable は種別から難易度への固定対応表。
var atcoderDifficultyTable = map[string]string{
	"abc": "beginner",
	"arc": "intermediate",
	"agc": "advanced",
	"ahc": "intermediate",
}

// atcoderContest はcontests.json中の1コンテスト。
// サーバー側フェーズを持たず、開始時刻と所要時間のみ提供される。
type atcoderContest struct {
	ID               string `json:"id"`
	StartEpochSecond int64  `json:"start_epoch_second"`
	DurationSecond   int64  `json:"duration_second"`
	Title            string `json:"title"`
	RateChange       string `json:"rate_change"`
}

// AtCoderAdapter はAtCoderコンテスト一覧のアダプタ。
// フェーズはサーバーから提供されないため開始・終了時刻からローカル計算する。
type AtCoderAdapter struct {
	client  *Client
	logger  *slog.Logger
	baseURL string
	now     func() time.Time
}

var _ Adapter = (*AtCoderAdapter)(nil)

// NewAtCoderAdapter はAtCoderAdapterを生成する。
// baseURLが空の場合はDefaultAtCoderURLを使用する。
func NewAtCoderAdapter(client *Client, logger *slog.Logger, baseURL string) *AtCoderAdapter {
	if baseURL == "" {
		baseURL = DefaultAtCoderURL
	}
	return &AtCoderAdapter{
		client:  client,
		logger:  logger,
		baseURL: baseURL,
		now:     time.Now,
	}
}

// Name はプラットフォーム名を返す。
func (a *AtCoderAdapter) Name() model.Platform {
	return model.PlatformAtCoder
}

// FetchContests はcontests.jsonから取得したコンテストを正規化して返す。
// 7日より前に終了したコンテストは除外する。
func (a *AtCoderAdapter) FetchContests(ctx context.Context) ([]model.ParsedContest, error) {
	var raws []atcoderContest
	if err := a.client.GetJSON(ctx, a.baseURL, &raws); err != nil {
		return nil, fmt.Errorf("atcoderの取得に失敗しました: %w", err)
	}

	now := a.now()
	cutoff := now.Add(-atcoderRecentWindow)

	contests := make([]model.ParsedContest, 0, len(raws))
	for _, raw := range raws {
		parsed := transformAtCoder(raw, now)
		if parsed.EndTime.Before(cutoff) {
			continue
		}
		contests = append(contests, parsed)
	}

	a.logger.Debug("atcoderのコンテストを取得しました",
		"total", len(raws),
		"kept", len(contests),
	)
	return contests, nil
}

// HealthCheck はcontests.jsonエンドポイントへの疎通を確認する。
func (a *AtCoderAdapter) HealthCheck(ctx context.Context) error {
	if err := a.client.Check(ctx, a.baseURL); err != nil {
		return fmt.Errorf("atcoderのヘルスチェックに失敗しました: %w", err)
	}
	return nil
}

// transformAtCoder はAtCoderの生レコードを正規化する純粋関数。
// フェーズは開始・終了時刻とnowからローカル計算する。
func transformAtCoder(raw atcoderContest, now time.Time) model.ParsedContest {
	start := time.Unix(raw.StartEpochSecond, 0).UTC()
	end := start.Add(time.Duration(raw.DurationSecond) * time.Second)
	contestType := classifyByKeywords(raw.Title, atcoderTypeRules, atcoderDefaultType)

	return model.ParsedContest{
		PlatformID:      raw.ID,
		Name:            raw.Title,
		Phase:           model.DerivePhase(start, end, now),
		ContestType:     contestType,
		Difficulty:      difficultyForType(atcoderDifficultyTable, contestType),
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: durationMinutes(raw.DurationSecond),
		URL:             fmt.Sprintf("https://atcoder.jp/contests/%s", raw.ID),
		Organizer:       "AtCoder",
		Country:         "Japan",
		Metadata: map[string]string{
			"rate_change": raw.RateChange,
		},
	}
}
