package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/contestman/internal/model"
)

// DefaultCodeChefURL はCodeChefコンテスト一覧APIのデフォルトエンドポイント。
const DefaultCodeChefURL = "https://www.codechef.com/api/list/contests/all"

// codechefTypeRules はタイトルからコンテスト種別を推定するルール。
// APIに構造化された種別フィールドがないためタイトルの部分一致で判定する。
// 具体的なキーワードを先に評価する。並び順を変えてはならない。
var codechefTypeRules = []keywordRule{
	{keyword: "lunch time", contestType: "lunchtime"},
	{keyword: "lunchtime", contestType: "lunchtime"},
	{keyword: "cook off", contestType: "cookoff"},
	{keyword: "cook-off", contestType: "cookoff"},
	{keyword: "cookoff", contestType: "cookoff"},
	{keyword: "starters", contestType: "starters"},
}

// codechefDefaultType は種別キーワードに一致しない場合のフォールバック。
// 長期コンテスト（Long Challenge）扱いとする。
const codechefDefaultType = "long"

// codechefDifficultyTable は種別から難易度への固定対応表。
var codechefDifficultyTable = map[string]string{
	"starters":  "beginner",
	"lunchtime": "intermediate",
	"cookoff":   "advanced",
	"long":      "all",
}

// codechefResponse はコンテスト一覧APIのレスポンス。
// フェーズはサーバー側で3配列（future/present/past）に振り分け済み。
type codechefResponse struct {
	Status          string            `json:"status"`
	FutureContests  []codechefContest `json:"future_contests"`
	PresentContests []codechefContest `json:"present_contests"`
	PastContests    []codechefContest `json:"past_contests"`
}

// codechefContest はAPIレスポンス中の1コンテスト。
type codechefContest struct {
	ContestCode      string `json:"contest_code"`
	ContestName      string `json:"contest_name"`
	ContestStartDate string `json:"contest_start_date_iso"`
	ContestEndDate   string `json:"contest_end_date_iso"`
}

// CodeChefAdapter はCodeChefコンテスト一覧APIのアダプタ。
type CodeChefAdapter struct {
	client  *Client
	logger  *slog.Logger
	baseURL string
}

var _ Adapter = (*CodeChefAdapter)(nil)

// NewCodeChefAdapter はCodeChefAdapterを生成する。
// baseURLが空の場合はDefaultCodeChefURLを使用する。
func NewCodeChefAdapter(client *Client, logger *slog.Logger, baseURL string) *CodeChefAdapter {
	if baseURL == "" {
		baseURL = DefaultCodeChefURL
	}
	return &CodeChefAdapter{
		client:  client,
		logger:  logger,
		baseURL: baseURL,
	}
}

// Name はプラットフォーム名を返す。
func (a *CodeChefAdapter) Name() model.Platform {
	return model.PlatformCodeChef
}

// FetchContests は3配列（future/present/past）を結合して正規化済み一覧を返す。
// 日時のパースに失敗した個別レコードはスキップし、残りを処理する。
func (a *CodeChefAdapter) FetchContests(ctx context.Context) ([]model.ParsedContest, error) {
	var resp codechefResponse
	if err := a.client.GetJSON(ctx, a.baseURL, &resp); err != nil {
		return nil, fmt.Errorf("codechefの取得に失敗しました: %w", err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("codechef APIがエラーを返しました: status=%s", resp.Status)
	}

	groups := []struct {
		phase    model.Phase
		contests []codechefContest
	}{
		{model.PhaseUpcoming, resp.FutureContests},
		{model.PhaseRunning, resp.PresentContests},
		{model.PhaseFinished, resp.PastContests},
	}

	var contests []model.ParsedContest
	for _, g := range groups {
		for _, raw := range g.contests {
			parsed, err := transformCodeChef(raw, g.phase)
			if err != nil {
				a.logger.Warn("codechefレコードの変換に失敗しました",
					"contest_code", raw.ContestCode,
					"error", err.Error(),
				)
				continue
			}
			contests = append(contests, parsed)
		}
	}

	a.logger.Debug("codechefのコンテストを取得しました", "kept", len(contests))
	return contests, nil
}

// HealthCheck はコンテスト一覧エンドポイントへの疎通を確認する。
func (a *CodeChefAdapter) HealthCheck(ctx context.Context) error {
	if err := a.client.Check(ctx, a.baseURL); err != nil {
		return fmt.Errorf("codechefのヘルスチェックに失敗しました: %w", err)
	}
	return nil
}

// transformCodeChef はCodeChefの生レコードを正規化する純粋関数。
// フェーズはレコードの属する配列から与えられる。
func transformCodeChef(raw codechefContest, phase model.Phase) (model.ParsedContest, error) {
	start, err := time.Parse(time.RFC3339, raw.ContestStartDate)
	if err != nil {
		return model.ParsedContest{}, fmt.Errorf("開始時刻のパースに失敗しました: %w", err)
	}
	end, err := time.Parse(time.RFC3339, raw.ContestEndDate)
	if err != nil {
		return model.ParsedContest{}, fmt.Errorf("終了時刻のパースに失敗しました: %w", err)
	}

	contestType := classifyByKeywords(raw.ContestName, codechefTypeRules, codechefDefaultType)

	return model.ParsedContest{
		PlatformID:      raw.ContestCode,
		Name:            raw.ContestName,
		Phase:           phase,
		ContestType:     contestType,
		Difficulty:      difficultyForType(codechefDifficultyTable, contestType),
		StartTime:       start.UTC(),
		EndTime:         end.UTC(),
		DurationMinutes: durationMinutes(int64(end.Sub(start) / time.Second)),
		URL:             fmt.Sprintf("https://www.codechef.com/%s", raw.ContestCode),
		Organizer:       "CodeChef",
		Country:         "India",
	}, nil
}
