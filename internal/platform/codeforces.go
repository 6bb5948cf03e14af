package platform

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/contestman/internal/model"
)

// DefaultCodeforcesURL はCodeforces contest.list APIのデフォルトエンドポイント。
const DefaultCodeforcesURL = "https://codeforces.com/api/contest.list"

// codeforcesRecentWindow は過去コンテストを取り込む範囲。
// contest.listは全履歴を返すため、開始がこの範囲より古い終了済み
// コンテストは取り込まずペイロードを抑える。
const codeforcesRecentWindow = 7 * 24 * time.Hour

// codeforcesPhaseMap はCodeforces固有のフェーズ語彙から正規フェーズへの写像。
// 未知のフェーズはアクティブ扱いを避けるためPhaseFinishedに落とす。
var codeforcesPhaseMap = map[string]model.Phase{
	"BEFORE":              model.PhaseUpcoming,
	"CODING":              model.PhaseRunning,
	"PENDING_SYSTEM_TEST": model.PhaseFinished,
	"SYSTEM_TEST":         model.PhaseFinished,
	"FINISHED":            model.PhaseFinished,
}

// codeforcesResponse はcontest.list APIのレスポンス。
type codeforcesResponse struct {
	Status  string              `json:"status"`
	Comment string              `json:"comment"`
	Result  []codeforcesContest `json:"result"`
}

// codeforcesContest はAPIレスポンス中の1コンテスト。
type codeforcesContest struct {
	ID                  int    `json:"id"`
	Name                string `json:"name"`
	Type                string `json:"type"`
	Phase               string `json:"phase"`
	DurationSeconds     int64  `json:"durationSeconds"`
	StartTimeSeconds    int64  `json:"startTimeSeconds"`
	RelativeTimeSeconds int64  `json:"relativeTimeSeconds"`
}

// CodeforcesAdapter はCodeforces contest.list APIのアダプタ。
type CodeforcesAdapter struct {
	client  *Client
	logger  *slog.Logger
	baseURL string
	now     func() time.Time
}

var _ Adapter = (*CodeforcesAdapter)(nil)

// NewCodeforcesAdapter はCodeforcesAdapterを生成する。
// baseURLが空の場合はDefaultCodeforcesURLを使用する。
func NewCodeforcesAdapter(client *Client, logger *slog.Logger, baseURL string) *CodeforcesAdapter {
	if baseURL == "" {
		baseURL = DefaultCodeforcesURL
	}
	return &CodeforcesAdapter{
		client:  client,
		logger:  logger,
		baseURL: baseURL,
		now:     time.Now,
	}
}

// Name はプラットフォーム名を返す。
func (a *CodeforcesAdapter) Name() model.Platform {
	return model.PlatformCodeforces
}

// FetchContests はcontest.listから取得したコンテストを正規化して返す。
// 開始が7日より前の終了済みコンテストは除外する。
func (a *CodeforcesAdapter) FetchContests(ctx context.Context) ([]model.ParsedContest, error) {
	var resp codeforcesResponse
	if err := a.client.GetJSON(ctx, a.baseURL, &resp); err != nil {
		return nil, fmt.Errorf("codeforcesの取得に失敗しました: %w", err)
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("codeforces APIがエラーを返しました: status=%s comment=%s", resp.Status, resp.Comment)
	}

	now := a.now()
	cutoff := now.Add(-codeforcesRecentWindow)

	contests := make([]model.ParsedContest, 0, len(resp.Result))
	for _, raw := range resp.Result {
		// 開始時刻未定（未公開の将来コンテスト）は同期対象外
		if raw.StartTimeSeconds == 0 {
			continue
		}
		parsed := transformCodeforces(raw)
		if parsed.Phase == model.PhaseFinished && parsed.StartTime.Before(cutoff) {
			continue
		}
		contests = append(contests, parsed)
	}

	a.logger.Debug("codeforcesのコンテストを取得しました",
		"total", len(resp.Result),
		"kept", len(contests),
	)
	return contests, nil
}

// HealthCheck はcontest.listエンドポイントへの疎通を確認する。
func (a *CodeforcesAdapter) HealthCheck(ctx context.Context) error {
	if err := a.client.Check(ctx, a.baseURL); err != nil {
		return fmt.Errorf("codeforcesのヘルスチェックに失敗しました: %w", err)
	}
	return nil
}

// transformCodeforces はCodeforcesの生レコードを正規化する純粋関数。
func transformCodeforces(raw codeforcesContest) model.ParsedContest {
	phase, ok := codeforcesPhaseMap[raw.Phase]
	if !ok {
		phase = model.PhaseFinished
	}

	start := time.Unix(raw.StartTimeSeconds, 0).UTC()
	end := start.Add(time.Duration(raw.DurationSeconds) * time.Second)

	return model.ParsedContest{
		PlatformID:      strconv.Itoa(raw.ID),
		Name:            raw.Name,
		Phase:           phase,
		ContestType:     strings.ToLower(raw.Type),
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: durationMinutes(raw.DurationSeconds),
		URL:             fmt.Sprintf("https://codeforces.com/contest/%d", raw.ID),
		Organizer:       "Codeforces",
		Metadata: map[string]string{
			"type":      raw.Type,
			"raw_phase": raw.Phase,
		},
	}
}
