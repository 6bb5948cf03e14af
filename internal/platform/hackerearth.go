package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/contestman/internal/model"
)

// DefaultHackerEarthURL はHackerEarthイベントAPIのデフォルトエンドポイント。
const DefaultHackerEarthURL = "https://www.hackerearth.com/chrome-extension/events/"

// hackerearthPhaseMap はHackerEarth固有のステータス語彙から正規フェーズへの写像。
// 未知のステータスはアクティブ扱いを避けるためPhaseFinishedに落とす。
var hackerearthPhaseMap = map[string]model.Phase{
	"UPCOMING": model.PhaseUpcoming,
	"ONGOING":  model.PhaseRunning,
	"ENDED":    model.PhaseFinished,
}

// hackerearthTimeLayout はstart_utc_tz/end_utc_tzの日時フォーマット。
const hackerearthTimeLayout = "2006-01-02 15:04:05-07:00"

// hackerearthResponse はイベントAPIのレスポンス。
type hackerearthResponse struct {
	Response []hackerearthEvent `json:"response"`
}

// hackerearthEvent はAPIレスポンス中の1イベント。
type hackerearthEvent struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	StartTime     string `json:"start_utc_tz"`
	EndTime       string `json:"end_utc_tz"`
	Status        string `json:"status"`
	ChallengeType string `json:"challenge_type"`
	Description   string `json:"description"`
}

// HackerEarthAdapter はHackerEarthイベントAPIのアダプタ。
type HackerEarthAdapter struct {
	client  *Client
	logger  *slog.Logger
	baseURL string
}

var _ Adapter = (*HackerEarthAdapter)(nil)

// NewHackerEarthAdapter はHackerEarthAdapterを生成する。
// baseURLが空の場合はDefaultHackerEarthURLを使用する。
func NewHackerEarthAdapter(client *Client, logger *slog.Logger, baseURL string) *HackerEarthAdapter {
	if baseURL == "" {
		baseURL = DefaultHackerEarthURL
	}
	return &HackerEarthAdapter{
		client:  client,
		logger:  logger,
		baseURL: baseURL,
	}
}

// Name はプラットフォーム名を返す。
func (a *HackerEarthAdapter) Name() model.Platform {
	return model.PlatformHackerEarth
}

// FetchContests はイベントAPIから取得したイベントを正規化して返す。
// 変換に失敗した個別レコードはスキップし、残りを処理する。
func (a *HackerEarthAdapter) FetchContests(ctx context.Context) ([]model.ParsedContest, error) {
	var resp hackerearthResponse
	if err := a.client.GetJSON(ctx, a.baseURL, &resp); err != nil {
		return nil, fmt.Errorf("hackerearthの取得に失敗しました: %w", err)
	}

	contests := make([]model.ParsedContest, 0, len(resp.Response))
	for _, raw := range resp.Response {
		parsed, err := transformHackerEarth(raw)
		if err != nil {
			a.logger.Warn("hackerearthレコードの変換に失敗しました",
				"title", raw.Title,
				"error", err.Error(),
			)
			continue
		}
		contests = append(contests, parsed)
	}

	a.logger.Debug("hackerearthのコンテストを取得しました", "kept", len(contests))
	return contests, nil
}

// HealthCheck はイベントAPIエンドポイントへの疎通を確認する。
func (a *HackerEarthAdapter) HealthCheck(ctx context.Context) error {
	if err := a.client.Check(ctx, a.baseURL); err != nil {
		return fmt.Errorf("hackerearthのヘルスチェックに失敗しました: %w", err)
	}
	return nil
}

// transformHackerEarth はHackerEarthの生レコードを正規化する純粋関数。
// HackerEarthは数値IDを公開しないため、イベントURLのスラッグを
// プラットフォームIDとして使用する。
func transformHackerEarth(raw hackerearthEvent) (model.ParsedContest, error) {
	start, err := time.Parse(hackerearthTimeLayout, raw.StartTime)
	if err != nil {
		return model.ParsedContest{}, fmt.Errorf("開始時刻のパースに失敗しました: %w", err)
	}
	end, err := time.Parse(hackerearthTimeLayout, raw.EndTime)
	if err != nil {
		return model.ParsedContest{}, fmt.Errorf("終了時刻のパースに失敗しました: %w", err)
	}

	platformID, err := hackerearthSlug(raw.URL)
	if err != nil {
		return model.ParsedContest{}, err
	}

	phase, ok := hackerearthPhaseMap[strings.ToUpper(raw.Status)]
	if !ok {
		phase = model.PhaseFinished
	}

	return model.ParsedContest{
		PlatformID:      platformID,
		Name:            raw.Title,
		Phase:           phase,
		ContestType:     strings.ToLower(raw.ChallengeType),
		StartTime:       start.UTC(),
		EndTime:         end.UTC(),
		DurationMinutes: durationMinutes(int64(end.Sub(start) / time.Second)),
		Description:     raw.Description,
		URL:             raw.URL,
		Organizer:       "HackerEarth",
	}, nil
}

// hackerearthSlug はイベントURLから末尾のスラッグを取り出す。
func hackerearthSlug(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("イベントURLのパースに失敗しました: %w", err)
	}
	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return "", fmt.Errorf("イベントURLにパスがありません: %s", rawURL)
	}
	segments := strings.Split(path, "/")
	return segments[len(segments)-1], nil
}
