package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/contestman/internal/model"
)

// maxUpcomingHours は開催予定一覧の先読み幅の上限（7日）。
const maxUpcomingHours = 168

// ContestListerInterface はコンテストハンドラーが必要とする読み取りインターフェース。
type ContestListerInterface interface {
	// ListUpcomingWithin は開始時刻が[now, until]に入る開始前コンテストを返す。
	ListUpcomingWithin(ctx context.Context, now, until time.Time) ([]*model.Contest, error)
}

// ContestHandler はコンテスト参照のHTTPハンドラー。
type ContestHandler struct {
	lister ContestListerInterface
}

// NewContestHandler はContestHandlerを生成する。
func NewContestHandler(lister ContestListerInterface) *ContestHandler {
	return &ContestHandler{lister: lister}
}

// contestResponse はコンテスト情報のAPIレスポンス。
type contestResponse struct {
	ID              string    `json:"id"`
	Platform        string    `json:"platform"`
	PlatformID      string    `json:"platform_id"`
	Name            string    `json:"name"`
	Phase           string    `json:"phase"`
	ContestType     string    `json:"contest_type"`
	Difficulty      string    `json:"difficulty"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	URL             string    `json:"url"`
	Organizer       string    `json:"organizer"`
}

// upcomingResponse は開催予定一覧のAPIレスポンス。
type upcomingResponse struct {
	Contests []contestResponse `json:"contests"`
	Count    int               `json:"count"`
}

// ListUpcoming は開催予定コンテストの一覧を返す。
// GET /api/contests/upcoming?hours=24
func (h *ContestHandler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if param := r.URL.Query().Get("hours"); param != "" {
		parsed, err := strconv.Atoi(param)
		if err != nil || parsed < 1 || parsed > maxUpcomingHours {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "hoursパラメータが不正です。",
				Category: "validation",
				Action:   "1から168までの整数を指定してください。",
			})
			return
		}
		hours = parsed
	}

	now := time.Now()
	contests, err := h.lister.ListUpcomingWithin(r.Context(), now, now.Add(time.Duration(hours)*time.Hour))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := upcomingResponse{
		Contests: make([]contestResponse, 0, len(contests)),
		Count:    len(contests),
	}
	for _, contest := range contests {
		resp.Contests = append(resp.Contests, toContestResponse(contest))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// toContestResponse はmodel.ContestからAPIレスポンスに変換する。
func toContestResponse(contest *model.Contest) contestResponse {
	return contestResponse{
		ID:              contest.ID,
		Platform:        string(contest.Platform),
		PlatformID:      contest.PlatformID,
		Name:            contest.Name,
		Phase:           string(contest.Phase),
		ContestType:     contest.ContestType,
		Difficulty:      contest.Difficulty,
		StartTime:       contest.StartTime,
		EndTime:         contest.EndTime,
		DurationMinutes: contest.DurationMinutes,
		URL:             contest.URL,
		Organizer:       contest.Organizer,
	}
}
