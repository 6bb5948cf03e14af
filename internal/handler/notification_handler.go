package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/contestman/internal/model"
)

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	// CheckUpcomingContests は開催予定コンテストの通知スキャンを実行する。
	CheckUpcomingContests(ctx context.Context) (int, error)
	// SendDailyDigests は日次ダイジェストを送信する。
	SendDailyDigests(ctx context.Context) (int, error)
	// SendWeeklyDigests は週次ダイジェストを送信する。
	SendWeeklyDigests(ctx context.Context) (int, error)
	// RetryNotification は指定通知の再送を行う。
	RetryNotification(ctx context.Context, notificationID string) error
	// MarkNotificationRead は通知に既読フラグを立てる。
	MarkNotificationRead(ctx context.Context, notificationID string) error
	// GetNotificationStats は通知の集計統計を返す。
	GetNotificationStats(ctx context.Context, filter model.StatsFilter) (*model.NotificationStats, error)
}

// NotificationHandler は通知トリガー・統計のHTTPハンドラー。
type NotificationHandler struct {
	service NotificationServiceInterface
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// sentCountResponse は送信数のAPIレスポンス。
type sentCountResponse struct {
	Sent int `json:"sent"`
}

// statsResponse は通知統計のAPIレスポンス。
type statsResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	ByType   map[string]int `json:"by_type"`
}

// CheckUpcoming は開催予定コンテストの通知スキャンを手動実行する。
// POST /api/notifications/check
func (h *NotificationHandler) CheckUpcoming(w http.ResponseWriter, r *http.Request) {
	sent, err := h.service.CheckUpcomingContests(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sentCountResponse{Sent: sent})
}

// SendDigests は指定頻度のダイジェスト送信を手動実行する。
// POST /api/digests/:frequency
func (h *NotificationHandler) SendDigests(w http.ResponseWriter, r *http.Request) {
	frequency := chi.URLParam(r, "frequency")

	var sent int
	var err error
	switch frequency {
	case string(model.FrequencyDaily):
		sent, err = h.service.SendDailyDigests(r.Context())
	case string(model.FrequencyWeekly):
		sent, err = h.service.SendWeeklyDigests(r.Context())
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFrequencyError(frequency))
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sentCountResponse{Sent: sent})
}

// Retry は指定通知の再送を実行する。
// POST /api/notifications/:id/retry
func (h *NotificationHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.RetryNotification(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// MarkRead は指定通知に既読フラグを立てる。
// POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.MarkNotificationRead(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats は通知の集計統計を返す。
// GET /api/notifications/stats?user_id=&type=&since=
func (h *NotificationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	filter := model.StatsFilter{
		UserID: r.URL.Query().Get("user_id"),
		Type:   model.NotificationType(r.URL.Query().Get("type")),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "sinceパラメータの解析に失敗しました。",
				Category: "validation",
				Action:   "RFC3339形式で指定してください。",
			})
			return
		}
		filter.Since = t
	}

	stats, err := h.service.GetNotificationStats(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toStatsResponse(stats))
}

// toStatsResponse はmodel.NotificationStatsからAPIレスポンスに変換する。
func toStatsResponse(stats *model.NotificationStats) statsResponse {
	resp := statsResponse{
		Total:    stats.Total,
		ByStatus: make(map[string]int, len(stats.ByStatus)),
		ByType:   make(map[string]int, len(stats.ByType)),
	}
	for status, count := range stats.ByStatus {
		resp.ByStatus[string(status)] = count
	}
	for notifType, count := range stats.ByType {
		resp.ByType[string(notifType)] = count
	}
	return resp
}
