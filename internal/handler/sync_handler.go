// Package handler は管理系HTTPエンドポイントを提供する。
// 同期・クリーンアップ・通知のトリガーと統計参照の薄い層であり、
// 業務ロジックはサービス層に委譲する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/contestman/internal/model"
)

// SyncServiceInterface は同期ハンドラーが必要とするサービスインターフェース。
type SyncServiceInterface interface {
	// SyncPlatform は1プラットフォーム分の同期を実行する。
	SyncPlatform(ctx context.Context, platform model.Platform) (model.SyncCounts, error)
	// SyncAll は登録済み全プラットフォームを同期する。
	SyncAll(ctx context.Context) map[model.Platform]model.SyncCounts
}

// CleanupRunner はクリーンアップジョブの手動実行インターフェース。
type CleanupRunner interface {
	// Run は保持期間超過データの削除を1回実行する。
	Run(ctx context.Context) error
}

// SyncHandler は同期・クリーンアップのトリガーHTTPハンドラー。
type SyncHandler struct {
	service SyncServiceInterface
	cleanup CleanupRunner
}

// NewSyncHandler はSyncHandlerを生成する。
func NewSyncHandler(service SyncServiceInterface, cleanup CleanupRunner) *SyncHandler {
	return &SyncHandler{
		service: service,
		cleanup: cleanup,
	}
}

// syncCountsResponse は1プラットフォーム分の同期結果のAPIレスポンス。
type syncCountsResponse struct {
	Synced  int `json:"synced"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// syncAllResponse は全プラットフォーム同期のAPIレスポンス。
type syncAllResponse struct {
	Platforms map[string]syncCountsResponse `json:"platforms"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// SyncAll は全プラットフォームの同期を実行する。
// POST /api/sync
func (h *SyncHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	results := h.service.SyncAll(r.Context())

	resp := syncAllResponse{Platforms: make(map[string]syncCountsResponse, len(results))}
	for platform, counts := range results {
		resp.Platforms[string(platform)] = toSyncCountsResponse(counts)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// SyncPlatform は指定プラットフォームの同期を実行する。
// POST /api/sync/:platform
func (h *SyncHandler) SyncPlatform(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "platform")
	if !model.IsValidPlatform(name) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUnknownPlatformError(name))
		return
	}

	counts, err := h.service.SyncPlatform(r.Context(), model.Platform(name))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSyncCountsResponse(counts))
}

// RunCleanup はクリーンアップジョブを手動実行する。
// POST /api/cleanup
func (h *SyncHandler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	if err := h.cleanup.Run(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// --- ヘルパー関数 ---

// toSyncCountsResponse はmodel.SyncCountsからAPIレスポンスに変換する。
func toSyncCountsResponse(counts model.SyncCounts) syncCountsResponse {
	return syncCountsResponse{
		Synced:  counts.Synced,
		Updated: counts.Updated,
		Failed:  counts.Failed,
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnknownPlatform, model.ErrCodeInvalidFrequency:
		return http.StatusBadRequest
	case model.ErrCodeSyncInProgress:
		return http.StatusConflict
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case model.ErrCodeNotificationNotFound, model.ErrCodeUserNotFound, model.ErrCodeContestNotFound:
		return http.StatusNotFound
	case model.ErrCodeCannotRetry:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
