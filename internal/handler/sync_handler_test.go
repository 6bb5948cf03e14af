package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/contestman/internal/model"
)

// fakeSyncService はテスト用のSyncServiceInterface実装。
type fakeSyncService struct {
	counts      model.SyncCounts
	err         error
	allResults  map[model.Platform]model.SyncCounts
	gotPlatform model.Platform
}

func (s *fakeSyncService) SyncPlatform(ctx context.Context, platform model.Platform) (model.SyncCounts, error) {
	s.gotPlatform = platform
	if s.err != nil {
		return model.SyncCounts{}, s.err
	}
	return s.counts, nil
}

func (s *fakeSyncService) SyncAll(ctx context.Context) map[model.Platform]model.SyncCounts {
	return s.allResults
}

// fakeCleanupRunner はテスト用のCleanupRunner実装。
type fakeCleanupRunner struct {
	called bool
	err    error
}

func (c *fakeCleanupRunner) Run(ctx context.Context) error {
	c.called = true
	return c.err
}

// newSyncRouter はSyncHandlerのルートのみを構成したテスト用ルーターを返す。
func newSyncRouter(service SyncServiceInterface, cleanup CleanupRunner) http.Handler {
	r := chi.NewRouter()
	h := NewSyncHandler(service, cleanup)
	r.Post("/api/sync", h.SyncAll)
	r.Post("/api/sync/{platform}", h.SyncPlatform)
	r.Post("/api/cleanup", h.RunCleanup)
	return r
}

func TestSyncPlatform_ReturnsCounts(t *testing.T) {
	service := &fakeSyncService{counts: model.SyncCounts{Synced: 3, Updated: 2}}
	router := newSyncRouter(service, &fakeCleanupRunner{})

	req := httptest.NewRequest(http.MethodPost, "/api/sync/codeforces", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}
	if service.gotPlatform != model.PlatformCodeforces {
		t.Errorf("platform = %q, want codeforces", service.gotPlatform)
	}

	var resp syncCountsResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if resp.Synced != 3 || resp.Updated != 2 {
		t.Errorf("counts = %+v, want {3 2 0}", resp)
	}
}

func TestSyncPlatform_RejectsUnknownPlatform(t *testing.T) {
	router := newSyncRouter(&fakeSyncService{}, &fakeCleanupRunner{})

	req := httptest.NewRequest(http.MethodPost, "/api/sync/topcoder", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Result().StatusCode)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if resp.Code != model.ErrCodeUnknownPlatform {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeUnknownPlatform)
	}
}

func TestSyncPlatform_SyncInProgressMapsTo409(t *testing.T) {
	service := &fakeSyncService{err: model.NewSyncInProgressError(model.PlatformCodeforces)}
	router := newSyncRouter(service, &fakeCleanupRunner{})

	req := httptest.NewRequest(http.MethodPost, "/api/sync/codeforces", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Result().StatusCode)
	}
}

func TestSyncPlatform_FetchFailedMapsTo502(t *testing.T) {
	service := &fakeSyncService{err: model.NewFetchFailedError(model.PlatformAtCoder, "timeout")}
	router := newSyncRouter(service, &fakeCleanupRunner{})

	req := httptest.NewRequest(http.MethodPost, "/api/sync/atcoder", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Result().StatusCode)
	}
}

func TestSyncAll_ReturnsPerPlatformCounts(t *testing.T) {
	service := &fakeSyncService{
		allResults: map[model.Platform]model.SyncCounts{
			model.PlatformCodeforces: {Synced: 2},
			model.PlatformAtCoder:    {Failed: 1},
		},
	}
	router := newSyncRouter(service, &fakeCleanupRunner{})

	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}

	var resp syncAllResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if len(resp.Platforms) != 2 {
		t.Fatalf("platforms = %d, want 2", len(resp.Platforms))
	}
	if resp.Platforms["codeforces"].Synced != 2 {
		t.Errorf("codeforces.synced = %d, want 2", resp.Platforms["codeforces"].Synced)
	}
	if resp.Platforms["atcoder"].Failed != 1 {
		t.Errorf("atcoder.failed = %d, want 1", resp.Platforms["atcoder"].Failed)
	}
}

func TestRunCleanup_InvokesJob(t *testing.T) {
	cleanup := &fakeCleanupRunner{}
	router := newSyncRouter(&fakeSyncService{}, cleanup)

	req := httptest.NewRequest(http.MethodPost, "/api/cleanup", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Result().StatusCode)
	}
	if !cleanup.called {
		t.Error("クリーンアップジョブが呼ばれるべき")
	}
}

func TestRunCleanup_InternalErrorMapsTo500(t *testing.T) {
	cleanup := &fakeCleanupRunner{err: errors.New("db down")}
	router := newSyncRouter(&fakeSyncService{}, cleanup)

	req := httptest.NewRequest(http.MethodPost, "/api/cleanup", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Result().StatusCode)
	}
}
