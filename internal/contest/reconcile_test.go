package contest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/contestman/internal/model"
)

// fakeContestRepo はテスト用のContestRepository実装。
// (platform, platform_id)をキーにメモリ上に保持する。
type fakeContestRepo struct {
	contests  map[string]*model.Contest
	createErr error
	findErr   error
}

func newFakeContestRepo() *fakeContestRepo {
	return &fakeContestRepo{contests: make(map[string]*model.Contest)}
}

func contestKey(platform model.Platform, platformID string) string {
	return string(platform) + "/" + platformID
}

func (r *fakeContestRepo) FindByID(ctx context.Context, id string) (*model.Contest, error) {
	for _, c := range r.contests {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeContestRepo) FindByPlatformID(ctx context.Context, platform model.Platform, platformID string) (*model.Contest, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.contests[contestKey(platform, platformID)], nil
}

func (r *fakeContestRepo) Create(ctx context.Context, contest *model.Contest) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.contests[contestKey(contest.Platform, contest.PlatformID)] = contest
	return nil
}

func (r *fakeContestRepo) Update(ctx context.Context, contest *model.Contest) error {
	r.contests[contestKey(contest.Platform, contest.PlatformID)] = contest
	return nil
}

func (r *fakeContestRepo) ListUpcomingWithin(ctx context.Context, now, until time.Time) ([]*model.Contest, error) {
	return nil, nil
}

func (r *fakeContestRepo) ListUpcomingForPlatforms(ctx context.Context, platforms []model.Platform, now, until time.Time) ([]*model.Contest, error) {
	return nil, nil
}

func (r *fakeContestRepo) MarkNotified(ctx context.Context, id string) error {
	return nil
}

func (r *fakeContestRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// noopSanitizer はテスト用のContentSanitizerService実装。入力をそのまま返す。
type noopSanitizer struct{}

func (s *noopSanitizer) Sanitize(rawHTML string) string {
	return rawHTML
}

// sampleContests はテスト用の正規化済みコンテスト3件を生成する。
func sampleContests() []model.ParsedContest {
	start := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	return []model.ParsedContest{
		{PlatformID: "1850", Name: "Round A", Phase: model.PhaseUpcoming, StartTime: start, EndTime: start.Add(2 * time.Hour)},
		{PlatformID: "1851", Name: "Round B", Phase: model.PhaseUpcoming, StartTime: start.Add(24 * time.Hour), EndTime: start.Add(26 * time.Hour)},
		{PlatformID: "1852", Name: "Round C", Phase: model.PhaseFinished, StartTime: start.Add(-24 * time.Hour), EndTime: start.Add(-22 * time.Hour)},
	}
}

// TestUpsert_InsertThenUpdate は初回UPSERTが全件挿入、
// 2回目が全件更新になることを検証する。
func TestUpsert_InsertThenUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newFakeContestRepo()
	service := NewReconcileService(repo, &noopSanitizer{})

	counts, err := service.Upsert(ctx, model.PlatformCodeforces, sampleContests())
	if err != nil {
		t.Fatalf("Upsert error = %v", err)
	}
	if counts.Synced != 3 || counts.Updated != 0 || counts.Failed != 0 {
		t.Errorf("初回 = {%d %d %d}, want {3 0 0}", counts.Synced, counts.Updated, counts.Failed)
	}

	counts, err = service.Upsert(ctx, model.PlatformCodeforces, sampleContests())
	if err != nil {
		t.Fatalf("Upsert error = %v", err)
	}
	if counts.Synced != 0 || counts.Updated != 3 || counts.Failed != 0 {
		t.Errorf("2回目 = {%d %d %d}, want {0 3 0}", counts.Synced, counts.Updated, counts.Failed)
	}
}

// TestUpsert_IsActiveComputed はphaseからis_activeが計算されることを検証する。
func TestUpsert_IsActiveComputed(t *testing.T) {
	ctx := context.Background()
	repo := newFakeContestRepo()
	service := NewReconcileService(repo, &noopSanitizer{})

	if _, err := service.Upsert(ctx, model.PlatformCodeforces, sampleContests()); err != nil {
		t.Fatalf("Upsert error = %v", err)
	}

	upcoming := repo.contests[contestKey(model.PlatformCodeforces, "1850")]
	if !upcoming.IsActive {
		t.Error("upcomingコンテストはis_active=trueになるべき")
	}
	finished := repo.contests[contestKey(model.PlatformCodeforces, "1852")]
	if finished.IsActive {
		t.Error("finishedコンテストはis_active=falseになるべき")
	}
}

// TestUpsert_UpdatePreservesNotifiedFlag は更新時にis_notifiedと
// created_atが保持されることを検証する。
func TestUpsert_UpdatePreservesNotifiedFlag(t *testing.T) {
	ctx := context.Background()
	repo := newFakeContestRepo()
	service := NewReconcileService(repo, &noopSanitizer{})

	if _, err := service.Upsert(ctx, model.PlatformCodeforces, sampleContests()); err != nil {
		t.Fatalf("Upsert error = %v", err)
	}

	key := contestKey(model.PlatformCodeforces, "1850")
	repo.contests[key].IsNotified = true
	originalCreatedAt := repo.contests[key].CreatedAt

	if _, err := service.Upsert(ctx, model.PlatformCodeforces, sampleContests()); err != nil {
		t.Fatalf("Upsert error = %v", err)
	}

	updated := repo.contests[key]
	if !updated.IsNotified {
		t.Error("更新でis_notifiedフラグが失われるべきではない")
	}
	if !updated.CreatedAt.Equal(originalCreatedAt) {
		t.Error("更新でcreated_atが変わるべきではない")
	}
}

// TestUpsert_PerItemFailure は個別エラーがfailedに計上され、
// 残りのコンテストが処理されることを検証する。
func TestUpsert_PerItemFailure(t *testing.T) {
	ctx := context.Background()
	repo := newFakeContestRepo()
	service := NewReconcileService(repo, &noopSanitizer{})

	contests := sampleContests()
	contests[1].PlatformID = "" // 不正レコード

	counts, err := service.Upsert(ctx, model.PlatformCodeforces, contests)
	if err != nil {
		t.Fatalf("個別エラーでUpsert全体が失敗するべきではない: %v", err)
	}
	if counts.Synced != 2 || counts.Failed != 1 {
		t.Errorf("counts = {%d %d %d}, want {2 0 1}", counts.Synced, counts.Updated, counts.Failed)
	}
}

// TestUpsert_CreateErrorContinues はストア書き込みエラーが
// fail-fastにならないことを検証する。
func TestUpsert_CreateErrorContinues(t *testing.T) {
	ctx := context.Background()
	repo := newFakeContestRepo()
	repo.createErr = errors.New("insert failed")
	service := NewReconcileService(repo, &noopSanitizer{})

	counts, err := service.Upsert(ctx, model.PlatformCodeforces, sampleContests())
	if err != nil {
		t.Fatalf("Upsert error = %v", err)
	}
	if counts.Failed != 3 {
		t.Errorf("Failed = %d, want 3", counts.Failed)
	}
}

// TestUpsert_Empty は空入力がゼロ集計を返すことを検証する。
func TestUpsert_Empty(t *testing.T) {
	service := NewReconcileService(newFakeContestRepo(), &noopSanitizer{})
	counts, err := service.Upsert(context.Background(), model.PlatformCodeforces, nil)
	if err != nil {
		t.Fatalf("Upsert error = %v", err)
	}
	if counts != (model.SyncCounts{}) {
		t.Errorf("counts = %+v, want zero", counts)
	}
}
