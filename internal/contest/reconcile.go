// Package contest はコンテストの照合・保存処理を提供する。
package contest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/contestman/internal/model"
	"github.com/hitoshi/contestman/internal/repository"
	"github.com/hitoshi/contestman/internal/security"
)

// ReconcileService はアダプタが取得したコンテストと保存済みコンテストの
// 照合・UPSERT処理を提供する。(platform, platform_id)の組で同一性を判定し、
// 既存行は可変フィールドを上書きする。
type ReconcileService struct {
	contestRepo repository.ContestRepository
	sanitizer   security.ContentSanitizerService
}

// NewReconcileService はReconcileServiceの新しいインスタンスを生成する。
func NewReconcileService(
	contestRepo repository.ContestRepository,
	sanitizer security.ContentSanitizerService,
) *ReconcileService {
	return &ReconcileService{
		contestRepo: contestRepo,
		sanitizer:   sanitizer,
	}
}

// Upsert は正規化済みコンテストをUPSERTし、件数を集計して返す。
// 個別コンテストのエラーはfailedに計上して次のコンテストへ進む。
// 不正なアップストリームレコード1件がバッチ全体を止めてはならない。
func (s *ReconcileService) Upsert(
	ctx context.Context,
	platform model.Platform,
	contests []model.ParsedContest,
) (model.SyncCounts, error) {
	counts := model.SyncCounts{}
	if len(contests) == 0 {
		return counts, nil
	}

	now := time.Now()

	for _, parsed := range contests {
		if parsed.PlatformID == "" {
			slog.Warn("platform_idのないコンテストをスキップします",
				"platform", platform,
				"name", parsed.Name,
			)
			counts.Failed++
			continue
		}

		existing, err := s.contestRepo.FindByPlatformID(ctx, platform, parsed.PlatformID)
		if err != nil {
			slog.Error("コンテストの検索でエラー",
				"platform", platform,
				"platform_id", parsed.PlatformID,
				"error", err,
			)
			counts.Failed++
			continue
		}

		if existing != nil {
			if err := s.updateExisting(ctx, existing, parsed, now); err != nil {
				slog.Error("コンテストの更新でエラー",
					"platform", platform,
					"platform_id", parsed.PlatformID,
					"error", err,
				)
				counts.Failed++
				continue
			}
			counts.Updated++
		} else {
			if err := s.createNew(ctx, platform, parsed, now); err != nil {
				slog.Error("コンテストの挿入でエラー",
					"platform", platform,
					"platform_id", parsed.PlatformID,
					"error", err,
				)
				counts.Failed++
				continue
			}
			counts.Synced++
		}
	}

	slog.Info("コンテストUPSERT完了",
		"platform", platform,
		"synced", counts.Synced,
		"updated", counts.Updated,
		"failed", counts.Failed,
	)

	return counts, nil
}

// updateExisting は既存コンテストの可変フィールドを上書きし、
// last_synced_atを更新する。is_notifiedとcreated_atは保持する。
func (s *ReconcileService) updateExisting(
	ctx context.Context,
	existing *model.Contest,
	parsed model.ParsedContest,
	now time.Time,
) error {
	existing.Name = parsed.Name
	existing.Phase = parsed.Phase
	existing.ContestType = parsed.ContestType
	existing.Difficulty = parsed.Difficulty
	existing.StartTime = parsed.StartTime
	existing.EndTime = parsed.EndTime
	existing.DurationMinutes = parsed.DurationMinutes
	existing.Description = s.sanitizer.Sanitize(parsed.Description)
	existing.URL = parsed.URL
	existing.Organizer = parsed.Organizer
	existing.ParticipantCount = parsed.ParticipantCount
	existing.ProblemCount = parsed.ProblemCount
	existing.Country = parsed.Country
	existing.City = parsed.City
	existing.Metadata = parsed.Metadata
	existing.IsActive = model.IsActivePhase(parsed.Phase)
	existing.LastSyncedAt = now
	existing.UpdatedAt = now

	return s.contestRepo.Update(ctx, existing)
}

// createNew は新規コンテストを作成する。
func (s *ReconcileService) createNew(
	ctx context.Context,
	platform model.Platform,
	parsed model.ParsedContest,
	now time.Time,
) error {
	contest := &model.Contest{
		ID:               uuid.New().String(),
		Platform:         platform,
		PlatformID:       parsed.PlatformID,
		Name:             parsed.Name,
		Phase:            parsed.Phase,
		ContestType:      parsed.ContestType,
		Difficulty:       parsed.Difficulty,
		StartTime:        parsed.StartTime,
		EndTime:          parsed.EndTime,
		DurationMinutes:  parsed.DurationMinutes,
		Description:      s.sanitizer.Sanitize(parsed.Description),
		URL:              parsed.URL,
		Organizer:        parsed.Organizer,
		ParticipantCount: parsed.ParticipantCount,
		ProblemCount:     parsed.ProblemCount,
		Country:          parsed.Country,
		City:             parsed.City,
		Metadata:         parsed.Metadata,
		IsActive:         model.IsActivePhase(parsed.Phase),
		LastSyncedAt:     now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	return s.contestRepo.Create(ctx, contest)
}
