// Package lock はプラットフォーム同期の実行中ロックを提供する。
// 同一プラットフォームの同期が多重起動しないよう、
// 同期開始時にロックを取得し終了時に解放する。
// 単一プロセス構成向けのインメモリ実装と、
// 複数レプリカ構成向けのRedis実装を持つ。
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/contestman/internal/model"
)

// PlatformLocker はプラットフォーム単位の実行中ロックのインターフェース。
type PlatformLocker interface {
	// TryAcquire は指定プラットフォームのロック取得を試みる。
	// 取得できた場合はtrueを返す。既にロック済みの場合はブロックせずfalseを返す。
	// ttlはロックの自動失効時間。プロセスクラッシュ時の恒久ロックを防ぐ。
	TryAcquire(ctx context.Context, platform model.Platform, ttl time.Duration) (bool, error)

	// Release は指定プラットフォームのロックを解放する。
	Release(ctx context.Context, platform model.Platform) error
}

// MemoryLocker は単一プロセス向けのインメモリロック実装。
type MemoryLocker struct {
	mu      sync.Mutex
	held    map[model.Platform]time.Time // ロック失効時刻
	nowFunc func() time.Time
}

var _ PlatformLocker = (*MemoryLocker)(nil)

// NewMemoryLocker はMemoryLockerを生成する。
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:    make(map[model.Platform]time.Time),
		nowFunc: time.Now,
	}
}

// TryAcquire はロック取得を試みる。失効済みロックは取得可能として扱う。
func (l *MemoryLocker) TryAcquire(ctx context.Context, platform model.Platform, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if expiry, ok := l.held[platform]; ok && now.Before(expiry) {
		return false, nil
	}
	l.held[platform] = now.Add(ttl)
	return true, nil
}

// Release はロックを解放する。未取得のロックの解放は何もしない。
func (l *MemoryLocker) Release(ctx context.Context, platform model.Platform) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, platform)
	return nil
}
