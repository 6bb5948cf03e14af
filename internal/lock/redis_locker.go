package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/contestman/internal/model"
)

// lockKeyPrefix はRedis上のロックキーのプレフィックス。
const lockKeyPrefix = "contestman:sync:lock:"

// releaseScript は保持トークンが一致する場合のみキーを削除する。
// TTL失効後に別レプリカが取得したロックを、元の保持者のReleaseが
// 誤って解放しないための比較削除。
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker は複数レプリカ構成向けのRedisロック実装。
// SETNXとTTLによる排他で、レプリカ間の同期多重起動を防ぐ。
// 取得ごとに一意トークンを値に入れ、解放時はトークンが一致する
// キーのみ削除する。
type RedisLocker struct {
	client *redis.Client

	mu     sync.Mutex
	tokens map[model.Platform]string
}

var _ PlatformLocker = (*RedisLocker)(nil)

// NewRedisLocker はRedisLockerを生成する。
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		tokens: make(map[model.Platform]string),
	}
}

// TryAcquire はSETNXでロック取得を試みる。ttlはRedis側で自動失効する。
func (l *RedisLocker) TryAcquire(ctx context.Context, platform model.Platform, ttl time.Duration) (bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, lockKey(platform), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("同期ロックの取得に失敗しました: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.tokens[platform] = token
		l.mu.Unlock()
	}
	return ok, nil
}

// Release は自身が取得したロックのみ解放する。
// TTL失効後に別レプリカが取り直したロックはトークン不一致となり削除されない。
func (l *RedisLocker) Release(ctx context.Context, platform model.Platform) error {
	l.mu.Lock()
	token, held := l.tokens[platform]
	delete(l.tokens, platform)
	l.mu.Unlock()
	if !held {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client, []string{lockKey(platform)}, token).Err(); err != nil {
		return fmt.Errorf("同期ロックの解放に失敗しました: %w", err)
	}
	return nil
}

// lockKey はプラットフォームのロックキーを組み立てる。
func lockKey(platform model.Platform) string {
	return lockKeyPrefix + string(platform)
}
