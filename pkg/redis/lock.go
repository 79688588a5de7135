package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// luaReleaseLockIfMatch 仅当锁值与持有者 token 匹配时才删除，
// 避免锁已过期被他人重新获取后误删新锁。
const luaReleaseLockIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

// Lock 基于 SETNX + TTL 的跨进程互斥锁。
// 单次尝试、不阻塞：获取失败是正常分支，由调用方决定重试还是放弃。
type Lock struct {
	rdb   *rd.Client
	key   string
	token string
	ttl   time.Duration
}

// NewLock 创建一把锁，token 标识本次持有者。
func NewLock(rdb *rd.Client, key string, ttl time.Duration) *Lock {
	return &Lock{
		rdb:   rdb,
		key:   key,
		token: uuid.New().String(),
		ttl:   ttl,
	}
}

// TryLock 单次尝试加锁。返回 false 表示锁被他人持有。
// TTL 兜底持有者崩溃的场景，调用方需保证 TTL 大于临界区耗时。
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	return l.rdb.SetNX(ctx, l.key, l.token, l.ttl).Result()
}

// Unlock 安全释放：token 不匹配（锁已过期易主）时不做任何事。
func (l *Lock) Unlock(ctx context.Context) error {
	return l.rdb.Eval(ctx, luaReleaseLockIfMatch, []string{l.key}, l.token).Err()
}
