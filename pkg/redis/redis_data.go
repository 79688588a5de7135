package redis

import (
	"encoding/json"
	"time"
)

// RedisData 逻辑过期缓存的信封结构：真实数据 + 逻辑过期时间。
// 写入 Redis 时不设置物理 TTL，key 永远命中，
// 过期与否由 ExpireAt 决定，读到过期数据的请求负责触发异步重建。
type RedisData struct {
	Data     json.RawMessage `json:"data"`
	ExpireAt time.Time       `json:"expire_at"`
}

// Expired 判断逻辑过期时间是否已过。
func (d RedisData) Expired(now time.Time) bool {
	return !d.ExpireAt.After(now)
}
