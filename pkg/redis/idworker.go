package redis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	rd "github.com/redis/go-redis/v9"
)

const (
	// idEpochSecond 2022-01-01 00:00:00 UTC，ID 时间戳部分的起点。
	idEpochSecond = 1640995200
	// idSequenceBits 序列号位数：同一秒内最多 2^32 个 ID。
	idSequenceBits = 32
)

// IDWorker 生成全局唯一且按秒递增的 64 位 ID：
// 高位为距 epoch 的秒数，低 32 位为 Redis 按日自增序列。
// 序列 key 带日期后缀，跨天自动从 1 重新计数。
type IDWorker struct {
	rdb *rd.Client
	now func() time.Time

	// lastSecond 记录本进程见过的最大秒数，时钟回拨时快速失败。
	lastSecond atomic.Int64
}

func NewIDWorker(rdb *rd.Client) *IDWorker {
	return &IDWorker{rdb: rdb, now: time.Now}
}

// NextID 为某业务前缀（如 "order"）生成下一个 ID。
// 依赖 Redis INCR 的原子性保证跨进程不重复。
func (w *IDWorker) NextID(ctx context.Context, prefix string) (int64, error) {
	now := w.now().UTC()
	second := now.Unix() - idEpochSecond
	if second < 0 {
		return 0, fmt.Errorf("idworker: clock before epoch")
	}

	// 时钟回拨会产生比已发放 ID 更小的值，宁可报错也不发号。
	for {
		last := w.lastSecond.Load()
		if second < last {
			return 0, fmt.Errorf("idworker: clock moved backwards, last=%d now=%d", last, second)
		}
		if w.lastSecond.CompareAndSwap(last, second) {
			break
		}
	}

	date := now.Format("2006:01:02")
	count, err := w.rdb.Incr(ctx, IDCounterKey(prefix, date)).Result()
	if err != nil {
		return 0, fmt.Errorf("idworker incr: %w", err)
	}

	return second<<idSequenceBits | count, nil
}
