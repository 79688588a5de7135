package redis

import (
	"context"
	"strconv"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// 秒杀准入判定结果码，与 Lua 脚本返回值一一对应。
const (
	ReserveOK        = 0 // 扣减成功，可以下单
	ReserveSoldOut   = 1 // 库存不足
	ReserveDuplicate = 2 // 该用户已下过单
)

// luaSeckillReserve：单次 Redis 往返内完成「查库存 → 查重复 → 扣减 + 记名」。
// 脚本整体原子执行，并发请求之间不存在可观测的中间状态，
// 这是准入层不超卖、不重复放行的前提。
// 库存 key 不存在按 0 处理：Redis 不可用或未预热时宁可拒单。
const luaSeckillReserve = `
local voucherId = ARGV[1]
local userId = ARGV[2]
local stockKey = 'seckill:stock:' .. voucherId
local orderKey = 'seckill:order:' .. voucherId

if tonumber(redis.call('GET', stockKey) or '0') <= 0 then
  return 1
end
if redis.call('SISMEMBER', orderKey, userId) == 1 then
  return 2
end
redis.call('INCRBY', stockKey, -1)
redis.call('SADD', orderKey, userId)
return 0
`

// Reserve 执行原子准入判定。
// 返回值为 Reserve* 结果码；这里的扣减只是缓存层预占，
// 权威的库存与一人一单校验仍在落库阶段完成。
func Reserve(ctx context.Context, rdb *rd.Client, voucherID, userID, orderID int64) (int, error) {
	res, err := rdb.Eval(ctx, luaSeckillReserve, []string{},
		strconv.FormatInt(voucherID, 10),
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(orderID, 10),
	).Int()
	if err != nil {
		return 0, err
	}
	return res, nil
}

// PreloadStock 将券库存预热进 Redis，发布秒杀券时调用。
// 同时清掉旧的下单名单，避免上一轮活动的记录误伤本轮用户。
func PreloadStock(ctx context.Context, rdb *rd.Client, voucherID int64, stock int, ttl time.Duration) error {
	pipe := rdb.TxPipeline()
	pipe.Set(ctx, SeckillStockKey(voucherID), stock, ttl)
	pipe.Del(ctx, SeckillOrderKey(voucherID))
	_, err := pipe.Exec(ctx)
	return err
}
