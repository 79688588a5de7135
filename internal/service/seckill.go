package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"voucher_seckill/internal/model"
	"voucher_seckill/internal/queue"
	"voucher_seckill/internal/store"
	rediskey "voucher_seckill/pkg/redis"

	rd "github.com/redis/go-redis/v9"
)

// enqueueWait 入队等待上限。队列满说明落库积压严重，
// 与其让请求长挂不如尽快让用户重试。
const enqueueWait = 200 * time.Millisecond

// voucherCacheTTL 秒杀券详情缓存时长。准入只读时间窗字段，
// 券发布后时间窗不可变，缓存不会产生语义上的过期问题。
const voucherCacheTTL = 30 * time.Minute

// SeckillService 秒杀准入网关：
// 活动时间校验 → 分配订单 ID → Redis 原子预占 → 入队异步落库。
// 准入路径不读写数据库库存行，库存热点全部由 Redis 扛。
type SeckillService struct {
	vouchers *store.VoucherStore
	orders   *store.OrderStore
	rdb      *rd.Client
	cache    *rediskey.CacheClient
	idWorker *rediskey.IDWorker
	queue    *queue.OrderQueue

	stockTTL time.Duration
	now      func() time.Time
}

func NewSeckillService(
	vouchers *store.VoucherStore,
	orders *store.OrderStore,
	rdb *rd.Client,
	cache *rediskey.CacheClient,
	idWorker *rediskey.IDWorker,
	q *queue.OrderQueue,
	stockTTL time.Duration,
) *SeckillService {
	return &SeckillService{
		vouchers: vouchers,
		orders:   orders,
		rdb:      rdb,
		cache:    cache,
		idWorker: idWorker,
		queue:    q,
		stockTTL: stockTTL,
		now:      time.Now,
	}
}

// PlaceOrder 秒杀下单入口。成功返回订单 ID（此时订单尚未落库），
// 拒绝原因见 Err* 哨兵；Redis 不可用时宁可拒单也不绕过预占校验。
func (s *SeckillService) PlaceOrder(ctx context.Context, voucherID, userID int64) (int64, error) {
	// 券详情走互斥重建缓存：热券的时间窗查询不必每次打到数据库，
	// 缓存失效瞬间也只放一个请求回源。
	v, err := rediskey.QueryWithMutex(ctx, s.cache,
		rediskey.VoucherCacheKey(voucherID), rediskey.VoucherLockKey(voucherID),
		voucherCacheTTL,
		func(ctx context.Context) (*model.SeckillVoucher, error) {
			return s.vouchers.GetSeckillVoucher(ctx, voucherID)
		})
	if err != nil {
		return 0, fmt.Errorf("load seckill voucher: %w", err)
	}
	if v == nil {
		return 0, ErrVoucherNotFound
	}

	now := s.now()
	if now.Before(v.BeginTime) {
		return 0, ErrNotStarted
	}
	if now.After(v.EndTime) {
		return 0, ErrEnded
	}

	orderID, err := s.idWorker.NextID(ctx, "order")
	if err != nil {
		return 0, fmt.Errorf("allocate order id: %w", err)
	}

	res, err := rediskey.Reserve(ctx, s.rdb, voucherID, userID, orderID)
	if err != nil {
		// 预占不可用时直接拒单：绕过校验会重新引入超卖风险。
		return 0, fmt.Errorf("seckill reserve: %w", err)
	}
	switch res {
	case rediskey.ReserveOK:
	case rediskey.ReserveSoldOut:
		return 0, ErrSoldOut
	case rediskey.ReserveDuplicate:
		return 0, ErrDuplicateOrder
	default:
		return 0, fmt.Errorf("seckill reserve: unexpected code %d", res)
	}

	enqueueCtx, cancel := context.WithTimeout(ctx, enqueueWait)
	defer cancel()
	if err := s.queue.Enqueue(enqueueCtx, queue.PendingOrder{
		OrderID:   orderID,
		UserID:    userID,
		VoucherID: voucherID,
	}); err != nil {
		// 预占已经成功、任务却没能入队：用户侧表现为可重试失败，
		// 重试会命中 DUPLICATE，不会二次扣减。
		log.Printf("seckill enqueue failed: user=%d voucher=%d order=%d err=%v",
			userID, voucherID, orderID, err)
		return 0, err
	}

	return orderID, nil
}

// PublishVoucher 发布秒杀券：落库后把库存预热进 Redis。
func (s *SeckillService) PublishVoucher(ctx context.Context, voucher *model.Voucher, seckill *model.SeckillVoucher) error {
	if err := s.vouchers.Publish(ctx, voucher, seckill); err != nil {
		return err
	}
	// 清掉可能存在的空值占位，避免新券被旧 tombstone 挡住。
	if err := s.cache.Delete(ctx, rediskey.VoucherCacheKey(voucher.ID)); err != nil {
		return err
	}
	return rediskey.PreloadStock(ctx, s.rdb, voucher.ID, seckill.Stock, s.stockTTL)
}

// OrderStatus 查询订单落库状态，nil 表示尚未落库（或 ID 不存在）。
func (s *SeckillService) OrderStatus(ctx context.Context, orderID int64) (*model.VoucherOrder, error) {
	return s.orders.Get(ctx, orderID)
}
