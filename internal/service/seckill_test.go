package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"voucher_seckill/internal/model"
	"voucher_seckill/internal/queue"
	"voucher_seckill/internal/store"
	rediskey "voucher_seckill/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	svc    *SeckillService
	orders *store.OrderStore
	db     *gorm.DB
	rdb    *rd.Client
	mr     *miniredis.Miniredis
}

// newFixture 起一套完整链路：内存 SQLite + miniredis + 单消费者 worker。
func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Voucher{}, &model.SeckillVoucher{}, &model.VoucherOrder{}))

	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	vouchers := store.NewVoucherStore(db)
	orders := store.NewOrderStore(db)
	cache := rediskey.NewCacheClient(rdb, time.Minute)
	t.Cleanup(cache.Close)
	q := queue.NewOrderQueue(1024)
	svc := NewSeckillService(vouchers, orders, rdb, cache, rediskey.NewIDWorker(rdb), q, time.Hour)

	worker := queue.NewOrderWorker(q, rdb, orders, 10*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go worker.Run(ctx)

	return &fixture{svc: svc, orders: orders, db: db, rdb: rdb, mr: mr}
}

// publish 发布一张现在就能抢的秒杀券，返回券 ID。
func (f *fixture) publish(t *testing.T, stock int) int64 {
	t.Helper()
	voucher := &model.Voucher{ShopID: 1, Title: "100元代金券", PayValue: 8000}
	seckill := &model.SeckillVoucher{
		Stock:     stock,
		BeginTime: time.Now().Add(-time.Minute),
		EndTime:   time.Now().Add(time.Hour),
	}
	require.NoError(t, f.svc.PublishVoucher(context.Background(), voucher, seckill))
	return voucher.ID
}

func TestPlaceOrderUnknownVoucher(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PlaceOrder(context.Background(), 999, 100)
	require.ErrorIs(t, err, ErrVoucherNotFound)
}

func TestPlaceOrderOutsideWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	notStarted := &model.Voucher{ShopID: 1, Title: "未开始", PayValue: 100}
	require.NoError(t, f.svc.PublishVoucher(ctx, notStarted, &model.SeckillVoucher{
		Stock:     10,
		BeginTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
	}))
	_, err := f.svc.PlaceOrder(ctx, notStarted.ID, 100)
	require.ErrorIs(t, err, ErrNotStarted)

	ended := &model.Voucher{ShopID: 1, Title: "已结束", PayValue: 100}
	require.NoError(t, f.svc.PublishVoucher(ctx, ended, &model.SeckillVoucher{
		Stock:     10,
		BeginTime: time.Now().Add(-2 * time.Hour),
		EndTime:   time.Now().Add(-time.Hour),
	}))
	_, err = f.svc.PlaceOrder(ctx, ended.ID, 100)
	require.ErrorIs(t, err, ErrEnded)
}

func TestPlaceOrderDuplicateBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voucherID := f.publish(t, 10)

	orderID, err := f.svc.PlaceOrder(ctx, voucherID, 100)
	require.NoError(t, err)
	require.Greater(t, orderID, int64(0))

	// 同一买家第二次请求：准入层直接拒绝
	_, err = f.svc.PlaceOrder(ctx, voucherID, 100)
	require.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestPlaceOrderSingleStockTwoBuyers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voucherID := f.publish(t, 1)

	// 库存 1、两个买家并发：恰好一人拿到订单 ID
	var wg sync.WaitGroup
	orderIDs := make([]int64, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			orderIDs[i], errs[i] = f.svc.PlaceOrder(ctx, voucherID, int64(100+i))
		}(i)
	}
	wg.Wait()

	successes := 0
	for i := 0; i < 2; i++ {
		if errs[i] == nil {
			successes++
			require.Greater(t, orderIDs[i], int64(0))
		} else {
			require.ErrorIs(t, errs[i], ErrSoldOut)
		}
	}
	require.Equal(t, 1, successes)

	// 最终恰好一条订单落库，持久层与缓存层库存都归零
	require.Eventually(t, func() bool {
		var count int64
		if err := f.db.Model(&model.VoucherOrder{}).Count(&count).Error; err != nil {
			return false
		}
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)

	var v model.SeckillVoucher
	require.NoError(t, f.db.First(&v, "voucher_id = ?", voucherID).Error)
	require.Equal(t, 0, v.Stock)

	remaining, err := f.rdb.Get(ctx, rediskey.SeckillStockKey(voucherID)).Int()
	require.NoError(t, err)
	require.Equal(t, 0, remaining)
}

func TestPlaceOrderAdmissionBoundedByStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const stock = 10
	const buyers = 50
	voucherID := f.publish(t, stock)

	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.PlaceOrder(ctx, voucherID, int64(1000+i))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			require.ErrorIs(t, err, ErrSoldOut)
		}
	}
	require.Equal(t, stock, successes)

	// 异步落库最终收敛到 stock 条订单
	require.Eventually(t, func() bool {
		var count int64
		if err := f.db.Model(&model.VoucherOrder{}).Count(&count).Error; err != nil {
			return false
		}
		return count == int64(stock)
	}, 3*time.Second, 10*time.Millisecond)

	var v model.SeckillVoucher
	require.NoError(t, f.db.First(&v, "voucher_id = ?", voucherID).Error)
	require.Equal(t, 0, v.Stock)
}

func TestPlaceOrderFailsClosedWhenRedisDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voucherID := f.publish(t, 10)

	// Redis 不可用：必须拒单，而不是绕过预占校验放行
	f.mr.Close()
	_, err := f.svc.PlaceOrder(ctx, voucherID, 100)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrSoldOut)
	require.NotErrorIs(t, err, ErrDuplicateOrder)
}

func TestOrderStatusLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voucherID := f.publish(t, 5)

	orderID, err := f.svc.PlaceOrder(ctx, voucherID, 100)
	require.NoError(t, err)

	// 异步落库完成后状态可查
	require.Eventually(t, func() bool {
		order, err := f.svc.OrderStatus(ctx, orderID)
		return err == nil && order != nil && order.Status == model.OrderPersisted
	}, 2*time.Second, 10*time.Millisecond)

	order, err := f.svc.OrderStatus(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, int64(100), order.UserID)
	require.Equal(t, voucherID, order.VoucherID)
}
