package queue

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"voucher_seckill/internal/model"
	"voucher_seckill/internal/store"
	rediskey "voucher_seckill/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newWorkerFixture(t *testing.T) (*OrderQueue, *store.OrderStore, *gorm.DB, *rd.Client) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.SeckillVoucher{}, &model.VoucherOrder{}))

	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	q := NewOrderQueue(64)
	orders := store.NewOrderStore(db)

	w := NewOrderWorker(q, rdb, orders, 10*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)

	return q, orders, db, rdb
}

func seedVoucher(t *testing.T, db *gorm.DB, voucherID int64, stock int) {
	t.Helper()
	require.NoError(t, db.Create(&model.SeckillVoucher{
		VoucherID: voucherID,
		Stock:     stock,
		BeginTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
	}).Error)
}

func countOrders(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&model.VoucherOrder{}).Count(&count).Error)
	return count
}

func TestWorkerPersistsAdmittedOrder(t *testing.T) {
	q, orders, db, _ := newWorkerFixture(t)
	seedVoucher(t, db, 1, 5)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, PendingOrder{OrderID: 1001, UserID: 100, VoucherID: 1}))

	require.Eventually(t, func() bool {
		got, err := orders.Get(ctx, 1001)
		return err == nil && got != nil && got.Status == model.OrderPersisted
	}, 2*time.Second, 10*time.Millisecond)

	var v model.SeckillVoucher
	require.NoError(t, db.First(&v, "voucher_id = ?", 1).Error)
	require.Equal(t, 4, v.Stock)
}

func TestWorkerDuplicateTasksLandSingleOrder(t *testing.T) {
	q, orders, db, _ := newWorkerFixture(t)
	seedVoucher(t, db, 1, 5)
	ctx := context.Background()

	// 同一 (用户, 券) 的两个任务：幂等兜底只允许一单落库
	require.NoError(t, q.Enqueue(ctx, PendingOrder{OrderID: 1001, UserID: 100, VoucherID: 1}))
	require.NoError(t, q.Enqueue(ctx, PendingOrder{OrderID: 1002, UserID: 100, VoucherID: 1}))

	require.Eventually(t, func() bool {
		got, err := orders.Get(ctx, 1001)
		return err == nil && got != nil
	}, 2*time.Second, 10*time.Millisecond)
	// 等第二个任务也被消费完
	require.Eventually(t, func() bool { return q.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	require.Equal(t, int64(1), countOrders(t, db))

	var v model.SeckillVoucher
	require.NoError(t, db.First(&v, "voucher_id = ?", 1).Error)
	require.Equal(t, 4, v.Stock)
}

func TestWorkerLockBusyDropsTask(t *testing.T) {
	q, _, db, rdb := newWorkerFixture(t)
	seedVoucher(t, db, 1, 5)
	ctx := context.Background()

	// 模拟另一个进程正持有该用户的落单锁
	holder := rediskey.NewLock(rdb, rediskey.OrderLockKey(100), time.Hour)
	ok, err := holder.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, q.Enqueue(ctx, PendingOrder{OrderID: 1001, UserID: 100, VoucherID: 1}))

	require.Eventually(t, func() bool { return q.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// 拿不到锁的任务被丢弃（已记日志），不落库
	require.Equal(t, int64(0), countOrders(t, db))
}

func TestWorkerStockDivergenceDropsTask(t *testing.T) {
	q, _, db, _ := newWorkerFixture(t)
	// 持久层库存为 0 而任务却通过了预占：模拟缓存层与持久层分歧
	seedVoucher(t, db, 1, 0)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, PendingOrder{OrderID: 1001, UserID: 100, VoucherID: 1}))

	require.Eventually(t, func() bool { return q.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	require.Equal(t, int64(0), countOrders(t, db))
	var v model.SeckillVoucher
	require.NoError(t, db.First(&v, "voucher_id = ?", 1).Error)
	require.Equal(t, 0, v.Stock, "stock must never go negative")
}
