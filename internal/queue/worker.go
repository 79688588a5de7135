package queue

import (
	"context"
	"errors"
	"log"
	"time"

	"voucher_seckill/internal/model"
	"voucher_seckill/internal/store"
	rediskey "voucher_seckill/pkg/redis"

	rd "github.com/redis/go-redis/v9"
)

// OrderWorker 单消费者落单循环：按准入顺序逐个取任务，
// 先拿按用户的分布式锁，再走权威校验 + 事务落库。
// 单消费者保证落库顺序等于准入顺序，落库本身是瓶颈，吞吐够用。
type OrderWorker struct {
	queue   *OrderQueue
	rdb     *rd.Client
	orders  *store.OrderStore
	lockTTL time.Duration
}

func NewOrderWorker(q *OrderQueue, rdb *rd.Client, orders *store.OrderStore, lockTTL time.Duration) *OrderWorker {
	return &OrderWorker{
		queue:   q,
		rdb:     rdb,
		orders:  orders,
		lockTTL: lockTTL,
	}
}

// Run 阻塞运行直到 ctx 取消。应当在独立 goroutine 中调用，且全局只跑一个。
func (w *OrderWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.queue.Tasks():
			w.handle(ctx, task)
		}
	}
}

// handle 处理单个任务。任何失败都只记日志并丢弃任务，
// 不做重试：重复执行扣减会带来重复扣库存的风险。
func (w *OrderWorker) handle(ctx context.Context, task PendingOrder) {
	// 准入阶段和落库阶段可能运行在不同进程，
	// 进程内互斥不够，必须用跨进程的按用户锁。
	lock := rediskey.NewLock(w.rdb, rediskey.OrderLockKey(task.UserID), w.lockTTL)
	ok, err := lock.TryLock(ctx)
	if err != nil {
		log.Printf("order worker lock error: user=%d voucher=%d order=%d err=%v",
			task.UserID, task.VoucherID, task.OrderID, err)
		return
	}
	if !ok {
		// 同一用户的另一单正在落库，丢弃本任务（已知限制，不重试）。
		log.Printf("order worker lock busy, drop task: user=%d voucher=%d order=%d",
			task.UserID, task.VoucherID, task.OrderID)
		return
	}
	defer func() {
		if err := lock.Unlock(ctx); err != nil {
			log.Printf("order worker unlock: user=%d err=%v", task.UserID, err)
		}
	}()

	order := &model.VoucherOrder{
		ID:        task.OrderID,
		UserID:    task.UserID,
		VoucherID: task.VoucherID,
	}
	if err := w.orders.Persist(ctx, order); err != nil {
		switch {
		case errors.Is(err, store.ErrOrderExists):
			// 幂等兜底：订单已在，当作成功丢弃任务。
			log.Printf("order worker duplicate skipped: user=%d voucher=%d order=%d",
				task.UserID, task.VoucherID, task.OrderID)
		case errors.Is(err, store.ErrStockDepleted):
			// 预占成功但持久层库存不足，说明缓存层与持久层状态发生过分歧
			// （如库存 key 被淘汰后重新预热），记数据一致性告警。
			log.Printf("order worker stock diverged: user=%d voucher=%d order=%d",
				task.UserID, task.VoucherID, task.OrderID)
		default:
			log.Printf("order worker persist error: user=%d voucher=%d order=%d err=%v",
				task.UserID, task.VoucherID, task.OrderID, err)
		}
	}
}
