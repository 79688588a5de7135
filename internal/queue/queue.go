package queue

import (
	"context"
	"errors"
)

// ErrQueueFull 队列持续满载、入队等待被取消。
// 对调用方是可重试信号，不是致命错误。
var ErrQueueFull = errors.New("queue: order queue full, try again later")

// OrderQueue 进程内有界 FIFO 队列，准入网关生产、单一 worker 消费。
// 有界容量是刻意的背压点：队列打满说明落库速度追不上准入速度。
// 注意：进程崩溃会丢失未落库的任务，这是已知的单进程持久化边界。
type OrderQueue struct {
	tasks chan PendingOrder
}

func NewOrderQueue(capacity int) *OrderQueue {
	return &OrderQueue{tasks: make(chan PendingOrder, capacity)}
}

// Enqueue 入队。队列满时阻塞等待空位，ctx 结束仍无空位则返回 ErrQueueFull。
func (q *OrderQueue) Enqueue(ctx context.Context, task PendingOrder) error {
	if err := task.Validate(); err != nil {
		return err
	}
	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ErrQueueFull
	}
}

// Tasks 暴露只读通道给 worker，worker 在空队列上阻塞挂起。
func (q *OrderQueue) Tasks() <-chan PendingOrder {
	return q.tasks
}

// Len 当前积压任务数，仅用于观测。
func (q *OrderQueue) Len() int {
	return len(q.tasks)
}
