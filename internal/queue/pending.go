package queue

import "fmt"

// PendingOrder 是已通过准入、等待异步落库的订单任务。
// 只存在于进程内存，被 worker 消费一次后即丢弃。
type PendingOrder struct {
	OrderID   int64
	UserID    int64
	VoucherID int64
}

// Validate 做最小字段校验，防止 worker 处理脏任务。
func (t PendingOrder) Validate() error {
	if t.OrderID <= 0 {
		return fmt.Errorf("order_id is required")
	}
	if t.UserID <= 0 {
		return fmt.Errorf("user_id is required")
	}
	if t.VoucherID <= 0 {
		return fmt.Errorf("voucher_id is required")
	}
	return nil
}
