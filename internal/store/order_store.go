package store

import (
	"context"
	"errors"

	"voucher_seckill/internal/model"

	"gorm.io/gorm"
)

var (
	// ErrOrderExists 该用户在该券上已有落库订单（权威一人一单校验命中）。
	ErrOrderExists = errors.New("store: order already exists for user and voucher")
	// ErrStockDepleted 条件扣减影响 0 行：持久层库存已经为 0。
	ErrStockDepleted = errors.New("store: seckill stock depleted")
)

// OrderStore 订单持久层操作。
type OrderStore struct {
	db *gorm.DB
}

func NewOrderStore(db *gorm.DB) *OrderStore {
	return &OrderStore{db: db}
}

// Get 按订单 ID 查询，不存在返回 (nil, nil)。
func (s *OrderStore) Get(ctx context.Context, orderID int64) (*model.VoucherOrder, error) {
	var o model.VoucherOrder
	err := s.db.WithContext(ctx).First(&o, "id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// FindByUserVoucher 查询 (user, voucher) 既有订单，不存在返回 (nil, nil)。
func (s *OrderStore) FindByUserVoucher(ctx context.Context, userID, voucherID int64) (*model.VoucherOrder, error) {
	var o model.VoucherOrder
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND voucher_id = ?", userID, voucherID).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// Persist 权威落库：在单个事务内完成一人一单复查、条件扣减与插入订单。
// 扣减带 stock > 0 守卫，这才是真正的防超卖关卡；
// Redis 侧的预占只是为了让绝大多数被拒请求不碰数据库。
func (s *OrderStore) Persist(ctx context.Context, order *model.VoucherOrder) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.VoucherOrder{}).
			Where("user_id = ? AND voucher_id = ?", order.UserID, order.VoucherID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrOrderExists
		}

		res := tx.Model(&model.SeckillVoucher{}).
			Where("voucher_id = ? AND stock > 0", order.VoucherID).
			UpdateColumn("stock", gorm.Expr("stock - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStockDepleted
		}

		order.Status = model.OrderPersisted
		return tx.Create(order).Error
	})
}
