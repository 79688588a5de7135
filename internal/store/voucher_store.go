package store

import (
	"context"
	"errors"

	"voucher_seckill/internal/model"

	"gorm.io/gorm"
)

// VoucherStore 券相关的持久层操作。
type VoucherStore struct {
	db *gorm.DB
}

func NewVoucherStore(db *gorm.DB) *VoucherStore {
	return &VoucherStore{db: db}
}

// GetSeckillVoucher 查询秒杀券扩展，不存在时返回 (nil, nil)。
func (s *VoucherStore) GetSeckillVoucher(ctx context.Context, voucherID int64) (*model.SeckillVoucher, error) {
	var v model.SeckillVoucher
	err := s.db.WithContext(ctx).First(&v, "voucher_id = ?", voucherID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

// Publish 在一个事务里创建基础券与秒杀扩展。
func (s *VoucherStore) Publish(ctx context.Context, voucher *model.Voucher, seckill *model.SeckillVoucher) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(voucher).Error; err != nil {
			return err
		}
		seckill.VoucherID = voucher.ID
		return tx.Create(seckill).Error
	})
}
