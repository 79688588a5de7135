package model

import (
	"time"

	"gorm.io/gorm"
)

// Voucher 代金券基础信息，发布后除秒杀扩展外不再变更。
type Voucher struct {
	ID        int64          `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ShopID int64  `gorm:"not null;index" json:"shop_id"`
	Title  string `gorm:"size:128;not null" json:"title"`
	// PayValue 秒杀价，单位：分。
	PayValue int64 `gorm:"not null" json:"pay_value"`
}

func (Voucher) TableName() string { return "vouchers" }

// SeckillVoucher 秒杀券扩展，与 Voucher 一对一。
// Stock 是持久层剩余库存的唯一事实来源，只允许条件更新扣减，永不为负；
// Redis 里的库存计数只是它的缓存副本。
type SeckillVoucher struct {
	VoucherID int64     `gorm:"primarykey" json:"voucher_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Stock     int       `gorm:"not null" json:"stock"`
	BeginTime time.Time `gorm:"not null" json:"begin_time"`
	EndTime   time.Time `gorm:"not null" json:"end_time"`
}

func (SeckillVoucher) TableName() string { return "seckill_vouchers" }
