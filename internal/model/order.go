package model

import (
	"time"

	"gorm.io/gorm"
)

// OrderStatus 订单落库状态。
type OrderStatus int

const (
	OrderPending   OrderStatus = iota // 已通过准入、排队待落库
	OrderPersisted                    // 已落库
)

// VoucherOrder 秒杀订单。ID 在准入时由全局 ID 生成器分配，
// (UserID, VoucherID) 唯一索引兜底一人一单。
type VoucherOrder struct {
	// ID 不自增，使用全局 ID 生成器的值。
	ID        int64          `gorm:"primarykey;autoIncrement:false" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID    int64       `gorm:"not null;uniqueIndex:idx_user_voucher" json:"user_id"`
	VoucherID int64       `gorm:"not null;uniqueIndex:idx_user_voucher" json:"voucher_id"`
	Status    OrderStatus `gorm:"not null;default:0" json:"status"`
}

func (VoucherOrder) TableName() string { return "voucher_orders" }
