package model

import (
	"time"

	"gorm.io/gorm"
)

// Shop 商铺详情，读多写少，读路径走旁路缓存。
type Shop struct {
	ID        int64          `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name    string `gorm:"size:128;not null" json:"name"`
	Address string `gorm:"size:255" json:"address"`
	// AvgPrice 人均消费，单位：分。
	AvgPrice int64 `gorm:"not null;default:0" json:"avg_price"`
	Score    int   `gorm:"not null;default:0" json:"score"`
}

func (Shop) TableName() string { return "shops" }
