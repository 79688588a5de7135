package store

import (
	"context"
	"errors"

	"voucher_seckill/internal/model"

	"gorm.io/gorm"
)

// ShopStore 商铺持久层操作。
type ShopStore struct {
	db *gorm.DB
}

func NewShopStore(db *gorm.DB) *ShopStore {
	return &ShopStore{db: db}
}

// Get 按 ID 查询商铺，不存在返回 (nil, nil)，供缓存回源使用。
func (s *ShopStore) Get(ctx context.Context, shopID int64) (*model.Shop, error) {
	var shop model.Shop
	err := s.db.WithContext(ctx).First(&shop, "id = ?", shopID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shop, nil
}

// Update 更新商铺。调用方随后负责删除缓存（先更库再删缓存）。
func (s *ShopStore) Update(ctx context.Context, shop *model.Shop) error {
	return s.db.WithContext(ctx).Model(&model.Shop{}).
		Where("id = ?", shop.ID).
		Updates(map[string]any{
			"name":      shop.Name,
			"address":   shop.Address,
			"avg_price": shop.AvgPrice,
			"score":     shop.Score,
		}).Error
}
