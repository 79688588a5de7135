package router

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"voucher_seckill/internal/config"
	"voucher_seckill/internal/middleware"
	"voucher_seckill/internal/model"
	"voucher_seckill/internal/queue"
	"voucher_seckill/internal/service"
	"voucher_seckill/internal/store"
	rediskey "voucher_seckill/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// Setup 注册全部 HTTP 路由。
func Setup(
	r *gin.Engine,
	rdb *rd.Client,
	cache *rediskey.CacheClient,
	shops *store.ShopStore,
	seckill *service.SeckillService,
	cfg config.AppConfig,
) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	// Shop（读路径走旁路缓存，不要求登录）
	r.GET("/api/shop/:id", getShop(cache, shops, cfg.ShopCacheTTL))
	r.GET("/api/shop/hot/:id", getHotShop(cache, shops, cfg.LogicalCacheTTL))
	r.PUT("/api/shop", updateShop(cache, shops))
	r.POST("/api/shop/warmup/:id", warmupShop(cache, shops, cfg.AdminToken, cfg.LogicalCacheTTL))

	// Voucher
	r.POST("/api/voucher", publishVoucher(seckill, cfg.AdminToken))
	r.GET("/api/voucher/stock/:id", getStock(rdb))

	// 秒杀与订单查询要求登录态
	auth := r.Group("/", middleware.Session(rdb, cfg.LoginTokenTTL))
	auth.POST("/api/voucher/seckill/:id",
		middleware.RedisRateLimit(rdb, cfg.SeckillRateLimit, cfg.SeckillRateWindow),
		seckillVoucher(seckill))
	auth.GET("/api/order/:id", getOrder(seckill))
}

// seckillVoucher 秒杀下单入口。
// 成功立即返回订单 ID，落库由后台 worker 异步完成。
func seckillVoucher(svc *service.SeckillService) gin.HandlerFunc {
	return func(c *gin.Context) {
		voucherID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || voucherID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "券ID无效"})
			return
		}
		user, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "未登录"})
			return
		}

		orderID, err := svc.PlaceOrder(c.Request.Context(), voucherID, user.ID)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrVoucherNotFound):
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "优惠券不存在"})
			case errors.Is(err, service.ErrNotStarted):
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "秒杀尚未开始"})
			case errors.Is(err, service.ErrEnded):
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "秒杀已经结束"})
			case errors.Is(err, service.ErrSoldOut):
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "库存不足"})
			case errors.Is(err, service.ErrDuplicateOrder):
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "不能重复下单"})
			case errors.Is(err, queue.ErrQueueFull):
				c.JSON(http.StatusServiceUnavailable, gin.H{"code": 503, "msg": "下单排队繁忙，请稍后重试"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"code": 0,
			"data": gin.H{
				"order_id": strconv.FormatInt(orderID, 10),
				"status":   "pending",
			},
		})
	}
}

// getOrder 查询订单异步落库状态。
func getOrder(svc *service.SeckillService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || orderID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "订单ID无效"})
			return
		}

		order, err := svc.OrderStatus(c.Request.Context(), orderID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if order == nil {
			// 订单尚未落库（或 ID 不存在），对调用方统一表现为处理中。
			c.JSON(http.StatusOK, gin.H{
				"code": 0,
				"data": gin.H{"status": "pending"},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"code": 0,
			"data": gin.H{"status": "persisted", "order": order},
		})
	}
}

// getShop 商铺详情：穿透防护的旁路缓存读。
func getShop(cache *rediskey.CacheClient, shops *store.ShopStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		shopID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || shopID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "商铺ID无效"})
			return
		}

		shop, err := rediskey.QueryWithPassThrough(c.Request.Context(), cache,
			rediskey.ShopCacheKey(shopID), ttl,
			func(ctx context.Context) (*model.Shop, error) {
				return shops.Get(ctx, shopID)
			})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if shop == nil {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "商铺不存在"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": shop})
	}
}

// getHotShop 热点商铺详情：逻辑过期读，永不阻塞在缓存重建上。
// 热点 key 需先通过 warmup 接口预热。
func getHotShop(cache *rediskey.CacheClient, shops *store.ShopStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		shopID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || shopID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "商铺ID无效"})
			return
		}

		shop, err := rediskey.QueryWithLogicalExpire(c.Request.Context(), cache,
			rediskey.ShopCacheKey(shopID), rediskey.ShopLockKey(shopID), ttl,
			func(ctx context.Context) (*model.Shop, error) {
				return shops.Get(ctx, shopID)
			})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if shop == nil {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "商铺未预热或不存在"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": shop})
	}
}

// updateShop 先更库、再删缓存。
func updateShop(cache *rediskey.CacheClient, shops *store.ShopStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.Shop
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		if req.ID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "商铺ID不能为空"})
			return
		}

		if err := shops.Update(c.Request.Context(), &req); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if err := cache.Delete(c.Request.Context(), rediskey.ShopCacheKey(req.ID)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "更新成功"})
	}
}

// warmupShop 管理接口：把商铺写成逻辑过期缓存条目。
func warmupShop(cache *rediskey.CacheClient, shops *store.ShopStore, adminToken string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != adminToken {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "admin token 无效"})
			return
		}
		shopID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || shopID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "商铺ID无效"})
			return
		}

		shop, err := shops.Get(c.Request.Context(), shopID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if shop == nil {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "商铺不存在"})
			return
		}
		if err := cache.SetWithLogicalExpire(c.Request.Context(), rediskey.ShopCacheKey(shopID), shop, ttl); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "预热成功"})
	}
}

// publishVoucher 发布秒杀券并预热 Redis 库存。
func publishVoucher(svc *service.SeckillService, adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != adminToken {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "admin token 无效"})
			return
		}

		var req struct {
			ShopID    int64  `json:"shop_id" binding:"required,min=1"`
			Title     string `json:"title" binding:"required"`
			PayValue  int64  `json:"pay_value" binding:"required,min=1"`
			Stock     int    `json:"stock" binding:"required,min=1"`
			BeginTime string `json:"begin_time" binding:"required"`
			EndTime   string `json:"end_time" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		begin, err := time.Parse(time.RFC3339, req.BeginTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "begin_time 格式错误，请用 RFC3339"})
			return
		}
		end, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "end_time 格式错误，请用 RFC3339"})
			return
		}
		if !end.After(begin) {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "end_time 必须晚于 begin_time"})
			return
		}

		voucher := &model.Voucher{
			ShopID:   req.ShopID,
			Title:    req.Title,
			PayValue: req.PayValue,
		}
		seckill := &model.SeckillVoucher{
			Stock:     req.Stock,
			BeginTime: begin,
			EndTime:   end,
		}
		if err := svc.PublishVoucher(c.Request.Context(), voucher, seckill); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"voucher_id": voucher.ID}})
	}
}

// getStock 查询 Redis 中的实时预占库存。
func getStock(rdb *rd.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		voucherID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || voucherID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "券ID无效"})
			return
		}
		val, err := rdb.Get(c.Request.Context(), rediskey.SeckillStockKey(voucherID)).Int64()
		if err != nil {
			if errors.Is(err, rd.Nil) {
				c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"stock": int64(0)}})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"stock": val}})
	}
}
