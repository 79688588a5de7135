package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	DBPath   string

	RedisAddr string
	RedisDB   int

	// 异步落单队列容量与按用户锁 TTL
	OrderQueueCapacity int
	OrderLockTTL       time.Duration

	// 秒杀接口限流
	SeckillRateLimit  int
	SeckillRateWindow time.Duration

	// 缓存策略参数
	ShopCacheTTL    time.Duration
	NullCacheTTL    time.Duration
	LogicalCacheTTL time.Duration
	StockCacheTTL   time.Duration

	// 登录态续期时长
	LoginTokenTTL time.Duration

	// 预热/发券接口的简单管理员令牌（demo 级别保护）
	AdminToken string
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DBPath:             getEnv("DB_PATH", "voucher_seckill.db"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            0,
		OrderQueueCapacity: 1 << 20,
		OrderLockTTL:       10 * time.Second,
		SeckillRateLimit:   1000,
		SeckillRateWindow:  time.Second,
		ShopCacheTTL:       30 * time.Minute,
		NullCacheTTL:       2 * time.Minute,
		LogicalCacheTTL:    20 * time.Second,
		StockCacheTTL:      24 * time.Hour,
		LoginTokenTTL:      30 * time.Minute,
		AdminToken:         getEnv("ADMIN_TOKEN", "dev-admin-token"),
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	queueCap, err := getEnvInt("ORDER_QUEUE_CAPACITY", cfg.OrderQueueCapacity)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_QUEUE_CAPACITY: %w", err)
	}
	if queueCap <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_QUEUE_CAPACITY must be > 0")
	}
	cfg.OrderQueueCapacity = queueCap

	lockTTLSec, err := getEnvInt("ORDER_LOCK_TTL_SEC", int(cfg.OrderLockTTL.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_LOCK_TTL_SEC: %w", err)
	}
	if lockTTLSec <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_LOCK_TTL_SEC must be > 0")
	}
	cfg.OrderLockTTL = time.Duration(lockTTLSec) * time.Second

	rateLimit, err := getEnvInt("SECKILL_RATE_LIMIT", cfg.SeckillRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SECKILL_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("SECKILL_RATE_LIMIT must be > 0")
	}
	cfg.SeckillRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("SECKILL_RATE_WINDOW_SEC", int(cfg.SeckillRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SECKILL_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("SECKILL_RATE_WINDOW_SEC must be > 0")
	}
	cfg.SeckillRateWindow = time.Duration(rateWindowSec) * time.Second

	shopTTLMin, err := getEnvInt("SHOP_CACHE_TTL_MIN", int(cfg.ShopCacheTTL.Minutes()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SHOP_CACHE_TTL_MIN: %w", err)
	}
	if shopTTLMin <= 0 {
		return AppConfig{}, fmt.Errorf("SHOP_CACHE_TTL_MIN must be > 0")
	}
	cfg.ShopCacheTTL = time.Duration(shopTTLMin) * time.Minute

	nullTTLSec, err := getEnvInt("NULL_CACHE_TTL_SEC", int(cfg.NullCacheTTL.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid NULL_CACHE_TTL_SEC: %w", err)
	}
	if nullTTLSec <= 0 {
		return AppConfig{}, fmt.Errorf("NULL_CACHE_TTL_SEC must be > 0")
	}
	cfg.NullCacheTTL = time.Duration(nullTTLSec) * time.Second

	logicalTTLSec, err := getEnvInt("LOGICAL_CACHE_TTL_SEC", int(cfg.LogicalCacheTTL.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid LOGICAL_CACHE_TTL_SEC: %w", err)
	}
	if logicalTTLSec <= 0 {
		return AppConfig{}, fmt.Errorf("LOGICAL_CACHE_TTL_SEC must be > 0")
	}
	cfg.LogicalCacheTTL = time.Duration(logicalTTLSec) * time.Second

	stockTTLHour, err := getEnvInt("STOCK_CACHE_TTL_HOUR", int(cfg.StockCacheTTL.Hours()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid STOCK_CACHE_TTL_HOUR: %w", err)
	}
	if stockTTLHour <= 0 {
		return AppConfig{}, fmt.Errorf("STOCK_CACHE_TTL_HOUR must be > 0")
	}
	cfg.StockCacheTTL = time.Duration(stockTTLHour) * time.Hour

	tokenTTLMin, err := getEnvInt("LOGIN_TOKEN_TTL_MIN", int(cfg.LoginTokenTTL.Minutes()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid LOGIN_TOKEN_TTL_MIN: %w", err)
	}
	if tokenTTLMin <= 0 {
		return AppConfig{}, fmt.Errorf("LOGIN_TOKEN_TTL_MIN must be > 0")
	}
	cfg.LoginTokenTTL = time.Duration(tokenTTLMin) * time.Minute

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
