package redis

import "fmt"

// 秒杀链路与缓存链路使用的 Redis 键名统一在这里约定。
// 键名格式与既有数据互通，改动需谨慎。

// SeckillStockKey 秒杀券实时库存计数器。
func SeckillStockKey(voucherID int64) string {
	return fmt.Sprintf("seckill:stock:%d", voucherID)
}

// SeckillOrderKey 某张券的已下单用户集合（一人一单判定）。
func SeckillOrderKey(voucherID int64) string {
	return fmt.Sprintf("seckill:order:%d", voucherID)
}

// OrderLockKey 异步落单时按用户加的分布式锁。
func OrderLockKey(userID int64) string {
	return fmt.Sprintf("lock:order:%d", userID)
}

// ShopCacheKey 商铺详情缓存。
func ShopCacheKey(shopID int64) string {
	return fmt.Sprintf("cache:shop:%d", shopID)
}

// ShopLockKey 商铺缓存重建互斥锁。
func ShopLockKey(shopID int64) string {
	return fmt.Sprintf("lock:shop:%d", shopID)
}

// VoucherCacheKey 秒杀券详情缓存（时间窗等不可变字段，准入热路径使用）。
func VoucherCacheKey(voucherID int64) string {
	return fmt.Sprintf("cache:voucher:%d", voucherID)
}

// VoucherLockKey 秒杀券缓存重建互斥锁。
func VoucherLockKey(voucherID int64) string {
	return fmt.Sprintf("lock:voucher:%d", voucherID)
}

// LoginTokenKey 登录态 hash，field 为用户摘要字段。
func LoginTokenKey(token string) string {
	return fmt.Sprintf("login:token:%s", token)
}

// IDCounterKey 全局 ID 生成器的按日序列 key，date 形如 2022:01:01。
func IDCounterKey(prefix, date string) string {
	return fmt.Sprintf("icr:%s:%s", prefix, date)
}

// RateLimitUserKey 秒杀接口按用户限流。
func RateLimitUserKey(userID int64) string {
	return fmt.Sprintf("rate_limit:seckill:user:%d", userID)
}

// RateLimitIPKey 未登录时按 IP 限流兜底。
func RateLimitIPKey(ip string) string {
	return fmt.Sprintf("rate_limit:seckill:ip:%s", ip)
}
