package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// ErrRebuildBusy 互斥重建在有限次重试内始终拿不到锁。
// 调用方可降级为直接回源或向上返回稍后重试。
var ErrRebuildBusy = errors.New("cache: rebuild lock busy, give up after retries")

const (
	// rebuildWorkers 逻辑过期异步重建的固定协程数。
	rebuildWorkers = 10
	// rebuildBuffer 重建任务缓冲；打满说明重建已饱和，丢弃新任务，
	// 旧数据继续可读，后续读请求会再次触发。
	rebuildBuffer = 256

	// mutexMaxRetries / mutexRetryDelay 互斥重建的有限重试参数。
	// 源头实现是无限递归重试，这里收敛为有限次 + 退避。
	mutexMaxRetries = 10
	mutexRetryDelay = 50 * time.Millisecond

	// rebuildLockTTL 重建锁 TTL，需覆盖一次回源 + 写缓存。
	rebuildLockTTL = 10 * time.Second
	// rebuildTimeout 异步重建任务自身的超时。
	rebuildTimeout = 5 * time.Second
)

// CacheClient 旁路缓存客户端，封装三种读策略：
//   - 穿透防护：回源未命中时写短 TTL 空值占位；
//   - 互斥重建：热 key 物理过期后仅一个请求回源，其余退避重试；
//   - 逻辑过期：key 永不物理过期，过期数据立刻返回并异步刷新。
type CacheClient struct {
	rdb     *rd.Client
	nullTTL time.Duration

	rebuildTasks chan func()
	wg           sync.WaitGroup
	closeOnce    sync.Once
}

// NewCacheClient 创建客户端并启动逻辑过期重建协程池。
// nullTTL 为空值占位的存活时间，应远小于正常缓存 TTL。
func NewCacheClient(rdb *rd.Client, nullTTL time.Duration) *CacheClient {
	c := &CacheClient{
		rdb:          rdb,
		nullTTL:      nullTTL,
		rebuildTasks: make(chan func(), rebuildBuffer),
	}
	for i := 0; i < rebuildWorkers; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for task := range c.rebuildTasks {
				task()
			}
		}()
	}
	return c
}

// Close 停止重建协程池，等待在途任务完成。
func (c *CacheClient) Close() {
	c.closeOnce.Do(func() {
		close(c.rebuildTasks)
		c.wg.Wait()
	})
}

// Set 序列化后带 TTL 写入。
func (c *CacheClient) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// SetWithLogicalExpire 写入逻辑过期信封，不设置物理 TTL。
func (c *CacheClient) SetWithLogicalExpire(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	b, err := json.Marshal(RedisData{Data: payload, ExpireAt: time.Now().Add(ttl)})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, 0).Err()
}

// Delete 删除缓存条目（写库后主动失效）。
func (c *CacheClient) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// submitRebuild 尝试投递一个重建任务，池满时返回 false。
func (c *CacheClient) submitRebuild(task func()) bool {
	select {
	case c.rebuildTasks <- task:
		return true
	default:
		return false
	}
}

// QueryWithPassThrough 旁路缓存读，空值占位防穿透。
// fallback 回源查库：返回 nil 表示数据确实不存在。
// 本函数返回 (nil, nil) 表示不存在（含命中占位符的情况）。
func QueryWithPassThrough[T any](ctx context.Context, c *CacheClient, key string, ttl time.Duration, fallback func(context.Context) (*T, error)) (*T, error) {
	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		// 命中空值占位：确认不存在，不再回源。
		if cached == "" {
			return nil, nil
		}
		var v T
		if err := json.Unmarshal([]byte(cached), &v); err != nil {
			return nil, err
		}
		return &v, nil
	}
	if !errors.Is(err, rd.Nil) {
		return nil, err
	}

	v, err := fallback(ctx)
	if err != nil {
		return nil, err
	}
	if v == nil {
		// 数据库也没有：写短 TTL 空值，挡住同 key 的反复回源。
		if err := c.rdb.Set(ctx, key, "", c.nullTTL).Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err := c.Set(ctx, key, v, ttl); err != nil {
		return nil, err
	}
	return v, nil
}

// QueryWithMutex 互斥重建读：缓存失效时只允许一个请求回源，
// 其余请求退避后重读缓存，有限次重试后放弃并返回 ErrRebuildBusy。
func QueryWithMutex[T any](ctx context.Context, c *CacheClient, key, lockKey string, ttl time.Duration, fallback func(context.Context) (*T, error)) (*T, error) {
	for attempt := 0; attempt <= mutexMaxRetries; attempt++ {
		cached, err := c.rdb.Get(ctx, key).Result()
		if err == nil {
			if cached == "" {
				return nil, nil
			}
			var v T
			if err := json.Unmarshal([]byte(cached), &v); err != nil {
				return nil, err
			}
			return &v, nil
		}
		if !errors.Is(err, rd.Nil) {
			return nil, err
		}

		lock := NewLock(c.rdb, lockKey, rebuildLockTTL)
		ok, err := lock.TryLock(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			// 别人正在重建，睡一会儿再重读缓存。
			select {
			case <-time.After(mutexRetryDelay):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		v, err := func() (*T, error) {
			defer func() { _ = lock.Unlock(ctx) }()
			v, err := fallback(ctx)
			if err != nil {
				return nil, err
			}
			if v == nil {
				if err := c.rdb.Set(ctx, key, "", c.nullTTL).Err(); err != nil {
					return nil, err
				}
				return nil, nil
			}
			if err := c.Set(ctx, key, v, ttl); err != nil {
				return nil, err
			}
			return v, nil
		}()
		return v, err
	}
	return nil, ErrRebuildBusy
}

// QueryWithLogicalExpire 逻辑过期读：永远立即返回，绝不在读路径上回源。
// 数据过期时由抢到重建锁的那个请求投递异步刷新任务，其余请求直接用旧值。
// 返回 (nil, nil) 表示 key 未预热（热点 key 需先 SetWithLogicalExpire 写入）。
func QueryWithLogicalExpire[T any](ctx context.Context, c *CacheClient, key, lockKey string, ttl time.Duration, fallback func(context.Context) (*T, error)) (*T, error) {
	cached, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var envelope RedisData
	if err := json.Unmarshal([]byte(cached), &envelope); err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(envelope.Data, &v); err != nil {
		return nil, err
	}
	if !envelope.Expired(time.Now()) {
		return &v, nil
	}

	// 已过期：尝试拿重建锁，拿到的请求负责调度刷新，拿不到直接返回旧值。
	lock := NewLock(c.rdb, lockKey, rebuildLockTTL)
	ok, err := lock.TryLock(ctx)
	if err == nil && ok {
		scheduled := c.submitRebuild(func() {
			rebuildCtx, cancel := context.WithTimeout(context.Background(), rebuildTimeout)
			defer cancel()
			defer func() { _ = lock.Unlock(rebuildCtx) }()

			fresh, err := fallback(rebuildCtx)
			if err != nil || fresh == nil {
				return
			}
			_ = c.SetWithLogicalExpire(rebuildCtx, key, fresh, ttl)
		})
		if !scheduled {
			// 池满丢弃任务，立刻还锁让后续读请求有机会再触发。
			_ = lock.Unlock(ctx)
		}
	}
	return &v, nil
}
