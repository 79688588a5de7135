package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *rd.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestLockMutualExclusion(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	first := NewLock(rdb, "lock:order:1", 10*time.Second)
	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// 同一资源第二把锁必须失败
	second := NewLock(rdb, "lock:order:1", 10*time.Second)
	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// 释放后可以再次获取
	require.NoError(t, first.Unlock(ctx))
	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLockIndependentKeys(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	a := NewLock(rdb, OrderLockKey(1), 10*time.Second)
	b := NewLock(rdb, OrderLockKey(2), 10*time.Second)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUnlockStaleTokenIsNoop(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	stale := NewLock(rdb, "lock:order:7", time.Second)
	ok, err := stale.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// 锁自然过期后被另一个持有者拿走
	mr.FastForward(2 * time.Second)
	current := NewLock(rdb, "lock:order:7", 10*time.Second)
	ok, err = current.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// 过期的旧持有者释放必须是空操作，不能删掉新持有者的锁
	require.NoError(t, stale.Unlock(ctx))
	other := NewLock(rdb, "lock:order:7", 10*time.Second)
	ok, err = other.TryLock(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// 真正的持有者仍可正常释放
	require.NoError(t, current.Unlock(ctx))
	ok, err = other.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}
