package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"voucher_seckill/internal/config"
	"voucher_seckill/internal/model"
	"voucher_seckill/internal/queue"
	"voucher_seckill/internal/router"
	"voucher_seckill/internal/service"
	"voucher_seckill/internal/store"
	rediskey "voucher_seckill/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	// 1. 连接 SQLite，自动建表
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Shop{},
		&model.Voucher{},
		&model.SeckillVoucher{},
		&model.VoucherOrder{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// 2. Redis 客户端
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 3. 组装核心组件
	cache := rediskey.NewCacheClient(rdb, cfg.NullCacheTTL)
	defer cache.Close()

	vouchers := store.NewVoucherStore(db)
	orders := store.NewOrderStore(db)
	shops := store.NewShopStore(db)
	idWorker := rediskey.NewIDWorker(rdb)
	orderQueue := queue.NewOrderQueue(cfg.OrderQueueCapacity)
	seckill := service.NewSeckillService(vouchers, orders, rdb, cache, idWorker, orderQueue, cfg.StockCacheTTL)

	// 4. 启动唯一的落单 worker（单消费者保证落库顺序 = 准入顺序）
	worker := queue.NewOrderWorker(orderQueue, rdb, orders, cfg.OrderLockTTL)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	// 5. HTTP 服务
	r := gin.Default()
	router.Setup(r, rdb, cache, shops, seckill, cfg)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()
	log.Printf("server listening on %s", cfg.HTTPAddr)

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	<-workerDone
	if n := orderQueue.Len(); n > 0 {
		// 进程内队列不持久化，停机时未消费的任务会丢失（已知限制）。
		log.Printf("shutdown with %d pending orders unprocessed", n)
	}
}
