package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	redisAddr := flag.String("redis", "localhost:6379", "redis addr, used to seed login tokens")
	voucherID := flag.Int64("voucher", 1, "seckill voucher id")
	stockCheck := flag.Bool("stock", true, "check redis stock after test")

	// 超卖测试参数：大量用户并发抢有限库存
	nUsers := flag.Int("users", 200, "distinct users")
	concurrency := flag.Int("c", 50, "max concurrency")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	ctx := context.Background()

	// 预置登录态：给每个压测用户在 Redis 里写一个 login token。
	rdb := rd.NewClient(&rd.Options{Addr: *redisAddr})
	defer rdb.Close()
	tokens := make([]string, *nUsers)
	for i := 0; i < *nUsers; i++ {
		tokens[i] = uuid.New().String()
		err := rdb.HSet(ctx, "login:token:"+tokens[i],
			"id", fmt.Sprintf("%d", 10001+i),
			"nick_name", fmt.Sprintf("loadtest-%d", i),
			"icon", "",
		).Err()
		if err != nil {
			panic(fmt.Sprintf("seed token: %v", err))
		}
		if err := rdb.Expire(ctx, "login:token:"+tokens[i], time.Hour).Err(); err != nil {
			panic(fmt.Sprintf("seed token ttl: %v", err))
		}
	}

	// 1) 不超卖测试：不同用户并发抢购
	fmt.Printf("start oversell test: voucher=%d users=%d concurrency=%d\n", *voucherID, *nUsers, *concurrency)
	results := runSeckill(client, *baseURL, *voucherID, tokens, *concurrency)
	printSummary("oversell", results)

	if *stockCheck {
		stock, err := rdb.Get(ctx, fmt.Sprintf("seckill:stock:%d", *voucherID)).Int64()
		if err != nil {
			fmt.Println("stock check err:", err)
		} else {
			fmt.Println("final redis stock:", stock)
		}
	}

	// 2) 一人一单测试：同一个用户重复抢，应只成功一次
	fmt.Println("\nstart duplicate test: same user, 50 requests, concurrency 50")
	sameUser := make([]string, 50)
	for i := range sameUser {
		sameUser[i] = tokens[0]
	}
	results2 := runSeckill(client, *baseURL, *voucherID, sameUser, 50)
	printSummary("duplicate", results2)
}

func runSeckill(client *http.Client, baseURL string, voucherID int64, tokens []string, concurrency int) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, len(tokens))

	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			url := fmt.Sprintf("%s/api/voucher/seckill/%d", baseURL, voucherID)
			req, err := http.NewRequest(http.MethodPost, url, nil)
			if err != nil {
				results[i] = Result{Err: err}
				return
			}
			req.Header.Set("authorization", tokens[i])

			resp, err := client.Do(req)
			if err != nil {
				results[i] = Result{Err: err}
				return
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			results[i] = Result{Status: resp.StatusCode, Body: string(body)}
		}(i)
	}
	wg.Wait()
	return results
}

func printSummary(name string, results []Result) {
	byStatus := map[int]int{}
	errs := 0
	for _, r := range results {
		if r.Err != nil {
			errs++
			continue
		}
		byStatus[r.Status]++
	}
	fmt.Printf("[%s] total=%d errors=%d statuses=%v\n", name, len(results), errs, byStatus)
	for _, r := range results {
		if r.Status == http.StatusOK {
			fmt.Printf("[%s] first success body: %s\n", name, r.Body)
			break
		}
	}
}
