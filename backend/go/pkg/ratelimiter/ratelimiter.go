// Package ratelimiter 提供 HTTP 与 gRPC 入口共用的限流算法，按调用方分别计数见 Keyed。
package ratelimiter

import "time"

// RateLimiter 判断当前这一次请求是否放行。
type RateLimiter interface {
	Allow() bool
}

// clock 是限流器读取当前时间的方式，测试中替换为可控时钟。
type clock func() time.Time
