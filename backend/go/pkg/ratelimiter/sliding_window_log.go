package ratelimiter

import (
	"sort"
	"sync"
	"time"
)

// SlidingWindowLog 记录最近 window 内每次放行的时间，最多放行 limit 次。
// 记录按时间递增，长度不会超过 limit。
type SlidingWindowLog struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   []time.Time
	now    clock
}

// NewSlidingWindowLog 创建一个 SlidingWindowLog。
func NewSlidingWindowLog(limit int, window time.Duration) *SlidingWindowLog {
	return newSlidingWindowLog(limit, window, time.Now)
}

func newSlidingWindowLog(limit int, window time.Duration, now clock) *SlidingWindowLog {
	return &SlidingWindowLog{
		limit:  limit,
		window: window,
		hits:   make([]time.Time, 0, limit),
		now:    now,
	}
}

// Allow 丢弃窗口之外的记录，窗口内次数未满时放行并记录本次时间。
func (l *SlidingWindowLog) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.now()
	boundary := t.Add(-l.window)
	expired := sort.Search(len(l.hits), func(i int) bool { return !l.hits[i].Before(boundary) })
	l.hits = append(l.hits[:0], l.hits[expired:]...)

	if len(l.hits) >= l.limit {
		return false
	}
	l.hits = append(l.hits, t)
	return true
}
