package middleware

import (
	"sync"
	"time"

	"mafia-be/internal/metrics"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter 按客户端 IP 限制 HTTP 请求速率
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	limit rate.Limit
	burst int
}

func NewIPRateLimiter(perSecond float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *IPRateLimiter) getLimiter(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	return v.limiter
}

func (l *IPRateLimiter) allow(ip string, now time.Time) bool {
	return l.getLimiter(ip, now).AllowN(now, 1)
}

func (l *IPRateLimiter) Handler() iris.Handler {
	return func(ctx iris.Context) {
		ip := ctx.RemoteAddr()

		if !l.allow(ip, time.Now()) {
			metrics.RateLimited.WithLabelValues("http").Inc()
			zap.L().Debug("HTTP 请求被限流", zap.String("client_ip", ip))

			ctx.StopWithJSON(iris.StatusTooManyRequests, iris.Map{
				"error": "请求过于频繁，请稍后再试",
			})
			return
		}

		ctx.Next()
	}
}

// prune 删除超过 ttl 未出现的访问者
func (l *IPRateLimiter) prune(now time.Time, ttl time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > ttl {
			delete(l.visitors, ip)
			removed++
		}
	}

	return removed
}

// CleanupVisitors 周期性清理访问者表，直到 done 被关闭
func (l *IPRateLimiter) CleanupVisitors(done <-chan struct{}, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			l.prune(now, ttl)
		}
	}
}
