package middleware

import (
	"strconv"
	"time"

	"mafia-be/internal/metrics"

	"github.com/kataras/iris/v12"
)

// Monitor 记录每个 HTTP 请求的次数与耗时
func Monitor(ctx iris.Context) {
	start := time.Now()

	ctx.Next()

	path := "unmatched"
	if route := ctx.GetCurrentRoute(); route != nil {
		path = route.Path()
	}
	method := ctx.Method()
	status := strconv.Itoa(ctx.GetStatusCode())

	metrics.HTTPRequestsTotal.WithLabelValues(path, method, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())
}
