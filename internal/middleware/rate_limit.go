package middleware

import (
	"net/http"
	"sync"

	"app/internal/metrics"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// IP別のtoken bucket。プロセス内のみ（複数台ならLBの後ろで十分）。
var limiterStore sync.Map // map[string]*rate.Limiter

func getLimiter(key string, rps float64, burst int) *rate.Limiter {
	v, ok := limiterStore.Load(key)
	if ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Limit(rps), burst)
	limiterStore.Store(key, lim)
	return lim
}

// RateLimitはIP別のレート制限。login/refreshの総当たり対策。
func RateLimit(rps float64, burst int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}

			lim := getLimiter("ip:"+ip, rps, burst)
			if !lim.Allow() {
				metrics.RateLimitRejected.WithLabelValues("ip").Inc()
				return c.JSON(http.StatusTooManyRequests, errorJSON("too many requests"))
			}

			return next(c)
		}
	}
}
