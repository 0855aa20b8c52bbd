package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/catalog/pkg/ratelimit"
)

// RateLimit はクライアントIP単位でリクエスト数を制限するGinミドルウェアを返す。
//
// 上限を超えたリクエストには429と、ウィンドウ長を秒数で示す
// Retry-Afterヘッダーを返す。クライアントIPを特定できない場合は
// 制限せずに通過させる（リミッターのフェイルオープン方針に従う）。
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := limiter.Allow(c.ClientIP(), time.Now())
		if !decision.Allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(decision.RetryAfter/time.Second)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "リクエストが多すぎます。しばらくしてから再試行してください。",
			})
			return
		}
		c.Next()
	}
}
