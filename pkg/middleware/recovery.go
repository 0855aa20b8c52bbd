package middleware

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
//
// チェーンの最外周に置くことで、後続のどのステージやハンドラで発生した
// パニックもここで一度だけ捕捉し、固定形式の500レスポンスに変換する。
// パニックは再送出せず、プロセスは次のリクエストを処理し続ける。
// 内部の障害詳細をレスポンスに含めてよいのはこのミドルウェアだけ。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] %s %s: %v\n%s", c.Request.Method, c.Request.URL.Path, r, debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"statusCode": http.StatusInternalServerError,
					"message":    "予期しないエラーが発生しました。",
					"details":    fmt.Sprintf("%v", r),
				})
			}
		}()
		c.Next()
	}
}
